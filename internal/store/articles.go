// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/agentberlin/covenant/internal/content"
)

// ListArticles returns every stored article, newest first. Articles without
// a publication date come last, ordered by slug.
func (s *Store) ListArticles(ctx context.Context) ([]Article, error) {
	var articles []Article
	if err := s.db.WithContext(ctx).
		Order("published_at IS NULL, published_at DESC, slug ASC").
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to list articles: %v", err)
	}
	return articles, nil
}

// GetArticle gets an article by slug
func (s *Store) GetArticle(ctx context.Context, slug string) (*Article, error) {
	var article Article
	result := s.db.WithContext(ctx).Where("slug = ?", slug).First(&article)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to get article: %w", result.Error)
	}
	return &article, nil
}

// Revisions returns the revisions of an article, oldest first.
func (s *Store) Revisions(ctx context.Context, articleID uint) ([]ArticleRevision, error) {
	var revisions []ArticleRevision
	if err := s.db.WithContext(ctx).
		Where("article_id = ?", articleID).
		Order("created_at ASC, rowid ASC").
		Find(&revisions).Error; err != nil {
		return nil, fmt.Errorf("failed to list revisions: %v", err)
	}
	return revisions, nil
}

// Settings returns the stored site settings, or nil when none were synced.
func (s *Store) Settings(ctx context.Context) (*SiteSettings, error) {
	var settings SiteSettings
	result := s.db.WithContext(ctx).First(&settings, "id = ?", SettingsID)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, fmt.Errorf("failed to read site settings: %v", result.Error)
	}
	return &settings, nil
}

// LoadSiteContent rebuilds SiteContent from the database. Settings columns
// that fail to decode fall back to the defaults.
func (s *Store) LoadSiteContent(ctx context.Context) (*content.SiteContent, error) {
	rows, err := s.ListArticles(ctx)
	if err != nil {
		return nil, err
	}
	articles := make([]content.Article, 0, len(rows))
	for i := range rows {
		articles = append(articles, content.ParseDBArticle(rows[i].Row()))
	}
	if len(articles) == 0 {
		return nil, ErrNoArticles
	}

	settings, err := s.Settings(ctx)
	if err != nil {
		return nil, err
	}
	hero := content.DefaultHero()
	nav := content.DefaultNavigation()
	var featured []string
	var highlight string
	if settings != nil {
		var h content.Hero
		if json.Unmarshal([]byte(settings.Hero), &h) == nil && h.Title != "" {
			hero = h
		}
		var n content.Navigation
		if json.Unmarshal([]byte(settings.Navigation), &n) == nil {
			if n.Primary != nil {
				nav.Primary = n.Primary
			}
			if n.Secondary != nil {
				nav.Secondary = n.Secondary
			}
		}
		if json.Unmarshal([]byte(settings.FeaturedSlugs), &featured) != nil {
			featured = nil
		}
		highlight = settings.HighlightSlug
	}
	return content.Assemble(articles, featured, highlight, hero, nav), nil
}

// Counts holds table sizes.
type Counts struct {
	Articles  int64
	Revisions int64
	Settings  int64
}

// Counts returns the number of rows per table.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	db := s.db.WithContext(ctx)
	if err := db.Model(&Article{}).Count(&c.Articles).Error; err != nil {
		return c, fmt.Errorf("failed to count articles: %v", err)
	}
	if err := db.Model(&ArticleRevision{}).Count(&c.Revisions).Error; err != nil {
		return c, fmt.Errorf("failed to count revisions: %v", err)
	}
	if err := db.Model(&SiteSettings{}).Count(&c.Settings).Error; err != nil {
		return c, fmt.Errorf("failed to count settings: %v", err)
	}
	return c, nil
}

// DuplicateSlug is a slug stored more than once.
type DuplicateSlug struct {
	Slug  string
	Count int64
}

// DuplicateSlugs reports slugs present in more than one article row.
func (s *Store) DuplicateSlugs(ctx context.Context) ([]DuplicateSlug, error) {
	var dups []DuplicateSlug
	if err := s.db.WithContext(ctx).Model(&Article{}).
		Select("slug, COUNT(*) AS count").
		Group("slug").
		Having("COUNT(*) > 1").
		Scan(&dups).Error; err != nil {
		return nil, fmt.Errorf("failed to check duplicates: %v", err)
	}
	return dups, nil
}

// RecentArticles returns the limit most recently updated articles.
func (s *Store) RecentArticles(ctx context.Context, limit int) ([]Article, error) {
	var articles []Article
	if err := s.db.WithContext(ctx).
		Order("updated_at DESC, id DESC").
		Limit(limit).
		Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("failed to list recent articles: %v", err)
	}
	return articles, nil
}
