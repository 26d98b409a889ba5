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
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/content"
)

// ErrNoArticles is returned when there is nothing to sync.
var ErrNoArticles = errors.New("export contains no valid articles, nothing to sync")

// SyncResult counts what a sync did.
type SyncResult struct {
	Created         int
	Updated         int
	Unchanged       int
	Deleted         int
	SettingsUpdated bool
}

// revision is the checksummed article payload. Field order is fixed so
// equal content always hashes equally.
type revision struct {
	Slug                  string  `json:"slug"`
	Title                 string  `json:"title"`
	Description           *string `json:"description"`
	Excerpt               *string `json:"excerpt"`
	CoverImageURL         *string `json:"coverImageUrl"`
	CoverImageAlt         *string `json:"coverImageAlt"`
	Category              *string `json:"category"`
	Tags                  string  `json:"tags"`
	PublishedAt           *string `json:"publishedAt"`
	ReadingTime           *string `json:"readingTime"`
	Sections              string  `json:"sections"`
	EscapeRoomGeneralData *string `json:"escapeRoomGeneralData"`
	EscapeRoomScoring     *string `json:"escapeRoomScoring"`
}

type settingsPayload struct {
	Hero          string `json:"hero"`
	HighlightSlug string `json:"highlightSlug"`
	FeaturedSlugs string `json:"featuredSlugs"`
	Navigation    string `json:"navigation"`
}

var publishedLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parsePublishedAt accepts the date shapes the export carries. Anything
// else is treated as unknown.
func parsePublishedAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range publishedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func jsonText(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func optionalJSON[T any](v *T) (*string, error) {
	if v == nil {
		return nil, nil
	}
	s, err := jsonText(v)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// articleRow builds the model and checksum payload for one article.
func articleRow(a *content.Article) (Article, revision, error) {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsText, err := jsonText(tags)
	if err != nil {
		return Article{}, revision{}, err
	}
	sectionsText, err := jsonText(a.Sections)
	if err != nil {
		return Article{}, revision{}, err
	}
	general, err := optionalJSON(a.EscapeRoomGeneralData)
	if err != nil {
		return Article{}, revision{}, err
	}
	scoring, err := optionalJSON(a.EscapeRoomScoring)
	if err != nil {
		return Article{}, revision{}, err
	}

	row := Article{
		Slug:                  a.Slug,
		Title:                 a.Title,
		Description:           optional(a.Description),
		Excerpt:               optional(a.Excerpt),
		Category:              optional(a.Category),
		Tags:                  tagsText,
		PublishedAt:           parsePublishedAt(a.PublishedAt),
		ReadingTime:           optional(a.ReadingTime),
		Sections:              sectionsText,
		EscapeRoomGeneralData: general,
		EscapeRoomScoring:     scoring,
	}
	if a.CoverImage != nil {
		row.CoverImageURL = optional(a.CoverImage.URL)
		row.CoverImageAlt = optional(a.CoverImage.Alt)
	}

	rev := revision{
		Slug:                  row.Slug,
		Title:                 row.Title,
		Description:           row.Description,
		Excerpt:               row.Excerpt,
		CoverImageURL:         row.CoverImageURL,
		CoverImageAlt:         row.CoverImageAlt,
		Category:              row.Category,
		Tags:                  row.Tags,
		ReadingTime:           row.ReadingTime,
		Sections:              row.Sections,
		EscapeRoomGeneralData: row.EscapeRoomGeneralData,
		EscapeRoomScoring:     row.EscapeRoomScoring,
	}
	if row.PublishedAt != nil {
		ts := covenant.Timestamp(*row.PublishedAt)
		rev.PublishedAt = &ts
	}
	return row, rev, nil
}

type existingArticle struct {
	ID          uint
	Slug        string
	ContentHash string
}

// Sync writes site into the database. Articles whose checksum matches the
// stored content hash are left untouched; changed or new articles are
// upserted with a revision; stored slugs missing from site are deleted.
// The settings row is only written when its own checksum changes.
func (s *Store) Sync(ctx context.Context, site *content.SiteContent) (SyncResult, error) {
	var result SyncResult
	if site == nil || len(site.Articles) == 0 {
		return result, ErrNoArticles
	}
	db := s.db.WithContext(ctx)

	var existing []existingArticle
	if err := db.Model(&Article{}).Select("id", "slug", "content_hash").Find(&existing).Error; err != nil {
		return result, fmt.Errorf("failed to list articles: %v", err)
	}
	bySlug := make(map[string]existingArticle, len(existing))
	for _, e := range existing {
		bySlug[e.Slug] = e
	}
	seen := make(map[string]bool, len(site.Articles))

	for i := range site.Articles {
		article := &site.Articles[i]
		if article.Slug == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		row, rev, err := articleRow(article)
		if err != nil {
			return result, fmt.Errorf("failed to encode article %s: %w", article.Slug, err)
		}
		checksum, err := covenant.ChecksumJSON(rev)
		if err != nil {
			return result, err
		}
		data, err := jsonText(rev)
		if err != nil {
			return result, err
		}
		row.ContentHash = checksum
		seen[article.Slug] = true

		prev, ok := bySlug[article.Slug]
		if ok && prev.ContentHash == checksum {
			result.Unchanged++
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if ok {
				row.ID = prev.ID
				if err := tx.Model(&Article{}).Where("id = ?", prev.ID).Updates(map[string]interface{}{
					"title":                    row.Title,
					"description":              row.Description,
					"excerpt":                  row.Excerpt,
					"cover_image_url":          row.CoverImageURL,
					"cover_image_alt":          row.CoverImageAlt,
					"category":                 row.Category,
					"tags":                     row.Tags,
					"published_at":             row.PublishedAt,
					"reading_time":             row.ReadingTime,
					"sections":                 row.Sections,
					"escape_room_general_data": row.EscapeRoomGeneralData,
					"escape_room_scoring":      row.EscapeRoomScoring,
					"content_hash":             row.ContentHash,
				}).Error; err != nil {
					return err
				}
			} else if err := tx.Create(&row).Error; err != nil {
				return err
			}
			return tx.Create(&ArticleRevision{ArticleID: row.ID, Checksum: checksum, Data: data}).Error
		})
		if err != nil {
			return result, fmt.Errorf("failed to upsert article %s: %v", article.Slug, err)
		}
		// A later article with the same slug overwrites the earlier one.
		bySlug[article.Slug] = existingArticle{ID: row.ID, Slug: article.Slug, ContentHash: checksum}
		if ok {
			result.Updated++
		} else {
			result.Created++
		}
	}

	var obsolete []uint
	for _, e := range existing {
		if !seen[e.Slug] {
			obsolete = append(obsolete, e.ID)
		}
	}
	if len(obsolete) > 0 {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("article_id IN ?", obsolete).Delete(&ArticleRevision{}).Error; err != nil {
				return err
			}
			return tx.Where("id IN ?", obsolete).Delete(&Article{}).Error
		})
		if err != nil {
			return result, fmt.Errorf("failed to delete obsolete articles: %v", err)
		}
		result.Deleted = len(obsolete)
	}

	updated, err := s.syncSettings(db, site)
	if err != nil {
		return result, err
	}
	result.SettingsUpdated = updated

	s.logger.Info("sync complete",
		zap.Int("articles", len(site.Articles)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("deleted", result.Deleted),
		zap.Bool("settingsUpdated", result.SettingsUpdated))
	return result, nil
}

func (s *Store) syncSettings(db *gorm.DB, site *content.SiteContent) (bool, error) {
	featured := site.Featured
	if featured == nil {
		featured = []string{}
	}
	var payload settingsPayload
	var err error
	if payload.Hero, err = jsonText(site.Hero); err != nil {
		return false, err
	}
	if payload.FeaturedSlugs, err = jsonText(featured); err != nil {
		return false, err
	}
	if payload.Navigation, err = jsonText(site.Navigation); err != nil {
		return false, err
	}
	payload.HighlightSlug = site.Highlight
	checksum, err := covenant.ChecksumJSON(payload)
	if err != nil {
		return false, err
	}

	var current SiteSettings
	result := db.First(&current, "id = ?", SettingsID)
	if result.Error != nil && !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("failed to read site settings: %v", result.Error)
	}
	if result.Error == nil && current.ContentHash == checksum {
		return false, nil
	}

	settings := SiteSettings{
		ID:            SettingsID,
		Hero:          payload.Hero,
		HighlightSlug: payload.HighlightSlug,
		FeaturedSlugs: payload.FeaturedSlugs,
		Navigation:    payload.Navigation,
		ContentHash:   checksum,
	}
	if result.Error == nil {
		err = db.Model(&SiteSettings{}).Where("id = ?", SettingsID).Updates(map[string]interface{}{
			"hero":           settings.Hero,
			"highlight_slug": settings.HighlightSlug,
			"featured_slugs": settings.FeaturedSlugs,
			"navigation":     settings.Navigation,
			"content_hash":   settings.ContentHash,
		}).Error
	} else {
		err = db.Create(&settings).Error
	}
	if err != nil {
		return false, fmt.Errorf("failed to write site settings: %v", err)
	}
	return true, nil
}
