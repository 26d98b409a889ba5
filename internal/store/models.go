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
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentberlin/covenant/internal/content"
)

// Article is a synced article. Tags, Sections and the escape room columns
// hold JSON text.
type Article struct {
	ID                    uint       `gorm:"primaryKey"`
	Slug                  string     `gorm:"uniqueIndex;not null"`
	Title                 string     `gorm:"not null"`
	Description           *string    `gorm:"type:text"`
	Excerpt               *string    `gorm:"type:text"`
	CoverImageURL         *string    `gorm:"column:cover_image_url"`
	CoverImageAlt         *string    `gorm:"column:cover_image_alt"`
	Category              *string    `gorm:"index"`
	Tags                  string     `gorm:"type:text;not null;default:'[]'"`
	PublishedAt           *time.Time `gorm:"index"`
	ReadingTime           *string
	Sections              string            `gorm:"type:text;not null"`
	EscapeRoomGeneralData *string           `gorm:"type:text"`
	EscapeRoomScoring     *string           `gorm:"type:text"`
	ContentHash           string            `gorm:"not null;index"` // sha256 of the revision payload
	Revisions             []ArticleRevision `gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
	CreatedAt             int64             `gorm:"autoCreateTime"`
	UpdatedAt             int64             `gorm:"autoUpdateTime"`
}

// TableName returns the table name for Article
func (Article) TableName() string {
	return "articles"
}

// Row converts the model to the row shape the content package parses.
func (a *Article) Row() content.DBArticle {
	return content.DBArticle{
		Slug:                  a.Slug,
		Title:                 a.Title,
		Description:           a.Description,
		Excerpt:               a.Excerpt,
		CoverImageURL:         a.CoverImageURL,
		CoverImageAlt:         a.CoverImageAlt,
		Category:              a.Category,
		Tags:                  a.Tags,
		PublishedAt:           a.PublishedAt,
		ReadingTime:           a.ReadingTime,
		Sections:              a.Sections,
		EscapeRoomGeneralData: a.EscapeRoomGeneralData,
		EscapeRoomScoring:     a.EscapeRoomScoring,
	}
}

// ArticleRevision records every content change of an article.
type ArticleRevision struct {
	ID        string `gorm:"primaryKey;type:text"`
	ArticleID uint   `gorm:"not null;index"`
	Checksum  string `gorm:"not null"`
	Data      string `gorm:"type:text;not null"` // JSON revision payload
	CreatedAt int64  `gorm:"autoCreateTime"`
}

// TableName returns the table name for ArticleRevision
func (ArticleRevision) TableName() string {
	return "article_revisions"
}

// BeforeCreate assigns a random ID.
func (r *ArticleRevision) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// SettingsID is the primary key of the only SiteSettings row.
const SettingsID = "default"

// SiteSettings holds the site-wide content as JSON text.
type SiteSettings struct {
	ID            string `gorm:"primaryKey;type:text"`
	Hero          string `gorm:"type:text;not null"`
	HighlightSlug string
	FeaturedSlugs string `gorm:"type:text;not null;default:'[]'"`
	Navigation    string `gorm:"type:text;not null"`
	ContentHash   string `gorm:"not null"`
	UpdatedAt     int64  `gorm:"autoUpdateTime"`
}

// TableName returns the table name for SiteSettings
func (SiteSettings) TableName() string {
	return "site_settings"
}
