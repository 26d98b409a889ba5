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

// Package content turns the formatted export (or the synced database) into
// the site content model and serves it from a load-once cache.
package content

import (
	"errors"

	"github.com/agentberlin/covenant"
)

// ErrExportNotFound is returned when no export candidate exists on disk.
var ErrExportNotFound = errors.New("formatted export not found")

// ExportFilename is the formatted export the site reads.
const ExportFilename = "thecovenant-export-formatted.json"

// Section types.
const (
	SectionParagraph = "paragraph"
	SectionHeading   = "heading"
	SectionQuote     = "quote"
	SectionImage     = "image"
	SectionEmbed     = "embed"
)

// Placeholder is the text of the single section an article with no content
// gets.
const Placeholder = "Contenido no disponible temporalmente."

// Section is one rendered block of an article.
type Section struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Caption string `json:"caption,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Image is an article cover.
type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

// Article is a page as the site renders it.
type Article struct {
	Slug                  string                          `json:"slug"`
	Title                 string                          `json:"title"`
	Description           string                          `json:"description,omitempty"`
	Excerpt               string                          `json:"excerpt,omitempty"`
	CoverImage            *Image                          `json:"coverImage,omitempty"`
	Category              string                          `json:"category,omitempty"`
	Tags                  []string                        `json:"tags,omitempty"`
	PublishedAt           string                          `json:"publishedAt,omitempty"`
	ReadingTime           string                          `json:"readingTime,omitempty"`
	Sections              []Section                       `json:"sections"`
	EscapeRoomGeneralData *covenant.EscapeRoomGeneralData `json:"escapeRoomGeneralData,omitempty"`
	EscapeRoomScoring     *covenant.EscapeRoomScoring     `json:"escapeRoomScoring,omitempty"`
}

// NavItem is a navigation link.
type NavItem struct {
	Label string `json:"label"`
	Href  string `json:"href"`
}

// Navigation holds the header and footer menus.
type Navigation struct {
	Primary   []NavItem `json:"primary"`
	Secondary []NavItem `json:"secondary"`
}

// Hero is the home page banner.
type Hero struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	CTA         *NavItem `json:"cta,omitempty"`
}

// SiteContent is everything the site needs to render.
type SiteContent struct {
	Hero       Hero       `json:"hero"`
	Highlight  string     `json:"highlight"`
	Articles   []Article  `json:"articles"`
	Featured   []string   `json:"featured"`
	Navigation Navigation `json:"navigation"`
}

// ArticleBySlug finds an article, ignoring a leading slash on slug.
func (c *SiteContent) ArticleBySlug(slug string) (*Article, bool) {
	if c == nil {
		return nil, false
	}
	if len(slug) > 0 && slug[0] == '/' {
		slug = slug[1:]
	}
	for i := range c.Articles {
		if c.Articles[i].Slug == slug {
			return &c.Articles[i], true
		}
	}
	return nil, false
}

// HighlightArticle returns the article named by Highlight.
func (c *SiteContent) HighlightArticle() (*Article, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Articles {
		if c.Articles[i].Slug == c.Highlight {
			return &c.Articles[i], true
		}
	}
	return nil, false
}

// FeaturedArticles resolves Featured in order. Unknown slugs are skipped.
func (c *SiteContent) FeaturedArticles() []Article {
	if c == nil {
		return nil
	}
	bySlug := make(map[string]int, len(c.Articles))
	for i, a := range c.Articles {
		bySlug[a.Slug] = i
	}
	out := []Article{}
	for _, slug := range c.Featured {
		if i, ok := bySlug[slug]; ok {
			out = append(out, c.Articles[i])
		}
	}
	return out
}
