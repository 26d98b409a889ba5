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

package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agentberlin/covenant"
)

// ErrNoPages is returned when the crawl export has no "pages" array.
var ErrNoPages = errors.New(`export has no "pages" array`)

// RawInput is a crawl export as read by the formatter. Settings are carried
// through untouched.
type RawInput struct {
	StartURL   string
	CrawledAt  string
	TotalPages *int
	Settings   json.RawMessage
	Pages      []covenant.CrawlRecord
}

type rawInputWire struct {
	StartURL   string          `json:"startUrl"`
	CrawledAt  string          `json:"crawledAt"`
	TotalPages *int            `json:"totalPages"`
	Settings   json.RawMessage `json:"settings"`
	Pages      json.RawMessage `json:"pages"`
}

// DecodeInput parses a crawl export. A page that does not match the record
// shape is decoded field by field so one bad value does not lose the page.
func DecodeInput(data []byte) (*RawInput, error) {
	var wire rawInputWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}
	pages := bytes.TrimSpace(wire.Pages)
	if len(pages) == 0 || pages[0] != '[' {
		return nil, ErrNoPages
	}
	var items []json.RawMessage
	if err := json.Unmarshal(pages, &items); err != nil {
		return nil, fmt.Errorf("failed to parse pages: %w", err)
	}

	input := &RawInput{
		StartURL:   wire.StartURL,
		CrawledAt:  wire.CrawledAt,
		TotalPages: wire.TotalPages,
		Pages:      make([]covenant.CrawlRecord, 0, len(items)),
	}
	if settings := bytes.TrimSpace(wire.Settings); len(settings) > 0 && !bytes.Equal(settings, []byte("null")) {
		input.Settings = settings
	}
	for _, item := range items {
		input.Pages = append(input.Pages, decodeRecord(item))
	}
	return input, nil
}

func decodeRecord(data json.RawMessage) covenant.CrawlRecord {
	var record covenant.CrawlRecord
	if err := json.Unmarshal(data, &record); err == nil {
		return record
	}

	record = covenant.CrawlRecord{}
	var fields map[string]json.RawMessage
	if json.Unmarshal(data, &fields) != nil {
		return record
	}
	decode := func(key string, dst any) {
		if raw, ok := fields[key]; ok {
			_ = json.Unmarshal(raw, dst)
		}
	}
	decode("url", &record.URL)
	decode("status", &record.Status)
	decode("error", &record.Error)
	decode("fetchedAt", &record.FetchedAt)
	decode("contentType", &record.ContentType)
	decode("title", &record.Title)
	decode("language", &record.Language)
	decode("metaDescription", &record.MetaDescription)
	decode("canonicalUrl", &record.CanonicalURL)
	decode("meta", &record.Meta)
	decode("links", &record.Links)
	decode("images", &record.Images)
	decode("outline", &record.Outline)
	decode("sections", &record.Sections)
	decode("contentBlocks", &record.ContentBlocks)
	decode("textContent", &record.TextContent)
	decode("jsonLd", &record.JSONLD)
	decode("rawHtml", &record.RawHTML)
	decode("escapeRoomGeneralData", &record.EscapeRoomGeneralData)
	decode("escapeRoomScoring", &record.EscapeRoomScoring)
	decode("isEscapeRoomReview", &record.IsEscapeRoomReview)
	return record
}

// ImageRef is a cover or featured image.
type ImageRef struct {
	URL string `json:"url,omitempty"`
	Alt string `json:"alt,omitempty"`
}

// SimpleImage is a deduplicated content image.
type SimpleImage struct {
	Src   string `json:"src"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// HeadingRef is one entry of the flattened outline.
type HeadingRef struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// PageSection is either a content section (heading, paragraph, quote or
// image) or, when the page has none, a legacy <section> summary.
type PageSection struct {
	Type      string   `json:"type,omitempty"`
	Text      string   `json:"text,omitempty"`
	URL       string   `json:"url,omitempty"`
	Alt       string   `json:"alt,omitempty"`
	Caption   string   `json:"caption,omitempty"`
	ID        string   `json:"id,omitempty"`
	ClassName string   `json:"className,omitempty"`
	Images    []string `json:"images,omitempty"`
}

// LinkRef is a simplified anchor.
type LinkRef struct {
	Href  string `json:"href"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

// LinkGroups splits content links by destination.
type LinkGroups struct {
	Internal []LinkRef `json:"internal"`
	External []LinkRef `json:"external"`
}

// JSONLDSummary is the type, name, description and url of a JSON-LD entry.
type JSONLDSummary struct {
	Type        string `json:"type,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// FormattedPage is one reconciled document page.
type FormattedPage struct {
	URL                   string                          `json:"url,omitempty"`
	Status                int                             `json:"status,omitempty"`
	FetchedAt             string                          `json:"fetchedAt,omitempty"`
	ContentType           string                          `json:"contentType,omitempty"`
	Title                 string                          `json:"title,omitempty"`
	MetaDescription       string                          `json:"metaDescription,omitempty"`
	Description           string                          `json:"description,omitempty"`
	Excerpt               string                          `json:"excerpt,omitempty"`
	Language              string                          `json:"language,omitempty"`
	WordCount             int                             `json:"wordCount,omitempty"`
	ReadingTimeMinutes    int                             `json:"readingTimeMinutes,omitempty"`
	CoverImage            *ImageRef                       `json:"coverImage,omitempty"`
	ContentHTML           string                          `json:"contentHtml,omitempty"`
	Headings              []HeadingRef                    `json:"headings,omitempty"`
	Sections              []PageSection                   `json:"sections,omitempty"`
	Paragraphs            []string                        `json:"paragraphs,omitempty"`
	Images                []SimpleImage                   `json:"images,omitempty"`
	Links                 LinkGroups                      `json:"links"`
	JSONLD                []JSONLDSummary                 `json:"jsonLd,omitempty"`
	EscapeRoomGeneralData *covenant.EscapeRoomGeneralData `json:"escapeRoomGeneralData,omitempty"`
	EscapeRoomScoring     *covenant.EscapeRoomScoring     `json:"escapeRoomScoring,omitempty"`
	IsEscapeRoomReview    bool                            `json:"isEscapeRoomReview,omitempty"`
	Meta                  []covenant.MetaTag              `json:"meta,omitempty"`
	Category              string                          `json:"category,omitempty"`
	Section               string                          `json:"section,omitempty"`
	Tags                  []string                        `json:"tags,omitempty"`
	SourceURLs            []string                        `json:"sourceUrls,omitempty"`

	sourceURL string
}

// FormattedAsset is a non-document record such as an image.
type FormattedAsset struct {
	URL         string `json:"url,omitempty"`
	SourceURL   string `json:"sourceUrl,omitempty"`
	Status      int    `json:"status,omitempty"`
	FetchedAt   string `json:"fetchedAt,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Title       string `json:"title,omitempty"`
}

// Source echoes the crawl export header.
type Source struct {
	StartURL   string          `json:"startUrl,omitempty"`
	CrawledAt  string          `json:"crawledAt,omitempty"`
	TotalPages *int            `json:"totalPages,omitempty"`
	Settings   json.RawMessage `json:"settings,omitempty"`
}

// FormattedExport is thecovenant-export-formatted.json.
type FormattedExport struct {
	Source      Source           `json:"source"`
	GeneratedAt string           `json:"generatedAt"`
	Pages       []FormattedPage  `json:"pages"`
	Assets      []FormattedAsset `json:"assets,omitempty"`
}

// Profile is the escape-room fact sheet of a generic entry.
type Profile struct {
	Category        string `json:"category,omitempty"`
	Province        string `json:"province,omitempty"`
	DurationMinutes *int   `json:"durationMinutes,omitempty"`
	DurationText    string `json:"durationText,omitempty"`
	PlayersText     string `json:"playersText,omitempty"`
	MinPlayers      *int   `json:"minPlayers,omitempty"`
	MaxPlayers      *int   `json:"maxPlayers,omitempty"`
	WebURL          string `json:"webUrl,omitempty"`
	RawHTML         string `json:"rawHtml,omitempty"`
}

// ScoreEntry is one rating category of a generic entry.
type ScoreEntry struct {
	ID    string   `json:"id"`
	Label string   `json:"label"`
	Value *float64 `json:"value,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Ratio *float64 `json:"ratio,omitempty"`
}

// Scores lists the rating categories sorted by label. Overall is the
// category whose label mentions "global".
type Scores struct {
	Categories []ScoreEntry `json:"categories,omitempty"`
	Overall    *ScoreEntry  `json:"overall,omitempty"`
	RawHTML    string       `json:"rawHtml,omitempty"`
}

// EntryMeta carries provenance for a generic entry.
type EntryMeta struct {
	OriginalURL        string   `json:"originalUrl,omitempty"`
	SourceURLs         []string `json:"sourceUrls,omitempty"`
	WordCount          int      `json:"wordCount,omitempty"`
	ReadingTimeMinutes int      `json:"readingTimeMinutes,omitempty"`
	FetchedAt          string   `json:"fetchedAt,omitempty"`
	Status             int      `json:"status,omitempty"`
	ContentType        string   `json:"contentType,omitempty"`
}

func (m EntryMeta) empty() bool {
	return m.OriginalURL == "" && len(m.SourceURLs) == 0 && m.WordCount == 0 &&
		m.ReadingTimeMinutes == 0 && m.FetchedAt == "" && m.Status == 0 && m.ContentType == ""
}

// GenericEntry is one entry of generic.json.
type GenericEntry struct {
	Type          string        `json:"type"`
	Slug          string        `json:"slug"`
	Path          string        `json:"path"`
	Title         string        `json:"title,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	BodyHTML      string        `json:"bodyHtml,omitempty"`
	BodyText      string        `json:"bodyText,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	FeaturedImage *ImageRef     `json:"featuredImage,omitempty"`
	Gallery       []SimpleImage `json:"gallery,omitempty"`
	Profile       *Profile      `json:"profile,omitempty"`
	Scores        *Scores       `json:"scores,omitempty"`
	Meta          *EntryMeta    `json:"meta,omitempty"`
}

// GenericExport is generic.json and each per-type <type>.json.
type GenericExport struct {
	GeneratedAt string         `json:"generatedAt"`
	Source      Source         `json:"source"`
	Total       int            `json:"total"`
	Entries     []GenericEntry `json:"entries"`
}
