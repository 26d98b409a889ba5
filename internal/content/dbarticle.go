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

package content

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/agentberlin/covenant"
)

// DBArticle is a stored article row. JSON columns hold serialized text.
type DBArticle struct {
	Slug                  string
	Title                 string
	Description           *string
	Excerpt               *string
	CoverImageURL         *string
	CoverImageAlt         *string
	Category              *string
	Tags                  string
	PublishedAt           *time.Time
	ReadingTime           *string
	Sections              string
	EscapeRoomGeneralData *string
	EscapeRoomScoring     *string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ParseDBArticle maps a stored row back to an Article. Unparsable JSON
// columns read as absent; an article without sections gets the placeholder.
func ParseDBArticle(row DBArticle) Article {
	article := Article{
		Slug:        row.Slug,
		Title:       row.Title,
		Description: deref(row.Description),
		Excerpt:     deref(row.Excerpt),
		Category:    deref(row.Category),
		ReadingTime: deref(row.ReadingTime),
	}

	var sections []Section
	if json.Unmarshal([]byte(row.Sections), &sections) == nil && len(sections) > 0 {
		article.Sections = sections
	} else {
		article.Sections = []Section{{Type: SectionParagraph, Text: Placeholder}}
	}

	if strings.TrimSpace(row.Tags) != "" {
		var raw []json.RawMessage
		if json.Unmarshal([]byte(row.Tags), &raw) == nil {
			article.Tags = []string{}
			for _, item := range raw {
				if tag, ok := decodeString(item); ok {
					article.Tags = append(article.Tags, tag)
				}
			}
		}
	}

	if row.EscapeRoomGeneralData != nil && isObject([]byte(*row.EscapeRoomGeneralData)) {
		var general covenant.EscapeRoomGeneralData
		if json.Unmarshal([]byte(*row.EscapeRoomGeneralData), &general) == nil {
			article.EscapeRoomGeneralData = &general
		}
	}
	if row.EscapeRoomScoring != nil && isObject([]byte(*row.EscapeRoomScoring)) {
		var scoring covenant.EscapeRoomScoring
		if json.Unmarshal([]byte(*row.EscapeRoomScoring), &scoring) == nil {
			article.EscapeRoomScoring = &scoring
		}
	}

	if url := deref(row.CoverImageURL); url != "" {
		article.CoverImage = &Image{URL: NormalizeImageURL(url), Alt: deref(row.CoverImageAlt)}
	}
	if row.PublishedAt != nil {
		article.PublishedAt = covenant.Timestamp(*row.PublishedAt)
	}
	return article
}
