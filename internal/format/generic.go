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
	"sort"
	"strings"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/textnorm"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Page types of generic entries.
const (
	TypeEscapeRoomReview  = "escapeRoomReview"
	TypeEscapeRoomProfile = "escapeRoomProfile"
	TypeReview            = "review"
	TypeBlogPost          = "blogPost"
	TypeBlogIndex         = "blogIndex"
	TypeArticle           = "article"
	TypePage              = "page"
	TypeEvent             = "event"
	TypeLanding           = "landing"
	TypeRanking           = "ranking"
	TypeSection           = "section"
)

func lowerAll(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.ToLower(p)
	}
	return out
}

// InferPageType classifies a formatted page. The first matching rule wins:
// review tables, JSON-LD types, event slugs, the home page, /blog, an
// "escape room" title, a ranking segment, then path depth.
func InferPageType(p *FormattedPage) string {
	parts := lowerAll(pathParts(p.URL))
	title := strings.ToLower(p.Title)
	types := jsonLDTypes(p.JSONLD)

	switch {
	case p.IsEscapeRoomReview || p.EscapeRoomScoring != nil:
		return TypeEscapeRoomReview
	case p.EscapeRoomGeneralData != nil:
		return TypeEscapeRoomProfile
	case types["review"] || types["criticreview"]:
		return TypeReview
	case types["blogposting"]:
		if len(parts) > 1 {
			return TypeBlogPost
		}
		return TypeArticle
	case types["article"]:
		if len(parts) > 1 {
			return TypeArticle
		}
		return TypePage
	case len(parts) > 0 && EventSlugs[parts[0]]:
		return TypeEvent
	case len(parts) == 0:
		return TypeLanding
	case parts[0] == "blog":
		if len(parts) == 1 {
			return TypeBlogIndex
		}
		return TypeBlogPost
	case strings.Contains(title, "escape room"):
		return TypeEscapeRoomReview
	}
	for _, part := range parts {
		if part == "ranking" {
			return TypeRanking
		}
	}
	if len(parts) == 1 {
		return TypePage
	}
	return TypeSection
}

type tagSet struct {
	seen map[string]bool
	list []string
}

func (t *tagSet) add(tag string) {
	if tag == "" {
		return
	}
	if t.seen == nil {
		t.seen = make(map[string]bool)
	}
	if !t.seen[tag] {
		t.seen[tag] = true
		t.list = append(t.list, tag)
	}
}

// DeriveTags collects tags from the page type, the parent path segments,
// the first three headings, the JSON-LD types and the escape-room category.
func DeriveTags(p *FormattedPage, pageType string, parts []string) []string {
	var tags tagSet
	if pageType == TypeBlogPost || pageType == TypeBlogIndex {
		tags.add("blog")
	}
	if pageType == TypeEscapeRoomReview || pageType == TypeReview {
		tags.add("review")
	}
	if p.EscapeRoomScoring != nil || pageType == TypeEscapeRoomReview {
		tags.add("escape-room")
	}
	if pageType == TypeEvent {
		tags.add("eventos")
		tags.add("event")
	}
	if len(parts) > 1 {
		for _, part := range parts[:len(parts)-1] {
			tags.add(textnorm.Slugify(part))
		}
	}
	for i, heading := range p.Headings {
		if i == 3 {
			break
		}
		tags.add(textnorm.Slugify(heading.Text))
	}
	for _, entry := range p.JSONLD {
		for _, t := range strings.Split(entry.Type, ",") {
			tags.add(textnorm.Slugify(t))
		}
	}
	if p.EscapeRoomGeneralData != nil {
		tags.add(textnorm.Slugify(p.EscapeRoomGeneralData.Category))
	}
	return tags.list
}

// SlugFromURL is the slug of the last path segment, "home" for the root,
// or "page" when nothing usable remains.
func SlugFromURL(rawURL string) string {
	parts := pathParts(rawURL)
	if len(parts) == 0 {
		return "home"
	}
	if slug := textnorm.Slugify(parts[len(parts)-1]); slug != "" {
		return slug
	}
	var slugs []string
	for _, part := range parts {
		if slug := textnorm.Slugify(part); slug != "" {
			slugs = append(slugs, slug)
		}
	}
	if len(slugs) == 0 {
		return "page"
	}
	return strings.Join(slugs, "-")
}

func pathFromParts(parts []string) string {
	return "/" + strings.Join(parts, "/")
}

func buildProfile(general *covenant.EscapeRoomGeneralData) *Profile {
	if general == nil {
		return nil
	}
	profile := &Profile{
		Category:        textnorm.NormalizeWhitespace(general.Category),
		Province:        textnorm.NormalizeWhitespace(general.Province),
		DurationMinutes: general.DurationMinutes,
		DurationText:    textnorm.NormalizeWhitespace(general.DurationText),
		PlayersText:     textnorm.NormalizeWhitespace(general.PlayersText),
		MinPlayers:      general.MinPlayers,
		MaxPlayers:      general.MaxPlayers,
		WebURL:          general.WebLink,
		RawHTML:         general.Raw,
	}
	if *profile == (Profile{}) {
		return nil
	}
	return profile
}

func ratingPtr(n covenant.RatingNumber) *float64 {
	v := float64(n)
	return &v
}

// buildScores lists the rating categories sorted by label and picks the
// first one labelled "global" as the overall score.
func buildScores(scoring *covenant.EscapeRoomScoring) *Scores {
	if scoring == nil {
		return nil
	}
	scores := &Scores{RawHTML: scoring.RawHTML}
	for _, key := range scoring.Keys() {
		value := scoring.Categories[key]
		entry := ScoreEntry{
			ID:    firstNonEmpty(textnorm.Slugify(key), key),
			Label: firstNonEmpty(textnorm.NormalizeWhitespace(value.Label), key),
			Value: ratingPtr(value.Value),
			Max:   ratingPtr(value.Max),
			Ratio: ratingPtr(value.Ratio),
		}
		if scores.Overall == nil && strings.Contains(textnorm.ForComparison(entry.Label), "global") {
			overall := entry
			scores.Overall = &overall
		}
		scores.Categories = append(scores.Categories, entry)
	}

	collator := collate.New(language.Spanish)
	sort.SliceStable(scores.Categories, func(i, j int) bool {
		return collator.CompareString(scores.Categories[i].Label, scores.Categories[j].Label) < 0
	})

	if len(scores.Categories) == 0 && scores.RawHTML == "" {
		return nil
	}
	return scores
}

// BuildGenericEntry maps a formatted page to its generic.json entry.
// Returns false when the page type is filtered out by opts.
func BuildGenericEntry(p *FormattedPage, opts Options) (GenericEntry, bool) {
	parts := pathParts(p.URL)
	pageType := InferPageType(p)
	if !opts.IncludesType(pageType) {
		return GenericEntry{}, false
	}

	summary := p.MetaDescription
	if summary == "" && len(p.Paragraphs) > 0 {
		summary = p.Paragraphs[0]
	}

	var tags tagSet
	for _, tag := range DeriveTags(p, pageType, parts) {
		tags.add(strings.ToLower(tag))
	}
	scores := buildScores(p.EscapeRoomScoring)
	if scores != nil {
		tags.add("escape-room")
	}

	entry := GenericEntry{
		Type:          pageType,
		Slug:          SlugFromURL(p.URL),
		Path:          pathFromParts(parts),
		Title:         p.Title,
		Summary:       textnorm.NormalizeWhitespace(summary),
		BodyHTML:      p.ContentHTML,
		BodyText:      strings.Join(p.Paragraphs, "\n\n"),
		Tags:          tags.list,
		FeaturedImage: p.CoverImage,
		Gallery:       p.Images,
		Profile:       buildProfile(p.EscapeRoomGeneralData),
		Scores:        scores,
	}
	meta := EntryMeta{
		OriginalURL:        p.URL,
		SourceURLs:         p.SourceURLs,
		WordCount:          p.WordCount,
		ReadingTimeMinutes: p.ReadingTimeMinutes,
		FetchedAt:          p.FetchedAt,
		Status:             p.Status,
		ContentType:        p.ContentType,
	}
	if !meta.empty() {
		entry.Meta = &meta
	}
	return entry, true
}

// SortEntries orders entries by path, then slug, then type.
func SortEntries(entries []GenericEntry) {
	collator := collate.New(language.Spanish)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Path != b.Path {
			return collator.CompareString(a.Path, b.Path) < 0
		}
		if a.Slug != b.Slug {
			return collator.CompareString(a.Slug, b.Slug) < 0
		}
		return collator.CompareString(a.Type, b.Type) < 0
	})
}

// GroupByType buckets entries by lower-cased type, "unknown" when empty,
// preserving first-seen order.
func GroupByType(entries []GenericEntry) ([]string, map[string][]GenericEntry) {
	var order []string
	groups := make(map[string][]GenericEntry)
	for _, entry := range entries {
		key := strings.ToLower(strings.TrimSpace(entry.Type))
		if key == "" {
			key = "unknown"
		}
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], entry)
	}
	return order, groups
}
