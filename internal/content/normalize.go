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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentberlin/covenant"
)

// ErrNoArticles is returned when an export holds no usable article.
var ErrNoArticles = errors.New("export contains no valid articles")

// DefaultTitle is used when a page has neither title nor metaTitle.
const DefaultTitle = "Sin título"

var (
	siteURLPrefix   = regexp.MustCompile(`^https?://(www\.)?thecovenant\.es/`)
	paragraphBreaks = regexp.MustCompile(`\n\n+`)
)

// NormalizeImageURL maps an absolute image URL to the path the image mirror
// serves it from. Anything else is returned unchanged.
func NormalizeImageURL(raw string) string {
	return covenant.PublicImagePath(raw)
}

func firstString(r Record, keys ...string) (string, bool) {
	raw, ok := r.First(keys...)
	if !ok {
		return "", false
	}
	return decodeString(raw)
}

// articleRule fills one Article field from a loose record. Rules run in
// order and each reads only its own keys.
type articleRule struct {
	name  string
	apply func(Record, *Article)
}

var articleRules = []articleRule{
	{"title", func(r Record, a *Article) {
		if title, ok := firstString(r, "title", "metaTitle"); ok {
			a.Title = title
		} else {
			a.Title = DefaultTitle
		}
	}},
	{"description", func(r Record, a *Article) {
		a.Description, _ = firstString(r, "description", "excerpt")
	}},
	{"excerpt", func(r Record, a *Article) {
		a.Excerpt, _ = firstString(r, "excerpt", "description")
	}},
	{"coverImage", func(r Record, a *Article) {
		var image Record
		if r.Has("heroImage") {
			image = r.Object("heroImage")
		} else {
			image = r.Object("coverImage")
		}
		if image == nil {
			return
		}
		if src, ok := firstString(image, "url", "src"); ok && src != "" {
			alt, _ := image.String("alt")
			a.CoverImage = &Image{URL: NormalizeImageURL(src), Alt: alt}
		}
	}},
	{"category", func(r Record, a *Article) {
		a.Category, _ = firstString(r, "category", "section")
	}},
	{"tags", func(r Record, a *Article) {
		a.Tags, _ = r.Strings("tags")
	}},
	{"publishedAt", func(r Record, a *Article) {
		a.PublishedAt, _ = firstString(r, "publishedAt", "date")
	}},
	{"readingTime", func(r Record, a *Article) {
		if raw, ok := r.First("readingTime"); ok {
			a.ReadingTime, _ = scalarText(raw)
			return
		}
		if meta := r.Object("meta"); meta != nil && meta.Has("readingTime") {
			a.ReadingTime, _ = scalarText(meta["readingTime"])
			return
		}
		var minutes int
		if r.Decode("readingTimeMinutes", &minutes) && minutes > 0 {
			a.ReadingTime = fmt.Sprintf("%d min", minutes)
		}
	}},
	{"sections", func(r Record, a *Article) {
		a.Sections = NormaliseSections(r)
	}},
	{"escapeRoomGeneralData", func(r Record, a *Article) {
		var general covenant.EscapeRoomGeneralData
		if isObject(r["escapeRoomGeneralData"]) && r.Decode("escapeRoomGeneralData", &general) {
			a.EscapeRoomGeneralData = &general
		}
	}},
	{"escapeRoomScoring", func(r Record, a *Article) {
		var scoring covenant.EscapeRoomScoring
		if isObject(r["escapeRoomScoring"]) && r.Decode("escapeRoomScoring", &scoring) {
			a.EscapeRoomScoring = &scoring
		}
	}},
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// ArticleSlug derives the slug from slug, path or url, in that order. The
// site origin and one leading slash are removed. Returns false when the
// chosen value is not a non-empty string.
func ArticleSlug(r Record) (string, bool) {
	candidate, ok := firstString(r, "slug", "path", "url")
	if !ok || candidate == "" {
		return "", false
	}
	slug := siteURLPrefix.ReplaceAllString(candidate, "")
	return strings.TrimPrefix(slug, "/"), true
}

// NormaliseArticle maps a formatted page (or any page-like object) to an
// Article. Returns nil when no slug can be derived. The slug may be empty
// for the site root.
func NormaliseArticle(r Record) *Article {
	slug, ok := ArticleSlug(r)
	if !ok {
		return nil
	}
	article := &Article{Slug: slug}
	for _, rule := range articleRules {
		rule.apply(r, article)
	}
	return article
}

// sectionRule produces sections from one shape of input. The first rule
// that produces anything wins.
type sectionRule struct {
	name  string
	apply func(Record) []Section
}

var sectionRules = []sectionRule{
	{"sections", sectionsFromList},
	{"content text", sectionsFromContentText},
	{"content blocks", sectionsFromContentBlocks},
	{"html", sectionsFromHTML},
	{"paragraphs", sectionsFromParagraphs},
}

// NormaliseSections builds the article body. It tries, in order, a
// sections list, a content string split on blank lines, a content block
// list, a raw html string and finally paragraphs with images. An article
// with none of these gets the placeholder paragraph.
func NormaliseSections(r Record) []Section {
	for _, rule := range sectionRules {
		if sections := rule.apply(r); len(sections) > 0 {
			return sections
		}
	}
	return []Section{{Type: SectionParagraph, Text: Placeholder}}
}

func imageSection(r Record, keys ...string) (Section, bool) {
	src, ok := firstString(r, keys...)
	if !ok {
		return Section{}, false
	}
	alt, _ := r.String("alt")
	caption, _ := r.String("caption")
	return Section{Type: SectionImage, URL: NormalizeImageURL(src), Alt: alt, Caption: caption}, true
}

func sectionsFromList(r Record) []Section {
	items, ok := r.Array("sections")
	if !ok {
		return nil
	}
	var sections []Section
	for _, item := range items {
		if text, ok := decodeString(item); ok {
			sections = append(sections, Section{Type: SectionParagraph, Text: text})
			continue
		}
		entry := ParseRecord(item)
		if entry == nil {
			continue
		}
		kind, _ := entry.String("type")
		if kind == SectionImage {
			if image, ok := imageSection(entry, "url", "src"); ok {
				sections = append(sections, image)
			}
			continue
		}
		if text, ok := entry.String("text"); ok {
			switch kind {
			case SectionHeading, SectionParagraph, SectionQuote:
				sections = append(sections, Section{Type: kind, Text: text})
				continue
			}
		}
		if html, ok := entry.String("html"); ok {
			sections = append(sections, Section{Type: SectionEmbed, HTML: html})
		}
	}
	return sections
}

func sectionsFromContentText(r Record) []Section {
	text, ok := r.String("content")
	if !ok {
		return nil
	}
	var sections []Section
	for _, paragraph := range paragraphBreaks.Split(text, -1) {
		if paragraph = strings.TrimSpace(paragraph); paragraph != "" {
			sections = append(sections, Section{Type: SectionParagraph, Text: paragraph})
		}
	}
	return sections
}

func sectionsFromContentBlocks(r Record) []Section {
	blocks, ok := r.Array("content")
	if !ok {
		return nil
	}
	var sections []Section
	for _, block := range blocks {
		if text, ok := decodeString(block); ok {
			sections = append(sections, Section{Type: SectionParagraph, Text: text})
			continue
		}
		entry := ParseRecord(block)
		if entry == nil {
			continue
		}
		switch kind, _ := entry.String("type"); kind {
		case SectionImage:
			if image, ok := imageSection(entry, "url"); ok && image.URL != "" {
				sections = append(sections, image)
			}
		case SectionQuote:
			text, _ := entry.String("text")
			sections = append(sections, Section{Type: SectionQuote, Text: text})
		}
	}
	return sections
}

func sectionsFromHTML(r Record) []Section {
	if html, ok := r.String("html"); ok {
		return []Section{{Type: SectionEmbed, HTML: html}}
	}
	return nil
}

// sectionsFromParagraphs puts the first image before the paragraphs and
// the remaining images after them.
func sectionsFromParagraphs(r Record) []Section {
	paragraphs, ok := r.Array("paragraphs")
	if !ok {
		return nil
	}
	images, _ := r.Array("images")
	image := func(raw json.RawMessage) (Section, bool) {
		entry := ParseRecord(raw)
		if entry == nil {
			return Section{}, false
		}
		section, ok := imageSection(entry, "src")
		return section, ok && section.URL != ""
	}

	var sections []Section
	if len(images) > 0 {
		if section, ok := image(images[0]); ok {
			sections = append(sections, section)
		}
	}
	for _, raw := range paragraphs {
		if text, ok := decodeString(raw); ok && strings.TrimSpace(text) != "" {
			sections = append(sections, Section{Type: SectionParagraph, Text: text})
		}
	}
	if len(images) > 1 {
		for _, raw := range images[1:] {
			if section, ok := image(raw); ok {
				sections = append(sections, section)
			}
		}
	}
	return sections
}

// DefaultHero is the banner used when the export has none.
func DefaultHero() Hero {
	return Hero{
		Title:       "Relatos ocultos, experiencias imposibles",
		Description: "La hermandad de The Covenant recopila investigaciones, crónicas y proyectos de narrativa inmersiva.",
		CTA:         &NavItem{Label: "Explorar relatos", Href: "/cronicas"},
	}
}

// DefaultNavigation is the menu used when the export has none.
func DefaultNavigation() Navigation {
	return Navigation{
		Primary: []NavItem{
			{Label: "Crónicas", Href: "/cronicas"},
			{Label: "Experiencias", Href: "/experiencias"},
			{Label: "Noticias", Href: "/noticias"},
			{Label: "Podcast", Href: "/podcast"},
		},
		Secondary: []NavItem{
			{Label: "Newsletter", Href: "/newsletter"},
			{Label: "Contacto", Href: "/contacto"},
			{Label: "Colabora", Href: "/colabora"},
		},
	}
}

// Assemble builds SiteContent from articles. A nil featured list means the
// first four articles; an empty highlight means the first featured slug,
// else the first article. Returns nil without articles.
func Assemble(articles []Article, featured []string, highlight string, hero Hero, nav Navigation) *SiteContent {
	if len(articles) == 0 {
		return nil
	}
	if featured == nil {
		featured = []string{}
		for i := 0; i < len(articles) && i < 4; i++ {
			featured = append(featured, articles[i].Slug)
		}
	}
	if highlight == "" && len(featured) > 0 {
		highlight = featured[0]
	}
	if highlight == "" {
		highlight = articles[0].Slug
	}
	return &SiteContent{
		Hero:       hero,
		Highlight:  highlight,
		Articles:   articles,
		Featured:   featured,
		Navigation: nav,
	}
}

func heroFrom(r Record) Hero {
	hero := DefaultHero()
	raw := r.Object("hero")
	if raw == nil {
		return hero
	}
	if title, ok := raw.String("title"); ok {
		hero.Title = title
	}
	if description, ok := raw.String("description"); ok {
		hero.Description = description
	}
	var cta NavItem
	if raw.Decode("cta", &cta) {
		hero.CTA = &cta
	}
	return hero
}

func navigationFrom(r Record) Navigation {
	nav := DefaultNavigation()
	raw := r.Object("navigation")
	if raw == nil {
		return nav
	}
	var primary, secondary []NavItem
	if raw.Decode("primary", &primary) && primary != nil {
		nav.Primary = primary
	}
	if raw.Decode("secondary", &secondary) && secondary != nil {
		nav.Secondary = secondary
	}
	return nav
}

// BuildSiteContent normalises every page of a formatted export. Pages
// without a slug are dropped. featuredSlugs, highlightSlug, navigation and
// hero are read from the export when present. Returns nil when no article
// survives.
func BuildSiteContent(raw Record) *SiteContent {
	pages, _ := raw.Array("pages")
	articles := []Article{}
	for _, page := range pages {
		if article := NormaliseArticle(ParseRecord(page)); article != nil && article.Slug != "" {
			articles = append(articles, *article)
		}
	}
	featured, _ := raw.Strings("featuredSlugs")
	highlight, _ := raw.String("highlightSlug")
	return Assemble(articles, featured, highlight, heroFrom(raw), navigationFrom(raw))
}

// DecodeExport parses a formatted export into SiteContent.
func DecodeExport(data []byte) (*SiteContent, error) {
	raw := ParseRecord(data)
	if raw == nil {
		return nil, errors.New("export is not a JSON object")
	}
	site := BuildSiteContent(raw)
	if site == nil {
		return nil, ErrNoArticles
	}
	return site, nil
}
