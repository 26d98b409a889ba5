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
	"encoding/json"
	"math"
	"net/url"
	"regexp"
	"strings"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/extract"
	"github.com/agentberlin/covenant/internal/textnorm"
	"github.com/antchfx/htmlquery"
)

// WordsPerMinute is the reading speed used for readingTimeMinutes.
const WordsPerMinute = 180

// Headings containing any of these end the main content.
var stopHeadingPatterns = []string{
	"ultimos posts",
	"contacta",
	"suscribete",
	"newsletter",
	"instagram",
	"facebook",
	"twitter",
	"youtube",
	"twitch",
}

// EventSlugs are the first path segments of event pages.
var EventSlugs = map[string]bool{
	"the-covenant-cases":               true,
	"games-university":                 true,
	"gymkhana-literaria-litcon-madrid": true,
}

var (
	headingTag  = regexp.MustCompile(`^h[1-6]$`)
	lineBreaks  = regexp.MustCompile(`\n+`)
	httpScheme  = regexp.MustCompile(`(?i)^https?:`)
	httpURL     = regexp.MustCompile(`(?i)^https?://`)
	firstImgTag = regexp.MustCompile(`(?i)<img[^>]*>`)
)

// Absolute links outside this domain are external even when the crawl
// marked them internal.
const siteDomain = "thecovenant.es"

// page wraps a crawl record and re-derives missing fields from its raw
// HTML on first use.
type page struct {
	record *covenant.CrawlRecord
	doc    *extract.Document
	parsed bool
}

func (p *page) document() *extract.Document {
	if !p.parsed {
		p.parsed = true
		if p.record.RawHTML != "" {
			p.doc, _ = extract.Parse(p.record.RawHTML, p.record.URL)
		}
	}
	return p.doc
}

func (p *page) language() string {
	if lang := textnorm.NormalizeWhitespace(p.record.Language); lang != "" {
		return lang
	}
	if doc := p.document(); doc != nil {
		return textnorm.NormalizeWhitespace(doc.Language())
	}
	return ""
}

func (p *page) textContent() string {
	if text := textnorm.NormalizeWhitespace(p.record.TextContent); text != "" {
		return text
	}
	if doc := p.document(); doc != nil {
		return doc.TextContent()
	}
	return ""
}

func (p *page) sections() []covenant.Section {
	if len(p.record.Sections) > 0 {
		return p.record.Sections
	}
	if doc := p.document(); doc != nil {
		return doc.Sections()
	}
	return nil
}

func (p *page) outline() []covenant.Heading {
	if len(p.record.Outline) > 0 {
		return p.record.Outline
	}
	if doc := p.document(); doc != nil {
		return doc.Outline()
	}
	return nil
}

func (p *page) jsonLD() []json.RawMessage {
	if len(p.record.JSONLD) > 0 {
		return p.record.JSONLD
	}
	if doc := p.document(); doc != nil {
		return doc.JSONLD()
	}
	return nil
}

func (p *page) contentBlocks() []covenant.ContentBlock {
	if len(p.record.ContentBlocks) > 0 {
		return p.record.ContentBlocks
	}
	if doc := p.document(); doc != nil {
		return doc.ContentBlocks()
	}
	return nil
}

// escapeRoom returns the review tables, reading them from the raw HTML when
// the record carries neither.
func (p *page) escapeRoom() (*covenant.EscapeRoomGeneralData, *covenant.EscapeRoomScoring, bool) {
	general, scoring := p.record.EscapeRoomGeneralData, p.record.EscapeRoomScoring
	review := p.record.IsEscapeRoomReview
	if general == nil && scoring == nil {
		if doc := p.document(); doc != nil {
			general, scoring = doc.GeneralData(), doc.Scoring()
			review = review || scoring != nil
		}
	}
	return general, scoring, review
}

func isHeading(tag string) bool {
	return headingTag.MatchString(strings.ToLower(tag))
}

func isBreadcrumb(block covenant.ContentBlock) bool {
	if strings.ToLower(block.Tag) != "ul" {
		return false
	}
	return strings.HasPrefix(textnorm.ForComparison(block.Text), "home /")
}

func isStopBlock(block covenant.ContentBlock) bool {
	if !isHeading(block.Tag) {
		return false
	}
	text := textnorm.ForComparison(block.Text)
	if text == "" {
		return false
	}
	for _, pattern := range stopHeadingPatterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

// mainContentBlocks starts at the first heading with text (else the first
// block with text) and stops before the first stop heading after it.
func mainContentBlocks(blocks []covenant.ContentBlock) []covenant.ContentBlock {
	start := -1
	for i, b := range blocks {
		if isHeading(b.Tag) && textnorm.NormalizeWhitespace(b.Text) != "" {
			start = i
			break
		}
	}
	if start == -1 {
		for i, b := range blocks {
			if textnorm.NormalizeWhitespace(b.Text) != "" {
				start = i
				break
			}
		}
	}
	if start == -1 {
		return nil
	}
	sliced := blocks[start:]
	for i := 1; i < len(sliced); i++ {
		if isStopBlock(sliced[i]) {
			return sliced[:i]
		}
	}
	return sliced
}

func blocksHTML(blocks []covenant.ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		if isBreadcrumb(b) || b.HTML == "" {
			continue
		}
		parts = append(parts, b.HTML)
	}
	return strings.Join(parts, "\n")
}

func blockParagraphs(blocks []covenant.ContentBlock) []string {
	var paragraphs []string
	for _, b := range blocks {
		tag := strings.ToLower(b.Tag)
		if isHeading(tag) || isBreadcrumb(b) {
			continue
		}
		switch tag {
		case "p", "blockquote", "pre":
			if text := textnorm.NormalizeWhitespace(b.Text); text != "" {
				paragraphs = append(paragraphs, text)
			}
		case "ul", "ol":
			for _, item := range b.Items {
				if text := textnorm.NormalizeWhitespace(item); text != "" {
					paragraphs = append(paragraphs, text)
				}
			}
		}
	}
	return paragraphs
}

func splitTextContent(text string) []string {
	var chunks []string
	for _, chunk := range lineBreaks.Split(text, -1) {
		if normalized := textnorm.NormalizeWhitespace(textnorm.DecodeEntities(chunk)); normalized != "" {
			chunks = append(chunks, normalized)
		}
	}
	return chunks
}

// searchTokens lists the attribute spellings a URL may have in block HTML:
// as-is, &-escaped, path+query and origin+path+query, raw and decoded.
func searchTokens(value string) []string {
	if value == "" {
		return nil
	}
	var tokens []string
	seen := make(map[string]bool)
	add := func(token string) {
		if token != "" && !seen[token] {
			seen[token] = true
			tokens = append(tokens, token)
		}
	}
	escape := func(s string) string { return strings.ReplaceAll(s, "&", "&amp;") }
	addVariants := func(raw string) {
		add(raw)
		add(escape(raw))
		if decoded, err := url.PathUnescape(raw); err == nil {
			add(decoded)
			add(escape(decoded))
		}
	}
	urlVariants := func(raw string) {
		u, err := covenant.ParseURL(raw, "")
		if err != nil {
			return
		}
		pathQuery := u.EscapedPath()
		if u.RawQuery != "" {
			pathQuery += "?" + u.RawQuery
		}
		addVariants(pathQuery)
		addVariants(u.Scheme + "://" + u.Host + pathQuery)
	}

	add(value)
	add(escape(value))
	switch {
	case httpScheme.MatchString(value):
		urlVariants(value)
	case strings.HasPrefix(value, "//"):
		urlVariants("https:" + value)
	case strings.HasPrefix(value, "/"):
		addVariants(value)
	}
	return tokens
}

func attributeInHTML(html, attribute, value string) bool {
	if html == "" || value == "" {
		return false
	}
	for _, token := range searchTokens(value) {
		if strings.Contains(html, attribute+`="`+token+`"`) || strings.Contains(html, attribute+`='`+token+`'`) {
			return true
		}
	}
	return false
}

func filterImages(images []covenant.Image, contentHTML string) []covenant.Image {
	if contentHTML == "" {
		return nil
	}
	var out []covenant.Image
	for _, img := range images {
		src := img.Src
		if src == "" {
			src = img.DataSrc
		}
		if attributeInHTML(contentHTML, "src", src) {
			out = append(out, img)
		}
	}
	return out
}

func filterLinks(links []covenant.Link, contentHTML string) []covenant.Link {
	if contentHTML == "" {
		return nil
	}
	var out []covenant.Link
	for _, link := range links {
		href := link.Href
		if href == "" {
			href = link.NormalizedHref
		}
		if attributeInHTML(contentHTML, "href", href) {
			out = append(out, link)
		}
	}
	return out
}

// metaSummary is the subset of meta tags used to pick a cover image.
type metaSummary struct {
	twitterImage, twitterTitle string
	ogImage, ogTitle           string
	description                string
}

func summarizeMeta(tags []covenant.MetaTag) metaSummary {
	var m metaSummary
	for _, tag := range tags {
		key := strings.ToLower(tag.Name)
		if key == "" {
			key = strings.ToLower(tag.Property)
		}
		content := strings.TrimSpace(tag.Content)
		if content == "" {
			continue
		}
		set := func(dst *string) {
			if *dst == "" {
				*dst = content
			}
		}
		switch key {
		case "twitter:image", "twitter:image:src":
			set(&m.twitterImage)
		case "twitter:title":
			set(&m.twitterTitle)
		case "og:image", "og:image:url":
			set(&m.ogImage)
		case "og:title":
			set(&m.ogTitle)
		case "description":
			set(&m.description)
		}
	}
	return m
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// coverImage prefers the Twitter card image, then Open Graph, then the first
// content image with a src.
func coverImage(images []covenant.Image, meta metaSummary) *ImageRef {
	var featuredURL, featuredAlt string
	switch {
	case meta.twitterImage != "":
		featuredURL = meta.twitterImage
		featuredAlt = firstNonEmpty(meta.twitterTitle, meta.description)
	case meta.ogImage != "":
		featuredURL = meta.ogImage
		featuredAlt = firstNonEmpty(meta.ogTitle, meta.description)
	}
	if featuredURL != "" {
		for _, img := range images {
			if img.Src == featuredURL {
				return &ImageRef{URL: img.Src, Alt: firstNonEmpty(img.Alt, featuredAlt)}
			}
		}
		return &ImageRef{URL: featuredURL, Alt: featuredAlt}
	}
	for _, img := range images {
		if img.Src != "" {
			return &ImageRef{URL: img.Src, Alt: img.Alt}
		}
	}
	return nil
}

func simplifyImages(images []covenant.Image) []SimpleImage {
	seen := make(map[string]bool)
	var out []SimpleImage
	for _, img := range images {
		if img.Src == "" || seen[img.Src] {
			continue
		}
		seen[img.Src] = true
		out = append(out, SimpleImage{
			Src:   img.Src,
			Alt:   textnorm.NormalizeWhitespace(img.Alt),
			Title: textnorm.NormalizeWhitespace(img.Title),
		})
	}
	return out
}

// categorizeLinks deduplicates by href and text. A link is external when
// the crawler marked it so, or when it is absolute and off-site.
func categorizeLinks(links []covenant.Link) LinkGroups {
	groups := LinkGroups{Internal: []LinkRef{}, External: []LinkRef{}}
	seen := make(map[string]bool)
	for _, link := range links {
		ref := LinkRef{
			Href:  firstNonEmpty(link.Href, link.NormalizedHref),
			Text:  textnorm.NormalizeWhitespace(link.Text),
			Title: textnorm.NormalizeWhitespace(link.Title),
		}
		if ref.Href == "" {
			continue
		}
		key := ref.Href + "::" + ref.Text
		if seen[key] {
			continue
		}
		seen[key] = true
		if !link.Internal || (httpURL.MatchString(ref.Href) && !strings.Contains(ref.Href, siteDomain)) {
			groups.External = append(groups.External, ref)
		} else {
			groups.Internal = append(groups.Internal, ref)
		}
	}
	return groups
}

type jsonLDEntry struct {
	Type        json.RawMessage `json:"@type"`
	ID          any             `json:"@id"`
	Name        any             `json:"name"`
	Headline    any             `json:"headline"`
	Description any             `json:"description"`
	URL         any             `json:"url"`
}

func jsonString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func jsonLDType(raw json.RawMessage) string {
	var single string
	if json.Unmarshal(raw, &single) == nil {
		return single
	}
	var list []any
	if json.Unmarshal(raw, &list) == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

func summarizeJSONLD(entries []json.RawMessage) []JSONLDSummary {
	var out []JSONLDSummary
	for _, raw := range entries {
		var entry jsonLDEntry
		if json.Unmarshal(raw, &entry) != nil {
			continue
		}
		summary := JSONLDSummary{
			Type:        jsonLDType(entry.Type),
			Name:        textnorm.NormalizeWhitespace(firstNonEmpty(jsonString(entry.Name), jsonString(entry.Headline))),
			Description: textnorm.NormalizeWhitespace(jsonString(entry.Description)),
			URL:         firstNonEmpty(jsonString(entry.URL), jsonString(entry.ID)),
		}
		if summary != (JSONLDSummary{}) {
			out = append(out, summary)
		}
	}
	return out
}

func jsonLDTypes(summaries []JSONLDSummary) map[string]bool {
	types := make(map[string]bool)
	for _, s := range summaries {
		for _, t := range strings.Split(s.Type, ",") {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				types[t] = true
			}
		}
	}
	return types
}

// imageSources lists the src of every <img> in an HTML fragment.
func imageSources(fragment string) []string {
	if !strings.Contains(fragment, "<img") {
		return nil
	}
	doc, err := htmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return nil
	}
	var out []string
	for _, img := range htmlquery.Find(doc, "//img[@src]") {
		if src := htmlquery.SelectAttr(img, "src"); src != "" {
			out = append(out, src)
		}
	}
	return out
}

func simplifySections(sections []covenant.Section) []PageSection {
	var out []PageSection
	for _, s := range sections {
		section := PageSection{
			ID:        s.ID,
			ClassName: s.ClassName,
			Text: firstNonEmpty(
				textnorm.NormalizeWhitespace(s.Text),
				textnorm.NormalizeWhitespace(textnorm.StripHTML(s.HTML)),
			),
			Images: imageSources(s.HTML),
		}
		if section.ID != "" || section.ClassName != "" || section.Text != "" || len(section.Images) > 0 {
			out = append(out, section)
		}
	}
	return out
}

// paragraphImage finds an <img> with both src and alt inside a paragraph's
// HTML. The caption is the rest of the paragraph's text.
func paragraphImage(fragment, pageURL string) (PageSection, bool) {
	if !strings.Contains(fragment, "<img") {
		return PageSection{}, false
	}
	doc, err := htmlquery.Parse(strings.NewReader(fragment))
	if err != nil {
		return PageSection{}, false
	}
	img := htmlquery.FindOne(doc, "//img[@src and @alt]")
	if img == nil {
		return PageSection{}, false
	}
	src, ok := covenant.ResolveURL(htmlquery.SelectAttr(img, "src"), pageURL)
	if !ok {
		return PageSection{}, false
	}
	caption := fragment
	if loc := firstImgTag.FindStringIndex(fragment); loc != nil {
		caption = fragment[:loc[0]] + fragment[loc[1]:]
	}
	return PageSection{
		Type:    "image",
		URL:     src,
		Alt:     textnorm.NormalizeWhitespace(htmlquery.SelectAttr(img, "alt")),
		Caption: textnorm.NormalizeWhitespace(textnorm.StripHTML(caption)),
	}, true
}

// contentSections turns main content blocks into headings, paragraphs,
// quotes and images. Breadcrumbs are skipped and a stop heading ends the
// list.
func contentSections(blocks []covenant.ContentBlock, pageURL string) []PageSection {
	var sections []PageSection
	for _, b := range blocks {
		tag := strings.ToLower(b.Tag)
		if isBreadcrumb(b) {
			continue
		}
		if isStopBlock(b) {
			break
		}
		text := textnorm.NormalizeWhitespace(b.Text)
		switch {
		case isHeading(tag):
			if text != "" {
				sections = append(sections, PageSection{Type: "heading", Text: text})
			}
		case tag == "p" || tag == "blockquote":
			if tag == "p" && b.HTML != "" {
				if image, ok := paragraphImage(b.HTML, pageURL); ok {
					sections = append(sections, image)
					continue
				}
			}
			if text != "" {
				kind := "paragraph"
				if tag == "blockquote" {
					kind = "quote"
				}
				sections = append(sections, PageSection{Type: kind, Text: text})
			}
		case tag == "figure" && b.Image != nil:
			if src, ok := covenant.ResolveURL(b.Image.Src, pageURL); ok {
				sections = append(sections, PageSection{
					Type:    "image",
					URL:     src,
					Alt:     textnorm.NormalizeWhitespace(b.Image.Alt),
					Caption: textnorm.NormalizeWhitespace(b.Caption),
				})
			}
		case tag == "ul" || tag == "ol":
			for _, item := range b.Items {
				if item = textnorm.NormalizeWhitespace(item); item != "" {
					sections = append(sections, PageSection{Type: "paragraph", Text: item})
				}
			}
		}
	}
	return sections
}

func flattenOutline(outline []covenant.Heading) []HeadingRef {
	var out []HeadingRef
	var visit func([]covenant.Heading)
	visit = func(nodes []covenant.Heading) {
		for _, node := range nodes {
			if text := textnorm.NormalizeWhitespace(node.Text); text != "" {
				out = append(out, HeadingRef{Level: node.Level, Text: text})
			}
			visit(node.Children)
		}
	}
	visit(outline)
	return out
}

// normalizePageURL resolves the canonical URL (else the fetched URL)
// against the start URL. Same-site hosts, with or without www, are coerced
// to the start URL's scheme and host. sourceURL is the fetched URL when it
// differs from the result.
func normalizePageURL(record *covenant.CrawlRecord, primary *url.URL) (string, string) {
	raw := firstNonEmpty(record.CanonicalURL, record.URL)
	fallback := record.URL
	if raw == "" {
		return "", ""
	}

	var base string
	switch {
	case primary != nil:
		base = primary.String()
	case httpScheme.MatchString(fallback):
		base = fallback
	}
	resolved, err := covenant.ParseURL(raw, base)
	if err != nil {
		return raw, ""
	}
	if primary != nil && covenant.StripWWW(resolved.Hostname()) == covenant.StripWWW(primary.Hostname()) {
		resolved.Scheme = primary.Scheme
		host := primary.Hostname()
		if port := resolved.Port(); port != "" {
			host += ":" + port
		}
		resolved.Host = host
	}
	normalized := resolved.String()
	source := ""
	if fallback != "" && fallback != normalized {
		source = fallback
	}
	return normalized, source
}

func preferenceScore(record *covenant.CrawlRecord, primaryHost string) int {
	score := 0
	switch {
	case strings.HasPrefix(record.URL, "https://"):
		score += 2
	case strings.HasPrefix(record.URL, "http://"):
		score++
	}
	if strings.Contains(record.URL, "www.") {
		score++
	}
	if primaryHost != "" {
		if u, err := covenant.ParseURL(record.URL, ""); err == nil &&
			covenant.StripWWW(u.Hostname()) == covenant.StripWWW(primaryHost) {
			score++
		}
	}
	if record.Status == 200 {
		score++
	}
	return score
}

func readingTime(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return max(1, int(math.Round(float64(wordCount)/WordsPerMinute)))
}

func pathParts(rawURL string) []string {
	if rawURL == "" {
		return nil
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		p = u.Path
	}
	var parts []string
	for _, part := range strings.Split(p, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func formatPage(record *covenant.CrawlRecord, primary *url.URL) FormattedPage {
	p := &page{record: record}
	blocks := mainContentBlocks(p.contentBlocks())

	paragraphs := blockParagraphs(blocks)
	if len(paragraphs) == 0 {
		paragraphs = splitTextContent(p.textContent())
	}
	contentHTML := blocksHTML(blocks)
	images := filterImages(record.Images, contentHTML)
	links := filterLinks(record.Links, contentHTML)

	wordCount := 0
	for _, paragraph := range paragraphs {
		wordCount += len(strings.Fields(paragraph))
	}
	pageURL, sourceURL := normalizePageURL(record, primary)
	metaDescription := textnorm.NormalizeWhitespace(record.MetaDescription)
	lead := ""
	if len(paragraphs) > 0 {
		lead = paragraphs[0]
	}

	sections := contentSections(blocks, pageURL)
	if len(sections) == 0 {
		sections = simplifySections(p.sections())
	}
	general, scoring, review := p.escapeRoom()

	formatted := FormattedPage{
		URL:                   pageURL,
		Status:                record.Status,
		FetchedAt:             record.FetchedAt,
		ContentType:           record.ContentType,
		Title:                 textnorm.NormalizeWhitespace(record.Title),
		MetaDescription:       metaDescription,
		Description:           firstNonEmpty(metaDescription, lead),
		Excerpt:               firstNonEmpty(lead, metaDescription),
		Language:              p.language(),
		WordCount:             wordCount,
		ReadingTimeMinutes:    readingTime(wordCount),
		CoverImage:            coverImage(images, summarizeMeta(record.Meta)),
		ContentHTML:           contentHTML,
		Headings:              flattenOutline(p.outline()),
		Sections:              sections,
		Paragraphs:            paragraphs,
		Images:                simplifyImages(images),
		Links:                 categorizeLinks(links),
		JSONLD:                summarizeJSONLD(p.jsonLD()),
		EscapeRoomGeneralData: general,
		EscapeRoomScoring:     scoring,
		IsEscapeRoomReview:    review,
		Meta:                  record.Meta,
		sourceURL:             sourceURL,
	}

	if parts := pathParts(pageURL); len(parts) > 0 && EventSlugs[strings.ToLower(parts[0])] {
		formatted.Category = "Eventos"
		formatted.Section = "Eventos"
		formatted.Tags = []string{"eventos", "event"}
	}
	return formatted
}

func formatAsset(record *covenant.CrawlRecord, primary *url.URL) FormattedAsset {
	pageURL, sourceURL := normalizePageURL(record, primary)
	return FormattedAsset{
		URL:         pageURL,
		SourceURL:   sourceURL,
		Status:      record.Status,
		FetchedAt:   record.FetchedAt,
		ContentType: record.ContentType,
		Title:       textnorm.NormalizeWhitespace(record.Title),
	}
}
