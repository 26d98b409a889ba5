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

package extract

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentberlin/covenant"
)

const (
	headingSelector = "h1, h2, h3, h4, h5, h6"
	blockSelector   = "h1, h2, h3, h4, h5, h6, p, blockquote, pre, code, ul, ol, figure, table"
)

// Extractor implements covenant.PageExtractor.
type Extractor struct{}

// New returns an Extractor.
func New() *Extractor { return &Extractor{} }

// ExtractPage parses html and fills every derived field of a CrawlRecord.
// Transport fields are left for the caller.
func (Extractor) ExtractPage(html, pageURL string, hosts covenant.AllowedHosts) (*covenant.CrawlRecord, error) {
	doc, err := Parse(html, pageURL)
	if err != nil {
		return nil, err
	}
	return doc.Record(hosts), nil
}

// Record runs every extractor over the document.
func (d *Document) Record(hosts covenant.AllowedHosts) *covenant.CrawlRecord {
	record := &covenant.CrawlRecord{
		Title:           d.Title(),
		Language:        d.Language(),
		MetaDescription: strings.TrimSpace(attr(d.Find(`meta[name="description"]`).First(), "content")),
		CanonicalURL:    d.Absolute(attr(d.Find(`link[rel="canonical"]`).First(), "href")),
		Meta:            d.Meta(),
		Feeds:           d.Feeds(),
		Links:           d.Links(hosts),
		Images:          d.Images(),
		Media:           d.Media(),
		Outline:         d.Outline(),
		Sections:        d.Sections(),
		ContentBlocks:   d.ContentBlocks(),
		TextContent:     d.TextContent(),
		JSONLD:          d.JSONLD(),
		Stylesheets:     d.Stylesheets(),
		InlineStyles:    d.InlineStyles(),
		Scripts:         d.Scripts(),
		InlineScripts:   d.InlineScripts(),
	}
	record.EscapeRoomGeneralData = d.GeneralData()
	record.EscapeRoomScoring = d.Scoring()
	record.IsEscapeRoomReview = record.EscapeRoomScoring != nil
	return record
}

// Title is the first <title>, trimmed.
func (d *Document) Title() string {
	return strings.TrimSpace(d.Find("title").First().Text())
}

// Language is the <html lang> attribute.
func (d *Document) Language() string {
	return strings.TrimSpace(attr(d.Find("html").First(), "lang"))
}

// TextContent is the body text with whitespace collapsed.
func (d *Document) TextContent() string {
	return text(d.Find("body"))
}

func (d *Document) Meta() []covenant.MetaTag {
	var tags []covenant.MetaTag
	d.Find("meta").Each(func(_ int, s *goquery.Selection) {
		tags = append(tags, covenant.MetaTag{
			Name:      attr(s, "name"),
			Property:  attr(s, "property"),
			Content:   attr(s, "content"),
			Charset:   attr(s, "charset"),
			HTTPEquiv: attr(s, "http-equiv"),
		})
	})
	return tags
}

// Feeds lists alternate links whose type names an XML, RSS, Atom or JSON
// feed.
func (d *Document) Feeds() []covenant.Feed {
	var feeds []covenant.Feed
	d.Find(`link[rel="alternate"]`).Each(func(_ int, s *goquery.Selection) {
		typ := attr(s, "type")
		lower := strings.ToLower(typ)
		if !strings.Contains(lower, "xml") && !strings.Contains(lower, "rss") &&
			!strings.Contains(lower, "atom") && !strings.Contains(lower, "json") {
			return
		}
		feeds = append(feeds, covenant.Feed{
			Type:  typ,
			Title: attr(s, "title"),
			Href:  d.Absolute(attr(s, "href")),
		})
	})
	return feeds
}

// Links lists every anchor. A link is internal when its host is in hosts;
// only internal links carry a normalizedHref.
func (d *Document) Links(hosts covenant.AllowedHosts) []covenant.Link {
	var links []covenant.Link
	d.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := d.Absolute(attr(s, "href"))
		link := covenant.Link{
			Text:   text(s),
			HTML:   strings.TrimSpace(innerHTML(s)),
			Href:   href,
			Title:  attr(s, "title"),
			Rel:    attr(s, "rel"),
			Target: attr(s, "target"),
		}
		if href != "" && hosts.Allows(covenant.HostOf(href)) {
			link.Internal = true
			link.NormalizedHref, _ = hosts.NormalizeURL(href, d.url)
		}
		links = append(links, link)
	})
	return links
}

func (d *Document) Images() []covenant.Image {
	var images []covenant.Image
	d.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		images = append(images, covenant.Image{
			Src:     d.Absolute(attr(s, "src")),
			Srcset:  attr(s, "srcset"),
			DataSrc: attr(s, "data-src"),
			Alt:     attr(s, "alt"),
			Title:   attr(s, "title"),
			Width:   attr(s, "width"),
			Height:  attr(s, "height"),
			Loading: attr(s, "loading"),
		})
	})
	return images
}

func (d *Document) Media() *covenant.Media {
	media := &covenant.Media{
		Videos:  []covenant.Video{},
		Audio:   []covenant.Audio{},
		Iframes: []covenant.Iframe{},
	}
	d.Find("video").Each(func(_ int, s *goquery.Selection) {
		media.Videos = append(media.Videos, covenant.Video{
			Poster:   d.Absolute(attr(s, "poster")),
			Controls: hasAttr(s, "controls"),
			Autoplay: hasAttr(s, "autoplay"),
			Loop:     hasAttr(s, "loop"),
			Muted:    hasAttr(s, "muted"),
			Sources:  d.sources(s),
		})
	})
	d.Find("audio").Each(func(_ int, s *goquery.Selection) {
		media.Audio = append(media.Audio, covenant.Audio{
			Controls: hasAttr(s, "controls"),
			Autoplay: hasAttr(s, "autoplay"),
			Loop:     hasAttr(s, "loop"),
			Muted:    hasAttr(s, "muted"),
			Sources:  d.sources(s),
		})
	})
	d.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		media.Iframes = append(media.Iframes, covenant.Iframe{
			Src:     d.Absolute(attr(s, "src")),
			Title:   attr(s, "title"),
			Allow:   attr(s, "allow"),
			Width:   attr(s, "width"),
			Height:  attr(s, "height"),
			Loading: attr(s, "loading"),
		})
	})
	return media
}

func (d *Document) sources(player *goquery.Selection) []covenant.MediaSource {
	sources := []covenant.MediaSource{}
	player.Find("source[src]").Each(func(_ int, s *goquery.Selection) {
		sources = append(sources, covenant.MediaSource{
			Src:  d.Absolute(attr(s, "src")),
			Type: attr(s, "type"),
		})
	})
	return sources
}

type headingNode struct {
	heading  covenant.Heading
	children []*headingNode
}

func (n *headingNode) build() covenant.Heading {
	h := n.heading
	h.Children = make([]covenant.Heading, 0, len(n.children))
	for _, child := range n.children {
		h.Children = append(h.Children, child.build())
	}
	return h
}

// Outline nests the body's headings: each heading becomes a child of the
// nearest preceding heading of a lower level.
func (d *Document) Outline() []covenant.Heading {
	var roots []*headingNode
	var stack []*headingNode
	d.Find("body").Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
		node := &headingNode{heading: covenant.Heading{
			Level: int(goquery.NodeName(s)[1] - '0'),
			Text:  text(s),
			ID:    attr(s, "id"),
			HTML:  strings.TrimSpace(innerHTML(s)),
		}}
		for len(stack) > 0 && stack[len(stack)-1].heading.Level >= node.heading.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			roots = append(roots, node)
		} else {
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, node)
		}
		stack = append(stack, node)
	})

	outline := make([]covenant.Heading, 0, len(roots))
	for _, root := range roots {
		outline = append(outline, root.build())
	}
	return outline
}

func (d *Document) Sections() []covenant.Section {
	var sections []covenant.Section
	d.Find("section").Each(func(_ int, s *goquery.Selection) {
		sections = append(sections, covenant.Section{
			ID:        attr(s, "id"),
			ClassName: attr(s, "class"),
			HTML:      strings.TrimSpace(innerHTML(s)),
			Text:      text(s),
		})
	})
	return sections
}

// contentRoot is the first <article>, else the first <main>, else <body>.
func (d *Document) contentRoot() *goquery.Selection {
	for _, selector := range []string{"article", "main"} {
		if root := d.Find(selector).First(); root.Length() > 0 {
			return root
		}
	}
	return d.Find("body").First()
}

// ContentBlocks lists the semantic elements of the main content area in
// document order.
func (d *Document) ContentBlocks() []covenant.ContentBlock {
	var blocks []covenant.ContentBlock
	d.contentRoot().Find(blockSelector).Each(func(_ int, s *goquery.Selection) {
		tag := goquery.NodeName(s)
		block := covenant.ContentBlock{
			Tag:  tag,
			Text: text(s),
			HTML: strings.TrimSpace(innerHTML(s)),
		}
		switch tag {
		case "ul", "ol":
			s.ChildrenFiltered("li").Each(func(_ int, li *goquery.Selection) {
				if item := text(li); item != "" {
					block.Items = append(block.Items, item)
				}
			})
		case "figure":
			block.Caption = strings.TrimSpace(s.Find("figcaption").Text())
			if img := s.Find("img").First(); img.Length() > 0 {
				block.Image = &covenant.BlockImage{
					Src:   d.Absolute(attr(img, "src")),
					Alt:   attr(img, "alt"),
					Title: attr(img, "title"),
				}
			}
		case "table":
			s.Find("tr").Each(func(_ int, tr *goquery.Selection) {
				var row []string
				tr.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
					row = append(row, text(cell))
				})
				if len(row) > 0 {
					block.Rows = append(block.Rows, row)
				}
			})
		}
		blocks = append(blocks, block)
	})
	return blocks
}

type invalidJSONLD struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// JSONLD returns each ld+json script. Unparsable scripts are kept as
// {"error": "Invalid JSON-LD", "raw": ...}.
func (d *Document) JSONLD() []json.RawMessage {
	var out []json.RawMessage
	d.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return
		}
		if json.Valid([]byte(raw)) {
			out = append(out, json.RawMessage(raw))
			return
		}
		encoded, err := covenant.MarshalLine(invalidJSONLD{Error: "Invalid JSON-LD", Raw: raw})
		if err == nil {
			out = append(out, encoded)
		}
	})
	return out
}

func (d *Document) Stylesheets() []string {
	return d.absoluteAttrs(`link[rel="stylesheet"]`, "href")
}

func (d *Document) Scripts() []string {
	return d.absoluteAttrs("script[src]", "src")
}

func (d *Document) InlineStyles() []string {
	return d.trimmedTexts("style")
}

func (d *Document) InlineScripts() []string {
	return d.trimmedTexts("script:not([src])")
}

func (d *Document) absoluteAttrs(selector, name string) []string {
	var out []string
	d.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if abs := d.Absolute(attr(s, name)); abs != "" {
			out = append(out, abs)
		}
	})
	return out
}

func (d *Document) trimmedTexts(selector string) []string {
	var out []string
	d.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			out = append(out, t)
		}
	})
	return out
}
