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

// Package extract derives structured page data from crawled HTML: metadata,
// links, images, media, outline, content blocks, JSON-LD and the escape-room
// review tables.
package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/textnorm"
)

// Document is a parsed page plus the URL relative references resolve
// against.
type Document struct {
	doc *goquery.Document
	url string
}

// Parse parses html. pageURL is used to absolutize references.
func Parse(html, pageURL string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return &Document{doc: doc, url: pageURL}, nil
}

// URL returns the page URL the document was parsed for.
func (d *Document) URL() string { return d.url }

// Find runs a CSS selector over the whole document.
func (d *Document) Find(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// Absolute resolves raw against the page URL, dropping the fragment.
// Empty and unresolvable references return "".
func (d *Document) Absolute(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	abs, ok := covenant.ToAbsoluteURL(raw, d.url)
	if !ok {
		return ""
	}
	return abs
}

// text is the whitespace-collapsed text of sel.
func text(sel *goquery.Selection) string {
	return textnorm.NormalizeWhitespace(sel.Text())
}

func attr(sel *goquery.Selection, name string) string {
	return sel.AttrOr(name, "")
}

func hasAttr(sel *goquery.Selection, name string) bool {
	_, ok := sel.Attr(name)
	return ok
}

func innerHTML(sel *goquery.Selection) string {
	html, err := sel.Html()
	if err != nil {
		return ""
	}
	return html
}

func outerHTML(sel *goquery.Selection) string {
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return ""
	}
	return html
}
