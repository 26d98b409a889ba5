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

// Package format reconciles a raw crawl export into one record per
// canonical page and derives the generic content collection.
package format

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentberlin/covenant"
	"go.uber.org/zap"
)

// Observer counts formatter output. internal/metrics implements it.
type Observer interface {
	PageFormatted(kind string)
}

type nopObserver struct{}

func (nopObserver) PageFormatted(string) {}

// Formatter turns raw crawl exports into the formatted and generic exports.
type Formatter struct {
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
}

// New creates a Formatter. A nil logger discards output.
func New(logger *zap.Logger) *Formatter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Formatter{logger: logger, observer: nopObserver{}, now: time.Now}
}

// SetObserver installs an Observer. Nil restores the no-op observer.
func (f *Formatter) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	f.observer = o
}

// Format reconciles raw into the formatted export and builds the generic
// entries, filtered by opts.MinWords and opts.Types and sorted.
func (f *Formatter) Format(raw *RawInput, opts Options) (*FormattedExport, []GenericEntry) {
	primary, _ := url.Parse(raw.StartURL)
	if primary != nil && primary.Host == "" {
		primary = nil
	}
	primaryHost := ""
	if primary != nil {
		primaryHost = primary.Hostname()
	}

	var assets []FormattedAsset
	var documents []*covenant.CrawlRecord
	for i := range raw.Pages {
		record := &raw.Pages[i]
		if strings.HasPrefix(strings.ToLower(record.ContentType), "image/") {
			assets = append(assets, formatAsset(record, primary))
			f.observer.PageFormatted("asset")
			continue
		}
		documents = append(documents, record)
	}
	sort.SliceStable(documents, func(i, j int) bool {
		return preferenceScore(documents[i], primaryHost) > preferenceScore(documents[j], primaryHost)
	})

	pages := f.merge(documents, primary)
	export := &FormattedExport{
		Source: Source{
			StartURL:   raw.StartURL,
			CrawledAt:  raw.CrawledAt,
			TotalPages: raw.TotalPages,
			Settings:   raw.Settings,
		},
		GeneratedAt: covenant.Timestamp(f.now()),
		Pages:       pages,
		Assets:      assets,
	}

	entries := []GenericEntry{}
	for i := range pages {
		if opts.MinWords > 0 && pages[i].WordCount < opts.MinWords {
			continue
		}
		if entry, ok := BuildGenericEntry(&pages[i], opts); ok {
			entries = append(entries, entry)
			f.observer.PageFormatted("entry")
		}
	}
	SortEntries(entries)
	return export, entries
}

// merge formats each document and folds variants of the same canonical URL
// into one page. A later variant replaces the kept one when it is the first
// 200 or has more words; its source URLs are accumulated either way.
func (f *Formatter) merge(documents []*covenant.CrawlRecord, primary *url.URL) []FormattedPage {
	pages := make([]FormattedPage, 0, len(documents))
	index := make(map[string]int)

	for _, record := range documents {
		formatted := formatPage(record, primary)
		var variants []string
		addVariant := func(v string) {
			if v == "" || v == formatted.URL {
				return
			}
			for _, existing := range variants {
				if existing == v {
					return
				}
			}
			variants = append(variants, v)
		}
		addVariant(formatted.sourceURL)
		addVariant(record.URL)
		formatted.sourceURL = ""

		if formatted.URL == "" {
			formatted.SourceURLs = variants
			pages = append(pages, formatted)
			f.observer.PageFormatted("page")
			continue
		}
		i, seen := index[formatted.URL]
		if !seen {
			formatted.SourceURLs = variants
			index[formatted.URL] = len(pages)
			pages = append(pages, formatted)
			f.observer.PageFormatted("page")
			continue
		}

		existing := &pages[i]
		sources := appendUnique(existing.SourceURLs, variants...)
		replace := (existing.Status != 200 && formatted.Status == 200) ||
			formatted.WordCount > existing.WordCount
		if replace {
			formatted.SourceURLs = sources
			existing.assign(&formatted)
			f.logger.Debug("replaced page variant", zap.String("url", formatted.URL), zap.String("source", record.URL))
		} else {
			existing.SourceURLs = sources
		}
		f.observer.PageFormatted("merged")
	}
	return pages
}

func appendUnique(list []string, values ...string) []string {
	out := append([]string(nil), list...)
	seen := make(map[string]bool, len(out))
	for _, v := range out {
		seen[v] = true
	}
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func set[T comparable](dst *T, v T) {
	var zero T
	if v != zero {
		*dst = v
	}
}

func setSlice[T any](dst *[]T, v []T) {
	if len(v) > 0 {
		*dst = v
	}
}

// assign copies every non-empty field of c onto p. Fields c leaves empty
// keep their current value.
func (p *FormattedPage) assign(c *FormattedPage) {
	set(&p.URL, c.URL)
	set(&p.Status, c.Status)
	set(&p.FetchedAt, c.FetchedAt)
	set(&p.ContentType, c.ContentType)
	set(&p.Title, c.Title)
	set(&p.MetaDescription, c.MetaDescription)
	set(&p.Description, c.Description)
	set(&p.Excerpt, c.Excerpt)
	set(&p.Language, c.Language)
	set(&p.WordCount, c.WordCount)
	set(&p.ReadingTimeMinutes, c.ReadingTimeMinutes)
	set(&p.CoverImage, c.CoverImage)
	set(&p.ContentHTML, c.ContentHTML)
	setSlice(&p.Headings, c.Headings)
	setSlice(&p.Sections, c.Sections)
	setSlice(&p.Paragraphs, c.Paragraphs)
	setSlice(&p.Images, c.Images)
	p.Links = c.Links
	setSlice(&p.JSONLD, c.JSONLD)
	set(&p.EscapeRoomGeneralData, c.EscapeRoomGeneralData)
	set(&p.EscapeRoomScoring, c.EscapeRoomScoring)
	set(&p.IsEscapeRoomReview, c.IsEscapeRoomReview)
	setSlice(&p.Meta, c.Meta)
	set(&p.Category, c.Category)
	set(&p.Section, c.Section)
	setSlice(&p.Tags, c.Tags)
	setSlice(&p.SourceURLs, c.SourceURLs)
}

// Result describes the files a Run wrote.
type Result struct {
	FormattedPath string
	GenericPath   string
	Files         []string
	Pages         int
	Assets        int
	Entries       int
}

// Run reads opts.Input, writes the formatted export to opts.Output and the
// generic collection to opts.OutDir.
func (f *Formatter) Run(ctx context.Context, opts Options) (*Result, error) {
	data, err := os.ReadFile(opts.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", opts.Input, err)
	}
	raw, err := DecodeInput(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.Input, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	export, entries := f.Format(raw, opts)
	if err := covenant.WriteJSONFile(opts.Output, export); err != nil {
		return nil, err
	}
	f.logger.Info("formatted export written",
		zap.String("path", opts.Output),
		zap.Int("pages", len(export.Pages)),
		zap.Int("assets", len(export.Assets)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &Result{
		FormattedPath: opts.Output,
		GenericPath:   filepath.Join(opts.OutDir, "generic.json"),
		Pages:         len(export.Pages),
		Assets:        len(export.Assets),
		Entries:       len(entries),
	}
	files, err := f.writeGeneric(export, entries, opts)
	if err != nil {
		return nil, err
	}
	result.Files = files
	return result, nil
}

func (f *Formatter) writeGeneric(export *FormattedExport, entries []GenericEntry, opts Options) ([]string, error) {
	base := GenericExport{
		GeneratedAt: export.GeneratedAt,
		Source:      export.Source,
		Total:       len(entries),
		Entries:     entries,
	}
	mainPath := filepath.Join(opts.OutDir, "generic.json")
	if err := covenant.WriteJSONFile(mainPath, base); err != nil {
		return nil, err
	}
	f.logger.Info("generic export written", zap.String("path", mainPath), zap.Int("entries", len(entries)))
	files := []string{mainPath}

	if !opts.SplitJSON && !opts.NDJSON {
		return files, nil
	}
	order, groups := GroupByType(entries)
	for _, key := range order {
		items := groups[key]
		if opts.SplitJSON {
			payload := base
			payload.Total = len(items)
			payload.Entries = items
			path := filepath.Join(opts.OutDir, key+".json")
			if err := covenant.WriteJSONFile(path, payload); err != nil {
				return nil, err
			}
			files = append(files, path)
			f.logger.Info("type export written", zap.String("type", key), zap.Int("entries", len(items)), zap.String("path", path))
		}
	}
	for _, key := range order {
		items := groups[key]
		if opts.NDJSON {
			path := filepath.Join(opts.OutDir, key+".ndjson")
			if err := writeNDJSON(path, items); err != nil {
				return nil, err
			}
			files = append(files, path)
			f.logger.Info("ndjson export written", zap.String("type", key), zap.Int("lines", len(items)), zap.String("path", path))
		}
	}
	return files, nil
}

// writeNDJSON writes one JSON document per line. An empty list writes an
// empty file.
func writeNDJSON(path string, entries []GenericEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	var buf bytes.Buffer
	for _, entry := range entries {
		line, err := covenant.MarshalLine(entry)
		if err != nil {
			return fmt.Errorf("failed to encode %s entry: %w", path, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
