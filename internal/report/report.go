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

// Package report prints the summaries shown after a full pipeline run.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/agentberlin/covenant"
)

const (
	topN       = 10
	sampleSize = 5
	maxKeys    = 20
	// SnippetLimit bounds the text shown for files that are not JSON.
	SnippetLimit = 2000
)

// Count is one row of a frequency table.
type Count struct {
	Key   string
	Count int
}

// Summary describes a raw crawl export.
type Summary struct {
	Pages        int
	Errors       int
	Images       *covenant.ImageStats
	CrawledAt    string
	ContentTypes []Count
	Hosts        []Count
}

// Summarize counts pages, failures, content types and hosts in export.
func Summarize(export *covenant.RawExport) Summary {
	s := Summary{
		Pages:     len(export.Pages),
		Images:    export.Settings.ImageStats,
		CrawledAt: export.CrawledAt,
	}
	types := newCounter()
	hosts := newCounter()
	for i := range export.Pages {
		page := &export.Pages[i]
		if page.Failed() {
			s.Errors++
		}
		types.add(contentTypeKey(page.ContentType))
		if host := hostKey(page.URL); host != "" {
			hosts.add(host)
		}
	}
	s.ContentTypes = types.top(topN)
	s.Hosts = hosts.top(topN)
	return s
}

func contentTypeKey(contentType string) string {
	if contentType == "" {
		return "unknown"
	}
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// counter keeps first-seen order so ties sort the way they were found.
type counter struct {
	index map[string]int
	rows  []Count
}

func newCounter() *counter {
	return &counter{index: make(map[string]int)}
}

func (c *counter) add(key string) {
	if i, ok := c.index[key]; ok {
		c.rows[i].Count++
		return
	}
	c.index[key] = len(c.rows)
	c.rows = append(c.rows, Count{Key: key, Count: 1})
}

func (c *counter) top(n int) []Count {
	rows := append([]Count(nil), c.rows...)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Count > rows[j].Count })
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows
}

// Write prints s.
func (s Summary) Write(w io.Writer) {
	fmt.Fprintln(w, "\n=== Summary ===")
	fmt.Fprintf(w, "Pages crawled: %d\n", s.Pages)
	fmt.Fprintf(w, "Errors: %d\n", s.Errors)
	if s.Images != nil {
		fmt.Fprintf(w, "Images downloaded: %d | failed: %d | skipped: %d\n", s.Images.Downloaded, s.Images.Failed, s.Images.Skipped)
	}
	if s.CrawledAt != "" {
		fmt.Fprintf(w, "Crawled at: %s\n", s.CrawledAt)
	}
	if len(s.ContentTypes) > 0 {
		fmt.Fprintln(w, "Top content types:")
		for _, c := range s.ContentTypes {
			fmt.Fprintf(w, "  %s: %d\n", c.Key, c.Count)
		}
	}
	if len(s.Hosts) > 0 {
		fmt.Fprintln(w, "Top hosts:")
		for _, c := range s.Hosts {
			fmt.Fprintf(w, "  %s: %d\n", c.Key, c.Count)
		}
	}
}

// File kinds.
const (
	KindPages   = "pages"
	KindEntries = "entries"
	KindObject  = "object"
	KindText    = "text"
)

// Sample is one line of a file preview.
type Sample struct {
	// Location is the url of a page or the path of an entry.
	Location string
	Title    string
	// Tag is the status of a page or the type of an entry.
	Tag string
}

// FileSummary previews an export file.
type FileSummary struct {
	Path    string
	Kind    string
	Size    int
	Count   int
	Samples []Sample
	Keys    []string
	// Snippet holds the start of a file that is not a JSON object.
	Snippet   string
	Truncated bool
}

// SummarizeFile reads path and previews it. Files with a "pages" array
// preview pages, files with an "entries" array preview entries, other
// objects list their top-level keys and anything else is cut to a
// snippet.
func SummarizeFile(path string) (*FileSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	summary := &FileSummary{Path: path, Size: len(data)}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		summary.Kind = KindText
		summary.Snippet = strings.TrimSpace(string(data))
		if len(data) > SnippetLimit {
			summary.Snippet = strings.TrimSpace(string(data[:SnippetLimit]))
			summary.Truncated = true
		}
		return summary, nil
	}

	if items, ok := objectArray(fields["pages"]); ok {
		summary.Kind = KindPages
		summary.Count = len(items)
		for _, item := range head(items) {
			location := str(item, "url")
			if location == "" {
				location = str(item, "sourceUrl")
			}
			summary.Samples = append(summary.Samples, Sample{Location: location, Title: str(item, "title"), Tag: str(item, "status")})
		}
		return summary, nil
	}
	if items, ok := objectArray(fields["entries"]); ok {
		summary.Kind = KindEntries
		summary.Count = len(items)
		for _, item := range head(items) {
			summary.Samples = append(summary.Samples, Sample{Location: str(item, "path"), Title: str(item, "title"), Tag: str(item, "type")})
		}
		return summary, nil
	}

	summary.Kind = KindObject
	for key := range fields {
		summary.Keys = append(summary.Keys, key)
	}
	sort.Strings(summary.Keys)
	if len(summary.Keys) > maxKeys {
		summary.Keys = summary.Keys[:maxKeys]
	}
	return summary, nil
}

// objectArray decodes raw as an array, keeping object items and leaving
// the rest empty.
func objectArray(raw json.RawMessage) ([]map[string]any, bool) {
	if raw == nil {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	out := make([]map[string]any, len(items))
	for i, item := range items {
		var m map[string]any
		if json.Unmarshal(item, &m) == nil {
			out[i] = m
		}
	}
	return out, true
}

func head(items []map[string]any) []map[string]any {
	if len(items) > sampleSize {
		return items[:sampleSize]
	}
	return items
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Write prints the preview of f under title.
func (f *FileSummary) Write(w io.Writer, title string) {
	fmt.Fprintf(w, "\n=== %s (%s) ===\n", title, f.Path)
	switch f.Kind {
	case KindPages, KindEntries:
		noun, missing, tag := "Pages", "<no url>", "status"
		if f.Kind == KindEntries {
			noun, missing, tag = "Entries", "<no path>", "type"
		}
		fmt.Fprintf(w, "%s: %d\n", noun, f.Count)
		fmt.Fprintf(w, "Sample (first %d):\n", sampleSize)
		for i, s := range f.Samples {
			location := s.Location
			if location == "" {
				location = missing
			}
			heading := "<no title>"
			if s.Title != "" {
				heading = strconv.Quote(s.Title)
			}
			value := s.Tag
			if value == "" {
				value = "??"
			}
			fmt.Fprintf(w, "  %d. %s - %s (%s:%s)\n", i+1, location, heading, tag, value)
		}
		fmt.Fprintf(w, "File size: %d bytes\n", f.Size)
	case KindObject:
		fmt.Fprintf(w, "Top-level keys: %s\n", strings.Join(f.Keys, ", "))
		fmt.Fprintf(w, "File size: %d bytes\n", f.Size)
	default:
		fmt.Fprintln(w, f.Snippet)
		if f.Truncated {
			fmt.Fprintln(w, "... (truncated; set SCRAPEFULL_RAW_EXPORTS=true to print whole files)")
		}
	}
}

// DirFiles lists the regular files of dir sorted by name.
func DirFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
