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

package covenant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// CrawlRecord is the result of one fetch attempt. Successful fetches carry
// every derived field; failed fetches only carry URL, status, error, time,
// content type and whatever body the server returned.
type CrawlRecord struct {
	URL             string            `json:"url"`
	Status          int               `json:"status,omitempty"`
	Error           string            `json:"error,omitempty"`
	FetchedAt       string            `json:"fetchedAt"`
	ContentType     string            `json:"contentType,omitempty"`
	ContentLength   string            `json:"contentLength,omitempty"`
	Title           string            `json:"title,omitempty"`
	Language        string            `json:"language,omitempty"`
	MetaDescription string            `json:"metaDescription,omitempty"`
	CanonicalURL    string            `json:"canonicalUrl,omitempty"`
	Meta            []MetaTag         `json:"meta,omitempty"`
	Feeds           []Feed            `json:"feeds,omitempty"`
	Links           []Link            `json:"links,omitempty"`
	Images          []Image           `json:"images,omitempty"`
	Media           *Media            `json:"media,omitempty"`
	Outline         []Heading         `json:"outline,omitempty"`
	Sections        []Section         `json:"sections,omitempty"`
	ContentBlocks   []ContentBlock    `json:"contentBlocks,omitempty"`
	TextContent     string            `json:"textContent,omitempty"`
	JSONLD          []json.RawMessage `json:"jsonLd,omitempty"`
	Stylesheets     []string          `json:"stylesheets,omitempty"`
	InlineStyles    []string          `json:"inlineStyles,omitempty"`
	Scripts         []string          `json:"scripts,omitempty"`
	InlineScripts   []string          `json:"inlineScripts,omitempty"`
	RawHTML         string            `json:"rawHtml,omitempty"`
	ContentHash     string            `json:"contentHash,omitempty"`

	EscapeRoomGeneralData *EscapeRoomGeneralData `json:"escapeRoomGeneralData,omitempty"`
	EscapeRoomScoring     *EscapeRoomScoring     `json:"escapeRoomScoring,omitempty"`
	IsEscapeRoomReview    bool                   `json:"isEscapeRoomReview,omitempty"`
}

// Failed reports whether the record represents a failed fetch.
func (r *CrawlRecord) Failed() bool {
	return r.Error != "" || r.Status >= 400
}

// MetaTag is one <meta> element.
type MetaTag struct {
	Name      string `json:"name,omitempty"`
	Property  string `json:"property,omitempty"`
	Content   string `json:"content,omitempty"`
	Charset   string `json:"charset,omitempty"`
	HTTPEquiv string `json:"httpEquiv,omitempty"`
}

// Feed is a <link rel="alternate"> pointing at an RSS, Atom or JSON feed.
type Feed struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Href  string `json:"href,omitempty"`
}

// Link is one anchor. Internal is always serialized so consumers can tell
// "external" from "unknown".
type Link struct {
	Text           string `json:"text,omitempty"`
	HTML           string `json:"html,omitempty"`
	Href           string `json:"href,omitempty"`
	Title          string `json:"title,omitempty"`
	Rel            string `json:"rel,omitempty"`
	Target         string `json:"target,omitempty"`
	Internal       bool   `json:"internal"`
	NormalizedHref string `json:"normalizedHref,omitempty"`
}

// Image is one <img>. LocalPath, SkipReason and DownloadError are filled in
// by the ImageDownloader.
type Image struct {
	Src     string `json:"src,omitempty"`
	Srcset  string `json:"srcset,omitempty"`
	DataSrc string `json:"dataSrc,omitempty"`
	Alt     string `json:"alt,omitempty"`
	Title   string `json:"title,omitempty"`
	Width   string `json:"width,omitempty"`
	Height  string `json:"height,omitempty"`
	Loading string `json:"loading,omitempty"`

	LocalPath     string `json:"localPath,omitempty"`
	SkipReason    string `json:"skipReason,omitempty"`
	DownloadError string `json:"downloadError,omitempty"`
}

// Media groups embedded players.
type Media struct {
	Videos  []Video  `json:"videos"`
	Audio   []Audio  `json:"audio"`
	Iframes []Iframe `json:"iframes"`
}

type MediaSource struct {
	Src  string `json:"src,omitempty"`
	Type string `json:"type,omitempty"`
}

type Video struct {
	Poster   string        `json:"poster,omitempty"`
	Controls bool          `json:"controls"`
	Autoplay bool          `json:"autoplay"`
	Loop     bool          `json:"loop"`
	Muted    bool          `json:"muted"`
	Sources  []MediaSource `json:"sources"`
}

type Audio struct {
	Controls bool          `json:"controls"`
	Autoplay bool          `json:"autoplay"`
	Loop     bool          `json:"loop"`
	Muted    bool          `json:"muted"`
	Sources  []MediaSource `json:"sources"`
}

type Iframe struct {
	Src     string `json:"src,omitempty"`
	Title   string `json:"title,omitempty"`
	Allow   string `json:"allow,omitempty"`
	Width   string `json:"width,omitempty"`
	Height  string `json:"height,omitempty"`
	Loading string `json:"loading,omitempty"`
}

// Heading is a node of the h1-h6 outline. Children hold the headings of a
// deeper level that follow it.
type Heading struct {
	Level    int       `json:"level"`
	Text     string    `json:"text"`
	ID       string    `json:"id,omitempty"`
	HTML     string    `json:"html,omitempty"`
	Children []Heading `json:"children"`
}

// Section is a raw <section> element.
type Section struct {
	ID        string `json:"id,omitempty"`
	ClassName string `json:"className,omitempty"`
	HTML      string `json:"html,omitempty"`
	Text      string `json:"text,omitempty"`
}

// ContentBlock is one semantic element of the main content area.
type ContentBlock struct {
	Tag     string      `json:"tag"`
	Text    string      `json:"text,omitempty"`
	HTML    string      `json:"html,omitempty"`
	Items   []string    `json:"items,omitempty"`
	Caption string      `json:"caption,omitempty"`
	Image   *BlockImage `json:"image,omitempty"`
	Rows    [][]string  `json:"rows,omitempty"`
}

type BlockImage struct {
	Src   string `json:"src,omitempty"`
	Alt   string `json:"alt,omitempty"`
	Title string `json:"title,omitempty"`
}

// EscapeRoomGeneralData is the "datos generales" table of a review.
type EscapeRoomGeneralData struct {
	Raw             string      `json:"raw,omitempty"`
	Category        string      `json:"category,omitempty"`
	Province        string      `json:"province,omitempty"`
	DurationText    string      `json:"durationText,omitempty"`
	DurationMinutes *int        `json:"durationMinutes,omitempty"`
	PlayersText     string      `json:"playersText,omitempty"`
	MinPlayers      *int        `json:"minPlayers,omitempty"`
	MaxPlayers      *int        `json:"maxPlayers,omitempty"`
	WebLink         string      `json:"webLink,omitempty"`
	ExtractionDebug *TableDebug `json:"extractionDebug,omitempty"`
}

// TableDebug records how a table was located.
type TableDebug struct {
	RowCount    int    `json:"rowCount"`
	TablesTotal int    `json:"tablesTotal"`
	MatchedBy   string `json:"matchedBy,omitempty"`
}

// Rating category keys.
const (
	ScoreDifficulty = "difficulty"
	ScoreTerror     = "terror"
	ScoreImmersion  = "immersion"
	ScoreFun        = "fun"
	ScorePuzzles    = "puzzles"
	ScoreGameMaster = "gameMaster"
	ScoreGlobal     = "global"
)

// ScoreKeys lists the rating categories in serialization order.
var ScoreKeys = []string{
	ScoreDifficulty, ScoreTerror, ScoreImmersion, ScoreFun,
	ScorePuzzles, ScoreGameMaster, ScoreGlobal,
}

// ScoreValue is one star-widget rating. Ratio is Value / Max.
type ScoreValue struct {
	Value RatingNumber `json:"value"`
	Max   RatingNumber `json:"max"`
	Ratio RatingNumber `json:"ratio"`
	Label string       `json:"label,omitempty"`
}

// EscapeRoomScoring is the "puntuación escape room" table. On the wire the
// categories are flattened next to rawHtml and extractionDebug.
type EscapeRoomScoring struct {
	Categories      map[string]ScoreValue
	RawHTML         string
	ExtractionDebug *TableDebug
}

// Get returns the score stored under key.
func (s *EscapeRoomScoring) Get(key string) (ScoreValue, bool) {
	if s == nil {
		return ScoreValue{}, false
	}
	v, ok := s.Categories[key]
	return v, ok
}

// Keys returns the populated category keys, known keys first in
// serialization order, then any others alphabetically.
func (s *EscapeRoomScoring) Keys() []string {
	if s == nil {
		return nil
	}
	var keys []string
	known := make(map[string]bool, len(ScoreKeys))
	for _, k := range ScoreKeys {
		known[k] = true
		if _, ok := s.Categories[k]; ok {
			keys = append(keys, k)
		}
	}
	var extra []string
	for k := range s.Categories {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func (s EscapeRoomScoring) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, value any) error {
		encoded, err := marshalNoEscape(value)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := marshalNoEscape(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(encoded)
		return nil
	}
	for _, key := range s.Keys() {
		if err := write(key, s.Categories[key]); err != nil {
			return nil, err
		}
	}
	if s.RawHTML != "" {
		if err := write("rawHtml", s.RawHTML); err != nil {
			return nil, err
		}
	}
	if s.ExtractionDebug != nil {
		if err := write("extractionDebug", s.ExtractionDebug); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *EscapeRoomScoring) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	s.Categories = make(map[string]ScoreValue)
	for key, raw := range fields {
		switch key {
		case "rawHtml":
			_ = json.Unmarshal(raw, &s.RawHTML)
		case "extractionDebug":
			var debug TableDebug
			if json.Unmarshal(raw, &debug) == nil {
				s.ExtractionDebug = &debug
			}
		default:
			var value ScoreValue
			if err := json.Unmarshal(raw, &value); err != nil {
				continue
			}
			s.Categories[key] = value
		}
	}
	return nil
}

// RatingNumber decodes numbers and numeric strings (a comma is accepted as
// the decimal separator). Unparsable values decode to zero.
type RatingNumber float64

func (n *RatingNumber) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = RatingNumber(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, ok := ParseRatingNumber(s); ok {
			*n = RatingNumber(v)
		}
		return nil
	}
	*n = 0
	return nil
}

// ParseRatingNumber parses "4,5" or "4.5" style strings.
func ParseRatingNumber(s string) (float64, bool) {
	s = strings.TrimSpace(strings.Replace(s, ",", ".", 1))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ImageStats counts image mirror outcomes.
type ImageStats struct {
	Downloaded int `json:"downloaded"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// CrawlSettings echoes the configuration a crawl ran with.
type CrawlSettings struct {
	MaxPages        int         `json:"maxPages"`
	Concurrency     int         `json:"concurrency"`
	IncludeSitemaps bool        `json:"includeSitemaps"`
	IncludeFeeds    bool        `json:"includeFeeds,omitempty"`
	DownloadImages  bool        `json:"downloadImages,omitempty"`
	ImageStats      *ImageStats `json:"imageStats,omitempty"`
}

// RawExport is the crawl output file.
type RawExport struct {
	CrawledAt  string        `json:"crawledAt"`
	StartURL   string        `json:"startUrl"`
	TotalPages int           `json:"totalPages"`
	Settings   CrawlSettings `json:"settings"`
	Pages      []CrawlRecord `json:"pages"`
}

// Timestamp formats t the way every export timestamp is written.
func Timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// WriteRawExport writes export to path, creating parent directories.
func WriteRawExport(path string, export *RawExport) error {
	return WriteJSONFile(path, export)
}

// ReadRawExport reads a crawl output file.
func ReadRawExport(path string) (*RawExport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var export RawExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &export, nil
}

// WriteJSONFile writes v as two-space indented JSON followed by a newline.
// HTML characters are not escaped.
func WriteJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// MarshalLine encodes v as a single JSON line without HTML escaping and
// without the trailing newline.
func MarshalLine(v any) ([]byte, error) {
	return marshalNoEscape(v)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
