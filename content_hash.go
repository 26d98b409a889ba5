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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/PuerkitoBio/goquery"
	"github.com/cespare/xxhash/v2"
)

// ContentHashConfig controls which parts of a page feed its content hash.
type ContentHashConfig struct {
	// ExcludeTags are removed before hashing.
	ExcludeTags []string
	// StripTimestamps replaces dates and WordPress "hace N días" style
	// relative times.
	StripTimestamps bool
	// StripAnalytics removes tracking snippets.
	StripAnalytics bool
	// StripComments removes HTML comments.
	StripComments bool
	// CollapseWhitespace folds runs of whitespace into one space.
	CollapseWhitespace bool
}

// DefaultContentHashConfig is used by the crawler for every HTML page.
func DefaultContentHashConfig() *ContentHashConfig {
	return &ContentHashConfig{
		ExcludeTags:        []string{"script", "style", "noscript", "nav", "footer"},
		StripTimestamps:    true,
		StripAnalytics:     true,
		StripComments:      true,
		CollapseWhitespace: true,
	}
}

var (
	timestampPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})?`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}(?: \d{1,2}:\d{2})?`),
		regexp.MustCompile(`(?i)hace\s+\d+\s+(?:segundos?|minutos?|horas?|días?|semanas?|meses|mes|años?)`),
	}
	analyticsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)googletagmanager\.com/[^\s"'<>]+`),
		regexp.MustCompile(`(?i)google-analytics\.com/[^\s"'<>]+`),
		regexp.MustCompile(`(?i)gtag\s*\([^)]*\)`),
		regexp.MustCompile(`(?i)fbq\s*\([^)]*\)`),
	}
	// WordPress cache busters and nonces change on every render.
	volatilePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\?ver=[0-9a-zA-Z.]+`),
		regexp.MustCompile(`(?i)_?wpnonce["']?\s*[:=]\s*["']?[a-f0-9]{8,}["']?`),
	}
	commentPattern    = regexp.MustCompile(`<!--[\s\S]*?-->`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizeContent strips the volatile parts of an HTML page so that two
// renders of the same article hash equally. A nil config means
// DefaultContentHashConfig.
func NormalizeContent(html []byte, config *ContentHashConfig) ([]byte, error) {
	if config == nil {
		config = DefaultContentHashConfig()
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	for _, tag := range config.ExcludeTags {
		doc.Find(tag).Remove()
	}
	rendered, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML: %w", err)
	}

	content := []byte(rendered)
	if config.StripComments {
		content = commentPattern.ReplaceAll(content, nil)
	}
	if config.StripTimestamps {
		content = replaceAll(content, timestampPatterns, nil)
	}
	if config.StripAnalytics {
		content = replaceAll(content, analyticsPatterns, nil)
	}
	content = replaceAll(content, volatilePatterns, nil)
	if config.CollapseWhitespace {
		content = whitespacePattern.ReplaceAll(bytes.TrimSpace(content), []byte(" "))
	}
	return content, nil
}

func replaceAll(content []byte, patterns []*regexp.Regexp, repl []byte) []byte {
	for _, p := range patterns {
		content = p.ReplaceAll(content, repl)
	}
	return content
}

// ComputeContentHash returns the xxhash of content as 16 hex digits.
func ComputeContentHash(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("content is empty")
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(content)), nil
}

// ComputeContentHashWithConfig normalizes html and hashes the result.
func ComputeContentHashWithConfig(html []byte, config *ContentHashConfig) (string, error) {
	normalized, err := NormalizeContent(html, config)
	if err != nil {
		return "", fmt.Errorf("failed to normalize content: %w", err)
	}
	hash, err := ComputeContentHash(normalized)
	if err != nil {
		return "", fmt.Errorf("failed to compute hash: %w", err)
	}
	return hash, nil
}

// ChecksumJSON returns the sha256 hex digest of v's JSON encoding. Map keys
// are sorted by encoding/json, so equal values always produce equal sums.
func ChecksumJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode checksum payload: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
