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

// Package textnorm holds the text folding helpers shared by the extractors,
// the export formatter and the content normalizers.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonSlugChars  = regexp.MustCompile(`[^a-z0-9]+`)
	tagPattern    = regexp.MustCompile(`<[^>]+>`)
	entityPattern = regexp.MustCompile(`&(nbsp|amp|quot|#39|lt|gt);`)
)

var entities = map[string]string{
	"&nbsp;": " ",
	"&amp;":  "&",
	"&quot;": `"`,
	"&#39;":  "'",
	"&lt;":   "<",
	"&gt;":   ">",
}

// NormalizeWhitespace collapses runs of whitespace (including non-breaking
// spaces) into a single space and trims the result.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// StripAccents decomposes the text (NFD) and drops combining marks, so
// "Duración" becomes "Duracion".
func StripAccents(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return result
}

// Fold strips accents and lower-cases the text without touching whitespace.
func Fold(text string) string {
	return strings.ToLower(StripAccents(text))
}

// ForComparison normalizes whitespace, strips accents and lower-cases.
// Returns "" for blank input.
func ForComparison(text string) string {
	normalized := NormalizeWhitespace(text)
	if normalized == "" {
		return ""
	}
	return Fold(normalized)
}

// Slugify turns a path segment or heading into a lower-case, dash separated
// ASCII slug. Returns "" when nothing alphanumeric remains.
func Slugify(text string) string {
	if text == "" {
		return ""
	}
	cleaned := nonSlugChars.ReplaceAllString(Fold(text), "-")
	return strings.Trim(cleaned, "-")
}

// DecodeEntities decodes the handful of entities that show up in scraped
// block HTML. Anything else is left as-is.
func DecodeEntities(text string) string {
	return entityPattern.ReplaceAllStringFunc(text, func(match string) string {
		if decoded, ok := entities[match]; ok {
			return decoded
		}
		return match
	})
}

// StripHTML replaces tags with spaces and decodes common entities.
func StripHTML(html string) string {
	return DecodeEntities(tagPattern.ReplaceAllString(html, " "))
}
