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

// Package config reads the pipeline settings from the environment.
//
// Each Load function uses its own viper instance, so loading is safe to
// repeat after the environment changes (tests do this with t.Setenv).
package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/content"
	"github.com/agentberlin/covenant/internal/format"
	"github.com/agentberlin/covenant/internal/store"
)

const (
	DefaultStartURL = "https://www.thecovenant.es/"
	DefaultHost     = "127.0.0.1"
	DefaultPort     = "8080"
)

// DefaultCrawlOutput is where the raw crawl export is written.
var DefaultCrawlOutput = filepath.Join("data", "thecovenant-export.json")

// Crawl configures the crawl command.
type Crawl struct {
	StartURL string
	Output   string
	Crawler  covenant.CrawlerConfig
	Fetch    covenant.FetchConfig
	Images   covenant.ImageConfig
}

// Content configures where the site content is read from.
type Content struct {
	Loader content.LoaderConfig
	// DatabaseURL is empty unless DATABASE_URL is set.
	DatabaseURL string
	// CacheRedisURL backs the export cache when set.
	CacheRedisURL string
	CacheTTL      time.Duration
	Host          string
	Port          string
}

// WantsDB reports whether the loader should try the database first.
func (c Content) WantsDB() bool {
	return c.Loader.Source == content.SourceDB || (c.Loader.Source == "" && c.Loader.UseDB)
}

// DatabaseURLOrDefault returns DatabaseURL, or the default sqlite file.
func (c Content) DatabaseURLOrDefault() string {
	if c.DatabaseURL == "" {
		return store.DefaultDatabaseURL
	}
	return c.DatabaseURL
}

// Sync configures the sync command.
type Sync struct {
	// ExportPath is the explicit export file; empty searches public/ and
	// data/.
	ExportPath  string
	DatabaseURL string
}

// Full configures the crawl, format and sync orchestration.
type Full struct {
	SyncToDB bool
	// RawLogs logs every pipeline message at debug level.
	RawLogs bool
	// RawExports prints whole export files instead of summaries.
	RawExports bool
}

// Logging configures the zap logger.
type Logging struct {
	Level  string
	Format string
}

func newViper(defaults map[string]any) *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	return v
}

// LoadCrawl reads the SCRAPE_* crawl settings.
func LoadCrawl() Crawl {
	v := newViper(map[string]any{
		"SCRAPE_START_URL":         DefaultStartURL,
		"SCRAPE_OUTPUT":            DefaultCrawlOutput,
		"SCRAPE_MAX_PAGES":         2000,
		"SCRAPE_CONCURRENCY":       5,
		"SCRAPE_TIMEOUT":           20000,
		"SCRAPE_RATE_LIMIT":        0,
		"SCRAPE_INCLUDE_SITEMAPS":  true,
		"SCRAPE_INCLUDE_FEEDS":     false,
		"SCRAPE_EXTRA_SEEDS":       "",
		"SCRAPE_HASH_CONTENT":      false,
		"SCRAPE_DOWNLOAD_IMAGES":   false,
		"SCRAPE_IMAGE_DIR":         filepath.Join("public", "images"),
		"SCRAPE_IMAGE_CONCURRENCY": 4,
		"SCRAPE_IMAGE_MAX_BYTES":   10 * 1024 * 1024,
		"SCRAPE_IMAGE_EXTENSIONS":  strings.Join(covenant.DefaultImageExtensions, ","),
	})

	fetch := covenant.DefaultFetchConfig()
	fetch.Timeout = time.Duration(positiveInt(v, "SCRAPE_TIMEOUT", 20000)) * time.Millisecond
	if rps, err := strconv.ParseFloat(strings.TrimSpace(v.GetString("SCRAPE_RATE_LIMIT")), 64); err == nil && rps > 0 {
		fetch.RequestsPerSecond = rps
	}

	extensions := List(v.GetString("SCRAPE_IMAGE_EXTENSIONS"))
	for i, ext := range extensions {
		extensions[i] = strings.TrimPrefix(strings.ToLower(ext), ".")
	}

	return Crawl{
		StartURL: stringOr(v, "SCRAPE_START_URL", DefaultStartURL),
		Output:   stringOr(v, "SCRAPE_OUTPUT", DefaultCrawlOutput),
		Crawler: covenant.CrawlerConfig{
			MaxPages:    positiveInt(v, "SCRAPE_MAX_PAGES", 2000),
			Concurrency: positiveInt(v, "SCRAPE_CONCURRENCY", 5),
			Discovery: covenant.DiscoveryConfig{
				IncludeSitemaps: Bool(v.GetString("SCRAPE_INCLUDE_SITEMAPS"), true),
				IncludeFeeds:    Bool(v.GetString("SCRAPE_INCLUDE_FEEDS"), false),
				ExtraSeeds:      List(v.GetString("SCRAPE_EXTRA_SEEDS")),
			},
			DownloadImages: Bool(v.GetString("SCRAPE_DOWNLOAD_IMAGES"), false),
			HashContent:    Bool(v.GetString("SCRAPE_HASH_CONTENT"), false),
		},
		Fetch: fetch,
		Images: covenant.ImageConfig{
			Dir:         stringOr(v, "SCRAPE_IMAGE_DIR", filepath.Join("public", "images")),
			Concurrency: positiveInt(v, "SCRAPE_IMAGE_CONCURRENCY", 4),
			MaxBytes:    int64(positiveInt(v, "SCRAPE_IMAGE_MAX_BYTES", 10*1024*1024)),
			Extensions:  extensions,
		},
	}
}

// LoadFormat reads the SCRAPE_EXPORT_* settings and applies the command
// line flags in args on top of them.
func LoadFormat(args []string) (format.Options, error) {
	v := newViper(map[string]any{
		"SCRAPE_EXPORT_INPUT":      format.DefaultInput,
		"SCRAPE_EXPORT_OUTPUT":     format.DefaultOutput,
		"SCRAPE_EXPORT_OUT_DIR":    format.DefaultOutDir,
		"SCRAPE_EXPORT_NDJSON":     false,
		"SCRAPE_EXPORT_SPLIT_JSON": false,
		"SCRAPE_EXPORT_MIN_WORDS":  0,
		"SCRAPE_EXPORT_TYPES":      "",
	})

	defaults := format.Options{
		Input:     stringOr(v, "SCRAPE_EXPORT_INPUT", format.DefaultInput),
		Output:    stringOr(v, "SCRAPE_EXPORT_OUTPUT", format.DefaultOutput),
		OutDir:    stringOr(v, "SCRAPE_EXPORT_OUT_DIR", format.DefaultOutDir),
		NDJSON:    Bool(v.GetString("SCRAPE_EXPORT_NDJSON"), false),
		SplitJSON: Bool(v.GetString("SCRAPE_EXPORT_SPLIT_JSON"), false),
		Types:     format.ParseTypes(v.GetString("SCRAPE_EXPORT_TYPES")),
	}
	if n, ok := leadingInt(v.GetString("SCRAPE_EXPORT_MIN_WORDS")); ok {
		defaults.MinWords = n
	}
	return format.ParseArgs(args, defaults)
}

// LoadContent reads the content source and server settings.
func LoadContent() Content {
	v := newViper(map[string]any{
		"CONTENT_SOURCE":          "",
		"USE_DB_CONTENT":          false,
		"DATABASE_URL":            "",
		"CONTENT_EXPORT_URL":      "",
		"CONTENT_EXPORT_PATH":     "",
		"CONTENT_CACHE_REDIS_URL": "",
		"CONTENT_CACHE_TTL":       0,
		"SERVER_HOST":             DefaultHost,
		"SERVER_PORT":             DefaultPort,
	})

	databaseURL := strings.TrimSpace(v.GetString("DATABASE_URL"))
	return Content{
		Loader: content.LoaderConfig{
			Source: contentSource(v.GetString("CONTENT_SOURCE")),
			// USE_DB_CONTENT only counts with a database configured.
			UseDB:      Bool(v.GetString("USE_DB_CONTENT"), false) && databaseURL != "",
			ExportURL:  strings.TrimSpace(v.GetString("CONTENT_EXPORT_URL")),
			ExportPath: strings.TrimSpace(v.GetString("CONTENT_EXPORT_PATH")),
		},
		DatabaseURL:   databaseURL,
		CacheRedisURL: strings.TrimSpace(v.GetString("CONTENT_CACHE_REDIS_URL")),
		CacheTTL:      time.Duration(positiveInt(v, "CONTENT_CACHE_TTL", 0)) * time.Second,
		Host:          stringOr(v, "SERVER_HOST", DefaultHost),
		Port:          stringOr(v, "SERVER_PORT", DefaultPort),
	}
}

// contentSource maps CONTENT_SOURCE to a loader source. Unknown values
// leave the choice to USE_DB_CONTENT.
func contentSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "db", "database":
		return content.SourceDB
	case "file", "export":
		return content.SourceFile
	}
	return ""
}

// LoadSync reads the sync settings. exportFlag, when not empty, overrides
// CONTENT_EXPORT_PATH.
func LoadSync(exportFlag string) Sync {
	v := newViper(map[string]any{
		"CONTENT_EXPORT_PATH": "",
		"DATABASE_URL":        store.DefaultDatabaseURL,
	})
	exportPath := strings.TrimSpace(exportFlag)
	if exportPath == "" {
		exportPath = strings.TrimSpace(v.GetString("CONTENT_EXPORT_PATH"))
	}
	return Sync{
		ExportPath:  exportPath,
		DatabaseURL: stringOr(v, "DATABASE_URL", store.DefaultDatabaseURL),
	}
}

// LoadFull reads the orchestration flags.
func LoadFull() Full {
	v := newViper(map[string]any{
		"SCRAPE_SYNC_TO_DB":      false,
		"SCRAPEFULL_RAW_LOGS":    false,
		"SCRAPEFULL_RAW_EXPORTS": false,
	})
	return Full{
		SyncToDB:   Bool(v.GetString("SCRAPE_SYNC_TO_DB"), false),
		RawLogs:    Bool(v.GetString("SCRAPEFULL_RAW_LOGS"), false),
		RawExports: Bool(v.GetString("SCRAPEFULL_RAW_EXPORTS"), false),
	}
}

// LoadLogging reads LOG_LEVEL and LOG_FORMAT.
func LoadLogging() Logging {
	v := newViper(map[string]any{
		"LOG_LEVEL":  "info",
		"LOG_FORMAT": "console",
	})
	return Logging{
		Level:  stringOr(v, "LOG_LEVEL", "info"),
		Format: stringOr(v, "LOG_FORMAT", "console"),
	}
}

// Bool parses 1/true/yes/on and 0/false/no/off, case-insensitively.
// Anything else yields def.
func Bool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

// List splits a comma list, dropping blank items.
func List(raw string) []string {
	var items []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func stringOr(v *viper.Viper, key, def string) string {
	if s := strings.TrimSpace(v.GetString(key)); s != "" {
		return s
	}
	return def
}

// positiveInt returns the leading integer of the value, or def when it is
// missing, unparsable or not positive.
func positiveInt(v *viper.Viper, key string, def int) int {
	n, ok := leadingInt(v.GetString(key))
	if !ok || n <= 0 {
		return def
	}
	return n
}

// leadingInt parses the leading digits of s, with an optional sign, so
// "30s" reads as 30.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
