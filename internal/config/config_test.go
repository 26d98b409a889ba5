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

package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/content"
	"github.com/agentberlin/covenant/internal/format"
	"github.com/agentberlin/covenant/internal/store"
)

func TestBool(t *testing.T) {
	tests := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"TRUE", false, true},
		{" yes ", false, true},
		{"on", false, true},
		{"0", true, false},
		{"False", true, false},
		{"no", true, false},
		{"off", true, false},
		{"", true, true},
		{"maybe", false, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Bool(tt.raw, tt.def), "Bool(%q, %v)", tt.raw, tt.def)
	}
}

func TestList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, List(" a, ,b,"))
	assert.Nil(t, List(""))
}

func TestLoadCrawlDefaults(t *testing.T) {
	cfg := LoadCrawl()

	assert.Equal(t, DefaultStartURL, cfg.StartURL)
	assert.Equal(t, DefaultCrawlOutput, cfg.Output)
	assert.Equal(t, 2000, cfg.Crawler.MaxPages)
	assert.Equal(t, 5, cfg.Crawler.Concurrency)
	assert.True(t, cfg.Crawler.Discovery.IncludeSitemaps)
	assert.False(t, cfg.Crawler.Discovery.IncludeFeeds)
	assert.Empty(t, cfg.Crawler.Discovery.ExtraSeeds)
	assert.False(t, cfg.Crawler.DownloadImages)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
	assert.Zero(t, cfg.Fetch.RequestsPerSecond)
	assert.Equal(t, covenant.DefaultFetchConfig().UserAgent, cfg.Fetch.UserAgent)
	assert.Equal(t, filepath.Join("public", "images"), cfg.Images.Dir)
	assert.Equal(t, 4, cfg.Images.Concurrency)
	assert.Equal(t, int64(10485760), cfg.Images.MaxBytes)
	assert.Equal(t, covenant.DefaultImageExtensions, cfg.Images.Extensions)
}

func TestLoadCrawlFromEnv(t *testing.T) {
	t.Setenv("SCRAPE_START_URL", "https://example.com/")
	t.Setenv("SCRAPE_OUTPUT", "out/raw.json")
	t.Setenv("SCRAPE_MAX_PAGES", "10")
	t.Setenv("SCRAPE_CONCURRENCY", "2abc")
	t.Setenv("SCRAPE_TIMEOUT", "1500")
	t.Setenv("SCRAPE_INCLUDE_SITEMAPS", "false")
	t.Setenv("SCRAPE_INCLUDE_FEEDS", "yes")
	t.Setenv("SCRAPE_EXTRA_SEEDS", "https://example.com/a, https://example.com/b")
	t.Setenv("SCRAPE_DOWNLOAD_IMAGES", "1")
	t.Setenv("SCRAPE_IMAGE_EXTENSIONS", ".JPG,png")
	t.Setenv("SCRAPE_IMAGE_MAX_BYTES", "2048")
	t.Setenv("SCRAPE_RATE_LIMIT", "2.5")

	cfg := LoadCrawl()
	assert.Equal(t, "https://example.com/", cfg.StartURL)
	assert.Equal(t, "out/raw.json", cfg.Output)
	assert.Equal(t, 10, cfg.Crawler.MaxPages)
	assert.Equal(t, 2, cfg.Crawler.Concurrency)
	assert.Equal(t, 1500*time.Millisecond, cfg.Fetch.Timeout)
	assert.False(t, cfg.Crawler.Discovery.IncludeSitemaps)
	assert.True(t, cfg.Crawler.Discovery.IncludeFeeds)
	assert.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, cfg.Crawler.Discovery.ExtraSeeds)
	assert.True(t, cfg.Crawler.DownloadImages)
	assert.Equal(t, []string{"jpg", "png"}, cfg.Images.Extensions)
	assert.Equal(t, int64(2048), cfg.Images.MaxBytes)
	assert.Equal(t, 2.5, cfg.Fetch.RequestsPerSecond)
}

func TestLoadCrawlInvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SCRAPE_MAX_PAGES", "0")
	t.Setenv("SCRAPE_CONCURRENCY", "-3")
	t.Setenv("SCRAPE_TIMEOUT", "soon")

	cfg := LoadCrawl()
	assert.Equal(t, 2000, cfg.Crawler.MaxPages)
	assert.Equal(t, 5, cfg.Crawler.Concurrency)
	assert.Equal(t, 20*time.Second, cfg.Fetch.Timeout)
}

func TestLoadFormat(t *testing.T) {
	opts, err := LoadFormat(nil)
	require.NoError(t, err)
	assert.Equal(t, format.DefaultOptions(), opts)

	t.Setenv("SCRAPE_EXPORT_OUT_DIR", "exports")
	t.Setenv("SCRAPE_EXPORT_NDJSON", "true")
	t.Setenv("SCRAPE_EXPORT_MIN_WORDS", "25")
	t.Setenv("SCRAPE_EXPORT_TYPES", "Article, Review")

	opts, err = LoadFormat(nil)
	require.NoError(t, err)
	assert.Equal(t, "exports", opts.OutDir)
	assert.True(t, opts.NDJSON)
	assert.False(t, opts.SplitJSON)
	assert.Equal(t, 25, opts.MinWords)
	assert.Equal(t, []string{"article", "review"}, opts.Types)

	// Flags win over the environment.
	opts, err = LoadFormat([]string{"--no-ndjson", "--min-words=5", "--types"})
	require.NoError(t, err)
	assert.False(t, opts.NDJSON)
	assert.Equal(t, 5, opts.MinWords)
	assert.Empty(t, opts.Types)

	_, err = LoadFormat([]string{"--bogus"})
	assert.Error(t, err)
}

func TestLoadContent(t *testing.T) {
	cfg := LoadContent()
	assert.Equal(t, content.LoaderConfig{}, cfg.Loader)
	assert.False(t, cfg.WantsDB())
	assert.Equal(t, store.DefaultDatabaseURL, cfg.DatabaseURLOrDefault())
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)

	// USE_DB_CONTENT needs a database URL.
	t.Setenv("USE_DB_CONTENT", "true")
	assert.False(t, LoadContent().WantsDB())

	t.Setenv("DATABASE_URL", "file:dev.db")
	t.Setenv("CONTENT_EXPORT_URL", "https://cdn.example.com/export.json")
	t.Setenv("CONTENT_CACHE_TTL", "30")
	t.Setenv("SERVER_PORT", "9000")
	cfg = LoadContent()
	assert.True(t, cfg.WantsDB())
	assert.Equal(t, "file:dev.db", cfg.DatabaseURLOrDefault())
	assert.Equal(t, "https://cdn.example.com/export.json", cfg.Loader.ExportURL)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, "9000", cfg.Port)

	t.Setenv("CONTENT_SOURCE", "file")
	assert.False(t, LoadContent().WantsDB())

	t.Setenv("CONTENT_SOURCE", "database")
	assert.Equal(t, content.SourceDB, LoadContent().Loader.Source)
}

func TestLoadSync(t *testing.T) {
	cfg := LoadSync("")
	assert.Equal(t, "", cfg.ExportPath)
	assert.Equal(t, store.DefaultDatabaseURL, cfg.DatabaseURL)

	t.Setenv("CONTENT_EXPORT_PATH", "env.json")
	t.Setenv("DATABASE_URL", "sqlite:other.db")
	cfg = LoadSync("")
	assert.Equal(t, "env.json", cfg.ExportPath)
	assert.Equal(t, "sqlite:other.db", cfg.DatabaseURL)

	assert.Equal(t, "flag.json", LoadSync("flag.json").ExportPath)
}

func TestLoadFull(t *testing.T) {
	assert.Equal(t, Full{}, LoadFull())

	t.Setenv("SCRAPE_SYNC_TO_DB", "true")
	t.Setenv("SCRAPEFULL_RAW_EXPORTS", "on")
	assert.Equal(t, Full{SyncToDB: true, RawExports: true}, LoadFull())
}

func TestLoadLogging(t *testing.T) {
	assert.Equal(t, Logging{Level: "info", Format: "console"}, LoadLogging())
	t.Setenv("LOG_FORMAT", "json")
	assert.Equal(t, "json", LoadLogging().Format)
}
