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

package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Source produces SiteContent from one backing store.
type Source interface {
	Name() string
	Load(ctx context.Context) (*SiteContent, error)
}

// SiteStore is a database holding synced content.
type SiteStore interface {
	LoadSiteContent(ctx context.Context) (*SiteContent, error)
}

// DBSource reads synced content from a SiteStore.
type DBSource struct {
	Store SiteStore
}

func (DBSource) Name() string { return "db" }

func (s DBSource) Load(ctx context.Context) (*SiteContent, error) {
	return s.Store.LoadSiteContent(ctx)
}

// RemoteSource downloads the formatted export over HTTP.
type RemoteSource struct {
	URL    string
	Client *http.Client
}

func (RemoteSource) Name() string { return "remote" }

func (s RemoteSource) Load(ctx context.Context) (*SiteContent, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid export url %q: %w", s.URL, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch export %s: %w", s.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch export %s: status %d", s.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export %s: %w", s.URL, err)
	}
	return DecodeExport(data)
}

// FileSource reads the first existing export among Paths.
type FileSource struct {
	Paths []string
}

func (FileSource) Name() string { return "file" }

func (s FileSource) Load(ctx context.Context) (*SiteContent, error) {
	data, path, err := ReadFirst(s.Paths)
	if err != nil {
		return nil, err
	}
	site, err := DecodeExport(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return site, nil
}

// ExportCandidates lists where the formatted export is looked for: the
// explicit path if any, then public/ and data/ under the working directory.
func ExportCandidates(explicit string) []string {
	var candidates []string
	seen := make(map[string]bool)
	add := func(p string) {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}
	if explicit != "" {
		add(explicit)
	}
	add(filepath.Join("public", ExportFilename))
	add(filepath.Join("data", ExportFilename))
	return candidates
}

// ReadFirst returns the contents of the first path that exists. Read
// errors other than not-exist stop the search.
func ReadFirst(paths []string) ([]byte, string, error) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, p, fmt.Errorf("failed to read export %s: %w", p, err)
		}
		return data, p, nil
	}
	return nil, "", fmt.Errorf("%w: set CONTENT_EXPORT_PATH or place %s in public/ or data/", ErrExportNotFound, ExportFilename)
}

// Source selection values.
const (
	SourceDB   = "db"
	SourceFile = "file"
)

// LoaderConfig selects the content sources.
type LoaderConfig struct {
	// Source forces "db" or "file". Empty lets UseDB decide.
	Source     string
	UseDB      bool
	ExportURL  string
	ExportPath string
}

// Sources builds the source chain for cfg. db may be nil when no database
// is configured. The database comes first when forced or opted into; the
// remote export and local files always follow so a database failure still
// serves the export.
func Sources(cfg LoaderConfig, db SiteStore, client *http.Client) []Source {
	var sources []Source
	useDB := cfg.Source == SourceDB || (cfg.Source == "" && cfg.UseDB)
	if useDB && db != nil {
		sources = append(sources, DBSource{Store: db})
	}
	if cfg.ExportURL != "" {
		sources = append(sources, RemoteSource{URL: cfg.ExportURL, Client: client})
	}
	return append(sources, FileSource{Paths: ExportCandidates(cfg.ExportPath)})
}

// Loader resolves SiteContent once and serves it until Reset. A failed
// load is cached as the fallback content.
type Loader struct {
	sources []Source
	logger  *zap.Logger

	mu      sync.Mutex
	content *SiteContent
	source  string
}

// NewLoader creates a Loader trying sources in order.
func NewLoader(logger *zap.Logger, sources ...Source) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{sources: sources, logger: logger}
}

// SiteContent returns the cached content, loading it on first use.
func (l *Loader) SiteContent(ctx context.Context) *SiteContent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.content != nil {
		return l.content
	}
	for _, source := range l.sources {
		site, err := source.Load(ctx)
		if err != nil {
			l.logger.Warn("content source failed", zap.String("source", source.Name()), zap.Error(err))
			continue
		}
		l.content, l.source = site, source.Name()
		l.logger.Info("content loaded", zap.String("source", source.Name()), zap.Int("articles", len(site.Articles)))
		return l.content
	}
	l.content, l.source = Fallback(), "fallback"
	l.logger.Info("serving fallback content")
	return l.content
}

// Source names the source the cached content came from, or "" before the
// first load.
func (l *Loader) Source() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// Reset drops the cached content so the next call reloads.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.content, l.source = nil, ""
	l.mu.Unlock()
}

func (l *Loader) Navigation(ctx context.Context) Navigation {
	return l.SiteContent(ctx).Navigation
}

func (l *Loader) Hero(ctx context.Context) Hero {
	return l.SiteContent(ctx).Hero
}

func (l *Loader) HighlightArticle(ctx context.Context) (*Article, bool) {
	return l.SiteContent(ctx).HighlightArticle()
}

func (l *Loader) FeaturedArticles(ctx context.Context) []Article {
	return l.SiteContent(ctx).FeaturedArticles()
}

func (l *Loader) AllArticles(ctx context.Context) []Article {
	return l.SiteContent(ctx).Articles
}

func (l *Loader) ArticleBySlug(ctx context.Context, slug string) (*Article, bool) {
	return l.SiteContent(ctx).ArticleBySlug(slug)
}
