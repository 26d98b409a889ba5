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
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const exportFixture = `{"pages":[{"url":"https://thecovenant.es/uno","title":"Uno"}]}`

type fakeStore struct {
	site  *SiteContent
	err   error
	calls int
}

func (f *fakeStore) LoadSiteContent(ctx context.Context) (*SiteContent, error) {
	f.calls++
	return f.site, f.err
}

func writeExport(t *testing.T, dir, body string) string {
	t.Helper()
	p := filepath.Join(dir, ExportFilename)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestFileSourceSkipsMissing(t *testing.T) {
	dir := t.TempDir()
	p := writeExport(t, dir, exportFixture)

	site, err := FileSource{Paths: []string{filepath.Join(dir, "missing.json"), p}}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, site.Articles, 1)
	assert.Equal(t, "uno", site.Articles[0].Slug)

	_, err = FileSource{Paths: []string{filepath.Join(dir, "missing.json")}}.Load(context.Background())
	assert.ErrorIs(t, err, ErrExportNotFound)
}

func TestFileSourceInvalidExport(t *testing.T) {
	p := writeExport(t, t.TempDir(), `{"pages":[]}`)
	_, err := FileSource{Paths: []string{p}}.Load(context.Background())
	assert.ErrorIs(t, err, ErrNoArticles)
}

func TestRemoteSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/export.json" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(exportFixture))
	}))
	defer srv.Close()

	site, err := RemoteSource{URL: srv.URL + "/export.json", Client: srv.Client()}.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, site.Articles, 1)

	_, err = RemoteSource{URL: srv.URL + "/other", Client: srv.Client()}.Load(context.Background())
	assert.ErrorContains(t, err, "status 404")
}

func TestExportCandidates(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	got := ExportCandidates("")
	assert.Equal(t, []string{
		filepath.Join(cwd, "public", ExportFilename),
		filepath.Join(cwd, "data", ExportFilename),
	}, got)

	got = ExportCandidates(filepath.Join("data", ExportFilename))
	assert.Len(t, got, 2)
	assert.Equal(t, filepath.Join(cwd, "data", ExportFilename), got[0])
}

func TestSources(t *testing.T) {
	db := &fakeStore{}
	names := func(sources []Source) []string {
		var out []string
		for _, s := range sources {
			out = append(out, s.Name())
		}
		return out
	}

	assert.Equal(t, []string{"file"}, names(Sources(LoaderConfig{}, db, nil)))
	assert.Equal(t, []string{"db", "file"}, names(Sources(LoaderConfig{UseDB: true}, db, nil)))
	assert.Equal(t, []string{"db", "file"}, names(Sources(LoaderConfig{Source: SourceDB}, db, nil)))
	assert.Equal(t, []string{"file"}, names(Sources(LoaderConfig{Source: SourceFile, UseDB: true}, db, nil)))
	assert.Equal(t, []string{"file"}, names(Sources(LoaderConfig{UseDB: true}, nil, nil)))
	assert.Equal(t, []string{"db", "remote", "file"},
		names(Sources(LoaderConfig{UseDB: true, ExportURL: "https://example.com/x.json"}, db, nil)))
}

func TestLoaderCachesFirstSuccess(t *testing.T) {
	db := &fakeStore{site: &SiteContent{Articles: []Article{{Slug: "db"}}, Highlight: "db"}}
	p := writeExport(t, t.TempDir(), exportFixture)
	loader := NewLoader(zaptest.NewLogger(t), DBSource{Store: db}, FileSource{Paths: []string{p}})
	ctx := context.Background()

	assert.Empty(t, loader.Source())
	all := loader.AllArticles(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, "db", all[0].Slug)
	assert.Equal(t, "db", loader.Source())

	_, ok := loader.HighlightArticle(ctx)
	assert.True(t, ok)
	assert.Equal(t, 1, db.calls)

	loader.Reset()
	assert.Empty(t, loader.Source())
	loader.SiteContent(ctx)
	assert.Equal(t, 2, db.calls)
}

func TestLoaderFallsThrough(t *testing.T) {
	db := &fakeStore{err: errors.New("connection refused")}
	p := writeExport(t, t.TempDir(), exportFixture)
	loader := NewLoader(zaptest.NewLogger(t), DBSource{Store: db}, FileSource{Paths: []string{p}})

	a, ok := loader.ArticleBySlug(context.Background(), "/uno")
	require.True(t, ok)
	assert.Equal(t, "Uno", a.Title)
	assert.Equal(t, "file", loader.Source())
}

func TestLoaderFallback(t *testing.T) {
	loader := NewLoader(nil, FileSource{Paths: []string{filepath.Join(t.TempDir(), "none.json")}})
	ctx := context.Background()

	assert.Equal(t, Fallback().Hero, loader.Hero(ctx))
	assert.Equal(t, "fallback", loader.Source())
	assert.Len(t, loader.FeaturedArticles(ctx), 4)
	assert.Equal(t, DefaultNavigation(), loader.Navigation(ctx))
}
