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

package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/content"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := newStoreWithPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testSite() *content.SiteContent {
	return &content.SiteContent{
		Hero:      content.DefaultHero(),
		Highlight: "cronicas/uno",
		Featured:  []string{"cronicas/uno"},
		Articles: []content.Article{
			{
				Slug:        "cronicas/uno",
				Title:       "Uno",
				Description: "Primera",
				CoverImage:  &content.Image{URL: "/images/thecovenant_es/uno_jpg.jpg", Alt: "portada"},
				Tags:        []string{"terror"},
				PublishedAt: "2024-01-01",
				ReadingTime: "3 min",
				Sections:    []content.Section{{Type: content.SectionParagraph, Text: "hola"}},
				EscapeRoomGeneralData: &covenant.EscapeRoomGeneralData{
					Province: "Madrid",
				},
			},
			{
				Slug:     "noticias/dos",
				Title:    "Dos",
				Sections: []content.Section{{Type: content.SectionQuote, Text: "cita"}},
			},
		},
		Navigation: content.DefaultNavigation(),
	}
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "file:data/covenant.db", want: "data/covenant.db"},
		{raw: "file:./dev.db?connection_limit=1", want: "./dev.db"},
		{raw: "sqlite:///var/lib/covenant.db", want: "/var/lib/covenant.db"},
		{raw: "file:///tmp/x.db", want: "/tmp/x.db"},
		{raw: "plain.db", want: "plain.db"},
		{raw: "postgres://user@localhost/db", wantErr: true},
		{raw: "  ", wantErr: true},
		{raw: "file:", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseDatabaseURL(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedDatabase) {
					t.Fatalf("ParseDatabaseURL(%q) error = %v, want ErrUnsupportedDatabase", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDatabaseURL(%q) unexpected error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("ParseDatabaseURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	store, err := Open("file:"+filepath.Join(dir, "covenant.db"), nil)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer store.Close()

	c, err := store.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if c.Articles != 0 || c.Revisions != 0 || c.Settings != 0 {
		t.Errorf("new database should be empty, got %+v", c)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("FirstSync_CreatesEverything", func(t *testing.T) {
		result, err := store.Sync(ctx, testSite())
		if err != nil {
			t.Fatalf("Sync() failed: %v", err)
		}
		if result.Created != 2 || result.Updated != 0 || result.Unchanged != 0 || result.Deleted != 0 {
			t.Errorf("unexpected result %+v", result)
		}
		if !result.SettingsUpdated {
			t.Error("settings should be written on first sync")
		}
	})

	t.Run("SecondSync_WritesNothing", func(t *testing.T) {
		result, err := store.Sync(ctx, testSite())
		if err != nil {
			t.Fatalf("Sync() failed: %v", err)
		}
		if result.Created != 0 || result.Updated != 0 || result.Deleted != 0 {
			t.Errorf("second sync should not write articles, got %+v", result)
		}
		if result.Unchanged != 2 {
			t.Errorf("Unchanged = %d, want 2", result.Unchanged)
		}
		if result.SettingsUpdated {
			t.Error("settings should not be rewritten")
		}

		c, err := store.Counts(ctx)
		if err != nil {
			t.Fatalf("Counts() failed: %v", err)
		}
		if c.Articles != 2 || c.Revisions != 2 || c.Settings != 1 {
			t.Errorf("unexpected counts %+v", c)
		}
	})
}

func TestSyncUpdatesAndDeletes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Sync(ctx, testSite()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	site := testSite()
	site.Articles[0].Title = "Uno revisado"
	site.Articles = site.Articles[:1]
	site.Featured = []string{"cronicas/uno", "cronicas/otro"}

	result, err := store.Sync(ctx, site)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if result.Updated != 1 || result.Deleted != 1 || result.Created != 0 {
		t.Errorf("unexpected result %+v", result)
	}
	if !result.SettingsUpdated {
		t.Error("changed featured slugs should rewrite settings")
	}

	article, err := store.GetArticle(ctx, "cronicas/uno")
	if err != nil {
		t.Fatalf("GetArticle() failed: %v", err)
	}
	if article.Title != "Uno revisado" {
		t.Errorf("Title = %q, want %q", article.Title, "Uno revisado")
	}

	revisions, err := store.Revisions(ctx, article.ID)
	if err != nil {
		t.Fatalf("Revisions() failed: %v", err)
	}
	if len(revisions) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(revisions))
	}
	if revisions[1].Checksum != article.ContentHash {
		t.Errorf("latest revision checksum %s does not match content hash %s", revisions[1].Checksum, article.ContentHash)
	}
	if revisions[0].ID == "" || revisions[0].ID == revisions[1].ID {
		t.Errorf("revisions need distinct ids, got %q and %q", revisions[0].ID, revisions[1].ID)
	}

	if _, err := store.GetArticle(ctx, "noticias/dos"); err == nil {
		t.Error("deleted article should not be found")
	}
	c, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if c.Revisions != 2 {
		t.Errorf("revisions of deleted articles should be removed, got %d", c.Revisions)
	}
}

func TestSyncDuplicateSlugOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	site := testSite()
	dup := site.Articles[1]
	dup.Title = "Dos bis"
	site.Articles = append(site.Articles, dup)

	result, err := store.Sync(ctx, site)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if result.Created != 2 || result.Updated != 1 {
		t.Errorf("unexpected result %+v", result)
	}
	if !result.SettingsUpdated {
		t.Error("settings should be written on first sync")
	}

	article, err := store.GetArticle(ctx, "noticias/dos")
	if err != nil {
		t.Fatalf("GetArticle() failed: %v", err)
	}
	if article.Title != "Dos bis" {
		t.Errorf("Title = %q, want %q", article.Title, "Dos bis")
	}
	c, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("Counts() failed: %v", err)
	}
	if c.Articles != 2 {
		t.Errorf("Articles = %d, want 2", c.Articles)
	}
}

func TestSyncRejectsEmptySite(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Sync(context.Background(), &content.SiteContent{}); !errors.Is(err, ErrNoArticles) {
		t.Errorf("Sync() error = %v, want ErrNoArticles", err)
	}
	if _, err := store.Sync(context.Background(), nil); !errors.Is(err, ErrNoArticles) {
		t.Errorf("Sync(nil) error = %v, want ErrNoArticles", err)
	}
}

func TestLoadSiteContent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.LoadSiteContent(ctx); !errors.Is(err, ErrNoArticles) {
		t.Fatalf("empty database should return ErrNoArticles, got %v", err)
	}
	if _, err := store.Sync(ctx, testSite()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}

	site, err := store.LoadSiteContent(ctx)
	if err != nil {
		t.Fatalf("LoadSiteContent() failed: %v", err)
	}
	if len(site.Articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(site.Articles))
	}
	if site.Highlight != "cronicas/uno" {
		t.Errorf("Highlight = %q", site.Highlight)
	}
	if len(site.Featured) != 1 || site.Featured[0] != "cronicas/uno" {
		t.Errorf("Featured = %v", site.Featured)
	}
	if site.Hero.Title != content.DefaultHero().Title {
		t.Errorf("Hero.Title = %q", site.Hero.Title)
	}
	if len(site.Navigation.Primary) != 4 {
		t.Errorf("expected default primary navigation, got %v", site.Navigation.Primary)
	}

	uno := site.Articles[0]
	if uno.Slug != "cronicas/uno" {
		t.Fatalf("dated article should sort first, got %q", uno.Slug)
	}
	if uno.PublishedAt != "2024-01-01T00:00:00.000Z" {
		t.Errorf("PublishedAt = %q", uno.PublishedAt)
	}
	if uno.CoverImage == nil || uno.CoverImage.URL != "/images/thecovenant_es/uno_jpg.jpg" || uno.CoverImage.Alt != "portada" {
		t.Errorf("CoverImage = %+v", uno.CoverImage)
	}
	if len(uno.Tags) != 1 || uno.Tags[0] != "terror" {
		t.Errorf("Tags = %v", uno.Tags)
	}
	if uno.EscapeRoomGeneralData == nil || uno.EscapeRoomGeneralData.Province != "Madrid" {
		t.Errorf("EscapeRoomGeneralData = %+v", uno.EscapeRoomGeneralData)
	}
	if uno.EscapeRoomScoring != nil {
		t.Errorf("EscapeRoomScoring should be nil, got %+v", uno.EscapeRoomScoring)
	}

	dos := site.Articles[1]
	if len(dos.Sections) != 1 || dos.Sections[0].Type != content.SectionQuote {
		t.Errorf("Sections = %+v", dos.Sections)
	}
	if dos.CoverImage != nil || dos.Description != "" {
		t.Errorf("optional fields should stay empty, got %+v", dos)
	}
}

func TestDuplicateSlugs(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.Sync(context.Background(), testSite()); err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	dups, err := store.DuplicateSlugs(context.Background())
	if err != nil {
		t.Fatalf("DuplicateSlugs() failed: %v", err)
	}
	if len(dups) != 0 {
		t.Errorf("unique index should prevent duplicates, got %v", dups)
	}

	recent, err := store.RecentArticles(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentArticles() failed: %v", err)
	}
	if len(recent) != 2 {
		t.Errorf("expected 2 recent articles, got %d", len(recent))
	}
}
