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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, data string) Record {
	t.Helper()
	r := ParseRecord([]byte(data))
	require.NotNil(t, r, "invalid record fixture")
	return r
}

func TestArticleSlug(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		want   string
		wantOK bool
	}{
		{"slug wins", `{"slug":"a/b","path":"/c","url":"https://thecovenant.es/d"}`, "a/b", true},
		{"path strips slash", `{"path":"/cronicas/x"}`, "cronicas/x", true},
		{"url strips origin", `{"url":"https://www.thecovenant.es/noticias/y"}`, "noticias/y", true},
		{"http origin", `{"url":"http://thecovenant.es/z"}`, "z", true},
		{"root", `{"url":"https://thecovenant.es/"}`, "", true},
		{"foreign url kept", `{"url":"https://example.com/a"}`, "https://example.com/a", true},
		{"null slug falls through", `{"slug":null,"path":"/p"}`, "p", true},
		{"empty slug", `{"slug":""}`, "", false},
		{"number", `{"slug":5}`, "", false},
		{"missing", `{"title":"x"}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ArticleSlug(record(t, tt.data))
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormaliseArticleFields(t *testing.T) {
	r := record(t, `{
		"url": "https://www.thecovenant.es/cronicas/el-umbral",
		"metaTitle": "Meta",
		"excerpt": "Resumen",
		"heroImage": {"src": "https://thecovenant.es/wp-content/uploads/foto.jpg", "alt": "Foto"},
		"section": "Crónicas",
		"tags": ["terror", 3, "misterio"],
		"date": "2024-01-01",
		"meta": {"readingTime": 7},
		"content": "Uno\n\nDos\n\n\n  "
	}`)

	a := NormaliseArticle(r)
	require.NotNil(t, a)
	assert.Equal(t, "cronicas/el-umbral", a.Slug)
	assert.Equal(t, "Meta", a.Title)
	assert.Equal(t, "Resumen", a.Description)
	assert.Equal(t, "Resumen", a.Excerpt)
	require.NotNil(t, a.CoverImage)
	assert.Equal(t, "/images/thecovenant_es/foto_jpg.jpg", a.CoverImage.URL)
	assert.Equal(t, "Foto", a.CoverImage.Alt)
	assert.Equal(t, "Crónicas", a.Category)
	assert.Equal(t, []string{"terror", "misterio"}, a.Tags)
	assert.Equal(t, "2024-01-01", a.PublishedAt)
	assert.Equal(t, "7", a.ReadingTime)
	assert.Equal(t, []Section{
		{Type: SectionParagraph, Text: "Uno"},
		{Type: SectionParagraph, Text: "Dos"},
	}, a.Sections)
}

func TestNormaliseArticleDefaults(t *testing.T) {
	a := NormaliseArticle(record(t, `{"slug":"x","readingTimeMinutes":4}`))
	require.NotNil(t, a)
	assert.Equal(t, DefaultTitle, a.Title)
	assert.Nil(t, a.CoverImage)
	assert.Nil(t, a.Tags)
	assert.Equal(t, "4 min", a.ReadingTime)
	assert.Equal(t, []Section{{Type: SectionParagraph, Text: Placeholder}}, a.Sections)

	assert.Nil(t, NormaliseArticle(record(t, `{"title":"sin slug"}`)))
}

func TestNormaliseArticleEscapeRoom(t *testing.T) {
	a := NormaliseArticle(record(t, `{
		"slug": "x",
		"escapeRoomGeneralData": {"province": "Madrid", "durationMinutes": 60},
		"escapeRoomScoring": "not an object"
	}`))
	require.NotNil(t, a)
	require.NotNil(t, a.EscapeRoomGeneralData)
	assert.Equal(t, "Madrid", a.EscapeRoomGeneralData.Province)
	require.NotNil(t, a.EscapeRoomGeneralData.DurationMinutes)
	assert.Equal(t, 60, *a.EscapeRoomGeneralData.DurationMinutes)
	assert.Nil(t, a.EscapeRoomScoring)
}

func TestNormaliseSections(t *testing.T) {
	tests := []struct {
		name string
		data string
		want []Section
	}{
		{
			name: "sections list",
			data: `{"sections":[
				"plain",
				{"type":"heading","text":"H"},
				{"type":"image","src":"/local.png","alt":"a","caption":"c"},
				{"type":"image"},
				{"type":"custom","html":"<iframe></iframe>"},
				{"type":"quote"},
				7
			]}`,
			want: []Section{
				{Type: SectionParagraph, Text: "plain"},
				{Type: SectionHeading, Text: "H"},
				{Type: SectionImage, URL: "/local.png", Alt: "a", Caption: "c"},
				{Type: SectionEmbed, HTML: "<iframe></iframe>"},
			},
		},
		{
			name: "empty sections fall through to content",
			data: `{"sections":[],"content":"Texto"}`,
			want: []Section{{Type: SectionParagraph, Text: "Texto"}},
		},
		{
			name: "content blocks",
			data: `{"content":["uno",{"type":"image","url":""},{"type":"quote","text":"Q"},{"type":"other"}]}`,
			want: []Section{
				{Type: SectionParagraph, Text: "uno"},
				{Type: SectionQuote, Text: "Q"},
			},
		},
		{
			name: "html",
			data: `{"html":"<p>x</p>"}`,
			want: []Section{{Type: SectionEmbed, HTML: "<p>x</p>"}},
		},
		{
			name: "paragraphs with images",
			data: `{"paragraphs":["a","  ","b"],"images":[{"src":"/1.png"},{"src":""},{"src":"/2.png","alt":"dos"}]}`,
			want: []Section{
				{Type: SectionImage, URL: "/1.png"},
				{Type: SectionParagraph, Text: "a"},
				{Type: SectionParagraph, Text: "b"},
				{Type: SectionImage, URL: "/2.png", Alt: "dos"},
			},
		},
		{
			name: "nothing",
			data: `{"paragraphs":[]}`,
			want: []Section{{Type: SectionParagraph, Text: Placeholder}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormaliseSections(record(t, tt.data)))
		})
	}
}

func TestAssemble(t *testing.T) {
	articles := []Article{{Slug: "a"}, {Slug: "b"}, {Slug: "c"}, {Slug: "d"}, {Slug: "e"}}

	site := Assemble(articles, nil, "", DefaultHero(), DefaultNavigation())
	require.NotNil(t, site)
	assert.Equal(t, []string{"a", "b", "c", "d"}, site.Featured)
	assert.Equal(t, "a", site.Highlight)

	site = Assemble(articles, []string{"c"}, "", DefaultHero(), DefaultNavigation())
	assert.Equal(t, "c", site.Highlight)

	site = Assemble(articles, []string{}, "", DefaultHero(), DefaultNavigation())
	assert.Empty(t, site.Featured)
	assert.Equal(t, "a", site.Highlight)

	site = Assemble(articles, nil, "e", DefaultHero(), DefaultNavigation())
	assert.Equal(t, "e", site.Highlight)

	assert.Nil(t, Assemble(nil, nil, "", DefaultHero(), DefaultNavigation()))
}

func TestDecodeExport(t *testing.T) {
	site, err := DecodeExport([]byte(`{
		"pages": [
			{"url": "https://thecovenant.es/", "title": "Inicio"},
			{"url": "https://thecovenant.es/uno", "title": "Uno"},
			{"title": "sin url"},
			{"path": "/dos", "title": "Dos"}
		],
		"featuredSlugs": ["dos"],
		"hero": {"title": "Hola"},
		"navigation": {"primary": [{"label": "Inicio", "href": "/"}]}
	}`))
	require.NoError(t, err)
	require.Len(t, site.Articles, 2)
	assert.Equal(t, "uno", site.Articles[0].Slug)
	assert.Equal(t, "dos", site.Articles[1].Slug)
	assert.Equal(t, []string{"dos"}, site.Featured)
	assert.Equal(t, "dos", site.Highlight)
	assert.Equal(t, "Hola", site.Hero.Title)
	assert.Equal(t, DefaultHero().Description, site.Hero.Description)
	assert.Equal(t, []NavItem{{Label: "Inicio", Href: "/"}}, site.Navigation.Primary)
	assert.Equal(t, DefaultNavigation().Secondary, site.Navigation.Secondary)

	_, err = DecodeExport([]byte(`{"pages":[{"url":"https://thecovenant.es/"}]}`))
	assert.ErrorIs(t, err, ErrNoArticles)

	_, err = DecodeExport([]byte(`[1,2]`))
	assert.Error(t, err)
}

func TestSiteContentLookups(t *testing.T) {
	site := &SiteContent{
		Highlight: "b",
		Articles:  []Article{{Slug: "a", Title: "A"}, {Slug: "b", Title: "B"}, {Slug: "a", Title: "A2"}},
		Featured:  []string{"missing", "a", "b"},
	}

	a, ok := site.ArticleBySlug("/a")
	require.True(t, ok)
	assert.Equal(t, "A", a.Title)

	_, ok = site.ArticleBySlug("zzz")
	assert.False(t, ok)

	h, ok := site.HighlightArticle()
	require.True(t, ok)
	assert.Equal(t, "B", h.Title)

	featured := site.FeaturedArticles()
	require.Len(t, featured, 2)
	assert.Equal(t, "A2", featured[0].Title)
	assert.Equal(t, "B", featured[1].Title)

	var empty *SiteContent
	assert.Nil(t, empty.FeaturedArticles())
	_, ok = empty.ArticleBySlug("a")
	assert.False(t, ok)
}

func TestFallback(t *testing.T) {
	site := Fallback()
	require.Len(t, site.Articles, 4)
	h, ok := site.HighlightArticle()
	require.True(t, ok)
	assert.Equal(t, "cronicas/el-umbral", h.Slug)
	assert.Len(t, site.FeaturedArticles(), 4)

	site.Articles[0].Title = "changed"
	assert.NotEqual(t, "changed", Fallback().Articles[0].Title)
}
