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

package extract

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/agentberlin/covenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reviewURL = "https://www.thecovenant.es/the-last-door/"

func loadFixture(t *testing.T, name string) *Document {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	doc, err := Parse(string(data), reviewURL)
	require.NoError(t, err)
	return doc
}

func testHosts(t *testing.T) covenant.AllowedHosts {
	t.Helper()
	hosts, err := covenant.NewAllowedHosts("https://www.thecovenant.es/")
	require.NoError(t, err)
	return hosts
}

func TestExtractPage_Review(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "review-with-tables.html"))
	require.NoError(t, err)

	record, err := New().ExtractPage(string(data), reviewURL, testHosts(t))
	require.NoError(t, err)

	assert.Equal(t, "The Last Door | Reseña escape room | The Covenant", record.Title)
	assert.Equal(t, "es", record.Language)
	assert.Equal(t, "Reseña de The Last Door, un escape room de terror en Madrid.", record.MetaDescription)
	assert.Equal(t, reviewURL, record.CanonicalURL)
	assert.True(t, record.IsEscapeRoomReview)
	require.NotNil(t, record.EscapeRoomGeneralData)
	require.NotNil(t, record.EscapeRoomScoring)

	require.Len(t, record.Feeds, 1)
	assert.Equal(t, covenant.Feed{Type: "application/rss+xml", Title: "The Covenant » Feed", Href: "https://www.thecovenant.es/feed/"}, record.Feeds[0])

	assert.Equal(t, []string{"https://www.thecovenant.es/wp-content/themes/covenant/style.css"}, record.Stylesheets)
	assert.Equal(t, []string{"https://www.thecovenant.es/wp-includes/js/jquery.js"}, record.Scripts)
	assert.Len(t, record.InlineScripts, 3)
	assert.Contains(t, record.TextContent, "Una experiencia de terror en pleno centro de Madrid.")
}

func TestDocument_Links(t *testing.T) {
	doc := loadFixture(t, "review-with-tables.html")
	links := doc.Links(testHosts(t))
	require.Len(t, links, 5)

	assert.Equal(t, "Home", links[0].Text)
	assert.True(t, links[0].Internal)
	assert.Equal(t, "https://www.thecovenant.es/", links[0].NormalizedHref)

	assert.False(t, links[1].Internal)
	assert.Equal(t, "https://www.instagram.com/thecovenant", links[1].Href)
	assert.Empty(t, links[1].NormalizedHref)

	assert.Equal(t, "https://www.thecovenant.es/cronicas/", links[2].Href)
	assert.Equal(t, "https://www.thecovenant.es/cronicas", links[2].NormalizedHref)
	assert.Equal(t, "leímos las crónicas", links[2].Text)

	assert.False(t, links[3].Internal)
	assert.Equal(t, "https://lastdoor.example/", links[3].Href)
}

func TestDocument_Outline(t *testing.T) {
	outline := loadFixture(t, "review-with-tables.html").Outline()
	require.Len(t, outline, 1)

	root := outline[0]
	assert.Equal(t, 1, root.Level)
	assert.Equal(t, "The Last Door", root.Text)
	assert.Equal(t, "titulo", root.ID)
	require.Len(t, root.Children, 2)
	assert.Equal(t, "La historia", root.Children[0].Text)
	require.Len(t, root.Children[0].Children, 1)
	assert.Equal(t, "Ambientación", root.Children[0].Children[0].Text)
	assert.Equal(t, "Últimos posts", root.Children[1].Text)
	assert.Empty(t, root.Children[1].Children)
}

func TestDocument_OutlineSiblingsAtSameLevel(t *testing.T) {
	doc, err := Parse(`<body><h2>A</h2><h3>A.1</h3><h2>B</h2><h1>C</h1></body>`, reviewURL)
	require.NoError(t, err)
	outline := doc.Outline()
	require.Len(t, outline, 3)
	assert.Equal(t, "A", outline[0].Text)
	assert.Len(t, outline[0].Children, 1)
	assert.Equal(t, "B", outline[1].Text)
	assert.Equal(t, "C", outline[2].Text)
}

func TestDocument_ContentBlocks(t *testing.T) {
	blocks := loadFixture(t, "review-with-tables.html").ContentBlocks()
	require.Len(t, blocks, 12)

	assert.Equal(t, "ul", blocks[0].Tag)
	assert.Equal(t, []string{"Home / Reseñas / The Last Door"}, blocks[0].Items)

	assert.Equal(t, "h1", blocks[1].Tag)
	assert.Equal(t, "Una experiencia de terror en pleno centro de Madrid.", blocks[2].Text)

	figure := blocks[3]
	assert.Equal(t, "figure", figure.Tag)
	assert.Equal(t, "La sala principal", figure.Caption)
	require.NotNil(t, figure.Image)
	assert.Equal(t, "https://www.thecovenant.es/wp-content/uploads/2024/02/last-door-sala.jpg", figure.Image.Src)
	assert.Equal(t, "La sala principal", figure.Image.Alt)

	table := blocks[8]
	assert.Equal(t, "table", table.Tag)
	require.Len(t, table.Rows, 6)
	assert.Equal(t, []string{"Categoría", "Terror"}, table.Rows[1])
}

func TestDocument_ContentRootFallsBackToBody(t *testing.T) {
	doc, err := Parse(`<html><body><p>uno</p><div><p>dos</p></div></body></html>`, reviewURL)
	require.NoError(t, err)
	blocks := doc.ContentBlocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, "dos", blocks[1].Text)
}

func TestDocument_JSONLD(t *testing.T) {
	entries := loadFixture(t, "review-with-tables.html").JSONLD()
	require.Len(t, entries, 2)

	var review map[string]any
	require.NoError(t, json.Unmarshal(entries[0], &review))
	assert.Equal(t, "Review", review["@type"])

	var invalid map[string]string
	require.NoError(t, json.Unmarshal(entries[1], &invalid))
	assert.Equal(t, map[string]string{"error": "Invalid JSON-LD", "raw": "{ roto"}, invalid)
}

func TestDocument_Media(t *testing.T) {
	media := loadFixture(t, "review-with-tables.html").Media()
	require.Len(t, media.Videos, 1)
	video := media.Videos[0]
	assert.Equal(t, "https://www.thecovenant.es/poster.jpg", video.Poster)
	assert.True(t, video.Controls)
	assert.True(t, video.Muted)
	assert.False(t, video.Autoplay)
	assert.Equal(t, []covenant.MediaSource{{Src: "https://www.thecovenant.es/trailer.mp4", Type: "video/mp4"}}, video.Sources)

	assert.Empty(t, media.Audio)
	require.Len(t, media.Iframes, 1)
	assert.Equal(t, covenant.Iframe{
		Src: "https://www.youtube.com/embed/abc", Title: "Tráiler", Allow: "autoplay",
		Width: "560", Height: "315", Loading: "lazy",
	}, media.Iframes[0])
}

func TestDocument_Sections(t *testing.T) {
	sections := loadFixture(t, "review-with-tables.html").Sections()
	require.Len(t, sections, 1)
	assert.Equal(t, "comentarios", sections[0].ID)
	assert.Equal(t, "comments", sections[0].ClassName)
	assert.Equal(t, "Sin comentarios.", sections[0].Text)
}
