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

package report

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentberlin/covenant"
)

func TestSummarize(t *testing.T) {
	export := &covenant.RawExport{
		CrawledAt: "2024-05-01T10:00:00.000Z",
		Settings:  covenant.CrawlSettings{ImageStats: &covenant.ImageStats{Downloaded: 3, Failed: 1, Skipped: 2}},
		Pages: []covenant.CrawlRecord{
			{URL: "https://www.thecovenant.es/", Status: 200, ContentType: "text/html; charset=UTF-8"},
			{URL: "https://thecovenant.es/a", Status: 404, ContentType: "TEXT/HTML"},
			{URL: "https://cdn.example.com/x.css", Status: 200, ContentType: "text/css"},
			{URL: "https://thecovenant.es/b", Error: "timeout"},
		},
	}

	s := Summarize(export)
	assert.Equal(t, 4, s.Pages)
	assert.Equal(t, 2, s.Errors)
	assert.Equal(t, 3, s.Images.Downloaded)
	assert.Equal(t, []Count{{"text/html", 2}, {"text/css", 1}, {"unknown", 1}}, s.ContentTypes)
	assert.Equal(t, []Count{{"thecovenant.es", 3}, {"cdn.example.com", 1}}, s.Hosts)

	var buf bytes.Buffer
	s.Write(&buf)
	out := buf.String()
	assert.Contains(t, out, "Pages crawled: 4")
	assert.Contains(t, out, "Errors: 2")
	assert.Contains(t, out, "Images downloaded: 3 | failed: 1 | skipped: 2")
	assert.Contains(t, out, "Crawled at: 2024-05-01T10:00:00.000Z")
	assert.Contains(t, out, "  thecovenant.es: 3")
}

func TestSummarizeKeepsTopTen(t *testing.T) {
	export := &covenant.RawExport{}
	for i := 0; i < 12; i++ {
		export.Pages = append(export.Pages, covenant.CrawlRecord{
			URL:         "https://h" + string(rune('a'+i)) + ".example/",
			ContentType: "type/" + string(rune('a'+i)),
		})
	}
	s := Summarize(export)
	assert.Len(t, s.ContentTypes, 10)
	assert.Len(t, s.Hosts, 10)
	assert.Equal(t, "type/a", s.ContentTypes[0].Key)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestSummarizeFilePages(t *testing.T) {
	body := `{"pages":[{"url":"https://a/","title":"Uno","status":200},{"sourceUrl":"https://b/"},{},{},{},{"url":"https://f/"}]}`
	path := writeFile(t, t.TempDir(), "raw.json", body)

	f, err := SummarizeFile(path)
	require.NoError(t, err)
	assert.Equal(t, KindPages, f.Kind)
	assert.Equal(t, 6, f.Count)
	assert.Len(t, f.Samples, 5)
	assert.Equal(t, Sample{Location: "https://a/", Title: "Uno", Tag: "200"}, f.Samples[0])
	assert.Equal(t, "https://b/", f.Samples[1].Location)
	assert.Equal(t, len(body), f.Size)

	var buf bytes.Buffer
	f.Write(&buf, "Raw export")
	out := buf.String()
	assert.Contains(t, out, "Pages: 6")
	assert.Contains(t, out, `1. https://a/ - "Uno" (status:200)`)
	assert.Contains(t, out, "3. <no url> - <no title> (status:??)")
}

func TestSummarizeFileEntriesAndObjects(t *testing.T) {
	dir := t.TempDir()

	f, err := SummarizeFile(writeFile(t, dir, "generic.json", `{"entries":[{"type":"article","path":"/a","title":"A"}]}`))
	require.NoError(t, err)
	assert.Equal(t, KindEntries, f.Kind)
	var buf bytes.Buffer
	f.Write(&buf, "Export generic.json")
	assert.Contains(t, buf.String(), `1. /a - "A" (type:article)`)

	f, err = SummarizeFile(writeFile(t, dir, "other.json", `{"b":1,"a":2}`))
	require.NoError(t, err)
	assert.Equal(t, KindObject, f.Kind)
	assert.Equal(t, []string{"a", "b"}, f.Keys)
}

func TestSummarizeFileText(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("x", SnippetLimit+10)

	f, err := SummarizeFile(writeFile(t, dir, "lines.ndjson", long))
	require.NoError(t, err)
	assert.Equal(t, KindText, f.Kind)
	assert.True(t, f.Truncated)
	assert.Len(t, f.Snippet, SnippetLimit)

	_, err = SummarizeFile(filepath.Join(dir, "missing.json"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestDirFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.json", "{}")
	writeFile(t, dir, "a.json", "{}")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	files, err := DirFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, files)

	_, err = DirFiles(filepath.Join(dir, "nope"))
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
