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
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const uploads = "https://www.thecovenant.es/wp-content/uploads/2023/05/"

func registerImage(mock *MockTransport, url, body string) {
	headers := make(http.Header)
	headers.Set("Content-Type", "image/jpeg")
	mock.RegisterResponse(url, &MockResponse{Body: body, Headers: headers})
}

func newTestDownloader(t *testing.T, mock *MockTransport, cfg ImageConfig) *ImageDownloader {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	d, err := NewImageDownloader(context.Background(), newTestFetcher(t, mock), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestImageRelativePath(t *testing.T) {
	tests := []struct {
		src  string
		want string
		ok   bool
	}{
		{uploads + "sala-terror-1024x683.jpg", "www_thecovenant_es/sala-terror-1024x683_jpg.jpg", true},
		{"https://i0.wp.com/logo.png?resize=10", "i0_wp_com/logo_png.png", true},
		{"https://www.thecovenant.es/galeria/", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		got, ok := ImageRelativePath(tt.src)
		assert.Equal(t, tt.ok, ok, tt.src)
		assert.Equal(t, tt.want, got, tt.src)
	}
	assert.Equal(t, "/images/www_thecovenant_es/portada_webp.webp", PublicImagePath("https://www.thecovenant.es/portada.webp"))
	assert.Equal(t, "https://www.thecovenant.es/galeria/", PublicImagePath("https://www.thecovenant.es/galeria/"))
}

func TestImageDownloader_DownloadAndDedup(t *testing.T) {
	mock := NewMockTransport()
	registerImage(mock, uploads+"portada.jpg", "JPEGDATA")
	d := newTestDownloader(t, mock, ImageConfig{})

	first := d.Download(context.Background(), uploads+"portada.jpg")
	require.NoError(t, first.Err)
	assert.Empty(t, first.SkipReason)
	assert.Equal(t, filepath.Join(d.config.Dir, "www_thecovenant_es", "portada_jpg.jpg"), first.LocalPath)

	data, err := os.ReadFile(first.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "JPEGDATA", string(data))

	second := d.Download(context.Background(), uploads+"portada.jpg")
	assert.Equal(t, SkipDuplicateSession, second.SkipReason)
	assert.Equal(t, first.LocalPath, second.LocalPath)
	assert.Equal(t, 1, mock.RequestCount(uploads+"portada.jpg"))

	assert.Equal(t, ImageStats{Downloaded: 1, Skipped: 1}, d.Stats())
}

func TestImageDownloader_RetriesAfterFailure(t *testing.T) {
	mock := NewMockTransport()
	mock.RegisterStatus(uploads+"caida.jpg", http.StatusInternalServerError, "error")
	d := newTestDownloader(t, mock, ImageConfig{})

	failed := d.Download(context.Background(), uploads+"caida.jpg")
	require.Error(t, failed.Err)
	assert.Empty(t, failed.LocalPath)

	registerImage(mock, uploads+"caida.jpg", "JPEGDATA")
	retry := d.Download(context.Background(), uploads+"caida.jpg")
	require.NoError(t, retry.Err)
	assert.Empty(t, retry.SkipReason)
	assert.Equal(t, filepath.Join(d.config.Dir, "www_thecovenant_es", "caida_jpg.jpg"), retry.LocalPath)
	assert.Equal(t, 2, mock.RequestCount(uploads+"caida.jpg"))
	assert.Equal(t, ImageStats{Downloaded: 1, Failed: 1}, d.Stats())
}

func TestImageDownloader_DuplicateOfSkippedHasNoPath(t *testing.T) {
	mock := NewMockTransport()
	registerImage(mock, uploads+"grande.jpg", "0123456789ABCDEF")
	d := newTestDownloader(t, mock, ImageConfig{MaxBytes: 8})

	assert.Equal(t, SkipSizeExceedsLimit, d.Download(context.Background(), uploads+"grande.jpg").SkipReason)
	second := d.Download(context.Background(), uploads+"grande.jpg")
	assert.Equal(t, SkipDuplicateSession, second.SkipReason)
	assert.Empty(t, second.LocalPath)
}

func TestImageDownloader_SkipReasons(t *testing.T) {
	t.Run("NoSrc", func(t *testing.T) {
		d := newTestDownloader(t, NewMockTransport(), ImageConfig{})
		assert.Equal(t, SkipNoSrc, d.Download(context.Background(), "").SkipReason)
	})

	t.Run("ExtensionNotWhitelisted", func(t *testing.T) {
		mock := NewMockTransport()
		d := newTestDownloader(t, mock, ImageConfig{Extensions: []string{"png"}})
		assert.Equal(t, SkipExtensionNotAllow, d.Download(context.Background(), uploads+"foto.jpg").SkipReason)
		assert.Equal(t, SkipExtensionNotAllow, d.Download(context.Background(), "https://www.thecovenant.es/imagen").SkipReason)
		assert.Empty(t, mock.Requests())
	})

	t.Run("ExistingOnDisk", func(t *testing.T) {
		mock := NewMockTransport()
		dir := t.TempDir()
		existing := filepath.Join(dir, "www_thecovenant_es", "ya_png.png")
		require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
		require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

		d := newTestDownloader(t, mock, ImageConfig{Dir: dir})
		result := d.Download(context.Background(), uploads+"ya.png")
		assert.Equal(t, SkipExistingOnDisk, result.SkipReason)
		assert.Equal(t, existing, result.LocalPath)
		assert.Empty(t, mock.Requests())
	})

	t.Run("SizeFromHeader", func(t *testing.T) {
		mock := NewMockTransport()
		registerImage(mock, uploads+"grande.jpg", "0123456789ABCDEF")
		d := newTestDownloader(t, mock, ImageConfig{MaxBytes: 8})
		assert.Equal(t, SkipSizeExceedsLimit, d.Download(context.Background(), uploads+"grande.jpg").SkipReason)
	})

	t.Run("SizeFromBody", func(t *testing.T) {
		mock := NewMockTransport()
		mock.RegisterResponse(uploads+"mentira.jpg", &MockResponse{Body: "0123456789ABCDEF", OmitContentLength: true})
		d := newTestDownloader(t, mock, ImageConfig{MaxBytes: 8})
		result := d.Download(context.Background(), uploads+"mentira.jpg")
		assert.Equal(t, SkipSizeExceedsLimit, result.SkipReason)
		_, err := os.Stat(filepath.Join(d.config.Dir, "www_thecovenant_es", "mentira_jpg.jpg"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestImageDownloader_DownloadAll(t *testing.T) {
	mock := NewMockTransport()
	registerImage(mock, uploads+"uno.jpg", "1")
	registerImage(mock, uploads+"dos.jpg", "2")
	d := newTestDownloader(t, mock, ImageConfig{Concurrency: 2})

	images := []Image{
		{Src: uploads + "uno.jpg"},
		{DataSrc: uploads + "dos.jpg"},
		{Src: uploads + "roto.jpg"},
		{Alt: "sin src"},
	}
	d.DownloadAll(context.Background(), images)

	assert.NotEmpty(t, images[0].LocalPath)
	assert.NotEmpty(t, images[1].LocalPath)
	assert.Contains(t, images[2].DownloadError, "404")
	assert.Equal(t, SkipNoSrc, images[3].SkipReason)
	assert.Equal(t, ImageStats{Downloaded: 2, Failed: 1, Skipped: 1}, d.Stats())
}
