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
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/kennygrant/sanitize"
	"go.uber.org/zap"
)

// Image skip reasons.
const (
	SkipNoSrc             = "no-src"
	SkipDuplicateSession  = "duplicate-session"
	SkipExistingOnDisk    = "existing-on-disk"
	SkipExtensionNotAllow = "extension-not-whitelisted"
	SkipSizeExceedsLimit  = "size-exceeds-limit"
)

// DefaultImageExtensions is the extension allow-list used when none is set.
var DefaultImageExtensions = []string{"jpg", "jpeg", "png", "gif", "webp", "avif", "svg"}

// ImageConfig configures the image mirror.
type ImageConfig struct {
	Dir         string
	Concurrency int
	MaxBytes    int64
	Extensions  []string
}

// ImageResult is the outcome of one download attempt. At most one of
// SkipReason and Err is set.
type ImageResult struct {
	LocalPath  string
	SkipReason string
	Err        error
}

// ImageDownloader mirrors page images to disk. A URL is handled at most once
// per downloader; downloads run on their own WorkerPool.
type ImageDownloader struct {
	fetcher  *Fetcher
	config   ImageConfig
	allowed  glob.Glob
	pool     *WorkerPool
	logger   *zap.Logger
	observer Observer

	mu    sync.Mutex
	seen  map[string]string
	stats ImageStats
}

// NewImageDownloader creates a downloader whose pool lives as long as ctx
// or until Close.
func NewImageDownloader(ctx context.Context, fetcher *Fetcher, config ImageConfig, logger *zap.Logger) (*ImageDownloader, error) {
	if config.Dir == "" {
		config.Dir = filepath.Join("public", "images")
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.MaxBytes <= 0 {
		config.MaxBytes = 10 * 1024 * 1024
	}
	if len(config.Extensions) == 0 {
		config.Extensions = DefaultImageExtensions
	}
	allowed, err := compileExtensionGlob(config.Extensions)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageDownloader{
		fetcher:  fetcher,
		config:   config,
		allowed:  allowed,
		pool:     NewWorkerPool(ctx, config.Concurrency, config.Concurrency*4),
		logger:   logger,
		observer: nopObserver{},
		seen:     make(map[string]string),
	}, nil
}

func compileExtensionGlob(extensions []string) (glob.Glob, error) {
	var cleaned []string
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			cleaned = append(cleaned, ext)
		}
	}
	if len(cleaned) == 0 {
		cleaned = DefaultImageExtensions
	}
	pattern := "*.{" + strings.Join(cleaned, ",") + "}"
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid image extension list %q: %w", pattern, err)
	}
	return g, nil
}

// SetObserver installs an Observer for image outcomes.
func (d *ImageDownloader) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	d.observer = o
}

// Close waits for queued downloads and stops the pool.
func (d *ImageDownloader) Close() {
	d.pool.Close()
}

// Stats returns the running totals.
func (d *ImageDownloader) Stats() ImageStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

var imageFilePattern = regexp.MustCompile(`/([^/]+)\.(\w+)$`)

// ImageRelativePath maps an absolute image URL to its mirror location,
// "<host with dots as underscores>/<name>_<ext>.<ext>". The site rewrites
// image URLs to "/images/" plus this path.
func ImageRelativePath(src string) (string, bool) {
	u, err := ParseURL(src, "")
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	m := imageFilePattern.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	name := sanitize.BaseName(m[1])
	if name == "" {
		return "", false
	}
	host := strings.ReplaceAll(u.Hostname(), ".", "_")
	return path.Join(host, name+"_"+m[2]+"."+m[2]), true
}

// PublicImagePath returns the site path of a mirrored image, or src itself
// when it has no mirror location.
func PublicImagePath(src string) string {
	rel, ok := ImageRelativePath(src)
	if !ok {
		return src
	}
	return "/images/" + rel
}

// Download mirrors src.
func (d *ImageDownloader) Download(ctx context.Context, src string) ImageResult {
	result := d.download(ctx, src)
	if result.SkipReason != SkipNoSrc && result.SkipReason != SkipDuplicateSession {
		d.settle(src, result)
	}
	d.record(src, result)
	return result
}

func (d *ImageDownloader) download(ctx context.Context, src string) ImageResult {
	if strings.TrimSpace(src) == "" {
		return ImageResult{SkipReason: SkipNoSrc}
	}

	d.mu.Lock()
	if local, ok := d.seen[src]; ok {
		d.mu.Unlock()
		return ImageResult{LocalPath: local, SkipReason: SkipDuplicateSession}
	}
	d.seen[src] = ""
	d.mu.Unlock()

	u, err := ParseURL(src, "")
	if err != nil {
		return ImageResult{Err: err}
	}
	if !d.allowed.Match(strings.ToLower(u.Path)) {
		return ImageResult{SkipReason: SkipExtensionNotAllow}
	}
	rel, ok := ImageRelativePath(src)
	if !ok {
		return ImageResult{SkipReason: SkipExtensionNotAllow}
	}
	dest := filepath.Join(d.config.Dir, filepath.FromSlash(rel))

	if _, err := os.Stat(dest); err == nil {
		return ImageResult{LocalPath: dest, SkipReason: SkipExistingOnDisk}
	}

	res, err := d.fetcher.Open(ctx, src)
	if err != nil {
		return ImageResult{Err: err}
	}
	defer res.Body.Close()

	if res.ContentLength > d.config.MaxBytes {
		return ImageResult{SkipReason: SkipSizeExceedsLimit}
	}
	data, err := io.ReadAll(io.LimitReader(res.Body, d.config.MaxBytes+1))
	if err != nil {
		return ImageResult{Err: fmt.Errorf("failed to read %s: %w", src, err)}
	}
	if int64(len(data)) > d.config.MaxBytes {
		return ImageResult{SkipReason: SkipSizeExceedsLimit}
	}

	if err := writeFileAtomic(dest, data); err != nil {
		return ImageResult{Err: err}
	}
	return ImageResult{LocalPath: dest}
}

// settle replaces the in-flight marker of src. Failed downloads are
// forgotten so a later reference retries them.
func (d *ImageDownloader) settle(src string, result ImageResult) {
	d.mu.Lock()
	if result.Err != nil {
		delete(d.seen, src)
	} else {
		d.seen[src] = result.LocalPath
	}
	d.mu.Unlock()
}

func (d *ImageDownloader) record(src string, result ImageResult) {
	outcome := "downloaded"
	d.mu.Lock()
	switch {
	case result.Err != nil:
		d.stats.Failed++
		outcome = "failed"
	case result.SkipReason != "":
		d.stats.Skipped++
		outcome = "skipped"
	default:
		d.stats.Downloaded++
	}
	d.mu.Unlock()

	d.observer.ImageHandled(outcome)
	switch outcome {
	case "failed":
		d.logger.Warn("image download failed", zap.String("src", src), zap.Error(result.Err))
	case "skipped":
		d.logger.Debug("image skipped", zap.String("src", src), zap.String("reason", result.SkipReason))
	}
}

func writeFileAtomic(dest string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create image directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to move %s into place: %w", dest, err)
	}
	return nil
}

// DownloadAll mirrors every image of a page on the downloader's pool and
// annotates each entry with its local path, skip reason or error. It returns
// once all of them are handled.
func (d *ImageDownloader) DownloadAll(ctx context.Context, images []Image) {
	var wg sync.WaitGroup
	for i := range images {
		img := &images[i]
		src := img.Src
		if src == "" {
			src = img.DataSrc
		}
		wg.Add(1)
		err := d.pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			annotate(img, d.Download(ctx, src))
		})
		if err != nil {
			wg.Done()
			img.DownloadError = err.Error()
		}
	}
	wg.Wait()
}

func annotate(img *Image, result ImageResult) {
	img.LocalPath = result.LocalPath
	img.SkipReason = result.SkipReason
	if result.Err != nil {
		img.DownloadError = result.Err.Error()
	}
}
