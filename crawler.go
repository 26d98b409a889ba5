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
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/agentberlin/covenant/storage"
	"go.uber.org/zap"
)

// PageExtractor turns a fetched HTML document into a CrawlRecord carrying
// the derived fields. hosts decides which links are internal. The crawler
// fills in the transport fields (url, status, fetchedAt, contentType,
// contentLength, rawHtml) itself.
type PageExtractor interface {
	ExtractPage(html, pageURL string, hosts AllowedHosts) (*CrawlRecord, error)
}

// CrawlerConfig is the crawl budget and discovery setup.
type CrawlerConfig struct {
	// MaxPages caps processed + enqueued URLs. Default 2000.
	MaxPages int
	// Concurrency caps in-flight page fetches. Default 5.
	Concurrency int
	// Discovery configures seeds from sitemaps, feeds and extra URLs.
	Discovery DiscoveryConfig
	// DownloadImages hands each page's images to the ImageDownloader.
	DownloadImages bool
	// HashContent stores a normalized xxhash of each HTML page.
	HashContent bool
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithLogger sets the crawler's logger.
func WithLogger(logger *zap.Logger) CrawlerOption {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithImageDownloader sets the downloader used when DownloadImages is on.
func WithImageDownloader(d *ImageDownloader) CrawlerOption {
	return func(c *Crawler) { c.images = d }
}

// WithFrontier replaces the in-memory frontier.
func WithFrontier(f storage.Frontier) CrawlerOption {
	return func(c *Crawler) { c.frontier = f }
}

// Crawler fetches every same-site page reachable from the start URL, its
// sitemaps and its seeds, up to the page budget.
//
// Workers pull from a FIFO frontier. The crawl is complete when the queue
// is empty, no fetch is in flight and seeding has finished.
type Crawler struct {
	config    CrawlerConfig
	fetcher   *Fetcher
	extractor PageExtractor
	images    *ImageDownloader
	logger    *zap.Logger

	hosts    AllowedHosts
	frontier storage.Frontier

	mu      sync.Mutex
	cond    *sync.Cond
	results []CrawlRecord
	active  int
	seeding bool
}

// NewCrawler creates a Crawler. Zero budget values take their defaults.
func NewCrawler(config CrawlerConfig, fetcher *Fetcher, extractor PageExtractor, opts ...CrawlerOption) *Crawler {
	if config.MaxPages <= 0 {
		config.MaxPages = 2000
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 5
	}
	c := &Crawler{
		config:    config,
		fetcher:   fetcher,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	c.cond = sync.NewCond(&c.mu)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run crawls startURL and returns the raw export. If ctx is cancelled the
// crawl stops scheduling fetches and Run returns what was collected along
// with the context error.
func (c *Crawler) Run(ctx context.Context, startURL string) (*RawExport, error) {
	hosts, err := NewAllowedHosts(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}
	c.hosts = hosts
	if c.frontier == nil {
		c.frontier = storage.NewInMemoryFrontier(c.config.MaxPages)
	}
	c.mu.Lock()
	c.results = nil
	c.active = 0
	c.seeding = true
	c.mu.Unlock()

	stop := context.AfterFunc(ctx, c.wake)
	defer stop()

	var wg sync.WaitGroup
	for i := 0; i < c.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.worker(ctx)
		}()
	}

	c.logger.Info("discovering seed urls", zap.String("start", startURL))
	c.seed(ctx, startURL)

	c.mu.Lock()
	c.seeding = false
	c.mu.Unlock()
	c.cond.Broadcast()
	wg.Wait()

	export := c.export(startURL)
	if err := ctx.Err(); err != nil {
		return export, err
	}
	c.logger.Info("crawl complete", zap.Int("pages", export.TotalPages))
	return export, nil
}

func (c *Crawler) seed(ctx context.Context, startURL string) {
	discoverer := NewDiscoverer(c.fetcher, c.hosts, c.config.Discovery, c.logger)
	seeds := discoverer.Seeds(ctx, startURL)

	start, _ := c.hosts.NormalizeURL(startURL, startURL)
	if len(seeds.Pages) == 0 {
		c.enqueue(start)
	}
	for _, page := range seeds.Pages {
		c.enqueue(page)
	}

	if c.config.Discovery.IncludeSitemaps {
		visited := make(map[string]bool)
		for _, sitemap := range seeds.Sitemaps {
			absolute, ok := ToAbsoluteURL(sitemap, startURL)
			if !ok || !c.hosts.Allows(HostOf(absolute)) {
				continue
			}
			discoverer.ExpandSitemap(ctx, absolute, startURL, visited, c.enqueue)
		}
	}

	if c.frontier.Len() == 0 {
		c.enqueue(start)
	}
}

func (c *Crawler) enqueue(url string) {
	if url == "" {
		return
	}
	c.mu.Lock()
	pushed := c.frontier.Push(url)
	c.mu.Unlock()
	if pushed {
		c.cond.Signal()
	}
}

func (c *Crawler) wake() {
	c.mu.Lock()
	c.mu.Unlock()
	c.cond.Broadcast()
}

func (c *Crawler) worker(ctx context.Context) {
	for {
		c.mu.Lock()
		for c.frontier.Len() == 0 && (c.active > 0 || c.seeding) && ctx.Err() == nil {
			c.cond.Wait()
		}
		if ctx.Err() != nil || c.frontier.Len() == 0 {
			c.mu.Unlock()
			c.cond.Broadcast()
			return
		}
		url, _ := c.frontier.Pop()
		c.active++
		c.mu.Unlock()

		record, discovered := c.process(ctx, url)

		c.mu.Lock()
		c.results = append(c.results, *record)
		c.frontier.Complete(url)
		for _, next := range discovered {
			c.frontier.Push(next)
		}
		c.active--
		c.mu.Unlock()
		c.cond.Broadcast()
	}
}

// process runs fetch, extract, link discovery and the image handoff for
// one URL. It never fails; fetch errors become failed records.
func (c *Crawler) process(ctx context.Context, url string) (*CrawlRecord, []string) {
	c.logger.Info("crawling", zap.String("url", url))
	resp, err := c.fetcher.Fetch(ctx, url)
	fetchedAt := Timestamp(time.Now())
	if err != nil {
		return c.failedRecord(url, fetchedAt, err), nil
	}

	contentType := resp.ContentType()
	base := &CrawlRecord{
		URL:           url,
		Status:        resp.Status,
		FetchedAt:     fetchedAt,
		ContentType:   contentType,
		ContentLength: resp.Headers.Get("Content-Length"),
	}
	if !isHTML(contentType) {
		return base, nil
	}

	html := resp.Text()
	record, err := c.extractor.ExtractPage(html, url, c.hosts)
	if err != nil || record == nil {
		c.logger.Warn("extraction failed", zap.String("url", url), zap.Error(err))
		record = &CrawlRecord{}
	}
	record.URL = base.URL
	record.Status = base.Status
	record.FetchedAt = base.FetchedAt
	record.ContentType = base.ContentType
	record.ContentLength = base.ContentLength
	record.RawHTML = html

	if c.config.HashContent {
		if hash, err := ComputeContentHashWithConfig(resp.Body, nil); err == nil {
			record.ContentHash = hash
		}
	}

	seen := make(map[string]bool)
	var discovered []string
	for _, link := range record.Links {
		if link.Internal && link.NormalizedHref != "" && !seen[link.NormalizedHref] {
			seen[link.NormalizedHref] = true
			discovered = append(discovered, link.NormalizedHref)
		}
	}

	if c.config.DownloadImages && c.images != nil && len(record.Images) > 0 {
		c.images.DownloadAll(ctx, record.Images)
	}
	return record, discovered
}

func (c *Crawler) failedRecord(url, fetchedAt string, err error) *CrawlRecord {
	record := &CrawlRecord{URL: url, FetchedAt: fetchedAt}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		record.Status = fetchErr.Status
		record.Error = fmt.Sprintf("Failed to fetch resource (%d)", fetchErr.Status)
		record.ContentType = fetchErr.ContentType()
		if len(fetchErr.Body) > 0 && isTextual(record.ContentType) {
			record.RawHTML = DecodeBody(fetchErr.Body, record.ContentType)
		}
	} else {
		record.Error = err.Error()
	}
	c.logger.Warn("fetch failed", zap.String("url", url), zap.Int("status", record.Status), zap.String("error", record.Error))
	return record
}

func (c *Crawler) export(startURL string) *RawExport {
	c.mu.Lock()
	pages := append([]CrawlRecord(nil), c.results...)
	c.mu.Unlock()
	if pages == nil {
		pages = []CrawlRecord{}
	}

	settings := CrawlSettings{
		MaxPages:        c.config.MaxPages,
		Concurrency:     c.config.Concurrency,
		IncludeSitemaps: c.config.Discovery.IncludeSitemaps,
		IncludeFeeds:    c.config.Discovery.IncludeFeeds,
		DownloadImages:  c.config.DownloadImages,
	}
	if c.config.DownloadImages && c.images != nil {
		stats := c.images.Stats()
		settings.ImageStats = &stats
	}
	return &RawExport{
		CrawledAt:  Timestamp(time.Now()),
		StartURL:   startURL,
		TotalPages: len(pages),
		Settings:   settings,
		Pages:      pages,
	}
}

// Stats returns the frontier's processed and enqueued counts.
func (c *Crawler) Stats() (processed, enqueued int) {
	if c.frontier == nil {
		return 0, 0
	}
	return c.frontier.Stats()
}

func isHTML(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.Contains(ct, "html")
}

func isTextual(contentType string) bool {
	ct := strings.ToLower(contentType)
	return ct == "" || strings.HasPrefix(ct, "text/") || strings.Contains(ct, "html") || strings.Contains(ct, "xml") || strings.Contains(ct, "json")
}
