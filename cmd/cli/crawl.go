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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/extract"
	"github.com/agentberlin/covenant/internal/metrics"
)

// crawlFlags holds the crawl overrides. Defaults come from the environment.
type crawlFlags struct {
	maxPages       int
	concurrency    int
	output         string
	downloadImages bool
	includeFeeds   bool
	metricsAddr    string
	quiet          bool
}

func (f *crawlFlags) register(fs *flag.FlagSet, cfg config.Crawl) {
	fs.IntVar(&f.maxPages, "max-pages", cfg.Crawler.MaxPages, "Maximum pages to crawl (SCRAPE_MAX_PAGES)")
	fs.IntVar(&f.concurrency, "concurrency", cfg.Crawler.Concurrency, "Concurrent fetches (SCRAPE_CONCURRENCY)")
	fs.IntVar(&f.concurrency, "c", cfg.Crawler.Concurrency, "Concurrent fetches (shorthand)")
	fs.StringVar(&f.output, "output", cfg.Output, "Raw export path (SCRAPE_OUTPUT)")
	fs.StringVar(&f.output, "o", cfg.Output, "Raw export path (shorthand)")
	fs.BoolVar(&f.downloadImages, "images", cfg.Crawler.DownloadImages, "Mirror page images (SCRAPE_DOWNLOAD_IMAGES)")
	fs.BoolVar(&f.includeFeeds, "feeds", cfg.Crawler.Discovery.IncludeFeeds, "Seed from the site feed (SCRAPE_INCLUDE_FEEDS)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	fs.BoolVar(&f.quiet, "quiet", false, "Only log warnings and errors")
	fs.BoolVar(&f.quiet, "q", false, "Only log warnings and errors (shorthand)")
}

func (f *crawlFlags) apply(cfg *config.Crawl) {
	if f.maxPages > 0 {
		cfg.Crawler.MaxPages = f.maxPages
	}
	if f.concurrency > 0 {
		cfg.Crawler.Concurrency = f.concurrency
	}
	if f.output != "" {
		cfg.Output = f.output
	}
	cfg.Crawler.DownloadImages = f.downloadImages
	cfg.Crawler.Discovery.IncludeFeeds = f.includeFeeds
}

func runCrawl(args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	cfg := config.LoadCrawl()

	var flags crawlFlags
	flags.register(fs, cfg)

	fs.Usage = func() {
		fmt.Println(`Usage: covenant crawl [url] [flags]

Crawl the site starting at url (default SCRAPE_START_URL) and write the raw
export.

Flags:`)
		fs.PrintDefaults()
		fmt.Println(`
Examples:
  # Crawl the default site
  covenant crawl

  # Crawl 100 pages and mirror images
  covenant crawl --max-pages 100 --images`)
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		cfg.StartURL = normalizeStartURL(fs.Arg(0))
	}
	flags.apply(&cfg)

	logger := newLogger(false)
	if flags.quiet {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	m := metrics.New()
	stopMetrics := serveMetrics(flags.metricsAddr, m, logger)
	defer stopMetrics()

	export, err := crawlSite(ctx, cfg, m, logger)
	if err != nil {
		return err
	}
	if !flags.quiet {
		fmt.Printf("\nCrawl completed: %d pages written to %s\n", export.TotalPages, cfg.Output)
		if stats := export.Settings.ImageStats; stats != nil {
			fmt.Printf("  Images downloaded: %d, failed: %d, skipped: %d\n", stats.Downloaded, stats.Failed, stats.Skipped)
		}
	}
	return nil
}

// normalizeStartURL adds https:// when the scheme is missing.
func normalizeStartURL(raw string) string {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "https://" + raw
	}
	return raw
}

// crawlSite runs one crawl and writes the raw export. An interrupted crawl
// still writes what it collected.
func crawlSite(ctx context.Context, cfg config.Crawl, m *metrics.Metrics, logger *zap.Logger) (*covenant.RawExport, error) {
	hosts, err := covenant.NewAllowedHosts(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url: %w", err)
	}

	fetcher := covenant.NewFetcher(cfg.Fetch, hosts, logger)
	fetcher.SetObserver(m)

	opts := []covenant.CrawlerOption{covenant.WithLogger(logger)}
	if cfg.Crawler.DownloadImages {
		images, err := covenant.NewImageDownloader(ctx, fetcher, cfg.Images, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to set up image downloads: %w", err)
		}
		defer images.Close()
		images.SetObserver(m)
		opts = append(opts, covenant.WithImageDownloader(images))
	}

	logger.Info("starting crawl",
		zap.String("start", cfg.StartURL),
		zap.Int("maxPages", cfg.Crawler.MaxPages),
		zap.Int("concurrency", cfg.Crawler.Concurrency),
		zap.Bool("sitemaps", cfg.Crawler.Discovery.IncludeSitemaps),
		zap.Bool("images", cfg.Crawler.DownloadImages))

	crawler := covenant.NewCrawler(cfg.Crawler, fetcher, extract.New(), opts...)
	export, runErr := crawler.Run(ctx, cfg.StartURL)
	if export == nil {
		return nil, fmt.Errorf("crawl failed: %w", runErr)
	}
	if err := covenant.WriteRawExport(cfg.Output, export); err != nil {
		return nil, fmt.Errorf("failed to write export: %w", err)
	}
	logger.Info("export written", zap.String("path", cfg.Output), zap.Int("pages", export.TotalPages))
	if runErr != nil {
		return nil, fmt.Errorf("crawl interrupted after %d pages: %w", export.TotalPages, runErr)
	}
	return export, nil
}

// serveMetrics exposes m on addr until the returned func is called. An
// empty addr does nothing.
func serveMetrics(addr string, m *metrics.Metrics, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Warn("metrics listener failed", zap.String("addr", addr), zap.Error(err))
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
