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
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/mmcdole/gofeed"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

// DiscoveryConfig controls where seed URLs come from.
type DiscoveryConfig struct {
	// IncludeSitemaps enables robots.txt Sitemap directives and the
	// conventional /sitemap.xml and /sitemap_index.xml locations.
	IncludeSitemaps bool
	// IncludeFeeds seeds the crawl with the item links of the site's /feed/.
	IncludeFeeds bool
	// ExtraSeeds are additional page URLs to enqueue.
	ExtraSeeds []string
}

// Seeds is the output of discovery: page URLs to enqueue directly and
// sitemap URLs to expand.
type Seeds struct {
	Pages    []string
	Sitemaps []string
}

// Discoverer resolves seed URLs for a crawl. Every failure is logged and
// treated as contributing no URLs.
type Discoverer struct {
	fetcher *Fetcher
	hosts   AllowedHosts
	config  DiscoveryConfig
	logger  *zap.Logger
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(fetcher *Fetcher, hosts AllowedHosts, config DiscoveryConfig, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{fetcher: fetcher, hosts: hosts, config: config, logger: logger}
}

// Seeds returns the normalized start URL plus extra seeds and, when
// sitemaps are enabled, the sitemap URLs announced in robots.txt followed
// by the two conventional locations.
func (d *Discoverer) Seeds(ctx context.Context, startURL string) Seeds {
	var seeds Seeds
	pages := newOrderedSet()
	if normalized, ok := d.hosts.NormalizeURL(startURL, startURL); ok {
		pages.add(normalized)
	}
	for _, extra := range d.config.ExtraSeeds {
		if normalized, ok := d.hosts.NormalizeURL(extra, startURL); ok {
			pages.add(normalized)
		}
	}
	if d.config.IncludeFeeds {
		for _, link := range d.FeedSeeds(ctx, startURL) {
			pages.add(link)
		}
	}
	seeds.Pages = pages.items

	if !d.config.IncludeSitemaps {
		return seeds
	}

	origin, err := originOf(startURL)
	if err != nil {
		d.logger.Warn("invalid start url", zap.String("url", startURL), zap.Error(err))
		return seeds
	}
	sitemaps := newOrderedSet()
	robotsURL := origin + "/robots.txt"
	for _, sitemap := range d.robotsSitemaps(ctx, robotsURL) {
		sitemaps.add(sitemap)
	}
	sitemaps.add(origin + "/sitemap.xml")
	sitemaps.add(origin + "/sitemap_index.xml")
	seeds.Sitemaps = sitemaps.items
	return seeds
}

func (d *Discoverer) robotsSitemaps(ctx context.Context, robotsURL string) []string {
	body, _, err := d.fetcher.Get(ctx, robotsURL)
	if err != nil {
		d.logger.Warn("robots.txt fetch failed", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	robots, err := robotstxt.FromBytes(body)
	if err != nil {
		d.logger.Warn("robots.txt parse failed", zap.String("url", robotsURL), zap.Error(err))
		return nil
	}
	var out []string
	for _, raw := range robots.Sitemaps {
		if absolute, ok := ToAbsoluteURL(raw, robotsURL); ok {
			out = append(out, absolute)
		}
	}
	return out
}

// sitemapParserOptions accept the bare '&' that WordPress leaves in <loc>
// query strings.
var sitemapParserOptions = xmlquery.ParserOptions{
	Decoder: &xmlquery.DecoderOptions{
		Strict:        false,
		Entity:        xml.HTMLEntity,
		CharsetReader: charset.NewReaderLabel,
	},
}

// ParseSitemap fetches a sitemap or sitemap index and returns every <loc>
// that normalizes to an allowed URL, deduplicated, in document order.
func (d *Discoverer) ParseSitemap(ctx context.Context, sitemapURL string) ([]string, error) {
	body, _, err := d.fetcher.Get(ctx, sitemapURL)
	if err != nil {
		return nil, err
	}
	doc, err := xmlquery.ParseWithOptions(bytes.NewReader(body), sitemapParserOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sitemap: %w", err)
	}
	urls := newOrderedSet()
	for _, node := range xmlquery.Find(doc, "//loc") {
		if normalized, ok := d.hosts.NormalizeURL(node.InnerText(), sitemapURL); ok {
			urls.add(normalized)
		}
	}
	return urls.items, nil
}

// ExpandSitemap walks sitemapURL recursively. Entries ending in ".xml" are
// treated as nested sitemaps; everything else is passed to emit. visited
// holds canonical sitemap URLs and makes the walk cycle-safe.
func (d *Discoverer) ExpandSitemap(ctx context.Context, sitemapURL, base string, visited map[string]bool, emit func(string)) {
	if ctx.Err() != nil {
		return
	}
	absolute, ok := ToAbsoluteURL(sitemapURL, base)
	if !ok {
		return
	}
	canonical, ok := d.hosts.NormalizeURL(absolute, base)
	if !ok {
		canonical = absolute
	}
	if !d.hosts.Allows(HostOf(canonical)) {
		return
	}
	if visited[canonical] {
		return
	}
	visited[canonical] = true

	urls, err := d.ParseSitemap(ctx, canonical)
	if err != nil {
		d.logger.Warn("sitemap parse failed", zap.String("url", canonical), zap.Error(err))
		return
	}
	d.logger.Debug("sitemap parsed", zap.String("url", canonical), zap.Int("entries", len(urls)))
	for _, u := range urls {
		if strings.HasSuffix(u, ".xml") {
			d.ExpandSitemap(ctx, u, base, visited, emit)
			continue
		}
		emit(u)
	}
}

// FeedSeeds parses the site's /feed/ and returns the normalized item links.
func (d *Discoverer) FeedSeeds(ctx context.Context, startURL string) []string {
	origin, err := originOf(startURL)
	if err != nil {
		return nil
	}
	feedURL := origin + "/feed/"
	body, _, err := d.fetcher.Get(ctx, feedURL)
	if err != nil {
		d.logger.Warn("feed fetch failed", zap.String("url", feedURL), zap.Error(err))
		return nil
	}
	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		d.logger.Warn("feed parse failed", zap.String("url", feedURL), zap.Error(err))
		return nil
	}
	links := newOrderedSet()
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		if normalized, ok := d.hosts.NormalizeURL(item.Link, feedURL); ok {
			links.add(normalized)
		}
	}
	return links.items
}

func originOf(rawURL string) (string, error) {
	u, err := ParseURL(rawURL, "")
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host, nil
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}
