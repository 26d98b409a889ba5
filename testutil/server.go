// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// This file includes modifications to code originally developed by Adam Tauber,
// licensed under the Apache License, Version 2.0.
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

// Package testutil provides a synthetic site for crawler tests: a same-site
// link graph served over httptest, with robots.txt and an optional sitemap.
package testutil

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Graph maps a page path to the paths it links to.
type Graph map[string][]string

// LinearGraph returns "/" -> "/p1" -> ... -> "/p<n-1>", n pages in total.
func LinearGraph(n int) Graph {
	g := Graph{}
	prev := "/"
	g[prev] = nil
	for i := 1; i < n; i++ {
		next := fmt.Sprintf("/p%d", i)
		g[prev] = []string{next}
		g[next] = nil
		prev = next
	}
	return g
}

// FanoutGraph returns "/" linking to n child pages, n+1 pages in total.
func FanoutGraph(n int) Graph {
	g := Graph{"/": nil}
	for i := 1; i <= n; i++ {
		child := fmt.Sprintf("/hijo-%d", i)
		g["/"] = append(g["/"], child)
		g[child] = nil
	}
	return g
}

// SiteServer serves a Graph. Every page is HTML with a <title> equal to its
// path and one anchor per outbound link. Paths missing from the graph 404.
type SiteServer struct {
	*httptest.Server

	graph    Graph
	statuses map[string]int
	sitemap  []string
	delay    time.Duration

	mu          sync.Mutex
	hits        map[string]int
	inFlight    int
	maxInFlight int
}

// Option configures a SiteServer.
type Option func(*SiteServer)

// WithStatus makes path answer with status and an error body.
func WithStatus(path string, status int) Option {
	return func(s *SiteServer) { s.statuses[path] = status }
}

// WithSitemap publishes paths in /sitemap.xml and announces it in robots.txt.
func WithSitemap(paths ...string) Option {
	return func(s *SiteServer) { s.sitemap = append(s.sitemap, paths...) }
}

// WithDelay delays every page response.
func WithDelay(d time.Duration) Option {
	return func(s *SiteServer) { s.delay = d }
}

// NewSiteServer starts a SiteServer. Call Close when done.
func NewSiteServer(graph Graph, opts ...Option) *SiteServer {
	s := &SiteServer{
		graph:    graph,
		statuses: make(map[string]int),
		hits:     make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// URL returns the absolute URL of path.
func (s *SiteServer) URL(path string) string {
	return s.Server.URL + path
}

// Hits returns how often path was requested.
func (s *SiteServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// PagesServed returns the distinct page paths requested, sorted.
func (s *SiteServer) PagesServed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p := range s.hits {
		if _, ok := s.graph[p]; ok {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// MaxInFlight returns the peak number of concurrent page requests.
func (s *SiteServer) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

func (s *SiteServer) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch path {
	case "/robots.txt":
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "User-agent: *\nAllow: /\n")
		if len(s.sitemap) > 0 {
			fmt.Fprintf(w, "Sitemap: %s\n", s.URL("/sitemap.xml"))
		}
		return
	case "/sitemap.xml":
		if len(s.sitemap) == 0 {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		for _, p := range s.sitemap {
			fmt.Fprintf(w, "<url><loc>%s</loc></url>", html.EscapeString(s.URL(p)))
		}
		fmt.Fprint(w, "</urlset>")
		return
	}

	s.mu.Lock()
	s.hits[path]++
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	links, ok := s.graph[path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if status, ok := s.statuses[path]; ok {
		w.WriteHeader(status)
		fmt.Fprintf(w, "<html><body><h1>Error %d</h1></body></html>", status)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html lang=\"es\"><head><title>%s</title></head><body><article><h1>%s</h1>", html.EscapeString(path), html.EscapeString(path))
	for _, link := range links {
		fmt.Fprintf(&b, `<p><a href="%s">%s</a></p>`, html.EscapeString(link), html.EscapeString(link))
	}
	b.WriteString("</article></body></html>")
	fmt.Fprint(w, b.String())
}
