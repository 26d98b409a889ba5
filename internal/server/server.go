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

// Package server serves the formatted export and the site content over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/agentberlin/covenant/internal/content"
	"github.com/agentberlin/covenant/internal/metrics"
	"github.com/agentberlin/covenant/internal/version"
)

// Options configures a Server.
type Options struct {
	// ExportPath is the formatted export served by /api/content-export.
	ExportPath string
	// Cache defaults to a MemoryCache.
	Cache   ExportCache
	Loader  *content.Loader
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	exportPath string
	cache      ExportCache
	loader     *content.Loader
	metrics    *metrics.Metrics
	logger     *zap.Logger
	router     chi.Router
}

// NewServer creates a new HTTP server
func NewServer(opts Options) *Server {
	s := &Server{
		exportPath: opts.ExportPath,
		cache:      opts.Cache,
		loader:     opts.Loader,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if s.cache == nil {
		s.cache = NewMemoryCache()
	}
	if s.loader == nil {
		s.loader = content.NewLoader(s.logger)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.exportPath == "" {
		s.exportPath = filepath.Join("data", content.ExportFilename)
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors)
	r.Use(s.observe)

	r.Get("/metrics", s.metrics.Handler().ServeHTTP)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/version", s.handleVersion)
		r.Get("/content-export", s.handleContentExport)
		r.Get("/content", s.handleContent)
		r.Get("/navigation", s.handleNavigation)
		r.Get("/featured", s.handleFeatured)
		r.Get("/highlight", s.handleHighlight)
		r.Get("/articles", s.handleArticles)
		r.Get("/articles/*", s.handleArticle)
	})
	s.router = r
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe logs and counts each request under its route pattern.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequest(r.Method, route, status, elapsed)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("requestId", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"contentSource": s.loader.Source(),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.CurrentVersion})
}

// readExport returns the export file, or nil when it is missing or not
// valid JSON.
func (s *Server) readExport() []byte {
	data, err := os.ReadFile(s.exportPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read export", zap.String("path", s.exportPath), zap.Error(err))
		}
		return nil
	}
	if !json.Valid(data) {
		s.logger.Warn("export is not valid JSON", zap.String("path", s.exportPath))
		return nil
	}
	return data
}

// handleContentExport serves the raw formatted export. ?refresh drops the
// cached copy first. A missing export is not cached.
func (s *Server) handleContentExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.URL.Query().Has("refresh") {
		if err := s.cache.Clear(ctx); err != nil {
			s.logger.Warn("failed to clear export cache", zap.Error(err))
		}
	}

	data, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.Warn("export cache read failed", zap.Error(err))
		ok = false
	}
	if !ok {
		data = s.readExport()
		if data != nil {
			if err := s.cache.Set(ctx, data); err != nil {
				s.logger.Warn("export cache write failed", zap.Error(err))
			}
		}
	}
	if data == nil {
		writeError(w, http.StatusNotFound, "Contenido no disponible")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Write(data)
}

// handleContent returns the whole site content. ?refresh reloads it.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Has("refresh") {
		s.loader.Reset()
	}
	writeJSON(w, http.StatusOK, s.loader.SiteContent(r.Context()))
}

func (s *Server) handleNavigation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"navigation": s.loader.Navigation(r.Context()),
		"hero":       s.loader.Hero(r.Context()),
	})
}

func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.loader.FeaturedArticles(r.Context()))
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	article, ok := s.loader.HighlightArticle(r.Context())
	if !ok {
		writeError(w, http.StatusNotFound, "Artículo no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	articles := s.loader.AllArticles(r.Context())
	if articles == nil {
		articles = []content.Article{}
	}
	writeJSON(w, http.StatusOK, articles)
}

// handleArticle looks up /api/articles/<slug>, where slug may hold slashes.
func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	article, ok := s.loader.ArticleBySlug(r.Context(), chi.URLParam(r, "*"))
	if !ok {
		writeError(w, http.StatusNotFound, "Artículo no encontrado")
		return
	}
	writeJSON(w, http.StatusOK, article)
}
