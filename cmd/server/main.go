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

// Covenant content server
//
// Serves the formatted export and the normalized site content as JSON, with
// Prometheus metrics on /metrics.
//
// Usage:
//
//	covenant-server [flags]
//
// Flags:
//
//	-host string    Host to bind the server to (default SERVER_HOST or "127.0.0.1")
//	-port string    Port to run the server on (default SERVER_PORT or "8080")
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/content"
	"github.com/agentberlin/covenant/internal/logging"
	"github.com/agentberlin/covenant/internal/metrics"
	"github.com/agentberlin/covenant/internal/server"
	"github.com/agentberlin/covenant/internal/store"
	"github.com/agentberlin/covenant/internal/version"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadContent()

	port := flag.String("port", cfg.Port, "Port to run the HTTP server on")
	host := flag.String("host", cfg.Host, "Host to bind the HTTP server to")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Covenant Server %s\n", version.CurrentVersion)
		os.Exit(0)
	}

	logCfg := config.LoadLogging()
	logger := logging.Must(logCfg.Level, logCfg.Format)
	defer logger.Sync()

	// The database is optional; without it the loader falls through to the
	// export files.
	var siteStore content.SiteStore
	if cfg.WantsDB() {
		st, err := store.Open(cfg.DatabaseURLOrDefault(), logger)
		if err != nil {
			logger.Warn("database unavailable, using export files", zap.Error(err))
		} else {
			defer st.Close()
			siteStore = st
		}
	}

	client := &http.Client{Timeout: 15 * time.Second}
	loader := content.NewLoader(logger, content.Sources(cfg.Loader, siteStore, client)...)

	exportPath := cfg.Loader.ExportPath
	if exportPath == "" {
		exportPath = filepath.Join("data", content.ExportFilename)
	}

	var cache server.ExportCache = server.NewMemoryCache()
	if cfg.CacheRedisURL != "" {
		redisCache, err := server.NewRedisCache(cfg.CacheRedisURL, cfg.CacheTTL)
		if err != nil {
			logger.Fatal("invalid CONTENT_CACHE_REDIS_URL", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.Warn("redis unavailable, caching in memory", zap.Error(err))
			redisCache.Close()
		} else {
			defer redisCache.Close()
			cache = redisCache
		}
		cancel()
	}

	srv := server.NewServer(server.Options{
		ExportPath: exportPath,
		Cache:      cache,
		Loader:     loader,
		Metrics:    metrics.New(),
		Logger:     logger,
	})

	addr := net.JoinHostPort(*host, *port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("version", version.CurrentVersion),
			zap.String("addr", addr),
			zap.String("export", exportPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
