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

// Covenant CLI
//
// Command-line interface for the thecovenant.es content pipeline: crawl the
// site, format the export, sync it to the database and check the setup.
//
// Usage:
//
//	covenant <command> [flags]
//
// Commands:
//
//	crawl     Crawl the site into the raw export
//	format    Build the formatted and generic exports
//	sync      Sync the formatted export to the database
//	full      Crawl, format, optionally sync, then summarize
//	validate  Check export files and the database
//	version   Show version information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/logging"
	"github.com/agentberlin/covenant/internal/version"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "crawl":
		err = runCrawl(args)
	case "format":
		err = runFormat(args)
	case "sync":
		err = runSync(args)
	case "full":
		err = runFull(args)
	case "validate":
		err = runValidate(args)
	case "version", "-v", "--version":
		fmt.Printf("Covenant CLI %s\n", version.CurrentVersion)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Covenant CLI - content pipeline for thecovenant.es

Usage:
  covenant <command> [flags]

Commands:
  crawl     Crawl the site into data/thecovenant-export.json
  format    Build the formatted export and the generic collection
  sync      Sync the formatted export to the database
  full      Crawl, format, sync when SCRAPE_SYNC_TO_DB=true, then summarize
  validate  Check export files and the database
  version   Show version information
  help      Show this help message

Examples:
  # Crawl with a smaller budget
  SCRAPE_MAX_PAGES=50 covenant crawl

  # Format with NDJSON and only reviews
  covenant format --ndjson --types review

  # Sync a specific export
  covenant sync --export=public/thecovenant-export-formatted.json

Settings are read from the environment and from .env in the working
directory. Use "covenant <command> --help" for more information.`)
}

// newLogger builds the logger from LOG_LEVEL and LOG_FORMAT. debug forces
// the debug level.
func newLogger(debug bool) *zap.Logger {
	cfg := config.LoadLogging()
	if debug {
		cfg.Level = "debug"
	}
	return logging.Must(cfg.Level, cfg.Format)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
