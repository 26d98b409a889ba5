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
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/agentberlin/covenant"
	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/format"
	"github.com/agentberlin/covenant/internal/metrics"
	"github.com/agentberlin/covenant/internal/report"
)

func runFull(args []string) error {
	flagSet := flag.NewFlagSet("full", flag.ExitOnError)
	crawlCfg := config.LoadCrawl()
	full := config.LoadFull()

	var flags crawlFlags
	flags.register(flagSet, crawlCfg)
	flagSet.BoolVar(&full.SyncToDB, "sync", full.SyncToDB, "Sync to the database after formatting (SCRAPE_SYNC_TO_DB)")

	flagSet.Usage = func() {
		fmt.Println(`Usage: covenant full [flags]

Crawl the site, format the export, sync it when SCRAPE_SYNC_TO_DB=true and
print a summary of every file produced. SCRAPEFULL_RAW_LOGS=true logs at
debug level; SCRAPEFULL_RAW_EXPORTS=true prints whole export files.

Flags:`)
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	flags.apply(&crawlCfg)

	formatOpts, err := config.LoadFormat(nil)
	if err != nil {
		return err
	}
	// Format what this run crawled unless an input is configured.
	if formatOpts.Input == format.DefaultInput {
		formatOpts.Input = crawlCfg.Output
	}

	logger := newLogger(full.RawLogs)
	if flags.quiet {
		logger = logger.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	m := metrics.New()
	stopMetrics := serveMetrics(flags.metricsAddr, m, logger)
	defer stopMetrics()

	logger.Info("running step", zap.String("step", "crawl"))
	if _, err := crawlSite(ctx, crawlCfg, m, logger); err != nil {
		return err
	}

	logger.Info("running step", zap.String("step", "format"))
	result, err := formatExport(ctx, formatOpts, m, logger)
	if err != nil {
		return err
	}
	printFormatResult(result)

	if full.SyncToDB {
		logger.Info("running step", zap.String("step", "sync"))
		syncCfg := config.LoadSync("")
		if syncCfg.ExportPath == "" {
			syncCfg.ExportPath = result.FormattedPath
		}
		res, err := syncExport(ctx, syncCfg, m, logger)
		if err != nil {
			return err
		}
		fmt.Printf("\nSync completed: %d created, %d updated, %d unchanged, %d deleted\n",
			res.Created, res.Updated, res.Unchanged, res.Deleted)
	}

	out := os.Stdout
	emitFile(out, crawlCfg.Output, "Raw export", full.RawExports, logger)
	emitFile(out, result.FormattedPath, "Formatted export", full.RawExports, logger)
	emitDir(out, formatOpts.OutDir, full.RawExports, logger)

	raw, err := covenant.ReadRawExport(crawlCfg.Output)
	if err != nil {
		logger.Warn("could not build the final summary", zap.Error(err))
		return nil
	}
	report.Summarize(raw).Write(out)
	fmt.Fprintln(out, "Set SCRAPEFULL_RAW_LOGS=true or SCRAPEFULL_RAW_EXPORTS=true for full logs or whole export files.")
	return nil
}

// emitFile prints the summary of path, or the whole file when raw is set.
func emitFile(w io.Writer, path, title string, raw bool, logger *zap.Logger) {
	if raw {
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("export not found", zap.String("path", path), zap.Error(err))
			return
		}
		fmt.Fprintf(w, "\n=== %s (%s) ===\n%s\n", title, path, strings.TrimSpace(string(data)))
		return
	}
	summary, err := report.SummarizeFile(path)
	if err != nil {
		logger.Warn("export not found", zap.String("path", path), zap.Error(err))
		return
	}
	summary.Write(w, title)
}

func emitDir(w io.Writer, dir string, raw bool, logger *zap.Logger) {
	files, err := report.DirFiles(dir)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("no generic exports directory", zap.String("dir", dir))
		return
	}
	if err != nil {
		logger.Warn("failed to list generic exports", zap.String("dir", dir), zap.Error(err))
		return
	}
	if len(files) == 0 {
		fmt.Fprintf(w, "\nThe directory %s is empty.\n", dir)
		return
	}
	for _, path := range files {
		emitFile(w, path, "Export "+filepath.Base(path), raw, logger)
	}
}
