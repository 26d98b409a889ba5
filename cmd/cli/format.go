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
	"fmt"

	"go.uber.org/zap"

	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/format"
	"github.com/agentberlin/covenant/internal/metrics"
)

func printFormatUsage() {
	fmt.Println(`Usage: covenant format [flags]

Read the raw export (SCRAPE_EXPORT_INPUT), write the formatted export
(SCRAPE_EXPORT_OUTPUT) and the generic collection under --out-dir.

Flags:
  --out-dir <dir>           Generic export directory (SCRAPE_EXPORT_OUT_DIR)
  --ndjson, --no-ndjson     Also write NDJSON (SCRAPE_EXPORT_NDJSON)
  --split-json, --no-split-json
                            Write one JSON file per entry type (SCRAPE_EXPORT_SPLIT_JSON)
  --min-words <n>           Drop entries with fewer words (SCRAPE_EXPORT_MIN_WORDS)
  --types <a,b>             Only export these entry types (SCRAPE_EXPORT_TYPES)`)
}

func runFormat(args []string) error {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" || arg == "help" {
			printFormatUsage()
			return nil
		}
	}
	opts, err := config.LoadFormat(args)
	if err != nil {
		printFormatUsage()
		return err
	}

	logger := newLogger(false)
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := formatExport(ctx, opts, metrics.New(), logger)
	if err != nil {
		return err
	}
	printFormatResult(result)
	return nil
}

func formatExport(ctx context.Context, opts format.Options, m *metrics.Metrics, logger *zap.Logger) (*format.Result, error) {
	formatter := format.New(logger)
	formatter.SetObserver(m)
	result, err := formatter.Run(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("format failed: %w", err)
	}
	return result, nil
}

func printFormatResult(r *format.Result) {
	fmt.Printf("\nFormatted export written to %s\n", r.FormattedPath)
	fmt.Printf("  Pages: %d, assets: %d\n", r.Pages, r.Assets)
	fmt.Printf("  Generic entries: %d (%s)\n", r.Entries, r.GenericPath)
	for _, f := range r.Files {
		fmt.Printf("  - %s\n", f)
	}
}
