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
	"flag"
	"fmt"

	"go.uber.org/zap"

	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/content"
	"github.com/agentberlin/covenant/internal/metrics"
	"github.com/agentberlin/covenant/internal/store"
)

func runSync(args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)

	var exportPath string
	fs.StringVar(&exportPath, "export", "", "Formatted export to sync (CONTENT_EXPORT_PATH)")

	fs.Usage = func() {
		fmt.Println(`Usage: covenant sync [--export=path]

Sync the formatted export into the database at DATABASE_URL. Without
--export, CONTENT_EXPORT_PATH is used, then public/ and data/ are searched.

Flags:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(false)
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	result, err := syncExport(ctx, config.LoadSync(exportPath), metrics.New(), logger)
	if err != nil {
		return err
	}
	fmt.Printf("\nSync completed: %d created, %d updated, %d unchanged, %d deleted\n",
		result.Created, result.Updated, result.Unchanged, result.Deleted)
	if result.SettingsUpdated {
		fmt.Println("  Site settings updated")
	}
	return nil
}

func syncExport(ctx context.Context, cfg config.Sync, m *metrics.Metrics, logger *zap.Logger) (store.SyncResult, error) {
	data, path, err := content.ReadFirst(content.ExportCandidates(cfg.ExportPath))
	if err != nil {
		return store.SyncResult{}, err
	}
	logger.Info("reading export", zap.String("path", path))

	site, err := content.DecodeExport(data)
	if err != nil {
		return store.SyncResult{}, fmt.Errorf("invalid export %s: %w", path, err)
	}

	st, err := store.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return store.SyncResult{}, fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	result, err := st.Sync(ctx, site)
	if err != nil {
		return result, fmt.Errorf("sync failed: %w", err)
	}
	m.SyncArticles("created", result.Created)
	m.SyncArticles("updated", result.Updated)
	m.SyncArticles("unchanged", result.Unchanged)
	m.SyncArticles("deleted", result.Deleted)
	return result, nil
}
