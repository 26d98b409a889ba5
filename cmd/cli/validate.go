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
	"io"
	"os"
	"strings"
	"time"

	"github.com/agentberlin/covenant/internal/config"
	"github.com/agentberlin/covenant/internal/format"
	"github.com/agentberlin/covenant/internal/store"
)

// errValidation is returned when a required check fails.
var errValidation = errors.New("validation failed")

// validation records the outcome of each check.
type validation struct {
	database   bool
	exports    bool
	schema     bool
	duplicates bool
}

func (v validation) ok() bool {
	return v.database && v.schema && v.duplicates
}

func runValidate(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println(`Usage: covenant validate

Check that the export files exist and that the database at DATABASE_URL is
reachable, migrated and free of duplicate slugs.`)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := newLogger(false)
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	cfg := config.LoadSync("")
	st, openErr := store.Open(cfg.DatabaseURL, logger)
	if st != nil {
		defer st.Close()
	}
	return validate(ctx, os.Stdout, st, openErr, []string{format.DefaultInput, format.DefaultOutput})
}

// validate runs the checks against st, which is nil when opening it failed
// with openErr.
func validate(ctx context.Context, w io.Writer, st *store.Store, openErr error, exportFiles []string) error {
	var v validation

	fmt.Fprintln(w, "Validating the sync setup")
	fmt.Fprintln(w, strings.Repeat("=", 60))

	fmt.Fprintln(w, "\n* Database connection")
	if openErr != nil {
		fmt.Fprintf(w, "  FAIL %v\n", openErr)
		fmt.Fprintln(w, "  Check DATABASE_URL in .env")
	} else {
		fmt.Fprintln(w, "  OK")
		v.database = true
	}

	fmt.Fprintln(w, "\n* Export files")
	v.exports = true
	for _, path := range exportFiles {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(w, "  WARN %s not found\n", path)
			v.exports = false
			continue
		}
		fmt.Fprintf(w, "  OK %s (%.2f KB)\n", path, float64(info.Size())/1024)
	}

	if v.database {
		fmt.Fprintln(w, "\n* Database schema")
		if counts, err := st.Counts(ctx); err != nil {
			fmt.Fprintf(w, "  FAIL %v\n", err)
		} else {
			v.schema = true
			fmt.Fprintf(w, "  OK articles: %d\n", counts.Articles)
			fmt.Fprintf(w, "  OK article_revisions: %d\n", counts.Revisions)
			fmt.Fprintf(w, "  OK site_settings: %d\n", counts.Settings)
		}

		fmt.Fprintln(w, "\n* Duplicate slugs")
		dups, err := st.DuplicateSlugs(ctx)
		switch {
		case err != nil:
			fmt.Fprintf(w, "  WARN %v\n", err)
		case len(dups) == 0:
			fmt.Fprintln(w, "  OK none found")
			v.duplicates = true
		default:
			for _, d := range dups {
				fmt.Fprintf(w, "  FAIL %q: %d rows\n", d.Slug, d.Count)
			}
		}

		fmt.Fprintln(w, "\n* Recently updated articles")
		recent, err := st.RecentArticles(ctx, 5)
		switch {
		case err != nil:
			fmt.Fprintf(w, "  FAIL %v\n", err)
		case len(recent) == 0:
			fmt.Fprintln(w, "  No articles yet; run: covenant sync")
		default:
			for i, a := range recent {
				category := "no category"
				if a.Category != nil && *a.Category != "" {
					category = *a.Category
				}
				fmt.Fprintf(w, "  %d. %s\n", i+1, a.Title)
				fmt.Fprintf(w, "     slug: %s\n", a.Slug)
				fmt.Fprintf(w, "     category: %s\n", category)
				fmt.Fprintf(w, "     updated: %s\n", time.Unix(a.UpdatedAt, 0).UTC().Format(time.RFC3339))
			}
		}
	}

	fmt.Fprintln(w, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Database:      %s\n", mark(v.database))
	fmt.Fprintf(w, "  Export files:  %s\n", mark(v.exports))
	fmt.Fprintf(w, "  Schema:        %s\n", mark(v.schema))
	fmt.Fprintf(w, "  No duplicates: %s\n", mark(v.duplicates))

	if !v.ok() {
		return errValidation
	}
	fmt.Fprintln(w, "\nEverything is in order.")
	return nil
}

func mark(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}
