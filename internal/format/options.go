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

package format

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Default file locations, relative to the working directory.
var (
	DefaultInput  = filepath.Join("data", "thecovenant-export.json")
	DefaultOutput = filepath.Join("data", "thecovenant-export-formatted.json")
	DefaultOutDir = filepath.Join("data", "exports")
)

// Options controls one formatter run.
type Options struct {
	Input     string
	Output    string
	OutDir    string
	NDJSON    bool
	SplitJSON bool
	// MinWords drops pages with fewer words from the generic export.
	MinWords int
	// Types restricts the generic export to these lower-cased page types.
	// Empty means every type.
	Types []string
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{Input: DefaultInput, Output: DefaultOutput, OutDir: DefaultOutDir}
}

// IncludesType reports whether entries of pageType are exported.
func (o Options) IncludesType(pageType string) bool {
	if len(o.Types) == 0 {
		return true
	}
	pageType = strings.ToLower(pageType)
	for _, t := range o.Types {
		if t == pageType {
			return true
		}
	}
	return false
}

// ParseTypes splits a comma list into lower-cased, non-empty types.
func ParseTypes(value string) []string {
	var types []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			types = append(types, item)
		}
	}
	return types
}

// leadingInt parses the leading digits of s, with an optional sign.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseArgs applies command line flags on top of defaults. Supported:
// --out-dir, --ndjson/--no-ndjson, --split-json/--no-split-json,
// --min-words and --types, each as --flag=value or --flag value. A value
// is only consumed when it does not itself start with "--". --types with
// no value exports every type.
func ParseArgs(args []string, defaults Options) (Options, error) {
	opts := defaults
	next := func(i int) (string, bool) {
		if i+1 < len(args) && args[i+1] != "" && !strings.HasPrefix(args[i+1], "--") {
			return args[i+1], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "--out-dir":
			if !hasValue {
				v, ok := next(i)
				if !ok {
					continue
				}
				value = v
				i++
			}
			opts.OutDir = value
			if opts.OutDir == "" {
				opts.OutDir = DefaultOutDir
			}
		case "--ndjson", "--no-ndjson", "--split-json", "--no-split-json":
			if hasValue {
				return opts, fmt.Errorf("flag %s does not take a value", name)
			}
			switch name {
			case "--ndjson":
				opts.NDJSON = true
			case "--no-ndjson":
				opts.NDJSON = false
			case "--split-json":
				opts.SplitJSON = true
			case "--no-split-json":
				opts.SplitJSON = false
			}
		case "--min-words":
			if !hasValue {
				v, ok := next(i)
				if ok {
					i++
				}
				value = v
			}
			if n, ok := leadingInt(value); ok {
				opts.MinWords = n
			}
		case "--types":
			if !hasValue {
				v, ok := next(i)
				if ok {
					i++
				}
				value = v
			}
			opts.Types = ParseTypes(value)
		default:
			return opts, fmt.Errorf("unknown flag %q", arg)
		}
	}
	return opts, nil
}
