package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/internal/domain/scoring"
)

var parseConcurrency = runtime.NumCPU()

func newLeaderboardCmd(opts *rootOptions) *cobra.Command {
	var (
		root     string
		patterns []string
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard --input GLOB",
		Short: "Build the leaderboard from a set of metric exports",
		Long: `Leaderboard scores every file matched by --input and aggregates the
tables into the cross-metric leaderboard. The metric of each file is taken
from its name, e.g. exports/2024-w42/vti_dpmo.xlsx. When several files map to
the same metric their rows are scored as one table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLeaderboard(cmd.Context(), cmd.OutOrStdout(), opts, root, patterns, limit)
		},
	}
	cmd.Flags().StringVar(&root, "root", ".", "Directory the globs are relative to")
	cmd.Flags().StringArrayVarP(&patterns, "input", "i", nil, "Doublestar glob of export files (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Print only the first N entries")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runLeaderboard(ctx context.Context, out io.Writer, opts *rootOptions, root string, patterns []string, limit int) error {
	catalog, err := opts.catalog()
	if err != nil {
		return err
	}
	resolver, err := opts.resolver()
	if err != nil {
		return err
	}

	files, err := expand(root, patterns)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files matched %v under %s", patterns, root)
	}

	kinds := make([]model.MetricKind, len(files))
	for i, f := range files {
		kind, ok := inferKind(catalog, f)
		if !ok {
			return fmt.Errorf("%s: cannot infer metric from file name (known: %v)", f, catalog.Kinds())
		}
		kinds[i] = kind
	}

	results, err := parseAll(ctx, files)
	if err != nil {
		return err
	}
	rows := make(map[model.MetricKind][]model.RawRecord)
	for i, res := range results {
		rows[kinds[i]] = append(rows[kinds[i]], res.Records...)
	}

	engine := scoring.NewEngine()
	tables := make([]leaderboard.Table, 0, len(rows))
	for _, kind := range catalog.Kinds() {
		records, ok := rows[kind]
		if !ok {
			continue
		}
		cfg, _ := catalog.Lookup(kind)
		scored, err := engine.ScoreTable(ctx, kind, cfg, records)
		if err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		tables = append(tables, leaderboard.Table{Kind: kind, Config: cfg, Records: scored})
	}

	entries, err := leaderboard.Aggregate(tables, resolver)
	if err != nil {
		return err
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	if opts.jsonOutput {
		return writeJSON(out, entries)
	}
	renderLeaderboard(out, entries)
	return nil
}

// expand resolves patterns under root into a sorted, de-duplicated file list.
func expand(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]struct{})
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	return files, nil
}

// inferKind matches a file name against the catalog. An exact base name wins;
// otherwise the longest kind contained in the name is used.
func inferKind(catalog model.Catalog, file string) (model.MetricKind, bool) {
	base := path.Base(filepath.ToSlash(file))
	base = strings.TrimSuffix(base, path.Ext(base))
	name, err := model.ParseMetricKind(base)
	if err != nil {
		return "", false
	}
	if _, ok := catalog.Lookup(name); ok {
		return name, true
	}
	var best model.MetricKind
	for _, kind := range catalog.Kinds() {
		if strings.Contains(string(name), string(kind)) && len(kind) > len(best) {
			best = kind
		}
	}
	return best, best != ""
}
