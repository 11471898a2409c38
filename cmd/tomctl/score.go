package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/tom/internal/adapters/ingest"
	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/internal/domain/scoring"
)

func newScoreCmd(opts *rootOptions) *cobra.Command {
	var metric string
	cmd := &cobra.Command{
		Use:   "score --metric KIND FILE...",
		Short: "Score metric exports for one table",
		Long: `Score parses every FILE as rows of the given metric table, computes fair
scores and prints the ranked table. Rows from all files are scored together.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), cmd.OutOrStdout(), opts, metric, args)
		},
	}
	cmd.Flags().StringVarP(&metric, "metric", "m", "", "Metric table kind, e.g. vti_compliance")
	_ = cmd.MarkFlagRequired("metric")
	return cmd
}

func runScore(ctx context.Context, out io.Writer, opts *rootOptions, metric string, files []string) error {
	catalog, err := opts.catalog()
	if err != nil {
		return err
	}
	kind, err := model.ParseMetricKind(metric)
	if err != nil {
		return err
	}
	cfg, ok := catalog.Lookup(kind)
	if !ok {
		return fmt.Errorf("unknown metric %q (known: %v)", kind, catalog.Kinds())
	}

	results, err := parseAll(ctx, files)
	if err != nil {
		return err
	}
	var rows []model.RawRecord
	for _, res := range results {
		rows = append(rows, res.Records...)
	}

	scored, err := scoring.NewEngine().ScoreTable(ctx, kind, cfg, rows)
	if err != nil {
		return err
	}
	table := leaderboard.Table{Kind: kind, Config: cfg, Records: scored}
	if opts.jsonOutput {
		return writeJSON(out, table)
	}
	renderTable(out, table)
	return nil
}

// parseAll parses files concurrently, preserving input order.
func parseAll(ctx context.Context, files []string) ([]*ingest.Result, error) {
	results := make([]*ingest.Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parseConcurrency)
	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := ingest.ParseFile(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
