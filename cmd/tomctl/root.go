package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/tom/internal/config"
	"github.com/okian/tom/internal/domain/directory"
	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/logger"
)

type rootOptions struct {
	configPath    string
	directoryPath string
	logLevel      string
	jsonOutput    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tomctl",
		Short: "Score metric exports and build the TOM leaderboard",
		Long: `tomctl reads weekly metric exports (.xlsx, .xls or .json), computes fair
scores for each table and aggregates them into the leaderboard without
running the service.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return logger.SetLevelString(opts.logLevel)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config with metric table overrides")
	cmd.PersistentFlags().StringVarP(&opts.directoryPath, "directory", "d", "", "Employee directory YAML used to merge identities")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&opts.jsonOutput, "json", false, "Print JSON instead of a table")

	cmd.AddCommand(newScoreCmd(opts), newLeaderboardCmd(opts))
	return cmd
}

// catalog loads the metric tables, applying overrides from --config.
func (o *rootOptions) catalog() (model.Catalog, error) {
	if o.configPath == "" {
		return model.DefaultCatalog(), nil
	}
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	return cfg.Catalog()
}

func (o *rootOptions) resolver() (leaderboard.Resolver, error) {
	if o.directoryPath == "" {
		return leaderboard.Passthrough, nil
	}
	dir, err := directory.LoadFile(o.directoryPath)
	if err != nil {
		return nil, fmt.Errorf("load directory: %w", err)
	}
	return dir, nil
}
