// Package config defines service configuration structures and loading hooks.
package config

import (
	"fmt"
	"math"
	"runtime"

	"github.com/okian/tom/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// UploadQueueSize bounds the in-memory upload queue.
	UploadQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of scoring workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the number of upload IDs remembered for idempotency.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// MaxUploadBytes caps the request body of POST /uploads.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`

	// RefreshDebounceMS coalesces leaderboard refreshes after table updates.
	RefreshDebounceMS int `koanf:"refresh_debounce_ms"`

	// DirectoryPath points at the employee directory YAML. Empty disables it.
	DirectoryPath string `koanf:"directory_path"`

	// Metrics overrides or extends the built-in metric tables.
	Metrics map[string]MetricConfig `koanf:"metrics"`
}

// MetricConfig overrides one metric table. Unset fields keep the built-in value.
type MetricConfig struct {
	Direction            string   `koanf:"direction"`
	Benchmark            *float64 `koanf:"benchmark"`
	IncludeInLeaderboard *bool    `koanf:"include_in_leaderboard"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		UploadQueueSize:     1_024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          10_000,
		MaxLeaderboardLimit: 500,
		MaxUploadBytes:      32 << 20,
		RefreshDebounceMS:   250,
	}
}

// Validate checks the scalar settings.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.UploadQueueSize <= 0:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count must be positive", ErrInvalidConfig)
	case c.DedupeSize <= 0:
		return fmt.Errorf("%w: dedupe_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit <= 0:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("%w: max_upload_bytes must be positive", ErrInvalidConfig)
	case c.RefreshDebounceMS < 0:
		return fmt.Errorf("%w: refresh_debounce_ms must not be negative", ErrInvalidConfig)
	}
	_, err := c.Catalog()
	return err
}

// Catalog merges the metric overrides into the built-in catalog.
// A kind missing from the built-in catalog must set direction and benchmark.
func (c *Config) Catalog() (model.Catalog, error) {
	catalog := model.DefaultCatalog()
	for name, override := range c.Metrics {
		kind, err := model.ParseMetricKind(name)
		if err != nil {
			return nil, fmt.Errorf("%w: metrics: %w", ErrInvalidConfig, err)
		}
		table, known := catalog.Lookup(kind)
		if !known {
			table.IncludeInLeaderboard = true
			if override.Direction == "" || override.Benchmark == nil {
				return nil, fmt.Errorf("%w: metrics.%s: direction and benchmark are required", ErrInvalidConfig, kind)
			}
		}
		if override.Direction != "" {
			d, err := model.ParseDirection(override.Direction)
			if err != nil {
				return nil, fmt.Errorf("%w: metrics.%s: %w", ErrInvalidConfig, kind, err)
			}
			table.Direction = d
		}
		if override.Benchmark != nil {
			if math.IsNaN(*override.Benchmark) || math.IsInf(*override.Benchmark, 0) {
				return nil, fmt.Errorf("%w: metrics.%s: benchmark must be finite", ErrInvalidConfig, kind)
			}
			table.Benchmark = *override.Benchmark
		}
		if override.IncludeInLeaderboard != nil {
			table.IncludeInLeaderboard = *override.IncludeInLeaderboard
		}
		catalog[kind] = table
	}
	return catalog, nil
}
