// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"strings"
)

// Direction tells whether a higher or a lower raw value is better.
type Direction int

// Direction values.
const (
	HigherIsBetter Direction = iota + 1
	LowerIsBetter
)

// String returns the config spelling of d.
func (d Direction) String() string {
	switch d {
	case HigherIsBetter:
		return "higher"
	case LowerIsBetter:
		return "lower"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == HigherIsBetter || d == LowerIsBetter
}

// ParseDirection accepts "higher", "lower" and their long forms.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "higher", "higher_is_better", "higherisbetter", "asc":
		return HigherIsBetter, nil
	case "lower", "lower_is_better", "lowerisbetter", "desc":
		return LowerIsBetter, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MetricKind identifies a metric table.
type MetricKind string

// Built-in metric tables.
const (
	KindVTICompliance      MetricKind = "vti_compliance"
	KindVTIDPMO            MetricKind = "vti_dpmo"
	KindTAIdleTime         MetricKind = "ta_idle_time"
	KindSafetyObservations MetricKind = "safety_observations"
)

// ParseMetricKind normalizes s ("VTI-Compliance" -> "vti_compliance").
func ParseMetricKind(s string) (MetricKind, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	k = strings.NewReplacer("-", "_", " ", "_").Replace(k)
	if k == "" {
		return "", fmt.Errorf("empty metric kind")
	}
	return MetricKind(k), nil
}

// MetricTableConfig is the static configuration of one metric table.
type MetricTableConfig struct {
	Direction            Direction `json:"direction"`
	Benchmark            float64   `json:"benchmark"`
	IncludeInLeaderboard bool      `json:"include_in_leaderboard"`
}

// Catalog maps metric kinds to their table configuration.
type Catalog map[MetricKind]MetricTableConfig

// DefaultCatalog returns the built-in metric tables.
func DefaultCatalog() Catalog {
	return Catalog{
		KindVTICompliance:      {Direction: HigherIsBetter, Benchmark: 100, IncludeInLeaderboard: true},
		KindVTIDPMO:            {Direction: LowerIsBetter, Benchmark: 1500, IncludeInLeaderboard: true},
		KindTAIdleTime:         {Direction: LowerIsBetter, Benchmark: 10, IncludeInLeaderboard: true},
		KindSafetyObservations: {Direction: HigherIsBetter, Benchmark: 4, IncludeInLeaderboard: false},
	}
}

// Lookup returns the config for kind.
func (c Catalog) Lookup(kind MetricKind) (MetricTableConfig, bool) {
	cfg, ok := c[kind]
	return cfg, ok
}

// Kinds returns the catalog keys in a stable order.
func (c Catalog) Kinds() []MetricKind {
	out := make([]MetricKind, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
