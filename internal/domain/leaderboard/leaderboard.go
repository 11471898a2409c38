// Package leaderboard merges scored metric tables into one ranked
// cross-metric leaderboard.
package leaderboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/internal/domain/scoring"
	"github.com/okian/tom/pkg/logger"
	"github.com/okian/tom/pkg/metrics"
)

// Percentile cut-offs for status bands.
const (
	quarter       = 0.25
	half          = 0.50
	threeQuarters = 0.75
)

// Rank cut-offs for named recognitions.
const (
	topPerformerRank = 5
	starPlayerRank   = 10
)

// Table is one scored metric table offered to the aggregator.
type Table struct {
	Kind    model.MetricKind        `json:"metric"`
	Config  model.MetricTableConfig `json:"config"`
	Records []model.MetricRecord    `json:"records"`
}

type accumulator struct {
	name             string
	totalFairScore   float64
	totalImprovement float64
	tableCount       int
	excluded         bool
}

// Aggregate builds the ranked leaderboard from every table whose config
// includes it in the leaderboard. Employees are keyed by the canonical name
// the resolver returns; any excluded identity variant drops the employee.
func Aggregate(tables []Table, resolver Resolver) ([]model.LeaderboardEntry, error) {
	if resolver == nil {
		return nil, ErrNilResolver
	}

	byName := make(map[string]*accumulator)
	for _, t := range tables {
		if !t.Config.IncludeInLeaderboard {
			continue
		}
		if !t.Config.Direction.Valid() {
			return nil, fmt.Errorf("%w: table %s has unknown direction", ErrInvalidInput, t.Kind)
		}
		for _, r := range t.Records {
			if math.IsNaN(r.FairScore) || math.IsInf(r.FairScore, 0) || math.IsNaN(r.Change) || math.IsInf(r.Change, 0) {
				return nil, fmt.Errorf("%w: table %s row %q has non-finite score", ErrInvalidInput, t.Kind, r.Identity)
			}
			id := resolver.Resolve(r.Identity)
			name := strings.TrimSpace(id.CanonicalName)
			if name == "" {
				name = strings.TrimSpace(r.Identity)
			}
			acc, ok := byName[name]
			if !ok {
				acc = &accumulator{name: name}
				byName[name] = acc
			}
			acc.totalFairScore += r.FairScore
			acc.totalImprovement += scoring.NormalizedChange(r.Change, t.Config.Direction)
			acc.tableCount++
			acc.excluded = acc.excluded || id.Excluded
		}
	}

	entries := make([]model.LeaderboardEntry, 0, len(byName))
	for _, acc := range byName {
		if acc.excluded || acc.tableCount == 0 {
			continue
		}
		n := float64(acc.tableCount)
		entries = append(entries, model.LeaderboardEntry{
			CanonicalName:      acc.name,
			TotalFairScore:     acc.totalFairScore,
			AverageFairScore:   acc.totalFairScore / n,
			AverageImprovement: acc.totalImprovement / n,
			TableCount:         acc.tableCount,
		})
	}

	// Name order first so the dead-zone sort below sees a deterministic input;
	// near-tie chains (see scoring.TieEpsilon) then resolve the same way on
	// every pass.
	sort.Slice(entries, func(i, j int) bool { return entries[i].CanonicalName < entries[j].CanonicalName })
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if math.Abs(a.AverageImprovement-b.AverageImprovement) > scoring.TieEpsilon {
			return a.AverageImprovement > b.AverageImprovement
		}
		return a.AverageFairScore > b.AverageFairScore
	})

	assignRanks(entries)
	return entries, nil
}

// assignRanks sets rank, recognition and status on a sorted slice.
func assignRanks(entries []model.LeaderboardEntry) {
	n := len(entries)
	topQuarter := percentileCutoff(n, quarter)
	topHalf := percentileCutoff(n, half)
	topThreeQuarters := percentileCutoff(n, threeQuarters)

	for i := range entries {
		rank := i + 1
		entries[i].Rank = rank
		entries[i].Recognition = RecognitionFor(rank, topQuarter)
		entries[i].Status = StatusFor(rank, topQuarter, topHalf, topThreeQuarters)
	}
}

func percentileCutoff(n int, fraction float64) int {
	return int(math.Ceil(float64(n) * fraction))
}

// RecognitionFor returns the label for rank given the top-quarter cut-off.
func RecognitionFor(rank, topQuarter int) model.Recognition {
	switch {
	case rank == 1:
		return model.RecognitionChampion
	case rank == 2:
		return model.RecognitionRunnerUp
	case rank == 3:
		return model.RecognitionThirdPlace
	case rank <= topPerformerRank:
		return model.RecognitionTopPerformer
	case rank <= starPlayerRank:
		return model.RecognitionStarPlayer
	case rank <= topQuarter:
		return model.RecognitionRisingStar
	default:
		return model.RecognitionTeamMember
	}
}

// StatusFor returns the percentile band status for rank.
func StatusFor(rank, topQuarter, topHalf, topThreeQuarters int) model.Status {
	switch {
	case rank <= topQuarter:
		return model.StatusExcellent
	case rank <= topHalf:
		return model.StatusImproved
	case rank <= topThreeQuarters:
		return model.StatusMaintained
	default:
		return model.StatusDecreased
	}
}

// Aggregator wraps Aggregate with a fixed resolver, logging and metrics.
type Aggregator struct {
	resolver Resolver
	logger   logger.Logger
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator creates an aggregator that resolves identities with resolver.
// A nil resolver falls back to Passthrough.
func NewAggregator(resolver Resolver, opts ...Option) *Aggregator {
	if resolver == nil {
		resolver = Passthrough
	}
	a := &Aggregator{resolver: resolver}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = logger.Get().Named("leaderboard")
	}
	return a
}

// Aggregate builds the leaderboard for tables.
func (a *Aggregator) Aggregate(ctx context.Context, tables []Table) ([]model.LeaderboardEntry, error) {
	start := time.Now()
	entries, err := Aggregate(tables, a.resolver)
	if err != nil {
		metrics.RecordLeaderboardError()
		metrics.RecordErrorByComponent("leaderboard", "invalid_input")
		a.logger.Error(ctx, "leaderboard aggregation failed", logger.Error(err))
		return nil, err
	}

	metrics.RecordLeaderboardRefresh(float64(time.Since(start).Microseconds()) / 1000)
	metrics.UpdateLeaderboardSize(len(entries))
	a.logger.Debug(ctx, "leaderboard aggregated",
		logger.Int("tables", len(tables)),
		logger.Int("employees", len(entries)),
	)
	return entries, nil
}
