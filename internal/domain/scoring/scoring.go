// Package scoring computes fair scores, status and per-table ranking for
// metric records.
package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/logger"
	"github.com/okian/tom/pkg/metrics"
)

// TieEpsilon is the dead zone below which two changes compare equal. It is
// shared by the ranking sort, status classification and leaderboard sort.
//
// The dead zone is not transitive: changes 0, 0.008 and 0.016 give two ties
// and one strict order. For such chains the stable sort's result depends on
// input order.
const TieEpsilon = 0.01

// Fair score coefficients.
const (
	compliantBase        = 800.0
	compliantExcessGain  = 200.0
	compliantImproveGain = 500.0
	compliantDeclineLoss = 200.0
	consistencyBonus     = 50.0

	nonCompliantBase        = 400.0
	lowerDistancePenalty    = 50.0
	higherDistancePenalty   = 5.0
	nonCompliantImproveGain = 800.0
	nonCompliantDeclineLoss = 400.0
	almostCompliantBonus    = 300.0

	excellenceMultiplier = 1.2

	lowerAlmostCompliant  = 1.05
	lowerExcellence       = 0.8
	higherAlmostCompliant = 0.95
	higherExcellence      = 1.05
)

// NormalizedChange flips the sign of change for lower-is-better metrics so a
// positive value always means improvement.
func NormalizedChange(change float64, direction model.Direction) float64 {
	if direction == model.LowerIsBetter {
		return -change
	}
	return change
}

// IsCompliant reports whether current meets the benchmark.
func IsCompliant(current, benchmark float64, direction model.Direction) bool {
	if direction == model.LowerIsBetter {
		return current <= benchmark
	}
	return current >= benchmark
}

// FairScore computes the piecewise fair score for one record. The result is
// never negative.
func FairScore(current, benchmark, change float64, direction model.Direction) float64 {
	var score float64
	if direction == model.LowerIsBetter {
		score = lowerFairScore(current, benchmark, change)
	} else {
		score = higherFairScore(current, benchmark, change)
	}
	return math.Max(0, score)
}

func lowerFairScore(current, benchmark, change float64) float64 {
	var score float64
	if current <= benchmark {
		score = compliantBase + (benchmark-current)*compliantExcessGain
		switch {
		case change < 0:
			score += math.Abs(change) * compliantImproveGain
		case change > 0:
			score -= change * compliantDeclineLoss
		default:
			score += consistencyBonus
		}
	} else {
		dist := current - benchmark
		score = nonCompliantBase - dist*lowerDistancePenalty
		switch {
		case change < 0:
			score += math.Abs(change) * nonCompliantImproveGain
			if current <= benchmark*lowerAlmostCompliant {
				score += almostCompliantBonus
			}
		case change > 0:
			score -= change * nonCompliantDeclineLoss
		}
	}
	if current <= benchmark*lowerExcellence {
		score *= excellenceMultiplier
	}
	return score
}

func higherFairScore(current, benchmark, change float64) float64 {
	var score float64
	if current >= benchmark {
		score = compliantBase + (current-benchmark)*compliantExcessGain
		switch {
		case change > 0:
			score += change * compliantImproveGain
		case change < 0:
			score -= math.Abs(change) * compliantDeclineLoss
		default:
			score += consistencyBonus
		}
	} else {
		dist := benchmark - current
		score = nonCompliantBase - dist*higherDistancePenalty
		switch {
		case change > 0:
			score += change * nonCompliantImproveGain
			if current >= benchmark*higherAlmostCompliant {
				score += almostCompliantBonus
			}
		case change < 0:
			score -= math.Abs(change) * nonCompliantDeclineLoss
		}
	}
	if current >= benchmark*higherExcellence {
		score *= excellenceMultiplier
	}
	return score
}

// Classify derives a record status from compliance and trend only.
func Classify(current, benchmark, change float64, direction model.Direction) model.Status {
	norm := NormalizedChange(change, direction)
	compliant := IsCompliant(current, benchmark, direction)
	improving := norm > TieEpsilon
	declining := norm < -TieEpsilon

	switch {
	case compliant && (improving || math.Abs(change) <= TieEpsilon):
		return model.StatusExcellent
	case improving:
		return model.StatusImproved
	case declining:
		return model.StatusDecreased
	default:
		return model.StatusMaintained
	}
}

// Score computes change, fair score and status for every record and returns
// them ranked: normalized change descending (within TieEpsilon counts as a
// tie), then current value best first. The input slice is not modified.
func Score(records []model.RawRecord, benchmark float64, direction model.Direction) ([]model.MetricRecord, error) {
	if !direction.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %d", ErrInvalidInput, int(direction))
	}
	if !finite(benchmark) {
		return nil, fmt.Errorf("%w: benchmark %v is not finite", ErrInvalidInput, benchmark)
	}

	out := make([]model.MetricRecord, 0, len(records))
	for i, r := range records {
		if !finite(r.PriorValue) || !finite(r.CurrentValue) {
			return nil, fmt.Errorf("%w: row %d (%q) has non-finite values", ErrInvalidInput, i, r.Identity)
		}
		change := r.CurrentValue - r.PriorValue
		out = append(out, model.MetricRecord{
			RawRecord: r,
			Change:    change,
			FairScore: FairScore(r.CurrentValue, benchmark, change, direction),
			Status:    Classify(r.CurrentValue, benchmark, change, direction),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return ranksBefore(out[i], out[j], direction)
	})
	return out, nil
}

// ranksBefore orders a ahead of b within one metric table.
func ranksBefore(a, b model.MetricRecord, direction model.Direction) bool {
	na := NormalizedChange(a.Change, direction)
	nb := NormalizedChange(b.Change, direction)
	if math.Abs(na-nb) > TieEpsilon {
		return na > nb
	}
	if direction == model.LowerIsBetter {
		return a.CurrentValue < b.CurrentValue
	}
	return a.CurrentValue > b.CurrentValue
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Engine scores metric tables and reports timings.
type Engine struct {
	logger logger.Logger
}

// NewEngine creates a scoring engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("scoring")
	}
	return e
}

// ScoreTable scores one metric table using its configuration.
func (e *Engine) ScoreTable(ctx context.Context, kind model.MetricKind, cfg model.MetricTableConfig, records []model.RawRecord) ([]model.MetricRecord, error) {
	start := time.Now()
	scored, err := Score(records, cfg.Benchmark, cfg.Direction)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)
	if err != nil {
		metrics.RecordScoringError()
		metrics.RecordErrorByComponent("scoring", "invalid_input")
		e.logger.Warn(ctx, "scoring rejected table",
			logger.String("metric", string(kind)),
			logger.Error(err),
		)
		return nil, fmt.Errorf("score %s: %w", kind, err)
	}

	metrics.RecordRowsScored(string(kind), len(scored))
	e.logger.Debug(ctx, "table scored",
		logger.String("metric", string(kind)),
		logger.Int("rows", len(scored)),
	)
	return scored, nil
}
