// Package repository holds the latest scored table per metric and the
// published leaderboard.
package repository

import (
	"context"
	"time"

	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
)

// StoredTable is the latest scored table of one metric kind.
type StoredTable struct {
	leaderboard.Table
	UploadID  string
	Seq       uint64 // submission order of the upload that produced the table
	UpdatedAt time.Time
}

// Store provides read/write access to scored tables and the leaderboard.
type Store interface {
	// PutTable replaces the table for t.Kind. Returns ErrStale if the stored
	// table came from a later submission.
	PutTable(ctx context.Context, t StoredTable) error
	// Table returns the table for kind or ErrNotFound.
	Table(ctx context.Context, kind model.MetricKind) (StoredTable, error)
	// Tables returns every stored table ordered by kind.
	Tables(ctx context.Context) []StoredTable

	// PublishLeaderboard replaces the leaderboard with ranked entries.
	PublishLeaderboard(ctx context.Context, entries []model.LeaderboardEntry)
	// TopN returns the first n leaderboard entries.
	// Returns ErrInvalidLimit if n < 1.
	TopN(ctx context.Context, n int) ([]model.LeaderboardEntry, error)
	// Rank returns the entry for a canonical name, matched case-insensitively.
	// Returns ErrNotFound if the name is not on the leaderboard.
	Rank(ctx context.Context, name string) (model.LeaderboardEntry, error)
	// Count returns the number of leaderboard entries.
	Count(ctx context.Context) int
	// PublishedAt returns when the leaderboard was last published.
	PublishedAt(ctx context.Context) time.Time
}
