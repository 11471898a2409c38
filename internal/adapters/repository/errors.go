package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrInvalidTable = errors.New("invalid table")
	ErrStale        = errors.New("stale table")
)
