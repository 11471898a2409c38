package leaderboard

import "errors"

// Sentinel kinds for aggregation errors.
var (
	ErrNilResolver  = errors.New("identity resolver is nil")
	ErrInvalidInput = errors.New("invalid leaderboard input")
)
