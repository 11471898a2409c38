package service

import (
	"time"

	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of scoring workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of pending uploads.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many upload IDs are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithRefreshDebounce sets how long table updates are coalesced before the
// leaderboard is rebuilt.
func WithRefreshDebounce(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshDebounce = d
		}
	}
}

// WithCatalog sets the metric tables the service accepts.
func WithCatalog(c model.Catalog) Option {
	return func(s *Service) {
		if len(c) > 0 {
			s.catalog = c
		}
	}
}

// WithResolver sets the identity resolver used for aggregation and rank lookups.
func WithResolver(r leaderboard.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
