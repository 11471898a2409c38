// Package service wires ingestion, scoring and aggregation into the
// operations served by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/tom/internal/adapters/mq/queue"
	"github.com/okian/tom/internal/adapters/mq/worker"
	"github.com/okian/tom/internal/adapters/repository"
	"github.com/okian/tom/internal/domain/dedupe"
	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/internal/domain/scoring"
	"github.com/okian/tom/pkg/logger"
	"github.com/okian/tom/pkg/metrics"
)

const stopTimeout = 30 * time.Second

// Service owns the upload pipeline and the published leaderboard.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      *repository.MemoryStore
	deduper    dedupe.Deduper
	queue      *queue.InMemoryQueue
	engine     *scoring.Engine
	aggregator *leaderboard.Aggregator
	pool       *worker.Pool
	refresher  *worker.Debouncer

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	refreshDebounce time.Duration
	catalog         model.Catalog
	resolver        leaderboard.Resolver

	// State
	started   bool
	cancel    context.CancelFunc
	refreshMu sync.Mutex

	// Submission order. submitMu makes sequence order match queue order and
	// guards latest, the content key of the last accepted upload per kind.
	submitMu sync.Mutex
	seq      atomic.Uint64
	latest   map[model.MetricKind]string

	logger logger.Logger
}

// New constructs a Service. Components are created by Start.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       1_024,
		dedupeSize:      dedupe.DefaultMaxSize,
		refreshDebounce: 250 * time.Millisecond,
		catalog:         model.DefaultCatalog(),
		resolver:        leaderboard.Passthrough,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting analytics service...")

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.latest = make(map[model.MetricKind]string, len(s.catalog))
	s.store = repository.NewMemoryStore()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))
	s.engine = scoring.NewEngine()
	s.aggregator = leaderboard.NewAggregator(s.resolver)

	s.refresher = worker.NewDebouncer(s.refreshDebounce, s.Refresh)
	s.refresher.Start(runCtx)

	s.pool = worker.NewPool(s.workerCount, s.queue, s.engine, s.store,
		worker.WithCatalog(s.catalog),
		worker.WithRefresher(s.refresher),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "analytics service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("metrics", len(s.catalog)),
	)
	return nil
}

// Stop drains queued uploads, publishes a final leaderboard and shuts down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping analytics service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.refresher.Stop()
	if err := s.Refresh(ctx); err != nil {
		s.logger.Error(ctx, "final leaderboard refresh failed", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "analytics service stopped")
}

// Submit validates an upload, deduplicates it and queues it for scoring.
// It returns the upload ID. An upload is a duplicate, returned with its ID
// and ErrDuplicateUpload and not scored again, when its caller-supplied ID was
// seen before or when its rows equal the last accepted upload for the metric.
// Accepted uploads are numbered so a table is only ever replaced by a later
// submission.
func (s *Service) Submit(ctx context.Context, u model.Upload) (string, error) { //nolint:gocritic // uploads travel by value into the queue
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return "", ErrNotStarted
	}

	kind, err := model.ParseMetricKind(string(u.Kind))
	if err != nil {
		metrics.RecordUploadRejected("invalid_metric")
		return "", fmt.Errorf("%w: %w", ErrUnknownMetric, err)
	}
	if _, ok := s.catalog.Lookup(kind); !ok {
		metrics.RecordUploadRejected("unknown_metric")
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, kind)
	}
	u.Kind = kind
	content := u.Key()
	keyed := u.ID != ""
	if !keyed {
		u.ID = content
	}

	s.submitMu.Lock()
	defer s.submitMu.Unlock()

	if s.latest[kind] == content || (keyed && s.deduper.SeenAndRecord(ctx, u.ID)) {
		metrics.RecordUploadDuplicate()
		s.logger.Debug(ctx, "duplicate upload detected, skipping", logger.String("upload_id", u.ID))
		return u.ID, ErrDuplicateUpload
	}

	u.Seq = s.seq.Add(1)
	if err := s.queue.Enqueue(ctx, u); err != nil {
		if keyed {
			s.deduper.Unrecord(ctx, u.ID)
		}
		metrics.RecordUploadRejected("queue_unavailable")
		return "", fmt.Errorf("%w: %w", ErrBusy, err)
	}
	s.latest[kind] = content

	metrics.RecordUploadAccepted(string(kind))
	s.logger.Debug(ctx, "upload queued",
		logger.String("upload_id", u.ID),
		logger.String("metric", string(kind)),
		logger.Int("rows", len(u.Records)),
	)
	return u.ID, nil
}

// Refresh rebuilds the leaderboard from the stored tables and publishes it.
func (s *Service) Refresh(ctx context.Context) error {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	stored := s.store.Tables(ctx)
	tables := make([]leaderboard.Table, len(stored))
	for i, t := range stored {
		tables[i] = t.Table
	}

	entries, err := s.aggregator.Aggregate(ctx, tables)
	if err != nil {
		return fmt.Errorf("refresh leaderboard: %w", err)
	}
	s.store.PublishLeaderboard(ctx, entries)
	return nil
}

// Table returns the latest scored table for a metric.
func (s *Service) Table(ctx context.Context, kind model.MetricKind) (repository.StoredTable, error) {
	if err := s.ready(); err != nil {
		return repository.StoredTable{}, err
	}
	k, err := model.ParseMetricKind(string(kind))
	if err != nil {
		return repository.StoredTable{}, fmt.Errorf("%w: %w", ErrUnknownMetric, err)
	}
	if _, ok := s.catalog.Lookup(k); !ok {
		return repository.StoredTable{}, fmt.Errorf("%w: %q", ErrUnknownMetric, k)
	}
	return s.store.Table(ctx, k)
}

// TopN returns the first n leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]model.LeaderboardEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.TopN(ctx, n)
}

// Rank returns the leaderboard entry for an employee. Badge ids, usernames
// and emails are resolved to canonical names first.
func (s *Service) Rank(ctx context.Context, identity string) (model.LeaderboardEntry, error) {
	if err := s.ready(); err != nil {
		return model.LeaderboardEntry{}, err
	}
	name := s.resolver.Resolve(identity).CanonicalName
	if name == "" {
		name = identity
	}
	return s.store.Rank(ctx, name)
}

// Catalog returns the accepted metric tables.
func (s *Service) Catalog() model.Catalog {
	return s.catalog
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"metrics":     s.catalog.Kinds(),
	}

	if s.store != nil {
		queueLen := s.queue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["tables"] = len(s.store.Tables(ctx))
		stats["employees"] = s.store.Count(ctx)
		stats["dedupeEntries"] = s.deduper.Size()
		if at := s.store.PublishedAt(ctx); !at.IsZero() {
			stats["lastRefresh"] = at.UTC().Format(time.RFC3339)
		}
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.store == nil {
		return ErrNotStarted
	}
	return nil
}
