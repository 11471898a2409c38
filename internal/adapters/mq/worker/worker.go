// Package worker scores queued uploads and stores the resulting tables.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/tom/internal/adapters/repository"
	"github.com/okian/tom/internal/domain/leaderboard"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/logger"
	"github.com/okian/tom/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrUnknownMetric is returned for an upload whose kind is not in the catalog.
var ErrUnknownMetric = errors.New("unknown metric")

// Queue defines how workers receive uploads.
type Queue interface {
	Next(ctx context.Context) (model.Upload, bool)
}

// Scorer scores one metric table.
type Scorer interface {
	ScoreTable(ctx context.Context, kind model.MetricKind, cfg model.MetricTableConfig, records []model.RawRecord) ([]model.MetricRecord, error)
}

// TableWriter stores scored tables.
type TableWriter interface {
	PutTable(ctx context.Context, t repository.StoredTable) error
}

// Refresher is told that a table changed.
type Refresher interface {
	Request()
}

type noopRefresher struct{}

func (noopRefresher) Request() {}

// InMemoryWorker pulls uploads off the queue, scores them and stores the table.
type InMemoryWorker struct {
	queue     Queue
	scorer    Scorer
	tables    TableWriter
	catalog   model.Catalog
	refresher Refresher
	name      string

	done chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, scorer Scorer, tables TableWriter, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     queue,
		scorer:    scorer,
		tables:    tables,
		catalog:   model.DefaultCatalog(),
		refresher: noopRefresher{},
		name:      "worker",
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes uploads until the queue is closed and drained or ctx is done.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	for {
		u, ok := w.queue.Next(ctx)
		if !ok {
			return
		}
		if err := w.Process(ctx, u); err != nil {
			w.logger.Error(ctx, "error processing upload", logger.Error(err))
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Process scores one upload and replaces the stored table for its kind.
func (w *InMemoryWorker) Process(ctx context.Context, u model.Upload) error { //nolint:gocritic // uploads travel by value through the queue
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	cfg, ok := w.catalog.Lookup(u.Kind)
	if !ok {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "unknown_metric")
		return fmt.Errorf("upload %s: %w %q", u.ID, ErrUnknownMetric, u.Kind)
	}

	records, err := w.scorer.ScoreTable(ctx, u.Kind, cfg, u.Records)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "scoring_error")
		return fmt.Errorf("upload %s: %w", u.ID, err)
	}

	err = w.tables.PutTable(ctx, repository.StoredTable{
		Table:    leaderboard.Table{Kind: u.Kind, Config: cfg, Records: records},
		UploadID: u.ID,
		Seq:      u.Seq,
	})
	if errors.Is(err, repository.ErrStale) {
		w.logger.Debug(ctx, "newer table already stored, dropping upload",
			logger.String("upload_id", u.ID),
			logger.String("metric", string(u.Kind)),
		)
		return nil
	}
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store_error")
		return fmt.Errorf("upload %s: store table: %w", u.ID, err)
	}

	w.refresher.Request()
	w.logger.Info(ctx, "table updated",
		logger.String("upload_id", u.ID),
		logger.String("metric", string(u.Kind)),
		logger.String("file", u.Source),
		logger.Int("rows", len(records)),
	)
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates workerCount workers. opts apply to every worker.
func NewPool(workerCount int, queue Queue, scorer Scorer, tables TableWriter, opts ...Option) *Pool {
	workerCount = max(workerCount, 1)

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range workerCount {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, scorer, tables, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}
