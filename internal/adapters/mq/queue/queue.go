// Package queue buffers accepted uploads until a worker scores them.
package queue

import (
	"context"
	"sync"

	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/metrics"
)

const defaultQueueCapacity = 1_024

// Queue provides non-blocking enqueue and context-aware dequeue.
type Queue interface {
	// Enqueue adds an upload without blocking.
	// Returns ErrFull at capacity and ErrClosed after Close.
	Enqueue(ctx context.Context, u model.Upload) error

	// Next blocks until an upload is available. It returns false once the
	// queue is closed and drained, or when ctx is done.
	Next(ctx context.Context) (model.Upload, bool)

	// Len returns the current number of queued uploads.
	Len(ctx context.Context) int

	// Close stops accepting uploads. Pending uploads can still be drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	uploads  chan model.Upload
	capacity int

	mu     sync.RWMutex
	closed bool
}

var _ Queue = (*InMemoryQueue)(nil)

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.uploads = make(chan model.Upload, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, u model.Upload) error { //nolint:gocritic // uploads travel by value through the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "closed")
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return err
	}

	select {
	case q.uploads <- u:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueEnqueueError()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return ErrFull
	}
}

// Next implements Queue.Next.
func (q *InMemoryQueue) Next(ctx context.Context) (model.Upload, bool) {
	select {
	case u, ok := <-q.uploads:
		if !ok {
			return model.Upload{}, false
		}
		metrics.RecordQueueDequeue()
		q.observe()
		return u, true
	case <-ctx.Done():
		return model.Upload{}, false
	}
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(_ context.Context) int {
	return len(q.uploads)
}

// Close implements Queue.Close.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.uploads)
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) observe() {
	size := len(q.uploads)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
