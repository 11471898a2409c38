package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/tom/internal/domain/model"
)

func upload(id string) model.Upload {
	return model.Upload{
		ID:   id,
		Kind: model.KindVTICompliance,
		Records: []model.RawRecord{
			{Identity: "alice", PriorValue: 90, CurrentValue: 95},
		},
	}
}

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	if err := q.Enqueue(ctx, upload("u1")); err != nil {
		t.Fatalf("expected enqueue to succeed, got %v", err)
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	u, ok := q.Next(ctx)
	if !ok || u.ID != "u1" {
		t.Errorf("expected u1, got %v %v", u.ID, ok)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_Capacity(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	for _, id := range []string{"u1", "u2"} {
		if err := q.Enqueue(ctx, upload(id)); err != nil {
			t.Fatalf("expected enqueue to succeed, got %v", err)
		}
	}
	if err := q.Enqueue(ctx, upload("u3")); !errors.Is(err, ErrFull) {
		t.Errorf("expected ErrFull, got %v", err)
	}

	// FIFO order.
	for _, want := range []string{"u1", "u2"} {
		if u, _ := q.Next(ctx); u.ID != want {
			t.Errorf("expected %s, got %s", want, u.ID)
		}
	}
}

func TestInMemoryQueue_Close(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	_ = q.Enqueue(ctx, upload("pending"))
	if err := q.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Errorf("expected idempotent close, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed")
	}
	if err := q.Enqueue(ctx, upload("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	// Pending uploads drain after close.
	if u, ok := q.Next(ctx); !ok || u.ID != "pending" {
		t.Errorf("expected pending upload, got %v %v", u.ID, ok)
	}
	if _, ok := q.Next(ctx); ok {
		t.Error("expected drained queue to report false")
	}
}

func TestInMemoryQueue_ContextCancellation(t *testing.T) {
	q := NewInMemoryQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	if _, ok := q.Next(ctx); ok {
		t.Error("expected Next on an empty queue to give up with the context")
	}
	if time.Since(start) > time.Second {
		t.Error("Next did not honour the context deadline")
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if err := q.Enqueue(cancelled, upload("u1")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInMemoryQueue_ConcurrentProducers(t *testing.T) {
	const producers, perProducer = 8, 50
	q := NewInMemoryQueue(WithCapacity(producers * perProducer))
	ctx := context.Background()

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProducer {
				if err := q.Enqueue(ctx, upload(fmt.Sprintf("u-%d-%d", p, i))); err != nil {
					t.Errorf("unexpected enqueue error: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	_ = q.Close()

	seen := make(map[string]bool)
	for {
		u, ok := q.Next(ctx)
		if !ok {
			break
		}
		if seen[u.ID] {
			t.Errorf("duplicate upload %s", u.ID)
		}
		seen[u.ID] = true
	}
	if len(seen) != producers*perProducer {
		t.Errorf("expected %d uploads, got %d", producers*perProducer, len(seen))
	}
}
