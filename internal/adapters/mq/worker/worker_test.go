package worker_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/tom/internal/adapters/mq/queue"
	"github.com/okian/tom/internal/adapters/mq/worker"
	"github.com/okian/tom/internal/adapters/repository"
	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/internal/domain/scoring"
	logging "github.com/okian/tom/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logging.Init()
}

type failingWriter struct{ err error }

func (f failingWriter) PutTable(context.Context, repository.StoredTable) error { return f.err }

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) Request() { c.n.Add(1) }

func vtiUpload(id string) model.Upload {
	return model.Upload{
		ID:     id,
		Kind:   model.KindVTICompliance,
		Source: "vti.xlsx",
		Records: []model.RawRecord{
			{Identity: "alice", PriorValue: 90, CurrentValue: 95},
			{Identity: "bob", PriorValue: 100, CurrentValue: 100},
		},
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestInMemoryWorker_Process(t *testing.T) {
	convey.Convey("Given a worker with a real engine and store", t, func() {
		ctx := context.Background()
		store := repository.NewMemoryStore()
		refresher := &countingRefresher{}
		w := worker.NewInMemoryWorker(nil, scoring.NewEngine(), store,
			worker.WithName("test-worker"),
			worker.WithRefresher(refresher),
		)

		convey.Convey("When processing a valid upload", func() {
			err := w.Process(ctx, vtiUpload("u1"))

			convey.Convey("Then the scored table is stored and a refresh requested", func() {
				convey.So(err, convey.ShouldBeNil)
				table, err := store.Table(ctx, model.KindVTICompliance)
				convey.So(err, convey.ShouldBeNil)
				convey.So(table.UploadID, convey.ShouldEqual, "u1")
				convey.So(table.Config, convey.ShouldResemble, model.DefaultCatalog()[model.KindVTICompliance])
				convey.So(table.Records, convey.ShouldHaveLength, 2)
				convey.So(table.Records[0].Identity, convey.ShouldEqual, "alice")
				convey.So(table.Records[0].FairScore, convey.ShouldEqual, 4675)
				convey.So(table.Records[1].FairScore, convey.ShouldEqual, 850)
				convey.So(refresher.n.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the metric is not in the catalog", func() {
			u := vtiUpload("u2")
			u.Kind = "scrap_rate"
			err := w.Process(ctx, u)

			convey.Convey("Then it is rejected without touching the store", func() {
				convey.So(errors.Is(err, worker.ErrUnknownMetric), convey.ShouldBeTrue)
				convey.So(store.Tables(ctx), convey.ShouldBeEmpty)
				convey.So(refresher.n.Load(), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When scoring fails", func() {
			u := vtiUpload("u3")
			u.Records[1].PriorValue = math.NaN()
			err := w.Process(ctx, u)

			convey.Convey("Then the error surfaces and nothing is stored", func() {
				convey.So(errors.Is(err, scoring.ErrInvalidInput), convey.ShouldBeTrue)
				convey.So(store.Tables(ctx), convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a later submission was stored first", func() {
			later := vtiUpload("later")
			later.Seq = 2
			convey.So(w.Process(ctx, later), convey.ShouldBeNil)

			earlier := vtiUpload("earlier")
			earlier.Seq = 1
			earlier.Records = earlier.Records[:1]
			err := w.Process(ctx, earlier)

			convey.Convey("Then the earlier upload is dropped without error", func() {
				convey.So(err, convey.ShouldBeNil)
				table, err := store.Table(ctx, model.KindVTICompliance)
				convey.So(err, convey.ShouldBeNil)
				convey.So(table.UploadID, convey.ShouldEqual, "later")
				convey.So(table.Records, convey.ShouldHaveLength, 2)
				convey.So(refresher.n.Load(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When a catalog override is configured", func() {
			catalog := model.Catalog{"scrap_rate": {Direction: model.LowerIsBetter, Benchmark: 2, IncludeInLeaderboard: true}}
			w := worker.NewInMemoryWorker(nil, scoring.NewEngine(), store, worker.WithCatalog(catalog))
			u := vtiUpload("u4")
			u.Kind = "scrap_rate"

			convey.So(w.Process(ctx, u), convey.ShouldBeNil)
			_, err := store.Table(ctx, "scrap_rate")
			convey.So(err, convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a store that rejects writes", t, func() {
		w := worker.NewInMemoryWorker(nil, scoring.NewEngine(), failingWriter{err: errors.New("disk full")})
		err := w.Process(context.Background(), vtiUpload("u5"))
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "disk full")
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool draining a queue", t, func() {
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		store := repository.NewMemoryStore()
		refresher := &countingRefresher{}
		pool := worker.NewPool(3, q, scoring.NewEngine(), store, worker.WithRefresher(refresher))
		convey.So(pool.Size(), convey.ShouldEqual, 3)
		pool.Start(ctx)
		defer func() { _ = pool.Shutdown(ctx) }()

		convey.So(q.Enqueue(ctx, vtiUpload("a")), convey.ShouldBeNil)
		dpmo := vtiUpload("b")
		dpmo.Kind = model.KindVTIDPMO
		convey.So(q.Enqueue(ctx, dpmo), convey.ShouldBeNil)

		convey.Convey("Then every upload becomes a table", func() {
			convey.So(eventually(func() bool { return len(store.Tables(ctx)) == 2 }), convey.ShouldBeTrue)
			convey.So(eventually(func() bool { return refresher.n.Load() == 2 }), convey.ShouldBeTrue)
		})

		convey.Convey("Then shutdown closes the queue and waits for workers", func() {
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
			convey.So(len(store.Tables(ctx)), convey.ShouldEqual, 2)
		})
	})

	convey.Convey("Given a non-positive worker count", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), scoring.NewEngine(), repository.NewMemoryStore())
		convey.So(pool.Size(), convey.ShouldEqual, 1)
	})
}

func TestDebouncer(t *testing.T) {
	convey.Convey("Given a debouncer with a short delay", t, func() {
		var (
			mu    sync.Mutex
			calls int
		)
		d := worker.NewDebouncer(30*time.Millisecond, func(context.Context) error {
			mu.Lock()
			calls++
			mu.Unlock()
			return nil
		})
		count := func() int {
			mu.Lock()
			defer mu.Unlock()
			return calls
		}
		d.Start(context.Background())
		defer d.Stop()

		convey.Convey("When a burst of requests arrives", func() {
			for range 20 {
				d.Request()
			}

			convey.Convey("Then it refreshes once", func() {
				convey.So(eventually(func() bool { return count() == 1 }), convey.ShouldBeTrue)
				time.Sleep(80 * time.Millisecond)
				convey.So(count(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When requests are spread out", func() {
			d.Request()
			convey.So(eventually(func() bool { return count() == 1 }), convey.ShouldBeTrue)
			d.Request()

			convey.Convey("Then each one is served", func() {
				convey.So(eventually(func() bool { return count() == 2 }), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a refresh that fails", t, func() {
		done := make(chan struct{}, 1)
		d := worker.NewDebouncer(0, func(context.Context) error {
			done <- struct{}{}
			return errors.New("boom")
		})
		d.Start(context.Background())
		d.Request()

		convey.Convey("Then the loop keeps running", func() {
			<-done
			d.Request()
			<-done
			d.Stop()
			d.Stop()
		})
	})
}
