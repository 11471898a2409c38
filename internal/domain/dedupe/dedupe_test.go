package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	dedupe "github.com/okian/tom/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		d := dedupe.NewInMemoryDeduper()
		So(d.Size(), ShouldEqual, 0)

		Convey("When an upload ID is new", func() {
			seen := d.SeenAndRecord(ctx, "upload-1")

			Convey("Then it is recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an upload ID repeats", func() {
			d.SeenAndRecord(ctx, "upload-1")
			seen := d.SeenAndRecord(ctx, "upload-1")

			Convey("Then it is reported as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When an upload ID is unrecorded", func() {
			d.SeenAndRecord(ctx, "upload-1")
			d.Unrecord(ctx, "upload-1")
			d.Unrecord(ctx, "never-seen")

			Convey("Then it can be recorded again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "upload-1"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))

		Convey("When more IDs than the bound are recorded", func() {
			for i := range 4 {
				d.SeenAndRecord(ctx, fmt.Sprintf("upload-%d", i))
			}

			Convey("Then the oldest ID is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "upload-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "upload-1"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "upload-0"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
		for i := range 20_000 {
			d.SeenAndRecord(ctx, fmt.Sprintf("upload-%d", i))
		}
		So(d.Size(), ShouldEqual, 20_000)
		So(d.SeenAndRecord(ctx, "upload-0"), ShouldBeTrue)
	})
}

func TestInMemoryDeduperConcurrency(t *testing.T) {
	Convey("Given many goroutines racing on the same IDs", t, func() {
		d := dedupe.NewInMemoryDeduper()
		ctx := context.Background()

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			fresh  int
			rounds = 8
			ids    = 100
		)
		for range rounds {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range ids {
					if !d.SeenAndRecord(ctx, fmt.Sprintf("upload-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then every ID is recorded exactly once", func() {
			So(fresh, ShouldEqual, ids)
			So(d.Size(), ShouldEqual, ids)
		})
	})
}
