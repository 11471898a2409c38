package worker

import (
	"context"
	"sync"
	"time"

	"github.com/okian/tom/pkg/logger"
)

// RefreshFunc rebuilds the leaderboard.
type RefreshFunc func(ctx context.Context) error

// Debouncer coalesces refresh requests. After the first request it waits
// delay, then calls fn once for every request seen in the meantime.
type Debouncer struct {
	delay    time.Duration
	fn       RefreshFunc
	requests chan struct{}

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	logger logger.Logger
}

var _ Refresher = (*Debouncer)(nil)

// NewDebouncer creates a debouncer around fn.
func NewDebouncer(delay time.Duration, fn RefreshFunc) *Debouncer {
	return &Debouncer{
		delay:    max(delay, 0),
		fn:       fn,
		requests: make(chan struct{}, 1),
		stop:     make(chan struct{}),
		logger:   logger.Get().Named("refresher"),
	}
}

// Request asks for a refresh without blocking.
func (d *Debouncer) Request() {
	select {
	case d.requests <- struct{}{}:
	default:
	}
}

// Start runs the refresh loop until Stop or ctx is done.
func (d *Debouncer) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case <-d.stop:
				return
			case <-d.requests:
			}

			if d.delay > 0 {
				timer := time.NewTimer(d.delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-d.stop:
					timer.Stop()
					return
				case <-timer.C:
				}
			}
			// Requests that arrived while waiting are served by this call.
			select {
			case <-d.requests:
			default:
			}

			if err := d.fn(ctx); err != nil {
				d.logger.Error(ctx, "leaderboard refresh failed", logger.Error(err))
			}
		}
	}()
}

// Stop ends the refresh loop and waits for an in-flight refresh.
func (d *Debouncer) Stop() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}
