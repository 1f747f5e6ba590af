package recorder

import (
	"sync"
	"time"
)

// Scheduler emits cadence ticks to subscribers. It decouples wall-clock
// scheduling from the recorder so tests can drive ticks deterministically.
type Scheduler interface {
	// Subscribe registers fn to be called on every tick until the returned
	// cancel function is invoked. Cancel is idempotent.
	Subscribe(fn func()) (cancel func())
}

// IntervalScheduler ticks at a fixed wall-clock interval, one goroutine per
// subscription.
type IntervalScheduler struct {
	interval time.Duration
}

func NewIntervalScheduler(interval time.Duration) *IntervalScheduler {
	return &IntervalScheduler{interval: interval}
}

func (s *IntervalScheduler) Subscribe(fn func()) func() {
	ticker := time.NewTicker(s.interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
