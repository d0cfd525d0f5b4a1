package timer

import (
	"sync"
	"time"
)

// FakeClock is a manually driven Clock for tests: Advance delivers ticks to
// every live ticker so countdowns progress without real time passing.
type FakeClock struct {
	mu      sync.Mutex
	tickers []*fakeTicker
}

func NewFakeClock() *FakeClock {
	return &FakeClock{}
}

func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	t := &fakeTicker{
		ch:   make(chan time.Time),
		done: make(chan struct{}),
	}
	f.mu.Lock()
	f.tickers = append(f.tickers, t)
	f.mu.Unlock()
	return t
}

// Advance delivers n one-second ticks. Delivery to a ticker blocks until the
// consumer picks the tick up or stops the ticker, which keeps test ordering
// deterministic.
func (f *FakeClock) Advance(n int) {
	for i := 0; i < n; i++ {
		f.mu.Lock()
		tickers := make([]*fakeTicker, len(f.tickers))
		copy(tickers, f.tickers)
		f.mu.Unlock()

		now := time.Now()
		for _, t := range tickers {
			select {
			case t.ch <- now:
			case <-t.done:
			}
		}
	}
}

type fakeTicker struct {
	ch       chan time.Time
	done     chan struct{}
	stopOnce sync.Once
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}
