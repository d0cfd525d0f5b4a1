package timer

import (
	"sync"
	"time"
)

// Countdown is a one-second-resolution countdown for a single question.
// At most one countdown is active per instance: Start implicitly cancels any
// prior run, the timeout callback fires at most once per run, and Cancel wins
// over a racing zero-crossing as long as it is requested before the timeout
// callback has begun executing.
type Countdown struct {
	clock Clock

	mu   sync.Mutex
	gen  uint64
	stop chan struct{}
}

func NewCountdown(clock Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Start begins a new countdown of durationSeconds. onTick is invoked once per
// elapsed second with the updated remaining value, down to and including 0;
// onTimeout is invoked exactly once when the countdown reaches 0. A
// non-positive duration times out immediately.
func (c *Countdown) Start(durationSeconds int, onTick func(secondsRemaining int), onTimeout func()) {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	c.gen++
	gen := c.gen
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	if durationSeconds <= 0 {
		go func() {
			if !c.claim(gen) {
				return
			}
			if onTimeout != nil {
				onTimeout()
			}
		}()
		return
	}

	go c.run(gen, stop, durationSeconds, onTick, onTimeout)
}

// Cancel stops the active countdown, if any, and guarantees its timeout will
// not fire. Safe to call when idle.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.gen++
}

func (c *Countdown) run(gen uint64, stop <-chan struct{}, remaining int, onTick func(int), onTimeout func()) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			remaining--
			if remaining > 0 {
				if !c.isCurrent(gen) {
					return
				}
				if onTick != nil {
					onTick(remaining)
				}
				continue
			}
			// Claiming invalidates the run before the callbacks execute, so a
			// concurrent Cancel either got in first (and we stay silent) or
			// arrives too late to matter.
			if !c.claim(gen) {
				return
			}
			if onTick != nil {
				onTick(0)
			}
			if onTimeout != nil {
				onTimeout()
			}
			return
		}
	}
}

func (c *Countdown) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

func (c *Countdown) claim(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.gen++
	c.stop = nil
	return true
}
