package fake

import (
	"sync"
	"time"

	"clusterlink/internal/clock"
)

var _ clock.Clock = (*Clock)(nil)

// Clock is a deterministic clock whose tickers only fire on Tick.
type Clock struct {
	CallRecorder

	mu      sync.Mutex
	now     time.Time
	tickers []*Ticker
}

// NewClock creates a Clock starting at the given time.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d without firing tickers.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *Clock) Ticker(d time.Duration) clock.Ticker {
	c.record("Ticker", d)
	t := &Ticker{Interval: d, ch: make(chan time.Time, 1)}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

// Tick fires every running ticker once. It reports whether any ticker was running.
func (c *Clock) Tick() bool {
	c.mu.Lock()
	c.now = c.now.Add(time.Nanosecond)
	now := c.now
	tickers := append([]*Ticker(nil), c.tickers...)
	c.mu.Unlock()

	fired := false
	for _, t := range tickers {
		if t.fire(now) {
			fired = true
		}
	}
	return fired
}

// Running returns the number of tickers that have not been stopped.
func (c *Clock) Running() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, t := range c.tickers {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// Ticker is a manually fired ticker.
type Ticker struct {
	Interval time.Duration

	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *Ticker) Chan() <-chan time.Time {
	return t.ch
}

func (t *Ticker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *Ticker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Ticker) fire(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	select {
	case t.ch <- now:
	default:
	}
	return true
}
