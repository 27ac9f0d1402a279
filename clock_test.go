package presence_test

import (
	"sync"
	"time"

	presence "github.com/WelcomerTeam/Presence-Kit"
)

// manualClock is a Clock whose time only moves when the test says so.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock(now time.Time) *manualClock {
	return &manualClock{now: now}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *manualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *manualClock) NewTicker(_ time.Duration) presence.Ticker {
	ticker := &manualTicker{
		c:       make(chan time.Time),
		stopped: make(chan struct{}),
	}

	c.mu.Lock()
	c.tickers = append(c.tickers, ticker)
	c.mu.Unlock()

	return ticker
}

// TickAt moves the clock to now and delivers a tick to every live ticker.
// It returns once each tick was received or its ticker stopped.
func (c *manualClock) TickAt(now time.Time) {
	c.mu.Lock()
	c.now = now
	tickers := append([]*manualTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, ticker := range tickers {
		select {
		case ticker.c <- now:
		case <-ticker.stopped:
		}
	}
}

// Tickers returns how many tickers were ever created.
func (c *manualClock) Tickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.tickers)
}

type manualTicker struct {
	c        chan time.Time
	stopped  chan struct{}
	stopOnce sync.Once
}

func (t *manualTicker) C() <-chan time.Time {
	return t.c
}

func (t *manualTicker) Stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
	})
}
