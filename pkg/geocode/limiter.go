package geocode

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MinInterval enforces a minimum delay between the return of one provider
// call and the start of the next. Callers Wait before a call and Mark after
// it returns. Cache and override hits never touch it.
type MinInterval struct {
	clock    clockwork.Clock
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewMinInterval creates a limiter. A nil clock uses the real clock.
func NewMinInterval(interval time.Duration, clock clockwork.Clock) *MinInterval {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MinInterval{clock: clock, interval: interval}
}

// Wait blocks until the interval has elapsed since the last Mark, or ctx is done.
func (l *MinInterval) Wait(ctx context.Context) error {
	l.mu.Lock()
	last := l.last
	l.mu.Unlock()

	if last.IsZero() || l.interval <= 0 {
		return ctx.Err()
	}

	remaining := l.interval - l.clock.Since(last)
	if remaining <= 0 {
		return ctx.Err()
	}

	timer := l.clock.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Mark records that a provider call has just returned.
func (l *MinInterval) Mark() {
	l.mu.Lock()
	l.last = l.clock.Now()
	l.mu.Unlock()
}

// Interval returns the configured minimum delay.
func (l *MinInterval) Interval() time.Duration { return l.interval }
