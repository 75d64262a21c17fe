package traversal

import (
	"context"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
)

// Backoff controls how a strategy waits for a response it depends on: it
// yields the processor Spins times, then sleeps with exponentially growing
// intervals from MinSleep up to MaxSleep.
type Backoff struct {
	Spins    int
	MinSleep time.Duration
	MaxSleep time.Duration
}

// DefaultBackoff returns the default wait policy.
func DefaultBackoff() Backoff {
	return Backoff{
		Spins:    100,
		MinSleep: 50 * time.Microsecond,
		MaxSleep: 10 * time.Millisecond,
	}
}

type waiter struct {
	Backoff
	clock  clockwork.Clock
	onWait func()
}

func (w *waiter) wait(ctx context.Context, attempt int) error {
	if attempt < w.Spins {
		runtime.Gosched()
		return ctx.Err()
	}
	if w.onWait != nil {
		w.onWait()
	}
	d := w.MinSleep << min(attempt-w.Spins, 20)
	if d <= 0 || d > w.MaxSleep {
		d = w.MaxSleep
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-w.clock.After(d):
		return nil
	}
}

// waitFor blocks until cond returns true.
func (w *waiter) waitFor(ctx context.Context, cond func() bool) error {
	for attempt := 0; !cond(); attempt++ {
		if err := w.wait(ctx, attempt); err != nil {
			return err
		}
	}
	return nil
}
