package retry

import (
	"context"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// BOUNDED RETRY - Shared reconciliation combinator
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every site that waits for a record written by another subsystem on its own
// schedule uses the same pattern: a fixed number of attempts, an explicit
// backoff schedule, and a give-up callback. Never a single best-effort read,
// never an unbounded loop.
//
// ═══════════════════════════════════════════════════════════════════════════════

// Schedule used when reconciling dispatched buys against the position store.
// Cumulative wait ~8.25s.
var ReconcileSchedule = []time.Duration{
	250 * time.Millisecond,
	500 * time.Millisecond,
	1 * time.Second,
	1500 * time.Millisecond,
	2 * time.Second,
	3 * time.Second,
}

// Policy is a bounded retry plan. Attempts equals len(Schedule): each attempt
// waits its scheduled delay first, then runs the probe.
type Policy struct {
	Schedule []time.Duration
	// OnGiveUp fires once when every attempt has failed to produce a match.
	OnGiveUp func()
	// Sleep is swappable for tests; defaults to a context-aware timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Do runs probe once per scheduled delay until it reports done or the
// schedule is exhausted. probe returning an error counts as a failed attempt
// but does not stop the loop; only context cancellation does.
func (p Policy) Do(ctx context.Context, probe func(ctx context.Context, attempt int) (done bool, err error)) (bool, error) {
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for i, delay := range p.Schedule {
		if err := sleep(ctx, delay); err != nil {
			return false, err
		}
		done, err := probe(ctx, i+1)
		if err != nil {
			lastErr = err
			continue
		}
		if done {
			return true, nil
		}
	}

	if p.OnGiveUp != nil {
		p.OnGiveUp()
	}
	return false, lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
