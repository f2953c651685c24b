// Package progress aggregates per-tile outcomes into throttled progress snapshots.
//
// A Tracker is fed one Mark per tile by concurrently running workers. It keeps
// the running counts and calls its Emitter when an update is due: on the final
// outcome, or when the interval has elapsed and the percentage or one of the
// counts changed since the last emission. Emissions are serialized, so
// observers see non-decreasing counts.
package progress

import (
	"context"
	"sync"
	"time"
)

// Default throttle intervals
const (
	DefaultInterval           = time.Second
	DefaultRedownloadInterval = 500 * time.Millisecond
)

// Mark classifies one observed outcome
type Mark int

const (
	// Completed advances the completed (or verified) count
	Completed Mark = iota
	// Missing advances the missing count
	Missing
	// Failed is observed but advances nothing
	Failed
)

// Snapshot is a point-in-time view of the counters
type Snapshot struct {
	Total     int
	Seen      int
	Completed int
	Missing   int
	Percent   int
	Final     bool
}

// Emitter receives snapshots that passed the throttle
type Emitter func(ctx context.Context, s Snapshot)

// Options configures a Tracker
type Options struct {
	// Interval is the minimum time between non-final emissions.
	// Default: 1s
	Interval time.Duration

	// PercentOfSeen computes the percentage from observed outcomes instead
	// of completed ones. Verification reports percent checked this way.
	PercentOfSeen bool

	// Now overrides the clock in tests
	Now func() time.Time
}

// Tracker counts outcomes and throttles emissions
type Tracker struct {
	opts Options
	emit Emitter

	mu            sync.Mutex
	total         int
	seen          int
	completed     int
	missing       int
	lastEmit      time.Time
	lastPercent   int
	lastCompleted int
	lastMissing   int
	finalSent     bool
}

// NewTracker creates a tracker expecting total outcomes
func NewTracker(total int, opts Options, emit Emitter) *Tracker {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if emit == nil {
		emit = func(context.Context, Snapshot) {}
	}
	return &Tracker{
		opts:     opts,
		emit:     emit,
		total:    total,
		lastEmit: opts.Now(),
	}
}

// Observe records one outcome and emits if due
func (t *Tracker) Observe(ctx context.Context, m Mark) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seen++
	switch m {
	case Completed:
		t.completed++
	case Missing:
		t.missing++
	}

	s := t.snapshotLocked()
	now := t.opts.Now()

	if !s.Final {
		if now.Sub(t.lastEmit) < t.opts.Interval {
			return
		}
		if s.Percent == t.lastPercent && s.Completed == t.lastCompleted && s.Missing == t.lastMissing {
			return
		}
	} else if t.finalSent {
		return
	}

	t.lastEmit = now
	t.lastPercent = s.Percent
	t.lastCompleted = s.Completed
	t.lastMissing = s.Missing
	t.finalSent = s.Final
	t.emit(ctx, s)
}

// Snapshot returns the current counters
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	basis := t.completed
	if t.opts.PercentOfSeen {
		basis = t.seen
	}
	return Snapshot{
		Total:     t.total,
		Seen:      t.seen,
		Completed: t.completed,
		Missing:   t.missing,
		Percent:   Percent(basis, t.total),
		Final:     t.seen >= t.total,
	}
}

// Percent returns floor(done/total*100), and 100 for an empty total
func Percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	if done >= total {
		return 100
	}
	return done * 100 / total
}
