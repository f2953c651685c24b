package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) emit(_ context.Context, s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 100, Percent(0, 0))
	assert.Equal(t, 0, Percent(0, 3))
	assert.Equal(t, 33, Percent(1, 3))
	assert.Equal(t, 66, Percent(2, 3))
	assert.Equal(t, 100, Percent(3, 3))
	assert.Equal(t, 99, Percent(999, 1000))
}

func TestTrackerThrottlesByInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	rec := &recorder{}
	tr := NewTracker(10, Options{Interval: time.Second, Now: clock.Now}, rec.emit)
	ctx := context.Background()

	// Fast outcomes inside one interval are not emitted.
	for i := 0; i < 4; i++ {
		tr.Observe(ctx, Completed)
	}
	assert.Empty(t, rec.snaps)

	clock.Advance(time.Second)
	tr.Observe(ctx, Completed)
	require.Len(t, rec.snaps, 1)
	assert.Equal(t, 5, rec.snaps[0].Completed)
	assert.Equal(t, 50, rec.snaps[0].Percent)

	// Interval elapsed but nothing changed: a failure does not move the counters.
	clock.Advance(time.Second)
	tr.Observe(ctx, Failed)
	assert.Len(t, rec.snaps, 1)

	// The next change is due immediately; the two after it are throttled.
	for i := 0; i < 4; i++ {
		tr.Observe(ctx, Completed)
	}
	require.Len(t, rec.snaps, 3)
	assert.Equal(t, 6, rec.snaps[1].Completed)
	last := rec.snaps[2]
	assert.True(t, last.Final)
	assert.Equal(t, 9, last.Completed)
	assert.Equal(t, 90, last.Percent)
}

func TestTrackerAlwaysEmitsFinal(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(3, Options{Interval: time.Hour}, rec.emit)
	ctx := context.Background()

	tr.Observe(ctx, Completed)
	tr.Observe(ctx, Completed)
	tr.Observe(ctx, Completed)

	require.Len(t, rec.snaps, 1)
	assert.Equal(t, Snapshot{Total: 3, Seen: 3, Completed: 3, Percent: 100, Final: true}, rec.snaps[0])

	tr.Observe(ctx, Completed)
	assert.Len(t, rec.snaps, 1, "final is sent once")
}

func TestTrackerPercentOfSeen(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(4, Options{PercentOfSeen: true, Interval: time.Hour}, rec.emit)
	ctx := context.Background()

	tr.Observe(ctx, Completed)
	tr.Observe(ctx, Missing)
	s := tr.Snapshot()
	assert.Equal(t, 50, s.Percent)
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1, s.Missing)

	tr.Observe(ctx, Missing)
	tr.Observe(ctx, Completed)
	require.Len(t, rec.snaps, 1)
	assert.Equal(t, 100, rec.snaps[0].Percent)
	assert.Equal(t, 2, rec.snaps[0].Missing)
}

func TestTrackerConcurrentEmissionsAreMonotonic(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(2000, Options{Interval: time.Nanosecond}, rec.emit)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				tr.Observe(ctx, Completed)
			}
		}()
	}
	wg.Wait()

	require.NotEmpty(t, rec.snaps)
	for i := 1; i < len(rec.snaps); i++ {
		assert.GreaterOrEqual(t, rec.snaps[i].Completed, rec.snaps[i-1].Completed)
	}
	last := rec.snaps[len(rec.snaps)-1]
	assert.Equal(t, 2000, last.Completed)
	assert.True(t, last.Final)
}
