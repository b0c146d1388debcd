package pacing

import (
	"context"
	"testing"
	"time"

	"github.com/Aidin1998/tradegen/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewRejectsNonPositiveSettings(t *testing.T) {
	_, err := New(0, 10, nil)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = New(-5, 10, nil)
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, err = New(100, 0, nil)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)
}

func TestInterval(t *testing.T) {
	cases := []struct {
		rate, batch int
		want        time.Duration
	}{
		{100, 10, 100 * time.Millisecond},
		{1, 1, time.Second},
		{700, 100, 142857142 * time.Nanosecond},
		{10, 50, 5 * time.Second},
	}
	for _, tc := range cases {
		c, err := New(tc.rate, tc.batch, nil)
		require.NoError(t, err)
		assert.Equal(t, tc.want, c.Interval(), "rate=%d batch=%d", tc.rate, tc.batch)
		assert.Equal(t, tc.rate, c.TargetRate())
		assert.Equal(t, tc.batch, c.BatchSize())
	}
}

func TestAwaitBatchBoundarySleepsResidual(t *testing.T) {
	clock := testutil.NewManualClock(epoch)
	c, err := New(100, 10, clock)
	require.NoError(t, err)

	start := c.BeginBatch()
	assert.Equal(t, epoch.Add(100*time.Millisecond), c.Deadline(start))
	clock.Advance(30 * time.Millisecond)

	slept, err := c.AwaitBatchBoundary(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 70*time.Millisecond, slept)
	assert.Equal(t, c.Deadline(start), clock.Now())
}

func TestAwaitBatchBoundaryDoesNotCatchUp(t *testing.T) {
	clock := testutil.NewManualClock(epoch)
	c, err := New(100, 10, clock)
	require.NoError(t, err)

	// Overrun: the batch took 250ms of a 100ms budget.
	start := c.BeginBatch()
	clock.Advance(250 * time.Millisecond)
	slept, err := c.AwaitBatchBoundary(context.Background(), start)
	require.NoError(t, err)
	assert.Zero(t, slept)

	// The following batch gets exactly its own budget, no shortened sleep.
	start = c.BeginBatch()
	clock.Advance(10 * time.Millisecond)
	slept, err = c.AwaitBatchBoundary(context.Background(), start)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Millisecond, slept)
	assert.Equal(t, []time.Duration{90 * time.Millisecond}, clock.Sleeps())
}

func TestAwaitBatchBoundaryInterrupted(t *testing.T) {
	clock := testutil.NewManualClock(epoch)
	c, err := New(1, 1, clock)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.AwaitBatchBoundary(ctx, c.BeginBatch())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, clock.Sleeps())
}

func TestWallClockSleep(t *testing.T) {
	clock := WallClock()

	start := time.Now()
	require.NoError(t, clock.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start = time.Now()
	assert.ErrorIs(t, clock.Sleep(ctx, time.Minute), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRealTimePacingHoldsRate(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping real-time pacing test in short mode")
	}

	c, err := New(50, 5, WallClock())
	require.NoError(t, err)

	var wakes []time.Time
	for i := 0; i < 5; i++ {
		start := c.BeginBatch()
		_, err := c.AwaitBatchBoundary(context.Background(), start)
		require.NoError(t, err)
		wakes = append(wakes, time.Now())
	}

	for _, gap := range testutil.Gaps(wakes) {
		assert.InDelta(t, c.Interval().Seconds(), gap.Seconds(), 0.05)
	}
}
