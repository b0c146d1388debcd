// Package pacing holds a batch publisher to a target records-per-second rate
// by sleeping away whatever is left of each batch interval.
package pacing

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidRate      = errors.New("pacing: target rate must be positive")
	ErrInvalidBatchSize = errors.New("pacing: batch size must be positive")
)

// Clock is the time source the controller measures and sleeps with.
type Clock interface {
	Now() time.Time
	// Sleep pauses for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// WallClock returns the real clock.
func WallClock() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Controller paces fixed-size batches. A batch that overruns its interval is
// not compensated later: under backpressure the achieved rate falls below
// target instead of bursting.
type Controller struct {
	targetRate int
	batchSize  int
	interval   time.Duration
	clock      Clock
}

// New derives the batch interval, batchSize / targetRate seconds.
func New(targetRate, batchSize int, clock Clock) (*Controller, error) {
	if targetRate <= 0 {
		return nil, ErrInvalidRate
	}
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	if clock == nil {
		clock = WallClock()
	}
	return &Controller{
		targetRate: targetRate,
		batchSize:  batchSize,
		interval:   time.Duration(batchSize) * time.Second / time.Duration(targetRate),
		clock:      clock,
	}, nil
}

// Interval is the time budget of one batch.
func (c *Controller) Interval() time.Duration { return c.interval }

// TargetRate is the configured rate in records per second.
func (c *Controller) TargetRate() int { return c.targetRate }

// BatchSize is the number of records per batch.
func (c *Controller) BatchSize() int { return c.batchSize }

// BeginBatch marks the start of a batch.
func (c *Controller) BeginBatch() time.Time { return c.clock.Now() }

// Deadline is the earliest time the batch started at start may be followed by
// the next one.
func (c *Controller) Deadline(start time.Time) time.Time { return start.Add(c.interval) }

// AwaitBatchBoundary sleeps for the remainder of the interval that began at
// start and returns how long it slept. It returns ctx.Err() if interrupted.
func (c *Controller) AwaitBatchBoundary(ctx context.Context, start time.Time) (time.Duration, error) {
	remaining := c.interval - c.clock.Now().Sub(start)
	if remaining <= 0 {
		return 0, nil
	}
	if err := c.clock.Sleep(ctx, remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}
