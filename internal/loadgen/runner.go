// Package loadgen drives the batch loop: generate, send, resolve, pace,
// repeated until the configured duration elapses or the run is interrupted.
package loadgen

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Aidin1998/tradegen/internal/messaging"
	"github.com/Aidin1998/tradegen/internal/pacing"
	"github.com/Aidin1998/tradegen/internal/publisher"
	"github.com/Aidin1998/tradegen/internal/trade"
	"github.com/Aidin1998/tradegen/pkg/metrics"
	"go.uber.org/zap"
)

const (
	DefaultAckTimeout      = time.Second
	DefaultReportEvery     = 1000
	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrInvalidDuration = errors.New("loadgen: duration must be positive")
	ErrAlreadyStarted  = errors.New("loadgen: runner already started")
)

// Generator produces records.
type Generator interface {
	Generate() *trade.Record
}

// BatchSender issues publishes and resolves them once per batch.
type BatchSender interface {
	Send(ctx context.Context, rec *trade.Record) messaging.Handle
	ResolveAll(ctx context.Context, timeout time.Duration) publisher.BatchResult
}

// Broker is the part of the transport the runner releases at shutdown.
type Broker interface {
	Flush(ctx context.Context) error
	Close() error
}

// Settings are the run parameters, fixed for the life of a Runner.
type Settings struct {
	TargetRate      int
	BatchSize       int
	Duration        time.Duration
	AckTimeout      time.Duration
	ReportEvery     int
	ShutdownTimeout time.Duration
}

func (s *Settings) applyDefaults() {
	if s.AckTimeout <= 0 {
		s.AckTimeout = DefaultAckTimeout
	}
	if s.ReportEvery <= 0 {
		s.ReportEvery = DefaultReportEvery
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Runner executes one load run. It is single use.
type Runner struct {
	settings Settings
	gen      Generator
	sender   BatchSender
	broker   Broker
	pacer    *pacing.Controller
	clock    pacing.Clock
	logger   *zap.Logger

	stats    RunStats
	progress *Progress

	started  sync.Once
	shutdown sync.Once
	summary  Summary
}

// NewRunner validates settings and wires the collaborators. A nil clock
// selects the wall clock.
func NewRunner(settings Settings, gen Generator, sender BatchSender, broker Broker, clock pacing.Clock, logger *zap.Logger) (*Runner, error) {
	if clock == nil {
		clock = pacing.WallClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pacer, err := pacing.New(settings.TargetRate, settings.BatchSize, clock)
	if err != nil {
		return nil, err
	}
	if settings.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	settings.applyDefaults()

	return &Runner{
		settings: settings,
		gen:      gen,
		sender:   sender,
		broker:   broker,
		pacer:    pacer,
		clock:    clock,
		logger:   logger.Named("loadgen"),
		progress: newProgress(clock, settings.TargetRate),
	}, nil
}

// Progress exposes the live counters of the run.
func (r *Runner) Progress() *Progress { return r.progress }

// Run drives batches until the duration elapses or ctx is cancelled, then
// flushes and closes the broker exactly once. Cancellation is reported as
// StateInterrupted in the summary, not as an error.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	first := false
	r.started.Do(func() { first = true })
	if !first {
		return Summary{}, ErrAlreadyStarted
	}

	r.stats = RunStats{Start: r.clock.Now()}
	r.stats.checkpointAt = r.stats.Start
	r.progress.begin(r.stats.Start)
	metrics.TargetRate.Set(float64(r.pacer.TargetRate()))

	r.logger.Info("Run started",
		zap.Int("target_rate", r.pacer.TargetRate()),
		zap.Int("batch_size", r.pacer.BatchSize()),
		zap.Duration("duration", r.settings.Duration),
		zap.Duration("batch_interval", r.pacer.Interval()),
		zap.Duration("ack_timeout", r.settings.AckTimeout))

	state := StateCompleted
	for {
		if ctx.Err() != nil {
			state = StateInterrupted
			break
		}
		if r.clock.Now().Sub(r.stats.Start) >= r.settings.Duration {
			break
		}
		if !r.runBatch(ctx) {
			state = StateInterrupted
			break
		}
	}

	return r.finish(state), nil
}

// runBatch executes one batch cycle and reports whether the loop may go on.
func (r *Runner) runBatch(ctx context.Context) bool {
	start := r.pacer.BeginBatch()

	interrupted := false
	for i := 0; i < r.pacer.BatchSize(); i++ {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		r.sender.Send(ctx, r.gen.Generate())
		r.stats.Sent++
		r.progress.sent.Add(1)
		metrics.RecordsGenerated.Inc()
		if r.stats.Sent%r.settings.ReportEvery == 0 {
			r.reportProgress()
		}
	}

	// Handles already issued are drained even when the run is interrupted.
	res := r.sender.ResolveAll(context.WithoutCancel(ctx), r.settings.AckTimeout)
	r.stats.add(res)
	r.progress.record(res)
	metrics.BatchDuration.Observe(r.clock.Now().Sub(start).Seconds())
	if res.Errors() > 0 {
		r.logger.Debug("Batch resolved with errors",
			zap.Int("batch", r.stats.Batches),
			zap.Int("failed", res.Failed),
			zap.Int("timed_out", res.TimedOut))
	}

	if interrupted {
		return false
	}

	slept, err := r.pacer.AwaitBatchBoundary(ctx, start)
	if err != nil {
		return false
	}
	metrics.PacingSleep.Observe(slept.Seconds())
	return true
}

func (r *Runner) reportProgress() {
	now := r.clock.Now()
	elapsed := now.Sub(r.stats.Start)
	window := now.Sub(r.stats.checkpointAt)
	overall := rate(r.stats.Sent, elapsed)

	r.logger.Info("Progress",
		zap.Int("sent", r.stats.Sent),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate", overall),
		zap.Float64("instant_rate", rate(r.stats.Sent-r.stats.checkpointSent, window)))
	metrics.AchievedRate.Set(overall)

	r.stats.checkpointAt = now
	r.stats.checkpointSent = r.stats.Sent
}

// finish runs the shutdown sequence once. Flush and close errors are logged
// and do not alter the summary.
func (r *Runner) finish(state State) Summary {
	r.shutdown.Do(func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), r.settings.ShutdownTimeout)
		defer cancel()
		if err := r.broker.Flush(flushCtx); err != nil {
			r.logger.Error("Failed to flush transport", zap.Error(err))
		}
		if err := r.broker.Close(); err != nil {
			r.logger.Error("Failed to close transport", zap.Error(err))
		}

		end := r.clock.Now()
		elapsed := end.Sub(r.stats.Start)
		r.summary = Summary{
			State:        state,
			TotalSent:    r.stats.Sent,
			Acknowledged: r.stats.Acknowledged,
			Failed:       r.stats.Failed,
			TimedOut:     r.stats.TimedOut,
			Batches:      r.stats.Batches,
			Elapsed:      elapsed,
			AchievedRate: rate(r.stats.Sent, elapsed),
			TargetRate:   r.settings.TargetRate,
		}
		r.progress.finish(state, end)
		metrics.AchievedRate.Set(r.summary.AchievedRate)

		r.logger.Info("Run finished",
			zap.Stringer("state", state),
			zap.Int("total_sent", r.summary.TotalSent),
			zap.Int("acknowledged", r.summary.Acknowledged),
			zap.Int("failed", r.summary.Failed),
			zap.Int("timed_out", r.summary.TimedOut),
			zap.Int("batches", r.summary.Batches),
			zap.Duration("elapsed", r.summary.Elapsed),
			zap.Float64("achieved_rate", r.summary.AchievedRate),
			zap.Int("target_rate", r.summary.TargetRate))
	})
	return r.summary
}
