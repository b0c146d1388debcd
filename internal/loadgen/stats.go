package loadgen

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Aidin1998/tradegen/internal/pacing"
	"github.com/Aidin1998/tradegen/internal/publisher"
)

// State is the lifecycle of a Runner.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateInterrupted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateInterrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// RunStats are the cumulative counters of one run. Only the Runner goroutine
// touches them.
type RunStats struct {
	Sent         int
	Acknowledged int
	Failed       int
	TimedOut     int
	Batches      int
	Start        time.Time

	checkpointAt   time.Time
	checkpointSent int
}

func (s *RunStats) add(res publisher.BatchResult) {
	s.Acknowledged += res.Acknowledged
	s.Failed += res.Failed
	s.TimedOut += res.TimedOut
	s.Batches++
}

// Summary is the final report of a run.
type Summary struct {
	State        State         `json:"-"`
	TotalSent    int           `json:"total_sent"`
	Acknowledged int           `json:"acknowledged"`
	Failed       int           `json:"failed"`
	TimedOut     int           `json:"timed_out"`
	Batches      int           `json:"batches"`
	Elapsed      time.Duration `json:"elapsed"`
	AchievedRate float64       `json:"achieved_rate"`
	TargetRate   int           `json:"target_rate"`
}

func rate(count int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed.Seconds()
}

// Progress is a lock-free view of a run for readers outside the Runner
// goroutine, such as the status endpoint.
type Progress struct {
	clock      pacing.Clock
	targetRate int

	state        atomic.Int32
	sent         atomic.Int64
	acknowledged atomic.Int64
	failed       atomic.Int64
	timedOut     atomic.Int64
	batches      atomic.Int64
	startedAt    atomic.Int64
	finishedAt   atomic.Int64
}

// ProgressSnapshot is a point-in-time copy of Progress.
type ProgressSnapshot struct {
	State          string  `json:"state"`
	Sent           int64   `json:"sent"`
	Acknowledged   int64   `json:"acknowledged"`
	Failed         int64   `json:"failed"`
	TimedOut       int64   `json:"timed_out"`
	Batches        int64   `json:"batches"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Rate           float64 `json:"rate"`
	TargetRate     int     `json:"target_rate"`
}

func newProgress(clock pacing.Clock, targetRate int) *Progress {
	return &Progress{clock: clock, targetRate: targetRate}
}

func (p *Progress) State() State { return State(p.state.Load()) }

// Snapshot reads the counters. Values may be a record or a batch apart from
// each other while the run is active.
func (p *Progress) Snapshot() ProgressSnapshot {
	snap := ProgressSnapshot{
		State:        p.State().String(),
		Sent:         p.sent.Load(),
		Acknowledged: p.acknowledged.Load(),
		Failed:       p.failed.Load(),
		TimedOut:     p.timedOut.Load(),
		Batches:      p.batches.Load(),
		TargetRate:   p.targetRate,
	}
	started := p.startedAt.Load()
	if started == 0 {
		return snap
	}
	end := p.finishedAt.Load()
	if end == 0 {
		end = p.clock.Now().UnixNano()
	}
	elapsed := time.Duration(end - started)
	snap.ElapsedSeconds = elapsed.Seconds()
	snap.Rate = rate(int(snap.Sent), elapsed)
	return snap
}

func (p *Progress) begin(at time.Time) {
	p.startedAt.Store(at.UnixNano())
	p.state.Store(int32(StateRunning))
}

func (p *Progress) record(res publisher.BatchResult) {
	p.acknowledged.Add(int64(res.Acknowledged))
	p.failed.Add(int64(res.Failed))
	p.timedOut.Add(int64(res.TimedOut))
	p.batches.Add(1)
}

func (p *Progress) finish(state State, at time.Time) {
	p.finishedAt.Store(at.UnixNano())
	p.state.Store(int32(state))
}
