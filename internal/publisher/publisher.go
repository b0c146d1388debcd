// Package publisher fans a batch of trade records out to a transport and
// resolves every handle before the batch is considered done.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aidin1998/tradegen/internal/messaging"
	"github.com/Aidin1998/tradegen/internal/trade"
	"github.com/Aidin1998/tradegen/pkg/metrics"
	"go.uber.org/zap"
)

// Encoder turns a record into the broker payload.
type Encoder func(*trade.Record) ([]byte, error)

// BatchResult tallies one resolved batch.
type BatchResult struct {
	Sent         int
	Acknowledged int
	Failed       int
	TimedOut     int
}

// Errors is the number of handles that did not end acknowledged.
func (r BatchResult) Errors() int { return r.Failed + r.TimedOut }

type inflight struct {
	tradeID string
	handle  messaging.Handle
}

// BatchPublisher owns the handles of exactly one batch at a time.
type BatchPublisher struct {
	transport messaging.Transport
	topic     string
	encode    Encoder
	logger    *zap.Logger
	arena     []inflight
}

// Option customises a BatchPublisher.
type Option func(*BatchPublisher)

// WithEncoder replaces JSON serialisation.
func WithEncoder(enc Encoder) Option {
	return func(p *BatchPublisher) {
		p.encode = enc
	}
}

// New creates a publisher whose arena is sized for capacity records.
func New(transport messaging.Transport, topic string, capacity int, logger *zap.Logger, opts ...Option) *BatchPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &BatchPublisher{
		transport: transport,
		topic:     topic,
		encode:    func(r *trade.Record) ([]byte, error) { return json.Marshal(r) },
		logger:    logger.Named("publisher"),
		arena:     make([]inflight, 0, capacity),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Send serialises rec and submits it keyed by its trade ID. It does not wait
// for the broker. A serialisation error is reported through the handle.
func (p *BatchPublisher) Send(ctx context.Context, rec *trade.Record) messaging.Handle {
	var h messaging.Handle
	payload, err := p.encode(rec)
	if err != nil {
		h = messaging.Failed(fmt.Errorf("encode %s: %w", rec.TradeID, err))
	} else {
		h = p.transport.Publish(ctx, p.topic, []byte(rec.TradeID), payload)
	}
	p.arena = append(p.arena, inflight{tradeID: rec.TradeID, handle: h})
	return h
}

// Pending is the number of handles issued in the current batch.
func (p *BatchPublisher) Pending() int { return len(p.arena) }

// ResolveAll waits for each outstanding handle up to timeout and clears the
// batch. Failures are logged and counted; they never stop resolution of the
// remaining handles.
func (p *BatchPublisher) ResolveAll(ctx context.Context, timeout time.Duration) BatchResult {
	res := BatchResult{Sent: len(p.arena)}
	for i := range p.arena {
		out := p.arena[i].handle.Await(ctx, timeout)
		switch out.State {
		case messaging.StateAcknowledged:
			res.Acknowledged++
		case messaging.StateTimedOut:
			res.TimedOut++
			p.logger.Warn("Publish timed out",
				zap.String("trade_id", p.arena[i].tradeID),
				zap.Duration("timeout", timeout),
				zap.Error(out.Err))
		default:
			res.Failed++
			p.logger.Warn("Publish failed",
				zap.String("trade_id", p.arena[i].tradeID),
				zap.Error(out.Err))
		}
		metrics.PublishOutcomes.WithLabelValues(out.State.String()).Inc()
	}

	clear(p.arena)
	p.arena = p.arena[:0]
	return res
}
