package messaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	MaxPending     int           `mapstructure:"max_pending" yaml:"max_pending" json:"max_pending" validate:"gt=0"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout" json:"connect_timeout" validate:"gt=0"`
}

// natsConn is the part of *nats.Conn the transport uses.
type natsConn interface {
	IsClosed() bool
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// asyncPublisher is the part of nats.JetStreamContext the transport uses.
type asyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
	PublishAsyncComplete() <-chan struct{}
}

// NATSTransport publishes to JetStream subjects. The topic is used as the
// subject and a stream must already capture it.
type NATSTransport struct {
	nc     natsConn
	js     asyncPublisher
	logger *zap.Logger
}

// DialNATS connects to the given servers. Connection failure is reported as
// ErrBrokerUnreachable.
func DialNATS(servers []string, cfg NATSConfig, logger *zap.Logger) (*NATSTransport, error) {
	logger = logger.Named("nats")

	nc, err := nats.Connect(strings.Join(servers, ","),
		nats.Name("tradegen"),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Warn("NATS async error", zap.Error(err))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}

	js, err := nc.JetStream(nats.PublishAsyncMaxPending(cfg.MaxPending))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	return &NATSTransport{nc: nc, js: js, logger: logger}, nil
}

// Publish submits the payload with the key as message id, so JetStream drops
// duplicates inside its dedup window. A dropped duplicate resolves to
// ErrDuplicateMessage rather than an acknowledgment.
func (t *NATSTransport) Publish(_ context.Context, topic string, key, payload []byte) Handle {
	if t.nc.IsClosed() {
		return Failed(ErrTransportClosed)
	}
	fut, err := t.js.PublishAsync(topic, payload, nats.MsgId(string(key)))
	if err != nil {
		return Failed(err)
	}
	return natsHandle{fut: fut}
}

// Ping round-trips to the server.
func (t *NATSTransport) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := t.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}
	return nil
}

// Flush waits for all outstanding acks.
func (t *NATSTransport) Flush(ctx context.Context) error {
	select {
	case <-t.js.PublishAsyncComplete():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("nats flush: %w", ctx.Err())
	}
}

// Close drains the connection.
func (t *NATSTransport) Close() error {
	if t.nc.IsClosed() {
		return nil
	}
	return t.nc.Drain()
}

type natsHandle struct {
	fut nats.PubAckFuture
}

func (h natsHandle) Await(ctx context.Context, timeout time.Duration) Outcome {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ack := <-h.fut.Ok():
		if ack != nil && ack.Duplicate {
			return Outcome{State: StateFailed, Err: fmt.Errorf("%w: stream %s seq %d", ErrDuplicateMessage, ack.Stream, ack.Sequence)}
		}
		return Outcome{State: StateAcknowledged}
	case err := <-h.fut.Err():
		return settled(err)
	case <-timer.C:
		return Outcome{State: StateTimedOut, Err: fmt.Errorf("%w after %s", ErrAckTimeout, timeout)}
	case <-ctx.Done():
		return Outcome{State: StateTimedOut, Err: ctx.Err()}
	}
}
