// Package messaging is the broker boundary of the load generator: an
// asynchronous publish that yields a handle, resolved later with a bounded
// wait.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrBrokerUnreachable is returned when no configured broker answers at startup.
	ErrBrokerUnreachable = errors.New("broker unreachable")
	// ErrTransportClosed is reported by handles issued after Close.
	ErrTransportClosed = errors.New("transport closed")
	// ErrAckTimeout is the cause attached to timed out handles.
	ErrAckTimeout = errors.New("acknowledgment timed out")
	// ErrDuplicateMessage is reported when the broker recognised the message
	// id and stored nothing.
	ErrDuplicateMessage = errors.New("duplicate message id")
)

// State is the lifecycle of one publish handle.
type State int

const (
	StatePending State = iota
	StateAcknowledged
	StateFailed
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateAcknowledged:
		return "acknowledged"
	case StateFailed:
		return "failed"
	case StateTimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome is the resolution of a handle. Err is nil only when acknowledged.
type Outcome struct {
	State State
	Err   error
}

// Handle is one in-flight publish.
type Handle interface {
	// Await blocks until the broker answers, timeout elapses or ctx is done.
	Await(ctx context.Context, timeout time.Duration) Outcome
}

// Transport publishes payloads to a broker.
type Transport interface {
	// Publish submits payload without waiting for the broker.
	Publish(ctx context.Context, topic string, key, payload []byte) Handle
	// Ping verifies that the broker is reachable.
	Ping(ctx context.Context) error
	// Flush waits until everything submitted so far has been answered.
	Flush(ctx context.Context) error
	Close() error
}

// Options selects and configures a transport.
type Options struct {
	Kind    string
	Brokers []string
	Kafka   KafkaConfig
	NATS    NATSConfig
	Redis   RedisConfig
	Memory  MemoryConfig
}

// Open builds the transport named by opts.Kind.
func Open(opts Options, logger *zap.Logger) (Transport, error) {
	switch opts.Kind {
	case "kafka":
		return NewKafkaTransport(opts.Brokers, opts.Kafka, logger), nil
	case "nats":
		return DialNATS(opts.Brokers, opts.NATS, logger)
	case "redis":
		return NewRedisTransport(opts.Brokers, opts.Redis, logger), nil
	case "memory":
		return NewMemoryTransport(opts.Memory), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", opts.Kind)
	}
}

// Failed returns a handle already resolved to StateFailed.
func Failed(err error) Handle {
	return resolvedHandle{Outcome{State: StateFailed, Err: err}}
}

type resolvedHandle struct {
	outcome Outcome
}

func (h resolvedHandle) Await(context.Context, time.Duration) Outcome {
	return h.outcome
}

// settled converts a broker result into an outcome.
func settled(err error) Outcome {
	if err != nil {
		return Outcome{State: StateFailed, Err: err}
	}
	return Outcome{State: StateAcknowledged}
}

// awaitSignal waits for done and then reads the broker result.
func awaitSignal(ctx context.Context, timeout time.Duration, done <-chan struct{}, result func() error) Outcome {
	select {
	case <-done:
		return settled(result())
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return settled(result())
	case <-timer.C:
		return Outcome{State: StateTimedOut, Err: fmt.Errorf("%w after %s", ErrAckTimeout, timeout)}
	case <-ctx.Done():
		return Outcome{State: StateTimedOut, Err: ctx.Err()}
	}
}
