package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInjectedFailure is the error the memory transport reports for failures
// requested through MemoryConfig.FailEvery.
var ErrInjectedFailure = errors.New("injected publish failure")

// MemoryConfig configures the in-process transport.
type MemoryConfig struct {
	// FailEvery fails every Nth publish; 0 disables fault injection.
	FailEvery int64 `mapstructure:"fail_every" yaml:"fail_every" json:"fail_every" validate:"gte=0"`
	// Latency delays every acknowledgment.
	Latency time.Duration `mapstructure:"latency" yaml:"latency" json:"latency" validate:"gte=0"`
}

// MemoryTransport acknowledges payloads without any network. It backs dry
// runs and lets tests observe what the publisher did.
type MemoryTransport struct {
	cfg MemoryConfig

	published   atomic.Int64
	acked       atomic.Int64
	failed      atomic.Int64
	outstanding atomic.Int64
	pending     sync.WaitGroup
	closed      atomic.Bool

	mu        sync.Mutex
	onPublish func(topic string, key, payload []byte)
}

func NewMemoryTransport(cfg MemoryConfig) *MemoryTransport {
	return &MemoryTransport{cfg: cfg}
}

// OnPublish installs a hook called synchronously for every accepted payload.
func (t *MemoryTransport) OnPublish(fn func(topic string, key, payload []byte)) {
	t.mu.Lock()
	t.onPublish = fn
	t.mu.Unlock()
}

func (t *MemoryTransport) Publish(_ context.Context, topic string, key, payload []byte) Handle {
	if t.closed.Load() {
		return Failed(ErrTransportClosed)
	}

	n := t.published.Add(1)
	t.outstanding.Add(1)

	t.mu.Lock()
	hook := t.onPublish
	t.mu.Unlock()
	if hook != nil {
		hook(topic, key, payload)
	}

	var err error
	if t.cfg.FailEvery > 0 && n%t.cfg.FailEvery == 0 {
		err = fmt.Errorf("%w: message %d", ErrInjectedFailure, n)
	}

	h := &memoryHandle{transport: t, done: make(chan struct{})}
	t.pending.Add(1)
	if t.cfg.Latency > 0 {
		time.AfterFunc(t.cfg.Latency, func() { h.resolve(err) })
	} else {
		h.resolve(err)
	}
	return h
}

func (t *MemoryTransport) Ping(context.Context) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	return nil
}

// Flush waits for delayed acknowledgments.
func (t *MemoryTransport) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("memory flush: %w", ctx.Err())
	}
}

func (t *MemoryTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// Published is the number of payloads accepted.
func (t *MemoryTransport) Published() int64 { return t.published.Load() }

// Acknowledged is the number of payloads resolved successfully.
func (t *MemoryTransport) Acknowledged() int64 { return t.acked.Load() }

// FailedCount is the number of payloads resolved with an injected failure.
func (t *MemoryTransport) FailedCount() int64 { return t.failed.Load() }

// Outstanding is the number of handles issued but not yet awaited.
func (t *MemoryTransport) Outstanding() int64 { return t.outstanding.Load() }

// Closed reports whether Close has been called.
func (t *MemoryTransport) Closed() bool { return t.closed.Load() }

type memoryHandle struct {
	transport *MemoryTransport
	done      chan struct{}
	resolved  sync.Once
	awaited   sync.Once
	err       error
}

func (h *memoryHandle) resolve(err error) {
	h.resolved.Do(func() {
		h.err = err
		if err != nil {
			h.transport.failed.Add(1)
		} else {
			h.transport.acked.Add(1)
		}
		close(h.done)
		h.transport.pending.Done()
	})
}

func (h *memoryHandle) Await(ctx context.Context, timeout time.Duration) Outcome {
	h.awaited.Do(func() { h.transport.outstanding.Add(-1) })
	return awaitSignal(ctx, timeout, h.done, func() error { return h.err })
}
