package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "acknowledged", StateAcknowledged.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "timed_out", StateTimedOut.String())
}

func TestFailedHandle(t *testing.T) {
	cause := errors.New("boom")
	out := Failed(cause).Await(context.Background(), time.Millisecond)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, cause)
}

func TestOpenUnknownTransport(t *testing.T) {
	_, err := Open(Options{Kind: "carrier-pigeon"}, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestOpenMemoryTransport(t *testing.T) {
	tr, err := Open(Options{Kind: "memory"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &MemoryTransport{}, tr)
	assert.NoError(t, tr.Ping(context.Background()))
}

func TestMemoryTransportFailEvery(t *testing.T) {
	tr := NewMemoryTransport(MemoryConfig{FailEvery: 3})
	ctx := context.Background()

	var states []State
	for i := 0; i < 9; i++ {
		h := tr.Publish(ctx, "trades", []byte("k"), []byte("{}"))
		states = append(states, h.Await(ctx, time.Second).State)
	}

	assert.Equal(t, []State{
		StateAcknowledged, StateAcknowledged, StateFailed,
		StateAcknowledged, StateAcknowledged, StateFailed,
		StateAcknowledged, StateAcknowledged, StateFailed,
	}, states)
	assert.EqualValues(t, 9, tr.Published())
	assert.EqualValues(t, 6, tr.Acknowledged())
	assert.EqualValues(t, 3, tr.FailedCount())
	assert.Zero(t, tr.Outstanding())
}

func TestMemoryTransportTimeoutAndFlush(t *testing.T) {
	tr := NewMemoryTransport(MemoryConfig{Latency: 200 * time.Millisecond})
	ctx := context.Background()

	h := tr.Publish(ctx, "trades", nil, []byte("{}"))
	out := h.Await(ctx, 10*time.Millisecond)
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrAckTimeout)

	flushCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Flush(flushCtx))
	assert.EqualValues(t, 1, tr.Acknowledged())

	// A late await sees the acknowledgment.
	assert.Equal(t, StateAcknowledged, h.Await(ctx, 10*time.Millisecond).State)
}

func TestMemoryTransportAwaitHonoursContext(t *testing.T) {
	tr := NewMemoryTransport(MemoryConfig{Latency: time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	h := tr.Publish(ctx, "trades", nil, []byte("{}"))
	cancel()

	out := h.Await(ctx, time.Minute)
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, context.Canceled)
}

func TestMemoryTransportRejectsAfterClose(t *testing.T) {
	tr := NewMemoryTransport(MemoryConfig{})
	require.NoError(t, tr.Close())

	out := tr.Publish(context.Background(), "trades", nil, []byte("{}")).Await(context.Background(), time.Second)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrTransportClosed)
	assert.True(t, tr.Closed())
}

func TestMemoryTransportOnPublish(t *testing.T) {
	tr := NewMemoryTransport(MemoryConfig{})
	var topics []string
	tr.OnPublish(func(topic string, key, payload []byte) {
		topics = append(topics, topic)
	})

	tr.Publish(context.Background(), "a", nil, nil)
	tr.Publish(context.Background(), "b", nil, nil)
	assert.Equal(t, []string{"a", "b"}, topics)
}

func TestKafkaCompletionResolvesHandles(t *testing.T) {
	tr := NewKafkaTransport([]string{"127.0.0.1:1"}, DefaultKafkaConfig(), zaptest.NewLogger(t))

	ok := newKafkaHandle(tr.pending.Done)
	bad := newKafkaHandle(tr.pending.Done)
	tr.pending.Add(2)

	tr.complete([]kafka.Message{{WriterData: ok}}, nil)
	brokerErr := errors.New("NOT_LEADER_FOR_PARTITION")
	tr.complete([]kafka.Message{{WriterData: bad}, {WriterData: "foreign"}}, brokerErr)

	ctx := context.Background()
	assert.Equal(t, StateAcknowledged, ok.Await(ctx, time.Second).State)

	out := bad.Await(ctx, time.Second)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, brokerErr)

	// Completion may run more than once for a message; the handle keeps its first result.
	tr.complete([]kafka.Message{{WriterData: ok}}, brokerErr)
	assert.Equal(t, StateAcknowledged, ok.Await(ctx, time.Second).State)

	flushCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	assert.NoError(t, tr.Flush(flushCtx))
}

func TestKafkaHandleTimesOut(t *testing.T) {
	h := newKafkaHandle(func() {})
	out := h.Await(context.Background(), 5*time.Millisecond)
	assert.Equal(t, StateTimedOut, out.State)
	assert.ErrorIs(t, out.Err, ErrAckTimeout)
}

func TestKafkaPingUnreachable(t *testing.T) {
	cfg := DefaultKafkaConfig()
	cfg.DialTimeout = 500 * time.Millisecond
	tr := NewKafkaTransport([]string{"127.0.0.1:1"}, cfg, zaptest.NewLogger(t))

	err := tr.Ping(context.Background())
	assert.ErrorIs(t, err, ErrBrokerUnreachable)
}

func TestKafkaPublishAfterClose(t *testing.T) {
	tr := NewKafkaTransport([]string{"127.0.0.1:1"}, DefaultKafkaConfig(), zaptest.NewLogger(t))
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())

	out := tr.Publish(context.Background(), "trades", nil, []byte("{}")).Await(context.Background(), time.Second)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrTransportClosed)
}

func TestRedisPipelineSharedByBatch(t *testing.T) {
	tr := NewRedisTransport([]string{"127.0.0.1:1"}, RedisConfig{}, zaptest.NewLogger(t))
	defer tr.Close()
	ctx := context.Background()

	first := tr.Publish(ctx, "trades", []byte("a"), []byte("{}")).(*redisHandle)
	second := tr.Publish(ctx, "trades", []byte("b"), []byte("{}")).(*redisHandle)
	assert.Same(t, first.pipeline, second.pipeline)

	// Nothing listens on port 1, so the pipeline fails as a whole.
	out := first.Await(ctx, 5*time.Second)
	assert.NotEqual(t, StateAcknowledged, out.State)
	assert.Error(t, out.Err)
	assert.Equal(t, out.State, second.Await(ctx, 5*time.Second).State)

	third := tr.Publish(ctx, "trades", []byte("c"), []byte("{}")).(*redisHandle)
	assert.NotSame(t, first.pipeline, third.pipeline)
}

func TestRedisPingUnreachable(t *testing.T) {
	tr := NewRedisTransport([]string{"127.0.0.1:1"}, RedisConfig{}, zaptest.NewLogger(t))
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.ErrorIs(t, tr.Ping(ctx), ErrBrokerUnreachable)
}

type fakeAckFuture struct {
	ok  chan *nats.PubAck
	err chan error
}

func newFakeAckFuture() *fakeAckFuture {
	return &fakeAckFuture{ok: make(chan *nats.PubAck, 1), err: make(chan error, 1)}
}

func (f *fakeAckFuture) Ok() <-chan *nats.PubAck { return f.ok }
func (f *fakeAckFuture) Err() <-chan error       { return f.err }
func (f *fakeAckFuture) Msg() *nats.Msg          { return nil }

type fakeJetStream struct {
	mu         sync.Mutex
	subjects   []string
	publishErr error
	complete   chan struct{}
}

func (js *fakeJetStream) PublishAsync(subj string, _ []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	js.mu.Lock()
	defer js.mu.Unlock()
	if js.publishErr != nil {
		return nil, js.publishErr
	}
	js.subjects = append(js.subjects, subj)
	return newFakeAckFuture(), nil
}

func (js *fakeJetStream) PublishAsyncComplete() <-chan struct{} { return js.complete }

type fakeNATSConn struct {
	closed   bool
	drains   int
	flushErr error
}

func (c *fakeNATSConn) IsClosed() bool                         { return c.closed }
func (c *fakeNATSConn) FlushWithContext(context.Context) error { return c.flushErr }
func (c *fakeNATSConn) Drain() error {
	c.drains++
	c.closed = true
	return nil
}

func newTestNATSTransport(t *testing.T, conn *fakeNATSConn, js *fakeJetStream) *NATSTransport {
	t.Helper()
	return &NATSTransport{nc: conn, js: js, logger: zaptest.NewLogger(t)}
}

func TestDialNATSUnreachable(t *testing.T) {
	_, err := DialNATS([]string{"nats://127.0.0.1:1"},
		NATSConfig{MaxPending: 16, ConnectTimeout: 500 * time.Millisecond}, zaptest.NewLogger(t))
	assert.ErrorIs(t, err, ErrBrokerUnreachable)
}

func TestNATSHandleOutcomes(t *testing.T) {
	cause := errors.New("no responders")

	tests := []struct {
		name      string
		resolve   func(f *fakeAckFuture)
		cancelled bool
		timeout   time.Duration
		state     State
		err       error
	}{
		{
			name:    "acknowledged",
			resolve: func(f *fakeAckFuture) { f.ok <- &nats.PubAck{Stream: "TRADES", Sequence: 7} },
			timeout: time.Second,
			state:   StateAcknowledged,
		},
		{
			name:    "duplicate",
			resolve: func(f *fakeAckFuture) { f.ok <- &nats.PubAck{Stream: "TRADES", Sequence: 7, Duplicate: true} },
			timeout: time.Second,
			state:   StateFailed,
			err:     ErrDuplicateMessage,
		},
		{
			name:    "broker error",
			resolve: func(f *fakeAckFuture) { f.err <- cause },
			timeout: time.Second,
			state:   StateFailed,
			err:     cause,
		},
		{
			name:    "no answer",
			resolve: func(*fakeAckFuture) {},
			timeout: 5 * time.Millisecond,
			state:   StateTimedOut,
			err:     ErrAckTimeout,
		},
		{
			name:      "context cancelled",
			resolve:   func(*fakeAckFuture) {},
			cancelled: true,
			timeout:   time.Second,
			state:     StateTimedOut,
			err:       context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fut := newFakeAckFuture()
			tt.resolve(fut)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			if tt.cancelled {
				cancel()
			}

			out := natsHandle{fut: fut}.Await(ctx, tt.timeout)
			assert.Equal(t, tt.state, out.State)
			if tt.err == nil {
				assert.NoError(t, out.Err)
			} else {
				assert.ErrorIs(t, out.Err, tt.err)
			}
		})
	}
}

func TestNATSPublishUsesTopicAsSubject(t *testing.T) {
	js := &fakeJetStream{}
	tr := newTestNATSTransport(t, &fakeNATSConn{}, js)

	h := tr.Publish(context.Background(), "trades.load", []byte("TRD-1"), []byte("{}"))
	require.IsType(t, natsHandle{}, h)
	assert.Equal(t, []string{"trades.load"}, js.subjects)

	js.publishErr = nats.ErrMaxPayload
	out := tr.Publish(context.Background(), "trades.load", []byte("TRD-2"), []byte("{}")).Await(context.Background(), time.Second)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, nats.ErrMaxPayload)
}

func TestNATSPublishAfterClose(t *testing.T) {
	conn := &fakeNATSConn{}
	js := &fakeJetStream{}
	tr := newTestNATSTransport(t, conn, js)

	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
	assert.Equal(t, 1, conn.drains)

	out := tr.Publish(context.Background(), "trades", []byte("TRD-1"), []byte("{}")).Await(context.Background(), time.Second)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, ErrTransportClosed)
	assert.Empty(t, js.subjects)
}

func TestNATSFlushAndPing(t *testing.T) {
	conn := &fakeNATSConn{}
	js := &fakeJetStream{complete: make(chan struct{})}
	tr := newTestNATSTransport(t, conn, js)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tr.Flush(ctx), context.DeadlineExceeded)

	close(js.complete)
	assert.NoError(t, tr.Flush(context.Background()))

	assert.NoError(t, tr.Ping(context.Background()))
	conn.flushErr = nats.ErrConnectionClosed
	assert.ErrorIs(t, tr.Ping(context.Background()), ErrBrokerUnreachable)
}
