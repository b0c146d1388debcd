package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis Streams transport.
type RedisConfig struct {
	Password string `mapstructure:"password" yaml:"password" json:"-"`
	DB       int    `mapstructure:"db" yaml:"db" json:"db" validate:"gte=0"`
	PoolSize int    `mapstructure:"pool_size" yaml:"pool_size" json:"pool_size" validate:"gte=0"`
	// MaxLen trims each stream to roughly this many entries; 0 disables trimming.
	MaxLen int64 `mapstructure:"max_len" yaml:"max_len" json:"max_len" validate:"gte=0"`
}

// RedisTransport appends records to Redis streams with XADD. Commands are
// queued on a pipeline; the first Await of a queued command sends the whole
// pipeline, so one batch costs one round trip.
type RedisTransport struct {
	client *redis.Client
	maxLen int64
	logger *zap.Logger

	mu      sync.Mutex
	current *redisPipeline
}

type redisPipeline struct {
	pipe redis.Pipeliner
	once sync.Once
}

// NewRedisTransport creates a client for the first address in addrs.
func NewRedisTransport(addrs []string, cfg RedisConfig, logger *zap.Logger) *RedisTransport {
	addr := "localhost:6379"
	if len(addrs) > 0 {
		addr = addrs[0]
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	t := &RedisTransport{
		client: client,
		maxLen: cfg.MaxLen,
		logger: logger.Named("redis"),
	}
	t.current = t.newPipeline()
	return t
}

func (t *RedisTransport) newPipeline() *redisPipeline {
	return &redisPipeline{pipe: t.client.Pipeline()}
}

// Publish queues an XADD on the current pipeline. The topic is the stream key.
func (t *RedisTransport) Publish(ctx context.Context, topic string, key, payload []byte) Handle {
	args := &redis.XAddArgs{
		Stream: topic,
		Values: []string{"key", string(key), "payload", string(payload)},
	}
	if t.maxLen > 0 {
		args.MaxLen = t.maxLen
		args.Approx = true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return &redisHandle{
		transport: t,
		pipeline:  t.current,
		cmd:       t.current.pipe.XAdd(ctx, args),
	}
}

// exec sends p exactly once. Concurrent callers block until it has run.
func (t *RedisTransport) exec(ctx context.Context, p *redisPipeline) {
	p.once.Do(func() {
		t.mu.Lock()
		if t.current == p {
			t.current = t.newPipeline()
		}
		t.mu.Unlock()

		if _, err := p.pipe.Exec(ctx); err != nil {
			t.logger.Debug("Pipeline returned errors", zap.Error(err))
		}
	})
}

// Ping checks the server with PING.
func (t *RedisTransport) Ping(ctx context.Context) error {
	if err := t.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrBrokerUnreachable, err)
	}
	return nil
}

// Flush sends whatever is still queued.
func (t *RedisTransport) Flush(ctx context.Context) error {
	t.mu.Lock()
	p := t.current
	t.mu.Unlock()

	if p.pipe.Len() == 0 {
		return nil
	}
	t.exec(ctx, p)
	return ctx.Err()
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}

type redisHandle struct {
	transport *RedisTransport
	pipeline  *redisPipeline
	cmd       *redis.StringCmd
}

func (h *redisHandle) Await(ctx context.Context, timeout time.Duration) Outcome {
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	h.transport.exec(execCtx, h.pipeline)

	err := h.cmd.Err()
	switch {
	case err == nil:
		return Outcome{State: StateAcknowledged}
	case errors.Is(err, context.DeadlineExceeded):
		return Outcome{State: StateTimedOut, Err: fmt.Errorf("%w after %s", ErrAckTimeout, timeout)}
	default:
		return Outcome{State: StateFailed, Err: err}
	}
}
