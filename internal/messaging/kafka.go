package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig contains producer settings for the Kafka transport
type KafkaConfig struct {
	RequiredAcks    int           `mapstructure:"required_acks" yaml:"required_acks" json:"required_acks" validate:"oneof=-1 0 1"`
	Compression     string        `mapstructure:"compression" yaml:"compression" json:"compression" validate:"oneof=none gzip snappy lz4 zstd"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size" validate:"gt=0"`
	BatchBytes      int64         `mapstructure:"batch_bytes" yaml:"batch_bytes" json:"batch_bytes" validate:"gt=0"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout" json:"batch_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout" validate:"gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts" yaml:"max_attempts" json:"max_attempts" validate:"gt=0"`
	AutoCreateTopic bool          `mapstructure:"auto_create_topic" yaml:"auto_create_topic" json:"auto_create_topic"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout" json:"dial_timeout" validate:"gt=0"`
}

// DefaultKafkaConfig matches the settings of the legacy Python producer:
// leader acks, 10ms linger, 16KiB batches and no compression.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		RequiredAcks: 1,
		Compression:  "none",
		BatchSize:    100,
		BatchBytes:   16384,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		MaxAttempts:  1,
		DialTimeout:  5 * time.Second,
	}
}

// KafkaTransport publishes through an asynchronous kafka.Writer. Each message
// carries its handle in WriterData and is resolved from the Completion
// callback.
type KafkaTransport struct {
	brokers     []string
	dialTimeout time.Duration
	writer      *kafka.Writer
	logger      *zap.Logger
	pending     sync.WaitGroup
	closed      atomic.Bool
}

// NewKafkaTransport creates a transport for the given bootstrap brokers. No
// connection is made until the first publish or Ping.
func NewKafkaTransport(brokers []string, cfg KafkaConfig, logger *zap.Logger) *KafkaTransport {
	t := &KafkaTransport{
		brokers:     brokers,
		dialTimeout: cfg.DialTimeout,
		logger:      logger.Named("kafka"),
	}

	t.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.CRC32Balancer{},
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:            cfg.MaxAttempts,
		AllowAutoTopicCreation: cfg.AutoCreateTopic,
		Async:                  true,
		Completion:             t.complete,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			t.logger.Warn(fmt.Sprintf(msg, args...))
		}),
	}

	switch cfg.Compression {
	case "gzip":
		t.writer.Compression = kafka.Gzip
	case "snappy":
		t.writer.Compression = kafka.Snappy
	case "lz4":
		t.writer.Compression = kafka.Lz4
	case "zstd":
		t.writer.Compression = kafka.Zstd
	}

	return t
}

// Publish enqueues one message on the writer and returns its handle.
func (t *KafkaTransport) Publish(ctx context.Context, topic string, key, payload []byte) Handle {
	if t.closed.Load() {
		return Failed(ErrTransportClosed)
	}

	h := newKafkaHandle(t.pending.Done)
	t.pending.Add(1)

	msg := kafka.Message{
		Topic:      topic,
		Key:        key,
		Value:      payload,
		Time:       time.Now(),
		WriterData: h,
	}

	// In async mode WriteMessages only fails for messages it refused to queue.
	if err := t.writer.WriteMessages(ctx, msg); err != nil {
		h.resolve(err)
	}
	return h
}

func (t *KafkaTransport) complete(messages []kafka.Message, err error) {
	for i := range messages {
		if h, ok := messages[i].WriterData.(*kafkaHandle); ok {
			h.resolve(err)
		}
	}
}

// Ping dials the bootstrap brokers until one returns cluster metadata.
func (t *KafkaTransport) Ping(ctx context.Context) error {
	var errs []error
	for _, addr := range t.brokers {
		dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
		conn, err := kafka.DialContext(dialCtx, "tcp", addr)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		_, err = conn.Brokers()
		conn.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		return nil
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no bootstrap brokers configured"))
	}
	return fmt.Errorf("%w: %w", ErrBrokerUnreachable, errors.Join(errs...))
}

// Flush waits for every queued message to be answered by the writer.
func (t *KafkaTransport) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		t.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kafka flush: %w", ctx.Err())
	}
}

// Close flushes the writer's internal batches and releases its connections.
func (t *KafkaTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := t.writer.Close(); err != nil {
		t.logger.Error("Failed to close writer", zap.Error(err))
		return err
	}
	return nil
}

type kafkaHandle struct {
	done    chan struct{}
	once    sync.Once
	err     error
	release func()
}

func newKafkaHandle(release func()) *kafkaHandle {
	return &kafkaHandle{done: make(chan struct{}), release: release}
}

func (h *kafkaHandle) resolve(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
		h.release()
	})
}

func (h *kafkaHandle) Await(ctx context.Context, timeout time.Duration) Outcome {
	return awaitSignal(ctx, timeout, h.done, func() error { return h.err })
}
