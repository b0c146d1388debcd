// Package config resolves the run configuration once at startup from
// defaults, an optional YAML file, environment variables and CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Aidin1998/tradegen/internal/messaging"
	"github.com/Aidin1998/tradegen/pkg/validation"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EnvPrefix prefixes every environment variable not inherited from the
// producer's historical names.
const EnvPrefix = "TRADEGEN"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the effective configuration of a run.
type Config struct {
	Transport       string        `mapstructure:"transport" yaml:"transport" json:"transport" validate:"oneof=kafka nats redis memory"`
	Brokers         []string      `mapstructure:"brokers" yaml:"brokers" json:"brokers" validate:"dive,broker_addr"`
	Topic           string        `mapstructure:"topic" yaml:"topic" json:"topic" validate:"required,topic_name"`
	Rate            int           `mapstructure:"rate" yaml:"rate" json:"rate" validate:"gt=0"`
	DurationSeconds int           `mapstructure:"duration" yaml:"duration" json:"duration" validate:"gt=0"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size" validate:"gt=0"`
	AckTimeout      time.Duration `mapstructure:"ack_timeout" yaml:"ack_timeout" json:"ack_timeout" validate:"gt=0"`
	ReportEvery     int           `mapstructure:"report_every" yaml:"report_every" json:"report_every" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
	Seed            uint64        `mapstructure:"seed" yaml:"seed" json:"seed"`
	LogLevel        string        `mapstructure:"log_level" yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`
	HTTPAddr        string        `mapstructure:"http_addr" yaml:"http_addr" json:"http_addr" validate:"omitempty,hostname_port"`

	Kafka  messaging.KafkaConfig  `mapstructure:"kafka" yaml:"kafka" json:"kafka"`
	NATS   messaging.NATSConfig   `mapstructure:"nats" yaml:"nats" json:"nats"`
	Redis  messaging.RedisConfig  `mapstructure:"redis" yaml:"redis" json:"redis"`
	Memory messaging.MemoryConfig `mapstructure:"memory" yaml:"memory" json:"memory"`
}

// Duration is the run length.
func (c *Config) Duration() time.Duration {
	return time.Duration(c.DurationSeconds) * time.Second
}

// ExpectedRecords is rate * duration, the volume a run aims for.
func (c *Config) ExpectedRecords() int {
	return c.Rate * c.DurationSeconds
}

// TransportOptions selects the configured transport.
func (c *Config) TransportOptions() messaging.Options {
	return messaging.Options{
		Kind:    c.Transport,
		Brokers: c.Brokers,
		Kafka:   c.Kafka,
		NATS:    c.NATS,
		Redis:   c.Redis,
		Memory:  c.Memory,
	}
}

// envMappings binds the unprefixed variable names older deployments set.
var envMappings = map[string]string{
	"brokers":    "KAFKA_BOOTSTRAP_SERVERS",
	"topic":      "KAFKA_TOPIC",
	"rate":       "TRADES_PER_SECOND",
	"duration":   "DURATION_SECONDS",
	"batch_size": "BATCH_SIZE",
}

// Loader builds a Config. Its viper instance is exposed so the CLI can bind
// flags before Load.
type Loader struct {
	viper     *viper.Viper
	validator *validation.Validator
	logger    *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		viper:     viper.New(),
		validator: validation.NewValidator(logger),
		logger:    logger,
	}
	l.setupViper()
	return l
}

// Viper returns the underlying viper instance.
func (l *Loader) Viper() *viper.Viper { return l.viper }

func (l *Loader) setupViper() {
	v := l.viper
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// A key bound to an explicit list stops looking at the prefixed name, so
	// the prefixed variant is listed first.
	for key, legacy := range envMappings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, legacy)
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("transport", "kafka")
	v.SetDefault("brokers", []string{"localhost:9092"})
	v.SetDefault("topic", "trades")
	v.SetDefault("rate", 700)
	v.SetDefault("duration", 60)
	v.SetDefault("batch_size", 100)
	v.SetDefault("ack_timeout", time.Second)
	v.SetDefault("report_every", 1000)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("seed", 0)
	v.SetDefault("log_level", "info")
	v.SetDefault("http_addr", "")

	kafka := messaging.DefaultKafkaConfig()
	v.SetDefault("kafka.required_acks", kafka.RequiredAcks)
	v.SetDefault("kafka.compression", kafka.Compression)
	v.SetDefault("kafka.batch_size", kafka.BatchSize)
	v.SetDefault("kafka.batch_bytes", kafka.BatchBytes)
	v.SetDefault("kafka.batch_timeout", kafka.BatchTimeout)
	v.SetDefault("kafka.write_timeout", kafka.WriteTimeout)
	v.SetDefault("kafka.max_attempts", kafka.MaxAttempts)
	v.SetDefault("kafka.auto_create_topic", kafka.AutoCreateTopic)
	v.SetDefault("kafka.dial_timeout", kafka.DialTimeout)

	v.SetDefault("nats.max_pending", 4096)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_len", 0)

	v.SetDefault("memory.fail_every", 0)
	v.SetDefault("memory.latency", time.Duration(0))
}

// Load merges every existing file among paths in order, then unmarshals and
// validates. Missing files are skipped.
func (l *Loader) Load(paths ...string) (*Config, error) {
	if err := l.loadConfigFiles(paths...); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Brokers = splitList(cfg.Brokers)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := l.validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) loadConfigFiles(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			l.logger.Debug("Config file not found, skipping", zap.String("path", path))
			continue
		}
		l.viper.SetConfigFile(path)
		if err := l.viper.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		l.logger.Info("Loaded configuration file", zap.String("path", path))
	}
	return nil
}

func (l *Loader) validateConfig(cfg *Config) error {
	if err := l.validator.ValidateStruct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if cfg.Transport != "memory" && len(cfg.Brokers) == 0 {
		return fmt.Errorf("%w: at least one broker address is required for %s", ErrInvalidConfig, cfg.Transport)
	}
	return nil
}

// splitList flattens comma separated entries, as found in
// KAFKA_BOOTSTRAP_SERVERS, and drops blanks.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
