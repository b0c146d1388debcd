package cmd

import (
	"time"

	"github.com/Aidin1998/tradegen/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradegen",
	Short: "Synthetic trade-execution load generator",
	Long: `tradegen fabricates realistic trade-execution records and publishes them to a
message broker at a controlled rate for a bounded duration.

Without a subcommand it behaves like "tradegen run".

Settings come from flags, TRADEGEN_* environment variables, the producer's
historical variables (KAFKA_BOOTSTRAP_SERVERS, KAFKA_TOPIC, TRADES_PER_SECOND,
DURATION_SECONDS, BATCH_SIZE) and an optional YAML file, in that order.`,
	SilenceUsage: true,
	RunE:         runRun,
}

var (
	cfgFile string
	loader  = config.NewLoader(nil)
)

// defaultConfigPaths are tried when --config is not given.
var defaultConfigPaths = []string{
	"./tradegen.yaml",
	"/etc/tradegen/tradegen.yaml",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "path to a YAML config file")
	flags.String("transport", "kafka", "broker transport: kafka, nats, redis or memory")
	flags.StringSlice("brokers", []string{"localhost:9092"}, "broker addresses")
	flags.String("topic", "trades", "destination topic, subject or stream")
	flags.Int("rate", 700, "target records per second")
	flags.Int("duration", 60, "run duration in seconds")
	flags.Int("batch-size", 100, "records per batch")
	flags.Duration("ack-timeout", time.Second, "per-record acknowledgment timeout")
	flags.Int("report-every", 1000, "log progress every N records")
	flags.Uint64("seed", 0, "random seed, 0 picks one")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("http-addr", "", "serve /health, /status and /metrics on this address")

	v := loader.Viper()
	for key, flag := range map[string]string{
		"transport":    "transport",
		"brokers":      "brokers",
		"topic":        "topic",
		"rate":         "rate",
		"duration":     "duration",
		"batch_size":   "batch-size",
		"ack_timeout":  "ack-timeout",
		"report_every": "report-every",
		"seed":         "seed",
		"log_level":    "log-level",
		"http_addr":    "http-addr",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return loader.Load(cfgFile)
	}
	return loader.Load(defaultConfigPaths...)
}
