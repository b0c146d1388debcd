package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aidin1998/tradegen/internal/loadgen"
	"github.com/Aidin1998/tradegen/internal/messaging"
	"github.com/Aidin1998/tradegen/internal/publisher"
	"github.com/Aidin1998/tradegen/internal/server"
	"github.com/Aidin1998/tradegen/internal/trade"
	"github.com/Aidin1998/tradegen/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const pingTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Publish synthetic trades at the configured rate",
	Long: `Generate trade records in batches and publish them at the target rate until
the duration elapses or the process receives SIGINT/SIGTERM. Either way the
transport is flushed and a summary is printed.

Example:
  tradegen run --transport kafka --brokers localhost:9092 --rate 700 --duration 60`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	zapLogger, err := logger.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connecting to %s at %s\n", cfg.Transport, joinOrNone(cfg.Brokers))

	transport, err := messaging.Open(cfg.TransportOptions(), zapLogger)
	if err != nil {
		zapLogger.Error("Failed to open transport", zap.Error(err))
		return err
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err = transport.Ping(pingCtx)
	cancel()
	if err != nil {
		zapLogger.Error("Broker unreachable", zap.Strings("brokers", cfg.Brokers), zap.Error(err))
		_ = transport.Close()
		return err
	}

	pub := publisher.New(transport, cfg.Topic, cfg.BatchSize, zapLogger)
	runner, err := loadgen.NewRunner(loadgen.Settings{
		TargetRate:      cfg.Rate,
		BatchSize:       cfg.BatchSize,
		Duration:        cfg.Duration(),
		AckTimeout:      cfg.AckTimeout,
		ReportEvery:     cfg.ReportEvery,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, trade.NewFactory(cfg.Seed), pub, transport, nil, zapLogger)
	if err != nil {
		_ = transport.Close()
		return err
	}

	if cfg.HTTPAddr != "" {
		srv := server.NewServer(zapLogger, runner.Progress(), cfg)
		if err := srv.Start(cfg.HTTPAddr); err != nil {
			_ = transport.Close()
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zapLogger.Error("Failed to stop status server", zap.Error(err))
			}
		}()
	}

	printBanner(out, cfg)
	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	if summary.State == loadgen.StateInterrupted {
		fmt.Fprintln(out, "\nInterrupted by user")
	}
	printSummary(out, summary)
	return nil
}
