package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/Aidin1998/tradegen/internal/config"
	"github.com/Aidin1998/tradegen/internal/loadgen"
)

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Starting to send %d trades per second for %d seconds\n", cfg.Rate, cfg.DurationSeconds)
	fmt.Fprintf(w, "Total trades to send: %d\n", cfg.ExpectedRecords())
}

func printSummary(w io.Writer, s loadgen.Summary) {
	fmt.Fprintf(w, "\n=== Summary ===\n")
	fmt.Fprintf(w, "Total trades sent: %d\n", s.TotalSent)
	fmt.Fprintf(w, "Acknowledged: %d, failed: %d, timed out: %d\n", s.Acknowledged, s.Failed, s.TimedOut)
	fmt.Fprintf(w, "Total time: %.2f seconds\n", s.Elapsed.Seconds())
	fmt.Fprintf(w, "Actual rate: %.1f TPS\n", s.AchievedRate)
	fmt.Fprintf(w, "Target rate: %d TPS\n", s.TargetRate)
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(in-process)"
	}
	return strings.Join(items, ",")
}
