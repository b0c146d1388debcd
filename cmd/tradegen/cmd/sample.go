package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/Aidin1998/tradegen/internal/trade"
	"github.com/spf13/cobra"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print generated records without publishing",
	Long: `Print N generated trade records as JSON, one per line, exactly as they would
be published.

Example:
  tradegen sample -n 5 --seed 42`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

var (
	sampleCount  int
	samplePretty bool
)

func init() {
	rootCmd.AddCommand(sampleCmd)

	sampleCmd.Flags().IntVarP(&sampleCount, "count", "n", 1, "number of records to print")
	sampleCmd.Flags().BoolVar(&samplePretty, "pretty", false, "indent the JSON output")
}

func runSample(cmd *cobra.Command, args []string) error {
	if sampleCount <= 0 {
		return fmt.Errorf("count must be positive, got %d", sampleCount)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if samplePretty {
		enc.SetIndent("", "  ")
	}
	factory := trade.NewFactory(cfg.Seed)
	for i := 0; i < sampleCount; i++ {
		if err := enc.Encode(factory.Generate()); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
	}
	return nil
}
