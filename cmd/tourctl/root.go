package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bobarin/tourgen/internal/config"
	"github.com/bobarin/tourgen/internal/telemetry"
)

var (
	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tourctl",
	Short: "Operate the property tour generation pipeline",
	Long: `tourctl runs pipeline operations against the configured database and queue.

It reads the same environment (or .env file) as the API server and can:
  - trigger generation for a project
  - recompute a project's aggregates from its clips
  - preview or apply the automatic room order
  - re-enqueue clips stuck in processing
  - run a single clip job in the foreground`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		logger = telemetry.SetupLogging(level)

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(triggerCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(sequenceCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(runClipCmd)
}
