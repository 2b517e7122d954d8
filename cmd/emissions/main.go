package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "emissions",
	Short: "Aggregate token emission schedules into stored unlock artifacts",
	Long: `emissions runs token-unlock adapters, resolves each protocol's identity,
values realised incentive unlocks in USD and stores one artifact per protocol
plus the protocol index.

Examples:
  emissions run --indexes 0,1,2    # Process three adapters once
  emissions run --all              # Process every adapter once
  emissions serve                  # HTTP trigger, scheduler and /metrics`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(runCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
