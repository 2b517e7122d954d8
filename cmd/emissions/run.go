package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a batch of adapters once",
	Long: `Process the adapters at the given registry indexes, store their artifacts
and merge their slugs into the protocol index. Failures are reported through
the notification channel; the command itself only fails on setup errors.`,
	RunE: runBatch,
}

var (
	runIndexesFlag []int
	runAllFlag     bool
)

func init() {
	runCmd.Flags().IntSliceVar(&runIndexesFlag, "indexes", nil, "Adapter registry indexes to process")
	runCmd.Flags().BoolVar(&runAllFlag, "all", false, "Process every adapter")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	if !runAllFlag && len(runIndexesFlag) == 0 {
		return errors.New("either --indexes or --all is required")
	}

	logger := newLogger()
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, logger)
	if err != nil {
		return err
	}
	defer a.close()

	indexes := runIndexesFlag
	if runAllFlag {
		indexes = make([]int, len(a.adapters))
		for i := range indexes {
			indexes[i] = i
		}
	}

	sum := a.orch.Run(ctx, indexes)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum.Record())
}
