package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/amishk599/openjob/internal/model"
	"github.com/amishk599/openjob/internal/store"
)

var dryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full daily pipeline once",
	Long: "Discover new postings, skip everything already seen, tailor an application " +
		"for each new posting up to the per-category targets, and record every outcome.",
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "discover and report, but draft nothing and persist nothing")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	var recordStore model.RecordStore
	if dryRun {
		logger.Info("dry-run mode: no postings will be marked as seen")
		recordStore = store.NewMemoryStore()
	} else {
		sqlStore, err := openStore(cfg, logger)
		if err != nil {
			logger.Error("failed to open store", "error", err)
			return err
		}
		defer sqlStore.Close()
		recordStore = sqlStore
	}

	orch, err := buildOrchestrator(cfg, recordStore, dryRun, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	// Per-posting failures are recorded in the day record, not surfaced as
	// a process failure: the run itself completed.
	logger.Info("run complete",
		"date", result.Date,
		"postings", len(result.Entries),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"pending", result.Pending,
	)
	return nil
}
