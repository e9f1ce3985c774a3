package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var retryDayCmd = &cobra.Command{
	Use:   "retry-day [date]",
	Short: "Reprocess a day's failed and pending postings",
	Long: "Reprocess exactly the failed and pending entries of one day's record " +
		"(default: today). No new discovery happens; succeeded entries stay untouched.",
	Args: cobra.MaximumNArgs(1),
	RunE: runRetryDay,
}

func init() {
	rootCmd.AddCommand(retryDayCmd)
}

func runRetryDay(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	var date string
	if len(args) == 1 {
		date = args[0]
		if _, err := time.Parse("2006-01-02", date); err != nil {
			err := fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
			logger.Error("invalid argument", "error", err)
			return err
		}
	}

	sqlStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer sqlStore.Close()

	orch, err := buildOrchestrator(cfg, sqlStore, false, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := orch.RetryDay(ctx, date)
	if err != nil {
		logger.Error("retry-day failed", "error", err)
		return err
	}

	if len(result.Entries) == 0 {
		logger.Info("nothing to retry", "date", result.Date)
		return nil
	}

	logger.Info("retry-day complete",
		"date", result.Date,
		"retried", len(result.Entries),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return nil
}
