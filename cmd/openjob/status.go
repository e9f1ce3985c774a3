package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/openjob/internal/report"
)

var statusInteractive bool

var statusCmd = &cobra.Command{
	Use:   "status [date]",
	Short: "Show a day's postings and outcomes",
	Long:  "Print the record for one day (default: today). With --interactive, open a browsable viewer.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVarP(&statusInteractive, "interactive", "i", false, "browse the day in an interactive viewer")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	date := time.Now().Format("2006-01-02")
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

	summary, err := report.NewReporter(sqlStore).Summarize(date)
	if err != nil {
		logger.Error("failed to build summary", "error", err)
		return err
	}

	if statusInteractive {
		return report.RunStatusTUI(summary)
	}

	fmt.Print(summary.String())
	return nil
}
