package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetSeenCmd = &cobra.Command{
	Use:   "reset-seen",
	Short: "Clear the seen-postings ledger",
	Long: "Delete every entry from the seen ledger so the next run treats all " +
		"discovered postings as new. Day records are not touched.",
	RunE: runResetSeen,
}

func init() {
	resetSeenCmd.Flags().BoolVarP(&resetConfirmed, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetSeenCmd)
}

func runResetSeen(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	if !resetConfirmed {
		fmt.Print("This clears the entire seen ledger. Continue? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("aborted")
			return nil
		}
	}

	sqlStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		return err
	}
	defer sqlStore.Close()

	if err := sqlStore.ResetSeen(); err != nil {
		logger.Error("reset failed", "error", err)
		return err
	}

	logger.Info("seen ledger cleared")
	return nil
}
