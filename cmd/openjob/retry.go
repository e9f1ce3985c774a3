package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/openjob/internal/filter"
	"github.com/amishk599/openjob/internal/model"
)

var (
	retryTitle    string
	retryCompany  string
	retryLocation string
	retryCategory string
)

var retryCmd = &cobra.Command{
	Use:   "retry <url>",
	Short: "Retry a single posting by URL",
	Long: "Process one posting immediately, even if it was seen before. The outcome " +
		"is folded into today's record. Missing metadata is fetched from the posting " +
		"page; flags override whatever the page says.",
	Args: cobra.ExactArgs(1),
	RunE: runRetry,
}

func init() {
	retryCmd.Flags().StringVar(&retryTitle, "title", "", "posting title")
	retryCmd.Flags().StringVar(&retryCompany, "company", "", "company name")
	retryCmd.Flags().StringVar(&retryLocation, "location", "", "posting location")
	retryCmd.Flags().StringVar(&retryCategory, "category", "", "posting category (ai or sde; classified from the title when omitted)")
	rootCmd.AddCommand(retryCmd)
}

func runRetry(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return err
	}

	category, err := resolveCategory(retryCategory, retryTitle)
	if err != nil {
		logger.Error("invalid category", "error", err)
		return err
	}

	posting := model.NewRetryPosting(args[0], retryTitle, retryCompany, retryLocation, category)
	if posting.ID == "" {
		err := fmt.Errorf("could not derive a posting id from %q", args[0])
		logger.Error("invalid url", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pull the posting page so the drafter sees the real description, not a
	// placeholder. A failed fetch degrades to whatever the flags supplied.
	sc := buildScraper(cfg, &http.Client{Timeout: 30 * time.Second}, logger)
	logger.Info("fetching posting page", "posting", posting.ID)
	fetched, err := sc.FetchPosting(ctx, args[0])
	if err != nil {
		logger.Warn("posting fetch failed, continuing with flag metadata", "error", err)
	} else {
		posting = fillFromFetch(posting, fetched)
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

	result, err := orch.RetrySingle(ctx, posting)
	if err != nil {
		logger.Error("retry failed", "error", err)
		return err
	}

	logger.Info("retry complete",
		"date", result.Date,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)
	return nil
}

// fillFromFetch keeps caller-supplied fields and takes the rest from the
// posting page. A still-empty category is classified from the page title.
func fillFromFetch(posting, fetched model.Posting) model.Posting {
	if posting.Title == "" {
		posting.Title = fetched.Title
	}
	if posting.Company == "" {
		posting.Company = fetched.Company
	}
	if posting.Location == "" {
		posting.Location = fetched.Location
	}
	posting.Description = fetched.Description
	if posting.Category == "" && posting.Title != "" {
		posting.Category = filter.Classify(posting.Title, posting.Description)
	}
	return posting
}

// resolveCategory validates an explicit category or classifies one from the
// title flag. With neither it stays empty until the posting page (or metadata
// already on file) supplies a title to classify.
func resolveCategory(explicit, title string) (model.Category, error) {
	switch explicit {
	case "":
		if title == "" {
			return "", nil
		}
		return filter.Classify(title, ""), nil
	case string(model.CategoryAI):
		return model.CategoryAI, nil
	case string(model.CategorySDE):
		return model.CategorySDE, nil
	default:
		return "", fmt.Errorf("unknown category %q (want %s or %s)", explicit, model.CategoryAI, model.CategorySDE)
	}
}
