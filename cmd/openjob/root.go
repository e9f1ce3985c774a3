package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/amishk599/openjob/internal/config"
	"github.com/amishk599/openjob/internal/drafter"
	"github.com/amishk599/openjob/internal/model"
	"github.com/amishk599/openjob/internal/notifier"
	"github.com/amishk599/openjob/internal/pipeline"
	"github.com/amishk599/openjob/internal/ratelimit"
	"github.com/amishk599/openjob/internal/renderer"
	"github.com/amishk599/openjob/internal/retry"
	"github.com/amishk599/openjob/internal/scraper"
	"github.com/amishk599/openjob/internal/store"
)

var (
	cfgPath string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "openjob",
	Short: "Daily job-application pipeline",
	Long:  "OpenJob discovers new postings, tailors a resume and cover letter for each, and tracks every outcome per day.",
	// Default to `run` so that a bare `openjob` in a cron entry does a full run.
	RunE:          runRun,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (default: OPENJOB_CONFIG env var or ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

// loadConfig resolves the config path and parses it.
// Priority: explicit path arg > OPENJOB_CONFIG env var > "./config.yaml"
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if env := os.Getenv("OPENJOB_CONFIG"); env != "" {
			path = env
		} else {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func setupLogger(dbg bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if dbg {
		logLevel = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: time.Kitchen,
	}))
}

// openStore opens the SQLite store under the configured data directory.
func openStore(cfg *config.Config, logger *slog.Logger) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return store.NewSQLiteStore(filepath.Join(cfg.DataDir, "openjob.db"), logger)
}

func setupNotifier(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) model.Notifier {
	switch cfg.Notification.Type {
	case "discord":
		logger.Info("using discord notifier")
		return notifier.NewDiscordNotifier(cfg.Notification.WebhookURL, httpClient, logger)
	default:
		return notifier.NewLogNotifier(logger)
	}
}

func buildScraper(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) *scraper.LinkedInScraper {
	categories := make(map[model.Category]scraper.CategorySearch, len(cfg.Categories))
	for name, cc := range cfg.Categories {
		categories[name] = scraper.CategorySearch{
			Keywords:         cc.Keywords,
			BoostKeywords:    cc.BoostKeywords,
			ExperienceLevels: cc.ExperienceLevels,
			Target:           cc.TargetCount,
		}
	}

	fallbacks := make([]scraper.FallbackStage, len(cfg.FallbackStages))
	for i, stage := range cfg.FallbackStages {
		fallbacks[i] = scraper.FallbackStage{
			Label:            stage.Label,
			MaxDaysOld:       stage.MaxDaysOld,
			ExperienceLevels: stage.ExperienceLevels,
		}
	}

	limiter := ratelimit.NewHostLimiter(cfg.RateLimit.MinDelay)
	return scraper.NewLinkedInScraper(
		httpClient,
		limiter,
		categories,
		cfg.Locations,
		cfg.MaxDaysOld,
		cfg.MaxCandidates,
		fallbacks,
		logger,
	)
}

func buildDrafter(cfg *config.Config, logger *slog.Logger) (model.Drafter, error) {
	baseResumes := make(map[model.Category]string, len(cfg.Drafter.BaseResumes))
	for cat, path := range cfg.Drafter.BaseResumes {
		html, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading base resume for %s: %w", cat, err)
		}
		baseResumes[cat] = string(html)
	}

	provider := drafter.NewOpenAIProvider(
		cfg.Drafter.BaseURL,
		cfg.Drafter.APIKey,
		cfg.Drafter.Model,
		&http.Client{Timeout: cfg.Drafter.Timeout},
	)
	d := drafter.NewLLMDrafter(provider, drafter.TailorTemplate, baseResumes, logger)
	return retry.NewRetryDrafter(d, 2, 5*time.Second, logger), nil
}

// buildOrchestrator wires the full pipeline. With dryRun set, nothing is
// persisted, no LLM is called, and no PDF engine is invoked.
func buildOrchestrator(cfg *config.Config, recordStore model.RecordStore, dryRun bool, logger *slog.Logger) (*pipeline.Orchestrator, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	var (
		d   model.Drafter
		err error
	)
	engine := cfg.Renderer.PDFEngine
	if dryRun {
		d = drafter.NewNopDrafter()
		engine = renderer.EngineNone
	} else {
		d, err = buildDrafter(cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	targets := make(map[model.Category]int, len(cfg.Categories))
	for name, cc := range cfg.Categories {
		targets[name] = cc.TargetCount
	}

	processor := pipeline.NewProcessor(d, renderer.NewPDFRenderer(engine, logger), cfg.OutputDir, logger)

	return pipeline.NewOrchestrator(
		buildScraper(cfg, httpClient, logger),
		recordStore,
		processor,
		setupNotifier(cfg, httpClient, logger),
		targets,
		cfg.Workers,
		logger,
	), nil
}
