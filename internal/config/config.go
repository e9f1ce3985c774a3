package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amishk599/openjob/internal/model"
)

// Config is the root configuration for the openjob pipeline.
type Config struct {
	Categories     map[model.Category]CategoryConfig
	Locations      []string
	MaxDaysOld     int                   // 0 = any age
	MaxCandidates  int                   // cap on postings collected per full run
	FallbackStages []FallbackStageConfig // relaxed re-searches when targets fall short
	Workers        int // parallel per-posting pipelines
	OutputDir      string
	DataDir        string
	Drafter        DrafterConfig
	Renderer       RendererConfig
	Notification   NotificationConfig
	Schedule       ScheduleConfig
	RateLimit      RateLimitConfig
}

// FallbackStageConfig is one relaxed re-search pass, applied in order to
// categories that did not reach their target count.
type FallbackStageConfig struct {
	Label            string
	MaxDaysOld       int // 0 = any age
	ExperienceLevels map[model.Category][]int
}

// CategoryConfig describes one search category (e.g. ai, sde).
type CategoryConfig struct {
	Keywords         []string `yaml:"keywords"`
	BoostKeywords    []string `yaml:"boost_keywords"`
	ExperienceLevels []int    `yaml:"experience_levels"`
	TargetCount      int      `yaml:"target_count"`
}

// DrafterConfig controls the LLM drafting layer.
type DrafterConfig struct {
	BaseURL     string        // defaults to https://api.openai.com/v1
	Model       string        // model identifier, e.g. "gpt-4o-mini"
	APIKey      string        // expanded from env var by Load
	Timeout     time.Duration // per-request timeout
	BaseResumes map[model.Category]string // category -> base resume HTML path
}

// RendererConfig controls how the tailored resume becomes a PDF.
type RendererConfig struct {
	PDFEngine string // HTML-to-PDF binary, e.g. "wkhtmltopdf"
}

// NotificationConfig controls which notifier is used and its settings.
type NotificationConfig struct {
	Type       string `yaml:"type"`        // "log" or "discord"
	WebhookURL string `yaml:"webhook_url"` // required if type is "discord"
}

// ScheduleConfig controls the optional daemon mode.
type ScheduleConfig struct {
	Interval time.Duration // gap between full runs in daemon mode
}

// RateLimitConfig paces outbound scraper requests.
type RateLimitConfig struct {
	MinDelay time.Duration // minimum gap between search page fetches
}

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// rawConfig is used for YAML unmarshaling (snake_case fields and durations as strings).
type rawConfig struct {
	Categories     map[string]CategoryConfig `yaml:"categories"`
	Locations      []string                  `yaml:"locations"`
	MaxDaysOld     int                       `yaml:"max_days_old"`
	MaxCandidates  int                       `yaml:"max_candidates"`
	FallbackStages []rawFallbackStage        `yaml:"fallback_stages"`
	Workers        int                       `yaml:"workers"`
	OutputDir      string                    `yaml:"output_dir"`
	DataDir        string                    `yaml:"data_dir"`
	Drafter        rawDrafterConfig          `yaml:"drafter"`
	Renderer       rawRendererConfig         `yaml:"renderer"`
	Notification   NotificationConfig        `yaml:"notification"`
	Schedule       rawScheduleConfig         `yaml:"schedule"`
	RateLimit      rawRateLimitConfig        `yaml:"rate_limit"`
}

type rawFallbackStage struct {
	Label            string           `yaml:"label"`
	MaxDaysOld       int              `yaml:"max_days_old"`
	ExperienceLevels map[string][]int `yaml:"experience_levels"`
}

type rawDrafterConfig struct {
	BaseURL     string            `yaml:"base_url"`
	Model       string            `yaml:"model"`
	APIKey      string            `yaml:"api_key"`
	Timeout     string            `yaml:"timeout"`
	BaseResumes map[string]string `yaml:"base_resumes"`
}

type rawRendererConfig struct {
	PDFEngine string `yaml:"pdf_engine"`
}

type rawScheduleConfig struct {
	Interval string `yaml:"interval"`
}

type rawRateLimitConfig struct {
	MinDelay string `yaml:"min_delay"`
}

// Load reads and parses the YAML config file at path, validates it, and returns Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	drafterTimeout := 120 * time.Second // drafting a resume is slow
	if raw.Drafter.Timeout != "" {
		drafterTimeout, err = time.ParseDuration(raw.Drafter.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse drafter.timeout %q: %w", raw.Drafter.Timeout, err)
		}
	}

	interval := 24 * time.Hour // default: daily
	if raw.Schedule.Interval != "" {
		interval, err = time.ParseDuration(raw.Schedule.Interval)
		if err != nil {
			return nil, fmt.Errorf("parse schedule.interval %q: %w", raw.Schedule.Interval, err)
		}
	}

	minDelay := 2 * time.Second
	if raw.RateLimit.MinDelay != "" {
		minDelay, err = time.ParseDuration(raw.RateLimit.MinDelay)
		if err != nil {
			return nil, fmt.Errorf("parse rate_limit.min_delay %q: %w", raw.RateLimit.MinDelay, err)
		}
	}

	baseURL := raw.Drafter.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	categories := make(map[model.Category]CategoryConfig, len(raw.Categories))
	for name, cc := range raw.Categories {
		if len(cc.ExperienceLevels) == 0 {
			cc.ExperienceLevels = []int{2}
		}
		if cc.TargetCount == 0 {
			cc.TargetCount = 10
		}
		categories[model.Category(name)] = cc
	}

	fallbacks := make([]FallbackStageConfig, 0, len(raw.FallbackStages))
	for _, rs := range raw.FallbackStages {
		stage := FallbackStageConfig{Label: rs.Label, MaxDaysOld: rs.MaxDaysOld}
		if len(rs.ExperienceLevels) > 0 {
			stage.ExperienceLevels = make(map[model.Category][]int, len(rs.ExperienceLevels))
			for name, levels := range rs.ExperienceLevels {
				stage.ExperienceLevels[model.Category(name)] = levels
			}
		}
		fallbacks = append(fallbacks, stage)
	}

	baseResumes := make(map[model.Category]string, len(raw.Drafter.BaseResumes))
	for name, p := range raw.Drafter.BaseResumes {
		baseResumes[model.Category(name)] = p
	}

	cfg := &Config{
		Categories:     categories,
		Locations:      raw.Locations,
		MaxDaysOld:     raw.MaxDaysOld,
		MaxCandidates:  raw.MaxCandidates,
		FallbackStages: fallbacks,
		Workers:        raw.Workers,
		OutputDir:      raw.OutputDir,
		DataDir:        raw.DataDir,
		Drafter: DrafterConfig{
			BaseURL:     baseURL,
			Model:       raw.Drafter.Model,
			APIKey:      raw.Drafter.APIKey,
			Timeout:     drafterTimeout,
			BaseResumes: baseResumes,
		},
		Renderer:     RendererConfig{PDFEngine: raw.Renderer.PDFEngine},
		Notification: raw.Notification,
		Schedule:     ScheduleConfig{Interval: interval},
		RateLimit:    RateLimitConfig{MinDelay: minDelay},
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.MaxCandidates == 0 {
		cfg.MaxCandidates = 30
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "output"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Renderer.PDFEngine == "" {
		cfg.Renderer.PDFEngine = "wkhtmltopdf"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Categories) == 0 {
		return fmt.Errorf("at least one category must be configured")
	}
	for name, cc := range cfg.Categories {
		if len(cc.Keywords) == 0 {
			return fmt.Errorf("categories.%s.keywords must not be empty", name)
		}
		if cc.TargetCount < 0 {
			return fmt.Errorf("categories.%s.target_count must not be negative, got %d", name, cc.TargetCount)
		}
	}
	if len(cfg.Locations) == 0 {
		return fmt.Errorf("at least one location must be configured")
	}
	for i, stage := range cfg.FallbackStages {
		for name := range stage.ExperienceLevels {
			if _, ok := cfg.Categories[name]; !ok {
				return fmt.Errorf("fallback_stages[%d].experience_levels.%s does not match a configured category", i, name)
			}
		}
	}
	if cfg.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", cfg.Workers)
	}

	if cfg.Notification.Type == "discord" && cfg.Notification.WebhookURL == "" {
		return fmt.Errorf("notification.webhook_url is required when type is \"discord\"")
	}

	if cfg.Drafter.Model == "" {
		return fmt.Errorf("drafter.model is required")
	}
	if cfg.Drafter.APIKey == "" {
		return fmt.Errorf("drafter.api_key is required (use ${OPENAI_API_KEY} to read it from the environment)")
	}
	for name := range cfg.Categories {
		if cfg.Drafter.BaseResumes[name] == "" {
			return fmt.Errorf("drafter.base_resumes.%s is required", name)
		}
	}

	return nil
}
