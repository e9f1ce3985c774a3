package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"github.com/amishk599/openjob/internal/model"
)

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// CompanySlug converts a company name into a filesystem-safe directory name.
func CompanySlug(company string) string {
	if company == "" {
		return "unknown"
	}
	return slugPattern.ReplaceAllString(company, "_")
}

// Processor drives the per-posting pipeline: draft tailored content, render it
// to final artifacts, and place them under a deterministic per-day path.
type Processor struct {
	drafter   model.Drafter
	renderer  model.Renderer
	outputDir string
	logger    *slog.Logger
}

// NewProcessor creates a processor wired with its collaborators.
func NewProcessor(drafter model.Drafter, renderer model.Renderer, outputDir string, logger *slog.Logger) *Processor {
	return &Processor{
		drafter:   drafter,
		renderer:  renderer,
		outputDir: outputDir,
		logger:    logger,
	}
}

// OutputPath returns the artifact directory for a posting processed on date.
// The path is deterministic, so re-running the same (date, company) overwrites
// rather than accumulating duplicates.
func (p *Processor) OutputPath(date, company string) string {
	return filepath.Join(p.outputDir, date, CompanySlug(company))
}

// Process runs the full per-posting pipeline. Every returned error is a
// *model.StageError naming the stage that failed; callers convert it into a
// failed outcome for this posting only.
func (p *Processor) Process(ctx context.Context, date string, posting model.Posting) error {
	p.logger.Info("processing posting",
		"title", posting.Title,
		"company", posting.Company,
		"category", posting.Category,
	)

	content, err := p.drafter.Draft(ctx, posting)
	if err != nil {
		return &model.StageError{Stage: model.StageDraft, Err: err}
	}

	dir := p.OutputPath(date, posting.Company)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &model.StageError{Stage: model.StagePlace, Err: fmt.Errorf("creating output dir: %w", err)}
	}

	if err := p.renderer.Render(ctx, content, posting, dir); err != nil {
		return &model.StageError{Stage: model.StageRender, Err: err}
	}

	p.logger.Info("posting complete",
		"title", posting.Title,
		"company", posting.Company,
		"output", dir,
	)
	return nil
}
