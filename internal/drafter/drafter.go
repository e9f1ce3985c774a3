package drafter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/amishk599/openjob/internal/model"
)

// LLMDrafter implements model.Drafter using an LLM. Each category carries
// its own base resume; the LLM rewrites it against the posting.
type LLMDrafter struct {
	provider    LLMProvider
	tmpl        *template.Template
	baseResumes map[model.Category]string // category -> resume HTML
	logger      *slog.Logger
}

// NewLLMDrafter creates a drafter over the given provider and base resumes.
func NewLLMDrafter(provider LLMProvider, tmpl *template.Template, baseResumes map[model.Category]string, logger *slog.Logger) *LLMDrafter {
	return &LLMDrafter{
		provider:    provider,
		tmpl:        tmpl,
		baseResumes: baseResumes,
		logger:      logger,
	}
}

// Draft generates tailored application content for posting.
func (d *LLMDrafter) Draft(ctx context.Context, posting model.Posting) (model.TailoredContent, error) {
	base, ok := d.baseResumes[posting.Category]
	if !ok {
		return model.TailoredContent{}, fmt.Errorf("no base resume for category %q", posting.Category)
	}

	var promptBuf bytes.Buffer
	err := d.tmpl.Execute(&promptBuf, struct {
		Title       string
		Company     string
		Location    string
		Description string
		BaseResume  string
	}{
		Title:       posting.Title,
		Company:     posting.Company,
		Location:    posting.Location,
		Description: descriptionOrFallback(posting),
		BaseResume:  base,
	})
	if err != nil {
		return model.TailoredContent{}, fmt.Errorf("render prompt: %w", err)
	}

	raw, err := d.provider.Complete(ctx, promptBuf.String())
	if err != nil {
		return model.TailoredContent{}, fmt.Errorf("llm complete: %w", err)
	}

	content, err := parseTailored(raw)
	if err != nil {
		return model.TailoredContent{}, fmt.Errorf("parse tailored content: %w", err)
	}

	d.logger.Debug("draft generated",
		"posting", posting.ID,
		"company", posting.Company,
		"resume_bytes", len(content.ResumeHTML),
	)
	return content, nil
}

// descriptionOrFallback substitutes the title when the description fetch
// failed, so the prompt still has something to tailor against.
func descriptionOrFallback(p model.Posting) string {
	if strings.TrimSpace(p.Description) != "" {
		return p.Description
	}
	return fmt.Sprintf("(description unavailable) %s role at %s, %s", p.Title, p.Company, p.Location)
}

// rawTailored is the JSON shape returned by the LLM (matches tailoredApplicationSchema).
type rawTailored struct {
	ResumeHTML  string `json:"resume_html"`
	CoverLetter string `json:"cover_letter"`
	WhyCompany  string `json:"why_company"`
}

// parseTailored deserializes the LLM response. OpenAI structured outputs
// guarantees valid JSON conforming to the schema, so no code-fence stripping
// is needed, but an empty resume is still rejected.
func parseTailored(raw string) (model.TailoredContent, error) {
	var rt rawTailored
	if err := json.Unmarshal([]byte(raw), &rt); err != nil {
		return model.TailoredContent{}, fmt.Errorf("unmarshal tailored JSON: %w", err)
	}
	if strings.TrimSpace(rt.ResumeHTML) == "" {
		return model.TailoredContent{}, fmt.Errorf("llm returned empty resume")
	}
	return model.TailoredContent{
		ResumeHTML:  rt.ResumeHTML,
		CoverLetter: rt.CoverLetter,
		Rationale:   rt.WhyCompany,
	}, nil
}
