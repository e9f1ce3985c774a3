package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/amishk599/openjob/internal/model"
)

// Artifact filenames written into each posting's output directory.
const (
	resumeHTMLFile  = "resume.html"
	resumePDFFile   = "resume.pdf"
	coverLetterFile = "cover_letter.txt"
	whyCompanyFile  = "why_company.txt"
)

// EngineNone disables PDF conversion; only the HTML and text artifacts are written.
const EngineNone = "none"

// PDFRenderer writes application artifacts to disk and converts the resume
// HTML to PDF with an external engine (wkhtmltopdf by default).
type PDFRenderer struct {
	engine string
	logger *slog.Logger
}

var _ model.Renderer = (*PDFRenderer)(nil)

// NewPDFRenderer creates a renderer using the given conversion engine binary.
func NewPDFRenderer(engine string, logger *slog.Logger) *PDFRenderer {
	return &PDFRenderer{
		engine: engine,
		logger: logger,
	}
}

// Render writes the tailored artifacts for posting into dir. The directory
// must already exist. Failing to write or convert any artifact fails the
// whole render; partial artifacts are left in place for inspection.
func (r *PDFRenderer) Render(ctx context.Context, content model.TailoredContent, posting model.Posting, dir string) error {
	htmlPath := filepath.Join(dir, resumeHTMLFile)
	if err := os.WriteFile(htmlPath, []byte(content.ResumeHTML), 0o644); err != nil {
		return fmt.Errorf("writing resume html: %w", err)
	}

	if content.CoverLetter != "" {
		if err := os.WriteFile(filepath.Join(dir, coverLetterFile), []byte(content.CoverLetter), 0o644); err != nil {
			return fmt.Errorf("writing cover letter: %w", err)
		}
	}
	if content.Rationale != "" {
		if err := os.WriteFile(filepath.Join(dir, whyCompanyFile), []byte(content.Rationale), 0o644); err != nil {
			return fmt.Errorf("writing rationale: %w", err)
		}
	}

	if r.engine == EngineNone {
		r.logger.Debug("pdf conversion disabled", "posting", posting.ID)
		return nil
	}

	pdfPath := filepath.Join(dir, resumePDFFile)
	if err := r.htmlToPDF(ctx, htmlPath, pdfPath); err != nil {
		return err
	}

	r.logger.Debug("artifacts rendered", "posting", posting.ID, "dir", dir)
	return nil
}

// htmlToPDF converts the resume HTML to a one-page Letter PDF.
func (r *PDFRenderer) htmlToPDF(ctx context.Context, htmlPath, pdfPath string) error {
	if _, err := exec.LookPath(r.engine); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", r.engine, err)
	}

	// --enable-local-file-access is required by wkhtmltopdf >= 0.12.6 to
	// read file:// inputs. The page styles carry their own margins.
	args := []string{
		"--page-size", "Letter",
		"--enable-local-file-access",
		"--quiet",
		htmlPath,
		pdfPath,
	}

	cmd := exec.CommandContext(ctx, r.engine, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w\noutput: %s", r.engine, err, string(output))
	}

	if fi, err := os.Stat(pdfPath); err != nil || fi.Size() == 0 {
		return fmt.Errorf("%s produced no output at %s", r.engine, pdfPath)
	}
	return nil
}
