package drafter

import (
	"context"
	"fmt"

	"github.com/amishk599/openjob/internal/model"
)

// NopDrafter produces placeholder content without any LLM calls. Used for
// dry runs where only the pipeline bookkeeping matters.
type NopDrafter struct{}

// NewNopDrafter returns a NopDrafter.
func NewNopDrafter() *NopDrafter {
	return &NopDrafter{}
}

// Draft returns minimal placeholder content for posting.
func (n *NopDrafter) Draft(_ context.Context, posting model.Posting) (model.TailoredContent, error) {
	return model.TailoredContent{
		ResumeHTML:  fmt.Sprintf("<!DOCTYPE html><html><body><h1>Dry run: %s at %s</h1></body></html>", posting.Title, posting.Company),
		CoverLetter: fmt.Sprintf("Dry-run cover letter for %s at %s.", posting.Title, posting.Company),
		Rationale:   fmt.Sprintf("Dry-run rationale for %s.", posting.Company),
	}, nil
}
