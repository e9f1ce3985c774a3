package drafter

import (
	_ "embed"
	"text/template"
)

//go:embed prompts/tailor.md
var tailorPromptRaw string

// TailorTemplate is the parsed prompt template for application tailoring.
// Parsed once at package init; reused on every Draft call.
var TailorTemplate = template.Must(template.New("tailor").Parse(tailorPromptRaw))
