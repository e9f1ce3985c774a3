package notifier

import (
	"log/slog"

	"github.com/amishk599/openjob/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes the run summary to the given logger as structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs the summary via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs the run totals and each entry's outcome.
// Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(result model.RunResult) error {
	n.logger.Info("run summary",
		"date", result.Date,
		"postings", len(result.Entries),
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"pending", result.Pending,
	)
	for _, e := range result.Entries {
		args := []any{
			"company", e.Posting.Company,
			"title", e.Posting.Title,
			"url", e.Posting.URL,
			"outcome", e.Outcome.State,
		}
		if e.Outcome.Reason != "" {
			args = append(args, "reason", e.Outcome.Reason)
		}
		n.logger.Info("posting outcome", args...)
	}
	return nil
}
