package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/amishk599/openjob/internal/model"
)

// Discord rejects messages over 2000 characters; leave headroom.
const discordLimit = 1900

// Ensure DiscordNotifier implements model.Notifier.
var _ model.Notifier = (*DiscordNotifier)(nil)

// DiscordNotifier sends the end-of-run summary to a Discord channel webhook,
// splitting long reports into multiple messages under the character limit.
type DiscordNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDiscordNotifier returns a notifier that posts run summaries to Discord.
func NewDiscordNotifier(webhookURL string, httpClient *http.Client, logger *slog.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		webhookURL: webhookURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Notify sends the run summary, chunked under the Discord message limit.
// Returns an error only if ALL chunks fail. Individual failures are logged.
func (d *DiscordNotifier) Notify(result model.RunResult) error {
	chunks := chunkLines(buildReport(result), discordLimit)

	failures := 0
	for _, chunk := range chunks {
		if err := d.post(chunk); err != nil {
			d.logger.Error("discord notification failed", "error", err)
			failures++
		}
	}

	if failures == len(chunks) {
		return fmt.Errorf("all %d discord messages failed", failures)
	}
	d.logger.Info("discord notifications complete", "sent", len(chunks)-failures, "failed", failures)
	return nil
}

func (d *DiscordNotifier) post(content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.httpClient.Post(d.webhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("post to discord: %w", err)
	}
	defer resp.Body.Close()

	// Webhooks return 204 on success; 200 with ?wait=true.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord returned %d", resp.StatusCode)
	}
	return nil
}

// buildReport renders the run summary as Discord markdown lines.
func buildReport(result model.RunResult) []string {
	if len(result.Entries) == 0 {
		return []string{fmt.Sprintf("🔍 **Daily Job Hunt** — %s\nNo new postings today. Checking again tomorrow!", result.Date)}
	}

	lines := []string{
		fmt.Sprintf("🔍 **Daily Job Hunt Report** — %s", result.Date),
		fmt.Sprintf("Processed **%d** posting(s) · ✅ %d succeeded · ❌ %d failed · ⏳ %d pending",
			len(result.Entries), result.Succeeded, result.Failed, result.Pending),
		"",
	}

	for i, e := range result.Entries {
		p := e.Posting
		lines = append(lines,
			fmt.Sprintf("**%d. %s** @ %s | %s", i+1, p.Title, p.Company, p.Location),
			fmt.Sprintf("<%s>", p.URL),
			outcomeLine(e.Outcome),
			"",
		)
	}
	return lines
}

func outcomeLine(o model.Outcome) string {
	switch o.State {
	case model.OutcomeSucceeded:
		return "✅ Application ready"
	case model.OutcomeFailed:
		return fmt.Sprintf("❌ Failed (%s)", o.Reason)
	default:
		return "⏳ Pending"
	}
}

// chunkLines groups lines into messages that each stay under limit. A single
// oversized line is truncated rather than dropped.
func chunkLines(lines []string, limit int) []string {
	var (
		chunks []string
		chunk  []string
		size   int
	)
	flush := func() {
		if len(chunk) > 0 {
			chunks = append(chunks, strings.Join(chunk, "\n"))
			chunk = nil
			size = 0
		}
	}

	for _, line := range lines {
		lineLen := len(line) + 1
		if lineLen > limit {
			flush()
			// Cut on a rune boundary so the message stays valid UTF-8.
			cut := limit
			for cut < len(line) && cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			continue
		}
		if size+lineLen > limit {
			flush()
		}
		chunk = append(chunk, line)
		size += lineLen
	}
	flush()
	return chunks
}
