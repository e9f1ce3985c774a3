package report

import (
	"fmt"
	"strings"

	"github.com/amishk599/openjob/internal/model"
)

// Summary is the read-only view of one day's record with outcome totals.
type Summary struct {
	Date      string
	Entries   []model.DayEntry
	Succeeded int
	Failed    int
	Pending   int
}

// Reporter builds day summaries from the record store. It never writes.
type Reporter struct {
	store model.RecordStore
}

// NewReporter returns a reporter over store.
func NewReporter(store model.RecordStore) *Reporter {
	return &Reporter{store: store}
}

// Summarize loads the record for date and counts outcomes. A day with no
// record yields an empty summary, not an error.
func (r *Reporter) Summarize(date string) (Summary, error) {
	record, err := r.store.LoadDay(date)
	if err != nil {
		return Summary{}, fmt.Errorf("loading day %s: %w", date, err)
	}

	s := Summary{Date: date, Entries: record.Entries}
	for _, e := range record.Entries {
		switch e.Outcome.State {
		case model.OutcomeSucceeded:
			s.Succeeded++
		case model.OutcomeFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s, nil
}

// String renders the summary as a plain-text report in discovery order.
func (s Summary) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status for %s\n", s.Date)
	if len(s.Entries) == 0 {
		b.WriteString("  no postings recorded\n")
		return b.String()
	}

	fmt.Fprintf(&b, "  %d posting(s): %d succeeded, %d failed, %d pending\n\n",
		len(s.Entries), s.Succeeded, s.Failed, s.Pending)

	for i, e := range s.Entries {
		p := e.Posting
		fmt.Fprintf(&b, "  %2d. [%-9s] %s @ %s (%s)\n", i+1, e.Outcome.State, p.Title, p.Company, p.Location)
		fmt.Fprintf(&b, "      %s\n", p.URL)
		if e.Outcome.Reason != "" {
			fmt.Fprintf(&b, "      reason: %s\n", e.Outcome.Reason)
		}
	}
	return b.String()
}
