package model

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Category of a posting, used to select the base resume and per-category targets.
type Category string

const (
	CategoryAI  Category = "ai"
	CategorySDE Category = "sde"
)

// Posting is one discovered job listing. Immutable once created within a run.
type Posting struct {
	ID          string   // stable id derived from the listing URL
	URL         string   // canonical listing URL (query stripped)
	Title       string
	Company     string
	Location    string
	Category    Category
	Description string     // full job description text, may be empty
	PostedAt    *time.Time // nullable (guest search does not always provide this)
}

var postingIDPattern = regexp.MustCompile(`[/-](\d{7,})`)

// PostingIDFromURL derives the stable posting id from a listing URL.
// Falls back to the last path segment when no numeric id is present.
func PostingIDFromURL(url string) string {
	url = strings.SplitN(url, "?", 2)[0]
	if m := postingIDPattern.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	trimmed := strings.TrimSuffix(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// NewRetryPosting builds a synthetic posting from a bare URL plus whatever
// metadata the caller supplied. Missing fields stay empty; downstream stages
// tolerate them.
func NewRetryPosting(url, title, company, location string, category Category) Posting {
	canonical := strings.SplitN(url, "?", 2)[0]
	return Posting{
		ID:       PostingIDFromURL(canonical),
		URL:      canonical,
		Title:    title,
		Company:  company,
		Location: location,
		Category: category,
	}
}

// OutcomeState is the processing state of one posting for one day.
type OutcomeState string

const (
	OutcomePending   OutcomeState = "pending"
	OutcomeSucceeded OutcomeState = "succeeded"
	OutcomeFailed    OutcomeState = "failed"
)

// Outcome pairs a state with a failure reason (set only when failed).
type Outcome struct {
	State  OutcomeState
	Reason string
}

func Pending() Outcome            { return Outcome{State: OutcomePending} }
func Succeeded() Outcome          { return Outcome{State: OutcomeSucceeded} }
func Failed(reason string) Outcome { return Outcome{State: OutcomeFailed, Reason: reason} }

// DayEntry is one posting in a DayRecord together with its outcome.
type DayEntry struct {
	Posting Posting
	Outcome Outcome
}

// DayRecord holds the ordered list of postings discovered on one date.
// It is the sole source of truth for "what was discovered on that day".
type DayRecord struct {
	Date    string // YYYY-MM-DD
	Entries []DayEntry
}

// Entry returns the entry for the given posting id, if present.
func (r *DayRecord) Entry(postingID string) (DayEntry, bool) {
	for _, e := range r.Entries {
		if e.Posting.ID == postingID {
			return e, true
		}
	}
	return DayEntry{}, false
}

// Upsert replaces the entry for the posting id in place, or appends it.
func (r *DayRecord) Upsert(entry DayEntry) {
	for i, e := range r.Entries {
		if e.Posting.ID == entry.Posting.ID {
			r.Entries[i] = entry
			return
		}
	}
	r.Entries = append(r.Entries, entry)
}

// Unfinished returns the entries whose outcome is failed or pending, in order.
func (r *DayRecord) Unfinished() []DayEntry {
	var out []DayEntry
	for _, e := range r.Entries {
		if e.Outcome.State == OutcomeFailed || e.Outcome.State == OutcomePending {
			out = append(out, e)
		}
	}
	return out
}

// RunResult is the ephemeral result of one orchestrator invocation.
type RunResult struct {
	RunID     string
	Date      string
	Entries   []DayEntry
	Succeeded int
	Failed    int
	Pending   int
}

// Add folds one entry into the result, keeping the aggregate counts current.
func (r *RunResult) Add(entry DayEntry) {
	r.Entries = append(r.Entries, entry)
	switch entry.Outcome.State {
	case OutcomeSucceeded:
		r.Succeeded++
	case OutcomeFailed:
		r.Failed++
	default:
		r.Pending++
	}
}

// TailoredContent is what the Drafter produces for one posting.
type TailoredContent struct {
	ResumeHTML  string // tailored resume, ready for PDF rendering
	CoverLetter string // plain text cover letter
	Rationale   string // "why this company" note
}

// Scraper discovers candidate postings. Discovery failure aborts a full run.
type Scraper interface {
	Discover(ctx context.Context) ([]Posting, error)
}

// Drafter produces tailored application content for one posting.
type Drafter interface {
	Draft(ctx context.Context, posting Posting) (TailoredContent, error)
}

// Renderer writes final artifacts (PDF resume, cover letter, rationale) under dir.
type Renderer interface {
	Render(ctx context.Context, content TailoredContent, posting Posting, dir string) error
}

// RecordStore owns the seen ledger and day records.
type RecordStore interface {
	HasSeen(postingID string) (bool, error)
	MarkSeen(postingID string) error
	ResetSeen() error
	LoadDay(date string) (DayRecord, error)
	SaveDay(record DayRecord) error
	UpdateOutcome(date, postingID string, outcome Outcome) error
}

// Notifier delivers the end-of-run summary. Failures never fail the run.
type Notifier interface {
	Notify(result RunResult) error
}
