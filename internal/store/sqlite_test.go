package store

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/amishk599/openjob/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLiteStore(dbPath, discardLogger())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(date string, ids ...string) model.DayRecord {
	record := model.DayRecord{Date: date}
	for _, id := range ids {
		record.Entries = append(record.Entries, model.DayEntry{
			Posting: model.Posting{
				ID:       id,
				URL:      "https://example.com/jobs/view/" + id,
				Title:    "Software Engineer",
				Company:  "testco",
				Location: "San Francisco, CA",
				Category: model.CategorySDE,
			},
			Outcome: model.Pending(),
		})
	}
	return record
}

func TestMarkSeenThenHasSeen(t *testing.T) {
	s := newTestStore(t)

	if err := s.MarkSeen("4001234567"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}

	seen, err := s.HasSeen("4001234567")
	if err != nil {
		t.Fatalf("HasSeen: %v", err)
	}
	if !seen {
		t.Error("expected HasSeen to return true after MarkSeen")
	}
}

func TestHasSeenUnknownReturnsFalse(t *testing.T) {
	s := newTestStore(t)

	seen, err := s.HasSeen("does-not-exist")
	if err != nil {
		t.Fatalf("HasSeen: %v", err)
	}
	if seen {
		t.Error("expected HasSeen to return false for unknown posting ID")
	}
}

func TestMarkSeenIdempotent(t *testing.T) {
	s := newTestStore(t)

	if err := s.MarkSeen("4009999999"); err != nil {
		t.Fatalf("first MarkSeen: %v", err)
	}
	if err := s.MarkSeen("4009999999"); err != nil {
		t.Fatalf("second MarkSeen (duplicate): %v", err)
	}

	seen, err := s.HasSeen("4009999999")
	if err != nil {
		t.Fatalf("HasSeen: %v", err)
	}
	if !seen {
		t.Error("expected HasSeen to return true after duplicate MarkSeen")
	}
}

func TestResetSeenClearsLedger(t *testing.T) {
	s := newTestStore(t)

	if err := s.MarkSeen("4001111111"); err != nil {
		t.Fatalf("MarkSeen: %v", err)
	}
	if err := s.ResetSeen(); err != nil {
		t.Fatalf("ResetSeen: %v", err)
	}

	seen, err := s.HasSeen("4001111111")
	if err != nil {
		t.Fatalf("HasSeen: %v", err)
	}
	if seen {
		t.Error("expected ledger to be empty after ResetSeen")
	}
}

func TestLoadDayMissingReturnsEmpty(t *testing.T) {
	s := newTestStore(t)

	record, err := s.LoadDay("2026-02-25")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if record.Date != "2026-02-25" {
		t.Errorf("record date = %q, want 2026-02-25", record.Date)
	}
	if len(record.Entries) != 0 {
		t.Errorf("entries = %d, want 0", len(record.Entries))
	}
}

func TestSaveDayThenLoadDayRoundTrip(t *testing.T) {
	s := newTestStore(t)

	saved := testRecord("2026-02-25", "100", "200", "300")
	saved.Entries[1].Outcome = model.Failed("draft: timeout")

	if err := s.SaveDay(saved); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	loaded, err := s.LoadDay("2026-02-25")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(loaded.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(loaded.Entries))
	}

	// Discovery order must survive the round trip.
	for i, want := range []string{"100", "200", "300"} {
		if got := loaded.Entries[i].Posting.ID; got != want {
			t.Errorf("entry %d id = %s, want %s", i, got, want)
		}
	}

	if got := loaded.Entries[1].Outcome; got.State != model.OutcomeFailed || got.Reason != "draft: timeout" {
		t.Errorf("entry 1 outcome = %+v, want failed(draft: timeout)", got)
	}
	if got := loaded.Entries[0].Posting.Company; got != "testco" {
		t.Errorf("entry 0 company = %q, want testco", got)
	}
}

func TestSaveDayReplacesInFull(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDay(testRecord("2026-02-25", "100", "200")); err != nil {
		t.Fatalf("first SaveDay: %v", err)
	}
	if err := s.SaveDay(testRecord("2026-02-25", "300")); err != nil {
		t.Fatalf("second SaveDay: %v", err)
	}

	loaded, err := s.LoadDay("2026-02-25")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(loaded.Entries) != 1 || loaded.Entries[0].Posting.ID != "300" {
		t.Errorf("entries = %+v, want single entry 300", loaded.Entries)
	}
}

func TestUpdateOutcomeIsDurablePerPosting(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDay(testRecord("2026-02-25", "100", "200")); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	if err := s.UpdateOutcome("2026-02-25", "100", model.Succeeded()); err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}

	loaded, err := s.LoadDay("2026-02-25")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if got := loaded.Entries[0].Outcome.State; got != model.OutcomeSucceeded {
		t.Errorf("entry 0 outcome = %s, want succeeded", got)
	}
	if got := loaded.Entries[1].Outcome.State; got != model.OutcomePending {
		t.Errorf("entry 1 outcome = %s, want pending (untouched)", got)
	}
}

func TestUpdateOutcomeUnknownPostingAppends(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDay(testRecord("2026-02-25", "100")); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	if err := s.UpdateOutcome("2026-02-25", "999", model.Failed("render: no engine")); err != nil {
		t.Fatalf("UpdateOutcome: %v", err)
	}

	loaded, err := s.LoadDay("2026-02-25")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(loaded.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(loaded.Entries))
	}
	if got := loaded.Entries[1].Posting.ID; got != "999" {
		t.Errorf("appended entry id = %s, want 999", got)
	}
	if got := loaded.Entries[1].Outcome.State; got != model.OutcomeFailed {
		t.Errorf("appended entry outcome = %s, want failed", got)
	}
}

func TestDaysAreIndependent(t *testing.T) {
	s := newTestStore(t)

	if err := s.SaveDay(testRecord("2026-02-24", "100")); err != nil {
		t.Fatalf("SaveDay 02-24: %v", err)
	}
	if err := s.SaveDay(testRecord("2026-02-25", "200")); err != nil {
		t.Fatalf("SaveDay 02-25: %v", err)
	}

	loaded, err := s.LoadDay("2026-02-24")
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(loaded.Entries) != 1 || loaded.Entries[0].Posting.ID != "100" {
		t.Errorf("2026-02-24 entries = %+v, want single entry 100", loaded.Entries)
	}
}
