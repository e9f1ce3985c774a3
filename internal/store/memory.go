package store

import (
	"sync"

	"github.com/amishk599/openjob/internal/model"
)

// Ensure MemoryStore implements model.RecordStore.
var _ model.RecordStore = (*MemoryStore)(nil)

// MemoryStore keeps the seen ledger and day records in process memory.
// Used for dry runs (nothing persisted) and as a test double.
type MemoryStore struct {
	mu   sync.Mutex
	seen map[string]bool
	days map[string]model.DayRecord
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen: make(map[string]bool),
		days: make(map[string]model.DayRecord),
	}
}

func (s *MemoryStore) HasSeen(postingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[postingID], nil
}

func (s *MemoryStore) MarkSeen(postingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[postingID] = true
	return nil
}

func (s *MemoryStore) ResetSeen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[string]bool)
	return nil
}

func (s *MemoryStore) LoadDay(date string) (model.DayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.days[date]
	if !ok {
		return model.DayRecord{Date: date}, nil
	}
	return cloneRecord(record), nil
}

func (s *MemoryStore) SaveDay(record model.DayRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.days[record.Date] = cloneRecord(record)
	return nil
}

func (s *MemoryStore) UpdateOutcome(date, postingID string, outcome model.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.days[date]
	if !ok {
		record = model.DayRecord{Date: date}
	}
	record.Upsert(upsertOutcome(record, postingID, outcome))
	s.days[date] = record
	return nil
}

// upsertOutcome builds the entry to store: the existing posting with the new
// outcome, or a bare entry when the posting was never part of this day.
func upsertOutcome(record model.DayRecord, postingID string, outcome model.Outcome) model.DayEntry {
	if e, ok := record.Entry(postingID); ok {
		e.Outcome = outcome
		return e
	}
	return model.DayEntry{
		Posting: model.Posting{ID: postingID},
		Outcome: outcome,
	}
}

func cloneRecord(record model.DayRecord) model.DayRecord {
	out := model.DayRecord{Date: record.Date}
	out.Entries = append(out.Entries, record.Entries...)
	return out
}
