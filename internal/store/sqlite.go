package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/amishk599/openjob/internal/model"
)

// Ensure SQLiteStore implements model.RecordStore.
var _ model.RecordStore = (*SQLiteStore)(nil)

// SQLiteStore persists the seen ledger and per-day posting records in SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and ensures
// both tables exist.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS seen_postings (
		posting_id TEXT PRIMARY KEY,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS day_postings (
		day        TEXT NOT NULL,
		position   INTEGER NOT NULL,
		posting_id TEXT NOT NULL,
		url        TEXT NOT NULL DEFAULT '',
		title      TEXT NOT NULL DEFAULT '',
		company    TEXT NOT NULL DEFAULT '',
		location   TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL DEFAULT '',
		outcome    TEXT NOT NULL DEFAULT 'pending',
		reason     TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (day, posting_id)
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// HasSeen returns true if the given posting ID has already been recorded.
func (s *SQLiteStore) HasSeen(postingID string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM seen_postings WHERE posting_id = ?", postingID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s: %w", postingID, err)
	}
	return true, nil
}

// MarkSeen records a posting ID as seen. If it already exists the call is a no-op.
func (s *SQLiteStore) MarkSeen(postingID string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO seen_postings (posting_id) VALUES (?)", postingID)
	if err != nil {
		return fmt.Errorf("marking posting %s as seen: %w", postingID, err)
	}
	return nil
}

// ResetSeen clears the entire seen ledger. Maintenance action only; losing
// the ledger risks re-processing, never data loss.
func (s *SQLiteStore) ResetSeen() error {
	_, err := s.db.Exec("DELETE FROM seen_postings")
	if err != nil {
		return fmt.Errorf("resetting seen ledger: %w", err)
	}
	return nil
}

// LoadDay returns the record for date. A missing or unreadable record is an
// empty record, never an error: losing a day record only risks re-processing,
// never data loss.
func (s *SQLiteStore) LoadDay(date string) (model.DayRecord, error) {
	record := model.DayRecord{Date: date}

	rows, err := s.db.Query(
		`SELECT posting_id, url, title, company, location, category, outcome, reason
		 FROM day_postings WHERE day = ? ORDER BY position`, date)
	if err != nil {
		s.logger.Warn("day record unreadable, treating as empty", "date", date, "error", err)
		return record, nil
	}
	defer rows.Close()

	for rows.Next() {
		var e model.DayEntry
		var category, outcome string
		if err := rows.Scan(
			&e.Posting.ID, &e.Posting.URL, &e.Posting.Title, &e.Posting.Company,
			&e.Posting.Location, &category, &outcome, &e.Outcome.Reason,
		); err != nil {
			s.logger.Warn("day record row corrupt, skipping", "date", date, "error", err)
			continue
		}
		e.Posting.Category = model.Category(category)
		e.Outcome.State = model.OutcomeState(outcome)
		record.Entries = append(record.Entries, e)
	}
	if err := rows.Err(); err != nil {
		s.logger.Warn("day record scan aborted", "date", date, "error", err)
	}

	return record, nil
}

// SaveDay replaces the stored record for record.Date in full. The delete and
// inserts run in one transaction so an interrupted save never leaves a
// partially written day.
func (s *SQLiteStore) SaveDay(record model.DayRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("saving day %s: %w", record.Date, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM day_postings WHERE day = ?", record.Date); err != nil {
		return fmt.Errorf("saving day %s: clearing old entries: %w", record.Date, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO day_postings (day, position, posting_id, url, title, company, location, category, outcome, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("saving day %s: %w", record.Date, err)
	}
	defer stmt.Close()

	for i, e := range record.Entries {
		_, err := stmt.Exec(
			record.Date, i, e.Posting.ID, e.Posting.URL, e.Posting.Title, e.Posting.Company,
			e.Posting.Location, string(e.Posting.Category), string(e.Outcome.State), e.Outcome.Reason,
		)
		if err != nil {
			return fmt.Errorf("saving day %s: inserting %s: %w", record.Date, e.Posting.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("saving day %s: %w", record.Date, err)
	}
	return nil
}

// UpdateOutcome updates a single posting's outcome within the day record so
// progress is durable immediately rather than buffered for the whole run.
func (s *SQLiteStore) UpdateOutcome(date, postingID string, outcome model.Outcome) error {
	res, err := s.db.Exec(
		"UPDATE day_postings SET outcome = ?, reason = ? WHERE day = ? AND posting_id = ?",
		string(outcome.State), outcome.Reason, date, postingID)
	if err != nil {
		return fmt.Errorf("updating outcome for %s on %s: %w", postingID, date, err)
	}

	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		// Posting not part of this day yet (retry of a posting discovered on an
		// earlier date): append it so the day record stays authoritative.
		var maxPos sql.NullInt64
		if err := s.db.QueryRow("SELECT MAX(position) FROM day_postings WHERE day = ?", date).Scan(&maxPos); err != nil {
			return fmt.Errorf("updating outcome for %s on %s: %w", postingID, date, err)
		}
		_, err := s.db.Exec(
			"INSERT INTO day_postings (day, position, posting_id, outcome, reason) VALUES (?, ?, ?, ?, ?)",
			date, maxPos.Int64+1, postingID, string(outcome.State), outcome.Reason)
		if err != nil {
			return fmt.Errorf("updating outcome for %s on %s: %w", postingID, date, err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
