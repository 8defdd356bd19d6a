package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/marker.place/internal/ar/session"
)

// DefaultJournalLimit bounds List when no limit is given.
const DefaultJournalLimit = 100

// SessionSummary is one row of the sessions table with its entry count.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Entries   int       `json:"entries"`
}

// JournalStore persists session.Entry rows.
type JournalStore struct {
	db *sql.DB
}

// NewJournalStore creates a JournalStore on an open database.
func NewJournalStore(db *DB) *JournalStore {
	return &JournalStore{db: db.DB}
}

// Append inserts e and records its session. Entries with no session ID
// are stored under "unstarted".
func (s *JournalStore) Append(ctx context.Context, e session.Entry) error {
	if e.SessionID == "" {
		e.SessionID = "unstarted"
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	at := e.At.UnixNano()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal append: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, first_seen_ns, last_seen_ns)
		VALUES (?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET last_seen_ns = excluded.last_seen_ns
	`, e.SessionID, at, at)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", e.SessionID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal_entries (
			session_id, kind, phase, message, anchor_id, model, payload, at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.SessionID,
		string(e.Kind),
		nullString(e.Phase),
		nullString(e.Message),
		nullString(e.AnchorID),
		nullString(e.Model),
		nullString(e.Payload),
		at,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return tx.Commit()
}

// List returns the most recent entries, newest first. An empty sessionID
// lists across sessions; a non-positive limit uses DefaultJournalLimit.
func (s *JournalStore) List(ctx context.Context, sessionID string, limit int) ([]session.Entry, error) {
	if limit <= 0 {
		limit = DefaultJournalLimit
	}
	query := `
		SELECT entry_id, session_id, kind, phase, message, anchor_id, model, payload, at_ns
		FROM journal_entries
		WHERE (? = '' OR session_id = ?)
		ORDER BY entry_id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, sessionID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []session.Entry
	for rows.Next() {
		var (
			e                                      session.Entry
			kind                                   string
			phase, message, anchorID, model, payld sql.NullString
			atNs                                   int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &kind, &phase, &message, &anchorID, &model, &payld, &atNs); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Kind = session.EntryKind(kind)
		e.Phase = phase.String
		e.Message = message.String
		e.AnchorID = anchorID.String
		e.Model = model.String
		e.Payload = payld.String
		e.At = time.Unix(0, atNs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions returns every journalled session, most recently active first.
func (s *JournalStore) Sessions(ctx context.Context) ([]SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.first_seen_ns, s.last_seen_ns, COUNT(j.entry_id)
		FROM sessions s
		LEFT JOIN journal_entries j ON j.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.last_seen_ns DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var (
			sum           SessionSummary
			first, latest int64
		)
		if err := rows.Scan(&sum.SessionID, &first, &latest, &sum.Entries); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sum.FirstSeen = time.Unix(0, first).UTC()
		sum.LastSeen = time.Unix(0, latest).UTC()
		out = append(out, sum)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
