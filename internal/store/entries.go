package store

import (
	"database/sql"
	"fmt"
	"time"
)

// AcceptedEntry records one accepted AI suggestion: the schedule entry it
// became, the slot it came from, and which engine produced it. The local
// history feeds the stats and remind commands without a network round trip.
type AcceptedEntry struct {
	ID         int
	EntryID    string
	TaskID     string
	Title      string
	StartTime  time.Time
	Minutes    int
	Confidence float64
	Tier       string
	Engine     string
	Reason     string
	NotifiedAt *time.Time
	CreatedAt  time.Time
}

func (db *DB) InsertAccepted(e *AcceptedEntry) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO accepted_entries (entry_id, task_id, title, start_time, minutes, confidence, tier, engine, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.TaskID, e.Title,
		e.StartTime.UTC().Format(time.RFC3339),
		e.Minutes, e.Confidence, e.Tier, e.Engine, e.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting accepted entry: %w", err)
	}
	return result.LastInsertId()
}

// ListRecent returns the most recently accepted entries, newest first.
func (db *DB) ListRecent(limit int) ([]AcceptedEntry, error) {
	return db.queryEntries(
		`SELECT id, entry_id, task_id, title, start_time, minutes, confidence, tier, engine, reason, notified_at, created_at
		 FROM accepted_entries
		 ORDER BY created_at DESC
		 LIMIT ?`,
		limit,
	)
}

// ListRange returns entries whose start time falls in [from, to), ordered by
// start time.
func (db *DB) ListRange(from, to time.Time) ([]AcceptedEntry, error) {
	return db.queryEntries(
		`SELECT id, entry_id, task_id, title, start_time, minutes, confidence, tier, engine, reason, notified_at, created_at
		 FROM accepted_entries
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		from.UTC().Format(time.RFC3339),
		to.UTC().Format(time.RFC3339),
	)
}

// ListUpcomingUnnotified returns entries starting within [now, now+lead)
// that have not had a reminder sent yet.
func (db *DB) ListUpcomingUnnotified(now time.Time, lead time.Duration) ([]AcceptedEntry, error) {
	return db.queryEntries(
		`SELECT id, entry_id, task_id, title, start_time, minutes, confidence, tier, engine, reason, notified_at, created_at
		 FROM accepted_entries
		 WHERE start_time >= ? AND start_time < ? AND notified_at IS NULL
		 ORDER BY start_time ASC`,
		now.UTC().Format(time.RFC3339),
		now.Add(lead).UTC().Format(time.RFC3339),
	)
}

// MarkNotified records that a reminder was sent for the entry.
func (db *DB) MarkNotified(id int, at time.Time) error {
	_, err := db.Exec(
		"UPDATE accepted_entries SET notified_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id,
	)
	return err
}

func (db *DB) queryEntries(query string, args ...any) ([]AcceptedEntry, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []AcceptedEntry
	for rows.Next() {
		var e AcceptedEntry
		var start, created string
		var taskID, reason, notified sql.NullString
		if err := rows.Scan(&e.ID, &e.EntryID, &taskID, &e.Title, &start, &e.Minutes,
			&e.Confidence, &e.Tier, &e.Engine, &reason, &notified, &created); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		e.TaskID = taskID.String
		e.Reason = reason.String
		if e.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
			return nil, fmt.Errorf("parsing start time: %w", err)
		}
		if notified.Valid {
			t, err := time.Parse(time.RFC3339, notified.String)
			if err != nil {
				return nil, fmt.Errorf("parsing notified time: %w", err)
			}
			e.NotifiedAt = &t
		}
		if created != "" {
			if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
				e.CreatedAt = t
			} else if t, err := time.Parse(time.RFC3339, created); err == nil {
				e.CreatedAt = t
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
