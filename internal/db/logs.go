package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AppendJobLog writes one audit entry for the issue key. The context map is
// stored as JSON; a nil map stores the empty string.
func (db *DB) AppendJobLog(issueKey, level, message string, context map[string]any) error {
	return appendJobLog(db.conn, issueKey, level, message, context)
}

func (tx *Tx) AppendJobLog(issueKey, level, message string, context map[string]any) error {
	return appendJobLog(tx.tx, issueKey, level, message, context)
}

func appendJobLog(e execer, issueKey, level, message string, context map[string]any) error {
	var ctxJSON string
	if len(context) > 0 {
		data, err := json.Marshal(context)
		if err != nil {
			return fmt.Errorf("marshaling log context: %w", err)
		}
		ctxJSON = string(data)
	}

	_, err := e.Exec(`
		INSERT INTO job_log (id, issue_key, level, message, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), issueKey, level, message, ctxJSON,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("appending job log: %w", err)
	}
	return nil
}

// ListJobLog returns the audit trail for the issue key in insertion order.
func (db *DB) ListJobLog(issueKey string, limit, offset int) ([]JobLogEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, issue_key, level, message, context, created_at
		FROM job_log WHERE issue_key = ?
		ORDER BY created_at ASC, rowid ASC
		LIMIT ? OFFSET ?`, issueKey, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing job log: %w", err)
	}
	defer rows.Close()

	return scanLogEntries(rows)
}

// CountJobLog returns the number of audit entries for the issue key.
func (db *DB) CountJobLog(issueKey string) (int, error) {
	var n int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM job_log WHERE issue_key = ?`, issueKey).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting job log: %w", err)
	}
	return n, nil
}

func scanLogEntries(rows *sql.Rows) ([]JobLogEntry, error) {
	var entries []JobLogEntry
	for rows.Next() {
		var e JobLogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.IssueKey, &e.Level, &e.Message, &e.Context, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning job log entry: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
