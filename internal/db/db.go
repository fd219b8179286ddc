// Package db provides the SQLite-backed store for AI developer jobs, their
// append-only log trail, and the board directory used to recover a job's
// Jira cloud id.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrActiveJobExists is returned when a job claim fails because another job
// for the same issue key is still pending, running, or waiting for
// clarification.
var ErrActiveJobExists = errors.New("active job already exists for issue")

type DB struct {
	conn *sql.DB
}

// Job is one tracked attempt to take a ticket from request to pull request.
type Job struct {
	ID                     string
	MemberID               int64
	IssueKey               string
	BoardID                string
	RepoID                 string
	CloudID                string
	Status                 string
	BranchName             string
	PRURL                  string
	PRNumber               int
	ClarificationCommentID string
	ClarificationQuestions []string
	ErrorMessage           string
	RunCount               int
	LastOutput             string
	LastResult             string
	FilesChanged           []string
	CommitSHA              string
	CreatedAt              time.Time
	UpdatedAt              time.Time
	StartedAt              time.Time
	CompletedAt            time.Time
}

// JobLogEntry is one line of a job's append-only audit trail, keyed by issue
// key. Entries are never mutated or deleted.
type JobLogEntry struct {
	ID        string
	IssueKey  string
	Level     string
	Message   string
	Context   string
	CreatedAt time.Time
}

// Board maps a Jira board to the cloud (tenant site) it belongs to. Rows are
// written by the provisioning tooling; the worker only reads them to recover
// a missing cloud id.
type Board struct {
	ID       string
	MemberID int64
	CloudID  string
	Name     string
}

// The partial unique index on jobs closes the duplicate-active-job race:
// claiming a job is a plain INSERT, and a concurrent claim for the same issue
// key fails on the constraint instead of silently duplicating.
const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	member_id INTEGER NOT NULL,
	issue_key TEXT NOT NULL,
	board_id TEXT NOT NULL DEFAULT '',
	repo_id TEXT NOT NULL DEFAULT '',
	cloud_id TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	branch_name TEXT NOT NULL DEFAULT '',
	pr_url TEXT NOT NULL DEFAULT '',
	pr_number INTEGER NOT NULL DEFAULT 0,
	clarification_comment_id TEXT NOT NULL DEFAULT '',
	clarification_questions TEXT NOT NULL DEFAULT '[]',
	error_message TEXT NOT NULL DEFAULT '',
	run_count INTEGER NOT NULL DEFAULT 0,
	last_output TEXT NOT NULL DEFAULT '',
	last_result TEXT NOT NULL DEFAULT '',
	files_changed TEXT NOT NULL DEFAULT '[]',
	commit_sha TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	updated_at TEXT NOT NULL DEFAULT (datetime('now')),
	started_at TEXT NOT NULL DEFAULT '',
	completed_at TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_jobs_active_issue
	ON jobs(issue_key)
	WHERE status IN ('pending', 'running', 'waiting_clarification');

CREATE TABLE IF NOT EXISTS job_log (
	id TEXT PRIMARY KEY,
	issue_key TEXT NOT NULL,
	level TEXT NOT NULL DEFAULT 'info',
	message TEXT NOT NULL,
	context TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_job_log_issue ON job_log(issue_key);

CREATE TABLE IF NOT EXISTS boards (
	id TEXT PRIMARY KEY,
	member_id INTEGER NOT NULL,
	cloud_id TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT ''
);
`

// DefaultPath returns ~/.aidev/aidev.db, creating the directory if needed.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(home, ".aidev")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return filepath.Join(dir, "aidev.db"), nil
}

func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}

	return &DB{conn: conn}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Tx runs fn within a database transaction. If fn returns an error, the
// transaction is rolled back; otherwise it is committed.
func (db *DB) Tx(fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(&Tx{tx: sqlTx}); err != nil {
		sqlTx.Rollback()
		return err
	}
	return sqlTx.Commit()
}

// Tx wraps a sql.Tx for use within transactional operations.
type Tx struct {
	tx *sql.Tx
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
