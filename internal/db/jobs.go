package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// activeStatuses are the statuses covered by the partial unique index on
// jobs.issue_key. Keep in sync with the schema.
var activeStatuses = []string{"pending", "running", "waiting_clarification"}

type JobFilter struct {
	MemberID int64
	Status   string
	IssueKey string
}

// CreateJob claims a job slot for the issue key. The insert fails with
// ErrActiveJobExists when another active job (pending, running, or waiting
// for clarification) already holds the key.
func (db *DB) CreateJob(job Job) (Job, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = "pending"
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := db.conn.Exec(`
		INSERT INTO jobs (id, member_id, issue_key, board_id, repo_id, cloud_id,
			status, branch_name, pr_url, pr_number, clarification_comment_id,
			clarification_questions, error_message, run_count, last_output,
			last_result, files_changed, commit_sha, created_at, updated_at,
			started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.MemberID, job.IssueKey, job.BoardID, job.RepoID, job.CloudID,
		job.Status, job.BranchName, job.PRURL, job.PRNumber, job.ClarificationCommentID,
		marshalStrings(job.ClarificationQuestions), job.ErrorMessage, job.RunCount,
		job.LastOutput, job.LastResult, marshalStrings(job.FilesChanged), job.CommitSHA,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt),
		formatTime(job.StartedAt), formatTime(job.CompletedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: jobs.issue_key") {
			return Job{}, fmt.Errorf("issue %s: %w", job.IssueKey, ErrActiveJobExists)
		}
		return Job{}, fmt.Errorf("creating job: %w", err)
	}
	return job, nil
}

func (db *DB) GetJob(id string) (Job, error) {
	row := db.conn.QueryRow(jobSelect+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return Job{}, fmt.Errorf("getting job: %w", err)
	}
	return job, nil
}

// GetActiveJob returns the active job for the issue key, or ErrNotFound when
// no pending/running/waiting job holds it.
func (db *DB) GetActiveJob(issueKey string) (Job, error) {
	placeholders := strings.Repeat("?, ", len(activeStatuses)-1) + "?"
	args := []any{issueKey}
	for _, s := range activeStatuses {
		args = append(args, s)
	}
	row := db.conn.QueryRow(jobSelect+` WHERE issue_key = ? AND status IN (`+placeholders+`)`, args...)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, fmt.Errorf("no active job for %s: %w", issueKey, ErrNotFound)
		}
		return Job{}, fmt.Errorf("getting active job: %w", err)
	}
	return job, nil
}

func (db *DB) ListJobs(filter JobFilter) ([]Job, error) {
	query := jobSelect
	var conditions []string
	var args []any

	if filter.MemberID != 0 {
		conditions = append(conditions, "member_id = ?")
		args = append(args, filter.MemberID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.IssueKey != "" {
		conditions = append(conditions, "issue_key = ?")
		args = append(args, filter.IssueKey)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func (db *DB) UpdateJob(job Job) error {
	return updateJob(db.conn, job)
}

func (tx *Tx) UpdateJob(job Job) error {
	return updateJob(tx.tx, job)
}

// GetJob reads a job within the transaction, seeing writes made earlier in
// the same transaction.
func (tx *Tx) GetJob(id string) (Job, error) {
	row := tx.tx.QueryRow(jobSelect+` WHERE id = ?`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return Job{}, fmt.Errorf("getting job in tx: %w", err)
	}
	return job, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func updateJob(e execer, job Job) error {
	job.UpdatedAt = time.Now().UTC()
	result, err := e.Exec(`
		UPDATE jobs SET member_id = ?, issue_key = ?, board_id = ?, repo_id = ?,
			cloud_id = ?, status = ?, branch_name = ?, pr_url = ?, pr_number = ?,
			clarification_comment_id = ?, clarification_questions = ?,
			error_message = ?, run_count = ?, last_output = ?, last_result = ?,
			files_changed = ?, commit_sha = ?, updated_at = ?, started_at = ?,
			completed_at = ?
		WHERE id = ?`,
		job.MemberID, job.IssueKey, job.BoardID, job.RepoID,
		job.CloudID, job.Status, job.BranchName, job.PRURL, job.PRNumber,
		job.ClarificationCommentID, marshalStrings(job.ClarificationQuestions),
		job.ErrorMessage, job.RunCount, job.LastOutput, job.LastResult,
		marshalStrings(job.FilesChanged), job.CommitSHA,
		formatTime(job.UpdatedAt), formatTime(job.StartedAt), formatTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("updating job: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrNotFound)
	}
	return nil
}

const jobSelect = `
	SELECT id, member_id, issue_key, board_id, repo_id, cloud_id, status,
		branch_name, pr_url, pr_number, clarification_comment_id,
		clarification_questions, error_message, run_count, last_output,
		last_result, files_changed, commit_sha, created_at, updated_at,
		started_at, completed_at
	FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var job Job
	var questions, files string
	var createdAt, updatedAt, startedAt, completedAt string
	err := row.Scan(&job.ID, &job.MemberID, &job.IssueKey, &job.BoardID,
		&job.RepoID, &job.CloudID, &job.Status, &job.BranchName, &job.PRURL,
		&job.PRNumber, &job.ClarificationCommentID, &questions,
		&job.ErrorMessage, &job.RunCount, &job.LastOutput, &job.LastResult,
		&files, &job.CommitSHA, &createdAt, &updatedAt, &startedAt, &completedAt)
	if err != nil {
		return Job{}, err
	}
	job.ClarificationQuestions = unmarshalStrings(questions)
	job.FilesChanged = unmarshalStrings(files)
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.StartedAt = parseTime(startedAt)
	job.CompletedAt = parseTime(completedAt)
	return job, nil
}

func marshalStrings(ss []string) string {
	if len(ss) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(ss)
	return string(data)
}

func unmarshalStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var ss []string
	_ = json.Unmarshal([]byte(s), &ss)
	return ss
}
