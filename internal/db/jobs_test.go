package db

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCreateAndGetJob(t *testing.T) {
	db := testDB(t)

	created, err := db.CreateJob(Job{
		MemberID: 42,
		IssueKey: "PROJ-1",
		BoardID:  "board-1",
		RepoID:   "sprintwise/api",
		CloudID:  "cloud-abc",
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated job id")
	}
	if created.Status != "pending" {
		t.Errorf("status = %q, want pending", created.Status)
	}

	got, err := db.GetJob(created.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.IssueKey != "PROJ-1" || got.MemberID != 42 || got.CloudID != "cloud-abc" {
		t.Errorf("unexpected job: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected created_at and updated_at to be set")
	}
	if !got.StartedAt.IsZero() || !got.CompletedAt.IsZero() {
		t.Error("expected started_at and completed_at to be zero")
	}
}

func TestGetJobNotFound(t *testing.T) {
	db := testDB(t)

	_, err := db.GetJob("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateJobDuplicateActive(t *testing.T) {
	db := testDB(t)

	if _, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-2"}); err != nil {
		t.Fatalf("first CreateJob failed: %v", err)
	}

	_, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-2"})
	if !errors.Is(err, ErrActiveJobExists) {
		t.Fatalf("expected ErrActiveJobExists, got %v", err)
	}
}

func TestCreateJobAfterTerminal(t *testing.T) {
	db := testDB(t)

	first, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-3"})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	first.Status = "failed"
	first.ErrorMessage = "agent crashed"
	if err := db.UpdateJob(first); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	// A terminal job releases the issue key for a fresh attempt.
	second, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-3"})
	if err != nil {
		t.Fatalf("CreateJob after terminal status failed: %v", err)
	}
	if second.ID == first.ID {
		t.Error("expected a new job id")
	}
}

func TestUpdateJobRoundtrip(t *testing.T) {
	db := testDB(t)

	job, err := db.CreateJob(Job{MemberID: 7, IssueKey: "PROJ-4"})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	job.Status = "waiting_clarification"
	job.ClarificationCommentID = "10001"
	job.ClarificationQuestions = []string{"Which API version?", "Should this be paginated?"}
	job.FilesChanged = []string{"internal/api/handler.go"}
	job.BranchName = "aidev/PROJ-4"
	job.RunCount = 1
	job.StartedAt = time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	if err := db.UpdateJob(job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, err := db.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != "waiting_clarification" {
		t.Errorf("status = %q, want waiting_clarification", got.Status)
	}
	if len(got.ClarificationQuestions) != 2 || got.ClarificationQuestions[0] != "Which API version?" {
		t.Errorf("unexpected questions: %v", got.ClarificationQuestions)
	}
	if len(got.FilesChanged) != 1 || got.FilesChanged[0] != "internal/api/handler.go" {
		t.Errorf("unexpected files: %v", got.FilesChanged)
	}
	if !got.StartedAt.Equal(job.StartedAt) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, job.StartedAt)
	}
}

func TestUpdateJobNotFound(t *testing.T) {
	db := testDB(t)

	err := db.UpdateJob(Job{ID: "missing", IssueKey: "PROJ-5"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestGetActiveJob(t *testing.T) {
	db := testDB(t)

	job, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-6"})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	got, err := db.GetActiveJob("PROJ-6")
	if err != nil {
		t.Fatalf("GetActiveJob failed: %v", err)
	}
	if got.ID != job.ID {
		t.Errorf("got job %s, want %s", got.ID, job.ID)
	}

	job.Status = "completed"
	if err := db.UpdateJob(job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	if _, err := db.GetActiveJob("PROJ-6"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after completion, got %v", err)
	}
}

func TestListJobsFilter(t *testing.T) {
	db := testDB(t)

	if _, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-7"}); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	other, err := db.CreateJob(Job{MemberID: 2, IssueKey: "PROJ-8"})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	other.Status = "failed"
	if err := db.UpdateJob(other); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	all, err := db.ListJobs(JobFilter{})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d jobs, want 2", len(all))
	}

	failed, err := db.ListJobs(JobFilter{Status: "failed"})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(failed) != 1 || failed[0].IssueKey != "PROJ-8" {
		t.Errorf("unexpected filtered jobs: %+v", failed)
	}

	member, err := db.ListJobs(JobFilter{MemberID: 1})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(member) != 1 || member[0].IssueKey != "PROJ-7" {
		t.Errorf("unexpected member jobs: %+v", member)
	}
}

func TestTxUpdateRollsBack(t *testing.T) {
	db := testDB(t)

	job, err := db.CreateJob(Job{MemberID: 1, IssueKey: "PROJ-9"})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	wantErr := errors.New("boom")
	err = db.Tx(func(tx *Tx) error {
		job.Status = "running"
		if err := tx.UpdateJob(job); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := db.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.Status != "pending" {
		t.Errorf("status = %q, want pending after rollback", got.Status)
	}
}

func TestBoardUpsertAndGet(t *testing.T) {
	db := testDB(t)

	if err := db.UpsertBoard(Board{ID: "b1", MemberID: 9, CloudID: "cloud-x", Name: "Platform"}); err != nil {
		t.Fatalf("UpsertBoard failed: %v", err)
	}
	if err := db.UpsertBoard(Board{ID: "b1", MemberID: 9, CloudID: "cloud-y", Name: "Platform"}); err != nil {
		t.Fatalf("second UpsertBoard failed: %v", err)
	}

	got, err := db.GetBoard("b1")
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if got.CloudID != "cloud-y" {
		t.Errorf("cloud_id = %q, want cloud-y", got.CloudID)
	}

	if _, err := db.GetBoard("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
