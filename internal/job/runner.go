package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/db"
	"github.com/sprintwise/aidev/internal/devagent"
	"github.com/sprintwise/aidev/internal/jira"
)

// lastOutputLimit bounds the agent output stored on the job record. The full
// output still reaches the application log.
const lastOutputLimit = 64 * 1024

// TicketClient is the slice of the Jira API the runner needs: asking
// clarification questions and reading their answers.
type TicketClient interface {
	AddComment(ctx context.Context, issueKey, text string) (jira.Comment, error)
	GetComment(ctx context.Context, issueKey, commentID string) (jira.Comment, error)
}

// Runner executes job actions. Dependencies are injected explicitly; the
// Tickets factory builds a client scoped to a job's cloud id.
type Runner struct {
	DB      *db.DB
	Dev     devagent.Developer
	Tickets func(cloudID string) TicketClient
	Config  *config.Config
	Logger  *slog.Logger
}

// ProcessParams identify the ticket and tenant for a fresh job. JobID is
// optional; callers that pre-allocate job ids (the worker CLI) supply it.
type ProcessParams struct {
	JobID    string
	MemberID int64
	IssueKey string
	CloudID  string
	BoardID  string
	RepoID   string
}

// Process claims a job for the issue key and runs it. A second active job
// for the same key is rejected with db.ErrActiveJobExists before any side
// effect.
func (r *Runner) Process(ctx context.Context, p ProcessParams) (db.Job, error) {
	created, err := r.DB.CreateJob(db.Job{
		ID:       p.JobID,
		MemberID: p.MemberID,
		IssueKey: p.IssueKey,
		CloudID:  p.CloudID,
		BoardID:  p.BoardID,
		RepoID:   p.RepoID,
	})
	if err != nil {
		return db.Job{}, err
	}
	if err := r.DB.AppendJobLog(created.IssueKey, "info", "job created",
		map[string]any{"job_id": created.ID, "repo": created.RepoID}); err != nil {
		return created, r.fail(created, err)
	}

	job, err := r.start(created, 1)
	if err != nil {
		return job, r.fail(job, err)
	}

	task, err := r.buildTask(job, "")
	if err != nil {
		return job, r.fail(job, err)
	}
	return r.execute(ctx, job, task)
}

// Resume continues a job that stopped to ask for clarification. The answer
// comment id defaults to the comment that asked the questions. A job in any
// other state is rejected without mutation.
func (r *Runner) Resume(ctx context.Context, jobID, answerCommentID string) (db.Job, error) {
	job, err := r.DB.GetJob(jobID)
	if err != nil {
		return db.Job{}, err
	}
	if job.Status != StatusWaitingClarification {
		return db.Job{}, wrongState(job.Status, StatusWaitingClarification)
	}

	if answerCommentID == "" {
		answerCommentID = job.ClarificationCommentID
	}
	if answerCommentID == "" {
		return db.Job{}, fmt.Errorf("no answer comment id stored or supplied")
	}

	// Cloud id must resolve before any side effect.
	if job.CloudID == "" {
		cloudID, err := r.recoverCloudID(job)
		if err != nil {
			return db.Job{}, err
		}
		job.CloudID = cloudID
	}

	answer, err := r.Tickets(job.CloudID).GetComment(ctx, job.IssueKey, answerCommentID)
	if err != nil {
		return db.Job{}, fmt.Errorf("reading answer comment: %w", err)
	}

	job, err = r.start(job, job.RunCount+1)
	if err != nil {
		return job, r.fail(job, err)
	}

	task, err := r.buildTask(job, answer.Body)
	if err != nil {
		return job, r.fail(job, err)
	}
	return r.execute(ctx, job, task)
}

// Retry re-runs a job on its branch. The branch and PR URL default to the
// values recorded on the job; a job with neither a stored nor a supplied
// branch is rejected without mutation.
func (r *Runner) Retry(ctx context.Context, jobID, branch, prURL string) (db.Job, error) {
	job, err := r.DB.GetJob(jobID)
	if err != nil {
		return db.Job{}, err
	}
	if branch != "" {
		job.BranchName = branch
	}
	if prURL != "" {
		job.PRURL = prURL
	}
	if job.BranchName == "" {
		return db.Job{}, fmt.Errorf("job %s: %w", jobID, ErrNoBranch)
	}

	if job.CloudID == "" {
		cloudID, err := r.recoverCloudID(job)
		if err != nil {
			return db.Job{}, err
		}
		job.CloudID = cloudID
	}

	job, err = r.start(job, job.RunCount+1)
	if err != nil {
		return job, r.fail(job, err)
	}

	task, err := r.buildTask(job, "")
	if err != nil {
		return job, r.fail(job, err)
	}
	return r.execute(ctx, job, task)
}

// Fail force-fails a job from the top-level exception path. Used by the CLI
// when an action blew up after the job id was known.
func (r *Runner) Fail(jobID string, cause error) error {
	job, err := r.DB.GetJob(jobID)
	if err != nil {
		return err
	}
	return r.fail(job, cause)
}

// recoverCloudID falls back to the job's board to find the tenant.
func (r *Runner) recoverCloudID(job db.Job) (string, error) {
	if job.BoardID == "" {
		return "", fmt.Errorf("job %s has no cloud id and no board id: %w", job.ID, ErrNoCloudID)
	}
	board, err := r.DB.GetBoard(job.BoardID)
	if err != nil {
		return "", fmt.Errorf("job %s: board lookup failed: %w", job.ID, ErrNoCloudID)
	}
	if board.CloudID == "" {
		return "", fmt.Errorf("board %s has no cloud id: %w", board.ID, ErrNoCloudID)
	}
	return board.CloudID, nil
}

// start moves the job to running with the given run count. StartedAt is set
// on the first run and kept afterwards.
func (r *Runner) start(job db.Job, runCount int) (db.Job, error) {
	job.Status = StatusRunning
	job.RunCount = runCount
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}

	err := r.DB.Tx(func(tx *db.Tx) error {
		if err := tx.UpdateJob(job); err != nil {
			return err
		}
		return tx.AppendJobLog(job.IssueKey, "info", "job running",
			map[string]any{"job_id": job.ID, "run": runCount})
	})
	if err != nil {
		return job, fmt.Errorf("starting job %s: %w", job.ID, err)
	}

	r.logger().Info("job running", "job_id", job.ID, "issue", job.IssueKey, "run", runCount)
	return job, nil
}

func (r *Runner) buildTask(job db.Job, answer string) (devagent.Task, error) {
	repo, err := r.Config.Repo(job.RepoID)
	if err != nil {
		return devagent.Task{}, err
	}

	branch := job.BranchName
	if branch == "" {
		branch = "aidev/" + job.IssueKey
	}

	return devagent.Task{
		IssueKey:   job.IssueKey,
		Answer:     answer,
		RepoPath:   repo.Path,
		BaseBranch: repo.BaseBranch,
		Branch:     branch,
		CloudID:    job.CloudID,
		RepoOwner:  repo.Owner,
		RepoName:   repo.Name,
	}, nil
}

// execute runs the agent and maps its structured result onto the job.
func (r *Runner) execute(ctx context.Context, job db.Job, task devagent.Task) (db.Job, error) {
	result, err := r.Dev.Execute(ctx, task)
	if err != nil {
		return job, r.fail(job, err)
	}
	return r.finish(ctx, job, result)
}

func (r *Runner) finish(ctx context.Context, job db.Job, result devagent.Result) (db.Job, error) {
	job.LastOutput = truncate(result.Output, lastOutputLimit)
	job.LastResult = marshalResult(result)
	if result.Branch != "" {
		job.BranchName = result.Branch
	}
	if result.CommitSHA != "" {
		job.CommitSHA = result.CommitSHA
	}
	if len(result.FilesChanged) > 0 {
		job.FilesChanged = result.FilesChanged
	}

	switch result.Status {
	case devagent.StatusNeedsClarification:
		return r.finishWaiting(ctx, job, result)

	case devagent.StatusPRCreated:
		job.Status = StatusPRCreated
		job.PRURL = result.PRURL
		job.PRNumber = result.PRNumber
		job.CompletedAt = time.Now().UTC()
		return job, r.transition(job, "info", "pull request created",
			map[string]any{"pr_url": job.PRURL, "pr_number": job.PRNumber})

	case devagent.StatusComplete:
		job.Status = StatusComplete
		job.CompletedAt = time.Now().UTC()
		return job, r.transition(job, "info", "job complete", nil)

	case devagent.StatusFailed:
		failErr := fmt.Errorf("agent failed: %s", result.Error)
		return job, r.fail(job, failErr)

	default:
		return job, r.fail(job, fmt.Errorf("agent returned unknown status %q", result.Status))
	}
}

// finishWaiting posts the agent's questions to the ticket and parks the job.
// The comment goes out before the status change so a crash in between leaves
// a re-askable running job rather than a waiting job with no question.
func (r *Runner) finishWaiting(ctx context.Context, job db.Job, result devagent.Result) (db.Job, error) {
	if len(result.Questions) == 0 {
		return job, r.fail(job, fmt.Errorf("agent asked for clarification without questions"))
	}

	comment, err := r.Tickets(job.CloudID).AddComment(ctx, job.IssueKey, formatQuestions(result.Questions))
	if err != nil {
		return job, r.fail(job, fmt.Errorf("posting clarification comment: %w", err))
	}

	job.Status = StatusWaitingClarification
	job.ClarificationCommentID = comment.ID
	job.ClarificationQuestions = result.Questions
	return job, r.transition(job, "info", "waiting for clarification",
		map[string]any{"comment_id": comment.ID, "questions": len(result.Questions)})
}

// fail records the failure and returns a non-nil error so the CLI exits 1.
func (r *Runner) fail(job db.Job, cause error) error {
	job.Status = StatusFailed
	job.ErrorMessage = cause.Error()
	job.CompletedAt = time.Now().UTC()

	if err := r.transition(job, "error", "job failed", map[string]any{"error": cause.Error()}); err != nil {
		return errors.Join(cause, err)
	}
	r.logger().Error("job failed", "job_id", job.ID, "issue", job.IssueKey, "error", cause)
	return cause
}

// transition persists a status change and its single log entry atomically.
func (r *Runner) transition(job db.Job, level, message string, logCtx map[string]any) error {
	err := r.DB.Tx(func(tx *db.Tx) error {
		if err := tx.UpdateJob(job); err != nil {
			return err
		}
		return tx.AppendJobLog(job.IssueKey, level, message, logCtx)
	})
	if err != nil {
		return fmt.Errorf("recording transition to %s: %w", job.Status, err)
	}
	return nil
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func formatQuestions(questions []string) string {
	var sb strings.Builder
	sb.WriteString("The developer agent needs clarification before continuing:\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	sb.WriteString("Reply to this comment and resume the job.")
	return sb.String()
}

func marshalResult(result devagent.Result) string {
	data, err := json.Marshal(result)
	if err != nil {
		return ""
	}
	return string(data)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
