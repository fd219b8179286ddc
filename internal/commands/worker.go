package commands

import (
	"context"
	"crypto/subtle"
	"flag"
	"fmt"

	"github.com/sprintwise/aidev/internal/job"
)

// Worker runs one job action: process, resume, or retry. It is the entry
// point invoked by the web backend, so the secret check happens before
// anything else and input errors never touch the database.
func Worker(args []string) error {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	configPath := AddConfigFlag(fs)
	secret := fs.String("secret", "", "Worker secret (required)")
	member := fs.Int64("member", 0, "Member id (required)")
	jobID := fs.String("job", "", "Job id (required)")
	action := fs.String("action", "", "Action: process, resume, or retry (required)")
	issue := fs.String("issue", "", "Issue key (process)")
	cloud := fs.String("cloud", "", "Jira cloud id (process)")
	board := fs.String("board", "", "Board id, used to recover the cloud id when absent")
	repo := fs.String("repo", "", "Repository id from the config (process)")
	comment := fs.String("comment", "", "Answer comment id (resume; defaults to the question comment)")
	branch := fs.String("branch", "", "Branch override (retry; defaults to the stored branch)")
	pr := fs.String("pr", "", "Pull request URL override (retry)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ResolveConfig(*configPath)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}

	// The secret gate comes first. Constant-time comparison, and an empty
	// configured secret never matches.
	if cfg.Worker.Secret == "" ||
		subtle.ConstantTimeCompare([]byte(*secret), []byte(cfg.Worker.Secret)) != 1 {
		return fmt.Errorf("invalid worker secret")
	}

	if *member <= 0 {
		return fmt.Errorf("--member is required")
	}
	if *jobID == "" {
		return fmt.Errorf("--job is required")
	}
	switch *action {
	case "process":
		if *issue == "" || *cloud == "" || *repo == "" {
			return fmt.Errorf("process requires --issue, --cloud, and --repo")
		}
	case "resume", "retry":
	case "":
		return fmt.Errorf("--action is required")
	default:
		return fmt.Errorf("unknown action %q (want process, resume, or retry)", *action)
	}

	logger := workerLogger()
	runner, store, err := newRunner(cfg, logger)
	if err != nil {
		return fmt.Errorf("setting up runner: %w", err)
	}
	defer store.Close()

	return runAction(context.Background(), runner, *action, actionParams{
		jobID:    *jobID,
		memberID: *member,
		issueKey: *issue,
		cloudID:  *cloud,
		boardID:  *board,
		repoID:   *repo,
		comment:  *comment,
		branch:   *branch,
		prURL:    *pr,
	})
}

type actionParams struct {
	jobID    string
	memberID int64
	issueKey string
	cloudID  string
	boardID  string
	repoID   string
	comment  string
	branch   string
	prURL    string
}

// runAction dispatches to the runner. A panic inside an action is the one
// exception path left; it is recorded on the job before the process exits
// non-zero.
func runAction(ctx context.Context, runner *job.Runner, action string, p actionParams) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", action, r)
			if failErr := runner.Fail(p.jobID, err); failErr != nil {
				err = failErr
			}
		}
	}()

	switch action {
	case "process":
		_, err = runner.Process(ctx, job.ProcessParams{
			JobID:    p.jobID,
			MemberID: p.memberID,
			IssueKey: p.issueKey,
			CloudID:  p.cloudID,
			BoardID:  p.boardID,
			RepoID:   p.repoID,
		})
	case "resume":
		_, err = runner.Resume(ctx, p.jobID, p.comment)
	case "retry":
		_, err = runner.Retry(ctx, p.jobID, p.branch, p.prURL)
	}
	return err
}
