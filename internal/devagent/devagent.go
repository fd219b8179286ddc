// Package devagent runs a coding agent against a repository checkout and
// interprets its outcome. The agent is a separate CLI process; this package
// owns the prompt it receives and the contract for what it reports back.
package devagent

import "context"

// Result statuses reported by an agent run.
const (
	StatusComplete           = "complete"
	StatusPRCreated          = "pr_created"
	StatusNeedsClarification = "needs_clarification"
	StatusFailed             = "failed"
)

// Task describes one unit of work handed to the agent.
type Task struct {
	IssueKey    string
	Summary     string
	Description string

	// Answer carries the ticket author's reply when resuming a task that
	// previously asked for clarification.
	Answer string

	RepoPath   string
	BaseBranch string
	// Branch is the working branch. On a fresh run the agent creates it;
	// on retry and resume it already exists.
	Branch string

	// CloudID, RepoOwner, and RepoName scope the tool servers the agent
	// launches. They reach those servers through the environment, never
	// through tool arguments.
	CloudID   string
	RepoOwner string
	RepoName  string
}

// Result is the structured outcome of one agent run.
type Result struct {
	Status       string   `json:"status"`
	PRURL        string   `json:"pr_url"`
	PRNumber     int      `json:"pr_number"`
	Branch       string   `json:"branch"`
	CommitSHA    string   `json:"commit_sha"`
	FilesChanged []string `json:"files_changed"`
	Questions    []string `json:"questions"`
	Error        string   `json:"error"`

	// Output is the agent's full stdout, kept for the job record.
	Output string `json:"-"`
}

// Developer executes coding tasks. Execute returns an error only when the
// agent could not be run at all; an agent that ran and failed reports that
// through Result.Status.
type Developer interface {
	Execute(ctx context.Context, task Task) (Result, error)
}
