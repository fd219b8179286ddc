// Package job drives a ticket's job record through its lifecycle: claim,
// run the coding agent, and persist the outcome. Every status change lands
// in the same transaction as its audit log entry.
package job

import (
	"errors"
	"fmt"
)

// Job statuses. pending, running, and waiting_clarification count as active;
// complete, failed, and cancelled are terminal. pr_created awaits a human
// merge but stays eligible for retry.
const (
	StatusPending              = "pending"
	StatusRunning              = "running"
	StatusWaitingClarification = "waiting_clarification"
	StatusPRCreated            = "pr_created"
	StatusComplete             = "complete"
	StatusFailed               = "failed"
	StatusCancelled            = "cancelled"
)

// ErrWrongState is returned when an action's status precondition fails. The
// job is left untouched.
var ErrWrongState = errors.New("job is not in the required state")

// ErrNoBranch is returned when retry is requested for a job that never
// recorded a working branch.
var ErrNoBranch = errors.New("job has no recorded branch")

// ErrNoCloudID is returned when a job's cloud id cannot be recovered from
// the job record or its board. Actions abort before any side effect.
var ErrNoCloudID = errors.New("cloud id could not be resolved")

func wrongState(have, want string) error {
	return fmt.Errorf("status is %s, need %s: %w", have, want, ErrWrongState)
}
