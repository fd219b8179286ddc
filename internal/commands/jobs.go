package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sprintwise/aidev/internal/db"
)

// jobsOut is swappable for tests.
var jobsOut io.Writer = os.Stdout

// Jobs lists job records, optionally filtered by member, status, or issue.
func Jobs(args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	configPath := AddConfigFlag(fs)
	member := fs.Int64("member", 0, "Filter by member id")
	status := fs.String("status", "", "Filter by status")
	issue := fs.String("issue", "", "Filter by issue key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := ResolveConfig(*configPath)
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}

	store, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	jobs, err := store.ListJobs(db.JobFilter{
		MemberID: *member,
		Status:   *status,
		IssueKey: *issue,
	})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(jobsOut, "no jobs found")
		return nil
	}

	w := tabwriter.NewWriter(jobsOut, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tISSUE\tSTATUS\tRUNS\tBRANCH\tPR\tUPDATED")
	for _, j := range jobs {
		pr := j.PRURL
		if pr == "" {
			pr = "-"
		}
		branch := j.BranchName
		if branch == "" {
			branch = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			j.ID, j.IssueKey, j.Status, j.RunCount, branch, pr,
			j.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}
