package commands

import (
	"flag"
	"fmt"
	"io"
	"os"
)

// logsOut is swappable for tests.
var logsOut io.Writer = os.Stdout

// Logs prints a job's audit trail in chronological order.
func Logs(args []string) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	configPath := AddConfigFlag(fs)
	issue := fs.String("issue", "", "Issue key (required)")
	limit := fs.Int("limit", 100, "Maximum number of entries")
	offset := fs.Int("offset", 0, "Number of entries to skip")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *issue == "" {
		return fmt.Errorf("--issue is required")
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

	entries, err := store.ListJobLog(*issue, *limit, *offset)
	if err != nil {
		return err
	}
	total, err := store.CountJobLog(*issue)
	if err != nil {
		return err
	}
	if total == 0 {
		fmt.Fprintf(logsOut, "no log entries for %s\n", *issue)
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s [%s] %s", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Level, e.Message)
		if e.Context != "" && e.Context != "{}" {
			line += " " + e.Context
		}
		fmt.Fprintln(logsOut, line)
	}
	if shown := *offset + len(entries); shown < total {
		fmt.Fprintf(logsOut, "(%d of %d entries, use --offset %d for more)\n", shown, total, shown)
	}
	return nil
}
