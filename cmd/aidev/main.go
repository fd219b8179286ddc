package main

import (
	"fmt"
	"os"

	"github.com/sprintwise/aidev/internal/commands"
)

func usage() {
	fmt.Fprintf(os.Stderr, `aidev — ticket-to-PR job worker

Usage:
  aidev worker --secret s --member n --job id --action process --issue KEY --cloud id --repo id [--board id]
  aidev worker --secret s --member n --job id --action resume [--comment id]
  aidev worker --secret s --member n --job id --action retry [--branch name] [--pr url]
  aidev jobs [--member n] [--status s] [--issue KEY]
  aidev logs --issue KEY [--limit n] [--offset n]

Flags:
  --config    Path to config YAML (default: $AIDEV_CONFIG or ~/.aidev/config.yaml)
  --secret    Worker secret, must match the configured value
  --action    One of process, resume, retry
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	subcmd := os.Args[1]
	rest := os.Args[2:]

	var err error
	switch subcmd {
	case "worker":
		err = commands.Worker(rest)
	case "jobs":
		err = commands.Jobs(rest)
	case "logs":
		err = commands.Logs(rest)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", subcmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
