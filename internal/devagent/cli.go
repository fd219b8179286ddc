package devagent

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.md
var templateFS embed.FS

// CLI runs the agent as a command-line process, piping the rendered task
// prompt to its stdin and reading the result from its stdout.
type CLI struct {
	// Command defaults to "claude" when empty.
	Command string
	// Args are prepended to the default non-interactive flags.
	Args []string
	// Env entries (KEY=value) are added to the agent's environment, on top
	// of the worker's own. Credentials for the tool servers the agent
	// spawns travel this way.
	Env []string
	// Timeout bounds one run. Zero means 30 minutes.
	Timeout time.Duration
}

func (c *CLI) Execute(ctx context.Context, task Task) (Result, error) {
	prompt, err := renderTask(task)
	if err != nil {
		return Result{}, err
	}

	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	command := c.Command
	if command == "" {
		command = "claude"
	}
	args := append(append([]string{}, c.Args...), "--print", "--dangerously-skip-permissions")

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = task.RepoPath
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = append(os.Environ(), c.Env...)
	if task.CloudID != "" {
		cmd.Env = append(cmd.Env, "AIDEV_CLOUD_ID="+task.CloudID)
	}
	if task.RepoOwner != "" && task.RepoName != "" {
		cmd.Env = append(cmd.Env,
			"AIDEV_GITHUB_OWNER="+task.RepoOwner,
			"AIDEV_GITHUB_REPO="+task.RepoName)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	output := stdout.String()

	if ctx.Err() == context.DeadlineExceeded {
		return Result{}, fmt.Errorf("agent timed out after %s", timeout)
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); !ok {
			return Result{}, fmt.Errorf("running agent %s: %w", command, runErr)
		}
		// A non-zero exit with a parseable result still counts; the agent
		// reports failures through its result JSON.
		if result, err := ParseResult(output); err == nil {
			result.Output = output
			return result, nil
		}
		return Result{}, fmt.Errorf("agent exited with error: %s", strings.TrimSpace(stderr.String()))
	}

	result, err := ParseResult(output)
	if err != nil {
		return Result{}, fmt.Errorf("reading agent result: %w", err)
	}
	result.Output = output
	return result, nil
}

func renderTask(task Task) (string, error) {
	content, err := templateFS.ReadFile("templates/task.md")
	if err != nil {
		return "", fmt.Errorf("reading task template: %w", err)
	}

	tmpl, err := template.New("task").Parse(string(content))
	if err != nil {
		return "", fmt.Errorf("parsing task template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, task); err != nil {
		return "", fmt.Errorf("rendering task prompt: %w", err)
	}
	return buf.String(), nil
}
