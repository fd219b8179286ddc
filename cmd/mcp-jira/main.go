// mcp-jira serves Jira tools over MCP stdio. The tenant (cloud id) and the
// access token come from the launch environment; tool calls cannot override
// them.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/jira"
	"github.com/sprintwise/aidev/internal/mcp"
	"github.com/sprintwise/aidev/internal/tools"
)

func main() {
	env, err := config.JiraFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-jira: %v\n", err)
		os.Exit(1)
	}

	client := jira.New(env.AccessToken, env.CloudID, jira.WithBaseURL(env.BaseURL))

	server := mcp.NewServer("aidev-jira", "1.0.0")
	(&tools.Jira{Client: client, Env: env}).Register(server)

	if err := server.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-jira: %v\n", err)
		os.Exit(1)
	}
}
