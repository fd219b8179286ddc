// mcp-github serves GitHub tools over MCP stdio, pinned to the owner/repo
// given in the launch environment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/github"
	"github.com/sprintwise/aidev/internal/mcp"
	"github.com/sprintwise/aidev/internal/tools"
)

func main() {
	env, err := config.GitHubFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-github: %v\n", err)
		os.Exit(1)
	}

	var opts []github.Option
	if env.UseApp() {
		opts = append(opts, github.WithAppAuth(github.AppCredentials{
			ClientID:       env.AppClientID,
			InstallationID: env.AppInstallationID,
			PrivateKeyPath: env.AppPrivateKeyPath,
		}))
	}

	client, err := github.New(env.Token, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-github: %v\n", err)
		os.Exit(1)
	}

	server := mcp.NewServer("aidev-github", "1.0.0")
	(&tools.GitHub{Client: client, Env: env}).Register(server)

	if err := server.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-github: %v\n", err)
		os.Exit(1)
	}
}
