// mcp-ollama serves local-model tools over MCP stdio, with file-backed chat
// sessions that survive process restarts.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/mcp"
	"github.com/sprintwise/aidev/internal/ollama"
	"github.com/sprintwise/aidev/internal/session"
	"github.com/sprintwise/aidev/internal/tools"
)

func main() {
	env, err := config.OllamaFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-ollama: %v\n", err)
		os.Exit(1)
	}

	sessions, err := session.NewFileStore(env.SessionsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-ollama: %v\n", err)
		os.Exit(1)
	}

	server := mcp.NewServer("aidev-ollama", "1.0.0")
	(&tools.Ollama{Client: ollama.New(env.Host), Sessions: sessions}).Register(server)

	if err := server.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-ollama: %v\n", err)
		os.Exit(1)
	}
}
