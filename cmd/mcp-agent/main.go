// mcp-agent proxies a remote agent's tool catalog over MCP stdio. The
// catalog is fetched on demand and cached; calls are forwarded as-is.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sprintwise/aidev/internal/agentapi"
	"github.com/sprintwise/aidev/internal/config"
	"github.com/sprintwise/aidev/internal/mcp"
	"github.com/sprintwise/aidev/internal/tools"
)

func main() {
	env, err := config.AgentFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-agent: %v\n", err)
		os.Exit(1)
	}

	proxy := &tools.Agent{Client: agentapi.New(env.BaseURL, env.APIKey)}

	server := mcp.NewServer("aidev-agent", "1.0.0",
		mcp.WithDynamicCatalog(proxy.Catalog, proxy.Call))

	if err := server.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-agent: %v\n", err)
		os.Exit(1)
	}
}
