package tools

import (
	"context"
	"encoding/json"

	"github.com/sprintwise/aidev/internal/agentapi"
	"github.com/sprintwise/aidev/internal/mcp"
)

// Agent proxies a remote tool catalog. Unlike the other registrars it has no
// static tools; everything comes from the backend through the server's
// dynamic catalog hooks.
type Agent struct {
	Client *agentapi.Client
}

// Catalog adapts the remote catalog to the server's CatalogFunc.
func (a *Agent) Catalog(ctx context.Context) ([]mcp.Tool, error) {
	remote, err := a.Client.Tools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]mcp.Tool, 0, len(remote))
	for _, t := range remote {
		tools = append(tools, mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return tools, nil
}

// Call forwards a tool invocation to the backend. It only claims names that
// appear in the current catalog, so typos still produce the standard
// unknown-tool result.
func (a *Agent) Call(ctx context.Context, name string, args json.RawMessage) (mcp.CallResult, bool) {
	remote, err := a.Client.Tools(ctx)
	if err != nil {
		return mcp.Errorf("reaching tool backend: %v", err), true
	}

	known := false
	for _, t := range remote {
		if t.Name == name {
			known = true
			break
		}
	}
	if !known {
		return mcp.CallResult{}, false
	}

	out, err := a.Client.Call(ctx, name, args)
	if err != nil {
		return mcp.Errorf("calling %s: %v", name, err), true
	}
	if out.IsError {
		return mcp.CallResult{
			Content: []mcp.ContentItem{{Type: "text", Text: out.Output}},
			IsError: true,
		}, true
	}
	return mcp.Text(out.Output), true
}
