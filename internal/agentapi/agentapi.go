// Package agentapi is a client for a remote tool-hosting service. The tool
// catalog is fetched over HTTP and cached; when a refresh fails the last
// good catalog keeps serving so a flaky backend does not take the tool
// server down with it.
package agentapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const catalogTTL = 5 * time.Minute

// Tool describes one remotely hosted tool.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// CallOutput is the result of invoking a remote tool.
type CallOutput struct {
	Output  string `json:"output"`
	IsError bool   `json:"isError"`
}

// Client talks to one agent-API backend.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string

	mu        sync.Mutex
	catalog   []Tool
	fetchedAt time.Time
}

// New creates a client for the backend at baseURL. The api key may be empty
// for backends that do not require one.
func New(baseURL, apiKey string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Tools returns the remote tool catalog. The catalog is cached for five
// minutes; a failed refresh falls back to the previous catalog when one
// exists.
func (c *Client) Tools(ctx context.Context) ([]Tool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.catalog != nil && time.Since(c.fetchedAt) < catalogTTL {
		return c.catalog, nil
	}

	tools, err := c.fetchCatalog(ctx)
	if err != nil {
		if c.catalog != nil {
			return c.catalog, nil
		}
		return nil, err
	}

	c.catalog = tools
	c.fetchedAt = time.Now()
	return tools, nil
}

func (c *Client) fetchCatalog(ctx context.Context) ([]Tool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/tools", nil)
	if err != nil {
		return nil, err
	}
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching tool catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tool catalog request returned %d", resp.StatusCode)
	}

	var out struct {
		Tools []Tool `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding tool catalog: %w", err)
	}
	return out.Tools, nil
}

// Call invokes a remote tool by name with the given arguments.
func (c *Client) Call(ctx context.Context, name string, args json.RawMessage) (CallOutput, error) {
	payload := map[string]any{
		"name":      name,
		"arguments": args,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return CallOutput{}, fmt.Errorf("encoding tool call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tools/call", bytes.NewReader(data))
	if err != nil {
		return CallOutput{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return CallOutput{}, fmt.Errorf("calling tool %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return CallOutput{}, fmt.Errorf("tool %s returned %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out CallOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return CallOutput{}, fmt.Errorf("decoding tool result: %w", err)
	}
	return out, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
