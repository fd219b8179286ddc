// Package ollama is a minimal client for a local Ollama server, covering the
// chat, generate, and model listing endpoints. Responses are requested
// non-streaming; generation calls carry a long timeout because local models
// can take minutes per reply.
package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	generateTimeout = 5 * time.Minute
	listTimeout     = 15 * time.Second
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// Model is one locally available model.
type Model struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

// APIError is a structured error response from the Ollama server, as opposed
// to a transport failure reaching it.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama returned %d: %s", e.Status, e.Message)
}

// IsUnsupportedMultimodal reports whether the error means the model cannot
// accept image input, so callers can suggest a vision-capable model.
func IsUnsupportedMultimodal(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "does not support images") ||
		strings.Contains(msg, "multimodal")
}

// Client talks to one Ollama server.
type Client struct {
	http *http.Client
	host string
}

// New creates a client for the server at host, e.g. "http://localhost:11434".
func New(host string) *Client {
	return &Client{
		http: &http.Client{},
		host: strings.TrimSuffix(host, "/"),
	}
}

// Chat sends the full conversation to the model and returns the assistant
// reply.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (Message, error) {
	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   false,
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	var out struct {
		Message Message `json:"message"`
	}
	if err := c.post(ctx, "/api/chat", payload, &out); err != nil {
		return Message{}, fmt.Errorf("chat with %s: %w", model, err)
	}
	return out.Message, nil
}

// Complete runs a one-shot completion of the prompt.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	payload := map[string]any{
		"model":  model,
		"prompt": prompt,
		"stream": false,
	}

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	var out struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", payload, &out); err != nil {
		return "", fmt.Errorf("completing with %s: %w", model, err)
	}
	return out.Response, nil
}

// Vision asks the model about raw image bytes. The image is inlined into the
// request base64-encoded.
func (c *Client) Vision(ctx context.Context, model, prompt string, image []byte) (string, error) {
	msg := Message{
		Role:    "user",
		Content: prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(image)},
	}
	reply, err := c.Chat(ctx, model, []Message{msg})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}

// ListModels returns the models available on the server.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var out struct {
		Models []Model `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding model list: %w", err)
	}
	return out.Models, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func apiError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error string `json:"error"`
	}
	msg := strings.TrimSpace(string(data))
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
