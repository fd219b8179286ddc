package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sprintwise/aidev/internal/mcp"
	"github.com/sprintwise/aidev/internal/ollama"
	"github.com/sprintwise/aidev/internal/session"
)

const defaultModel = "llama3.2"

// Ollama registers the local-model tool catalog. Session-chat tools persist
// transcripts through the store, so continuity survives process restarts.
type Ollama struct {
	Client   *ollama.Client
	Sessions session.Store
}

func (o *Ollama) Register(s *mcp.Server) {
	s.Register(mcp.Tool{
		Name:        "ollama_chat",
		Description: "Send a one-off chat message to a local model",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prompt": {"type": "string", "description": "User message"},
				"model": {"type": "string", "description": "Model name (default llama3.2)"},
				"system": {"type": "string", "description": "Optional system prompt"}
			},
			"required": ["prompt"]
		}`),
	}, o.chat)

	s.Register(mcp.Tool{
		Name:        "ollama_session_chat",
		Description: "Chat with a local model inside a persistent session",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id": {"type": "string", "description": "Session identifier; created on first use"},
				"prompt": {"type": "string", "description": "User message"},
				"model": {"type": "string", "description": "Model name (default llama3.2)"}
			},
			"required": ["session_id", "prompt"]
		}`),
	}, o.sessionChat)

	s.Register(mcp.Tool{
		Name:        "ollama_session_info",
		Description: "Show the stored transcript of a chat session",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"session_id": {"type": "string", "description": "Session identifier"}
			},
			"required": ["session_id"]
		}`),
	}, o.sessionInfo)

	s.Register(mcp.Tool{
		Name:        "ollama_complete",
		Description: "Run a one-shot text completion on a local model",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prompt": {"type": "string", "description": "Prompt text"},
				"model": {"type": "string", "description": "Model name (default llama3.2)"}
			},
			"required": ["prompt"]
		}`),
	}, o.complete)

	s.Register(mcp.Tool{
		Name:        "ollama_vision",
		Description: "Ask a vision-capable local model about an image",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"prompt": {"type": "string", "description": "Question about the image"},
				"image_base64": {"type": "string", "description": "Base64-encoded image"},
				"model": {"type": "string", "description": "Vision model name, e.g. llava"}
			},
			"required": ["prompt", "image_base64", "model"]
		}`),
	}, o.vision)

	s.Register(mcp.Tool{
		Name:        "ollama_list_models",
		Description: "List the models available on the local Ollama server",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, o.listModels)
}

func (o *Ollama) chat(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
		System string `json:"system"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Prompt == "" {
		return mcp.Errorf("prompt is required")
	}

	var msgs []ollama.Message
	if in.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: in.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: in.Prompt})

	reply, err := o.Client.Chat(ctx, modelOr(in.Model), msgs)
	if err != nil {
		return mcp.Errorf("chat failed: %v", err)
	}
	return mcp.Text(reply.Content)
}

func (o *Ollama) sessionChat(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		SessionID string `json:"session_id"`
		Prompt    string `json:"prompt"`
		Model     string `json:"model"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.SessionID == "" || in.Prompt == "" {
		return mcp.Errorf("session_id and prompt are required")
	}

	transcript, err := o.Sessions.Load(in.SessionID)
	if err != nil {
		return mcp.Errorf("loading session: %v", err)
	}

	msgs := make([]ollama.Message, 0, len(transcript)+1)
	for _, m := range transcript {
		msgs = append(msgs, ollama.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: in.Prompt})

	reply, err := o.Client.Chat(ctx, modelOr(in.Model), msgs)
	if err != nil {
		return mcp.Errorf("chat failed: %v", err)
	}

	now := time.Now().UTC()
	_, err = o.Sessions.Append(in.SessionID,
		session.Message{Role: "user", Content: in.Prompt, At: now},
		session.Message{Role: reply.Role, Content: reply.Content, At: now},
	)
	if err != nil {
		return mcp.Errorf("saving session: %v", err)
	}
	return mcp.Text(reply.Content)
}

func (o *Ollama) sessionInfo(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.SessionID == "" {
		return mcp.Errorf("session_id is required")
	}

	transcript, err := o.Sessions.Load(in.SessionID)
	if err != nil {
		return mcp.Errorf("loading session: %v", err)
	}
	if len(transcript) == 0 {
		return mcp.Text(fmt.Sprintf("Session %q is empty", in.SessionID))
	}
	return mcp.JSON(transcript)
}

func (o *Ollama) complete(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Prompt string `json:"prompt"`
		Model  string `json:"model"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Prompt == "" {
		return mcp.Errorf("prompt is required")
	}

	out, err := o.Client.Complete(ctx, modelOr(in.Model), in.Prompt)
	if err != nil {
		return mcp.Errorf("completion failed: %v", err)
	}
	return mcp.Text(out)
}

func (o *Ollama) vision(ctx context.Context, args json.RawMessage) mcp.CallResult {
	var in struct {
		Prompt      string `json:"prompt"`
		ImageBase64 string `json:"image_base64"`
		Model       string `json:"model"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return mcp.Errorf("invalid arguments: %v", err)
	}
	if in.Prompt == "" || in.ImageBase64 == "" || in.Model == "" {
		return mcp.Errorf("prompt, image_base64, and model are required")
	}

	image, err := base64.StdEncoding.DecodeString(in.ImageBase64)
	if err != nil {
		return mcp.Errorf("image_base64 is not valid base64: %v", err)
	}

	out, err := o.Client.Vision(ctx, in.Model, in.Prompt, image)
	if err != nil {
		if ollama.IsUnsupportedMultimodal(err) {
			return mcp.Errorf("model %q does not accept images; try a vision model such as llava", in.Model)
		}
		return mcp.Errorf("vision request failed: %v", err)
	}
	return mcp.Text(out)
}

func (o *Ollama) listModels(ctx context.Context, args json.RawMessage) mcp.CallResult {
	models, err := o.Client.ListModels(ctx)
	if err != nil {
		return mcp.Errorf("listing models: %v", err)
	}
	return mcp.JSON(models)
}

func modelOr(model string) string {
	if model == "" {
		return defaultModel
	}
	return model
}
