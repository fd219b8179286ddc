// Package mcp implements a Model Context Protocol server speaking JSON-RPC
// 2.0 over newline-delimited JSON on stdio. Tool failures are reported
// inside results with isError set, so the calling agent can read the failure
// text; protocol-level errors are reserved for malformed traffic.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is one incoming JSON-RPC message. The id is echoed back verbatim,
// so it stays an any rather than a concrete numeric type.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is one outgoing JSON-RPC message. ID is always emitted; a parse
// error that never learned the caller's id must answer with id null.
type Response struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

// RPCError is a protocol-level error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Tool describes one callable tool. The input schema is carried as raw JSON
// because it is part of the external contract and must pass through
// untouched.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ContentItem is one piece of tool result content.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CallResult is the outcome of a tool invocation. IsError marks tool-level
// failures; these still travel as successful JSON-RPC responses.
type CallResult struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// Text builds a successful result with one text item.
func Text(text string) CallResult {
	return CallResult{Content: []ContentItem{{Type: "text", Text: text}}}
}

// JSON builds a successful result with the value rendered as indented JSON.
func JSON(v any) CallResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Errorf("encoding result: %v", err)
	}
	return Text(string(data))
}

// Errorf builds a tool-level error result.
func Errorf(format string, args ...any) CallResult {
	return CallResult{
		Content: []ContentItem{{Type: "text", Text: "Error: " + fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}

// ToolFunc handles one tool invocation. It returns a CallResult even for
// failures; returning an error is reserved for conditions the handler could
// not turn into a result.
type ToolFunc func(ctx context.Context, args json.RawMessage) CallResult
