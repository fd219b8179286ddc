package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const protocolVersion = "2024-11-05"

// CatalogFunc supplies a dynamic tool catalog, merged after statically
// registered tools in tools/list.
type CatalogFunc func(ctx context.Context) ([]Tool, error)

// CallFunc handles calls to dynamic tools. It reports whether it recognized
// the name, so unknown names can fall through to the standard error result.
type CallFunc func(ctx context.Context, name string, args json.RawMessage) (CallResult, bool)

// Server dispatches JSON-RPC requests to registered tools. One server
// instance serves one stdio connection.
type Server struct {
	name    string
	version string
	logger  *slog.Logger

	in  *bufio.Reader
	out io.Writer

	tools    []Tool
	handlers map[string]ToolFunc

	catalog CatalogFunc
	call    CallFunc

	methods       map[string]func(context.Context, *Request)
	notifications map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithIO overrides stdin/stdout (useful for testing).
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *Server) {
		s.in = bufio.NewReader(in)
		s.out = out
	}
}

// WithLogger overrides the default stderr logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithDynamicCatalog adds a remote tool source. Its tools are appended to
// tools/list, and names not registered locally are routed to call.
func WithDynamicCatalog(catalog CatalogFunc, call CallFunc) Option {
	return func(s *Server) {
		s.catalog = catalog
		s.call = call
	}
}

// NewServer creates a server identified by name and version in the
// initialize handshake. Diagnostics go to stderr; stdout carries only
// protocol frames.
func NewServer(name, version string, opts ...Option) *Server {
	s := &Server{
		name:     name,
		version:  version,
		logger:   slog.New(slog.NewTextHandler(os.Stderr, nil)),
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		handlers: make(map[string]ToolFunc),
	}
	for _, o := range opts {
		o(s)
	}

	s.methods = map[string]func(context.Context, *Request){
		"initialize": s.handleInitialize,
		"tools/list": s.handleToolsList,
		"tools/call": s.handleToolsCall,
	}
	s.notifications = map[string]bool{
		"notifications/initialized": true,
		"notifications/cancelled":   true,
	}
	return s
}

// Register adds a tool and its handler. Registering a name twice replaces
// the handler but keeps the first catalog entry.
func (s *Server) Register(tool Tool, fn ToolFunc) {
	if _, exists := s.handlers[tool.Name]; !exists {
		s.tools = append(s.tools, tool)
	}
	s.handlers[tool.Name] = fn
}

// Run reads requests until stdin closes. A malformed line produces a parse
// error response and the loop keeps serving; only EOF or a read failure
// ends it.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("server started", "name", s.name, "version", s.version)

	for {
		line, err := s.in.ReadString('\n')
		if err == io.EOF {
			if strings.TrimSpace(line) != "" {
				s.dispatch(ctx, line)
			}
			s.logger.Info("stdin closed, shutting down")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading request: %w", err)
		}

		if strings.TrimSpace(line) == "" {
			continue
		}
		s.dispatch(ctx, line)
	}
}

func (s *Server) dispatch(ctx context.Context, line string) {
	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		s.sendError(nil, CodeParseError, "Parse error", err.Error())
		return
	}

	if s.notifications[req.Method] {
		return
	}
	if handler, ok := s.methods[req.Method]; ok {
		s.withRecovery(&req, func() { handler(ctx, &req) })
		return
	}
	if strings.HasPrefix(req.Method, "notifications/") {
		return
	}
	s.sendError(req.ID, CodeMethodNotFound, "Method not found", req.Method)
}

// withRecovery turns a handler panic into an internal error response instead
// of taking the process down mid-conversation.
func (s *Server) withRecovery(req *Request, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked", "method", req.Method, "panic", r)
			s.sendError(req.ID, CodeInternalError, "Internal error", fmt.Sprint(r))
		}
	}()
	fn()
}

func (s *Server) handleInitialize(_ context.Context, req *Request) {
	s.sendResult(req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"serverInfo": map[string]string{
			"name":    s.name,
			"version": s.version,
		},
		"capabilities": map[string]any{
			"tools": map[string]any{},
		},
	})
}

func (s *Server) handleToolsList(ctx context.Context, req *Request) {
	tools := append([]Tool{}, s.tools...)

	if s.catalog != nil {
		remote, err := s.catalog(ctx)
		if err != nil {
			// Serve the static tools rather than failing the whole list.
			s.logger.Error("fetching dynamic catalog", "error", err)
		} else {
			tools = append(tools, remote...)
		}
	}

	s.sendResult(req.ID, map[string]any{"tools": tools})
}

func (s *Server) handleToolsCall(ctx context.Context, req *Request) {
	var params struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", err.Error())
		return
	}
	if params.Name == "" {
		s.sendError(req.ID, CodeInvalidParams, "Invalid params", "missing tool name")
		return
	}

	if fn, ok := s.handlers[params.Name]; ok {
		s.sendResult(req.ID, fn(ctx, params.Arguments))
		return
	}
	if s.call != nil {
		if result, ok := s.call(ctx, params.Name, params.Arguments); ok {
			s.sendResult(req.ID, result)
			return
		}
	}

	// Unknown tools are a tool-level error so the calling agent sees the
	// failure text instead of a protocol fault.
	s.sendResult(req.ID, Errorf("unknown tool %q", params.Name))
}

func (s *Server) sendResult(id, result any) {
	s.send(Response{JSONRPC: "2.0", ID: id, Result: result})
}

func (s *Server) sendError(id any, code int, message string, data any) {
	s.send(Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message, Data: data}})
}

func (s *Server) send(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		return
	}
	fmt.Fprintf(s.out, "%s\n", data)
}
