package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"bugit/internal/store"
	"bugit/internal/triage"
)

// serverName and serverVersion identify this implementation in the
// initialize handshake.
const (
	serverName    = "bugit"
	serverVersion = "1.0.0"
)

// maxLineBytes bounds a single JSON-RPC message.
const maxLineBytes = 1 << 20

// ServerOptions configures NewServer.
type ServerOptions struct {
	Store    *store.Store
	RootDir  string
	Pipeline triage.Pipeline

	// In is the request stream, one JSON-RPC message per line.
	In io.Reader

	// Logf receives diagnostics. Nil means discard. Diagnostics never go
	// to the protocol stream.
	Logf func(format string, args ...any)
}

// Server speaks MCP over line-delimited JSON-RPC 2.0.
type Server struct {
	store    *store.Store
	rootDir  string
	pipeline triage.Pipeline
	in       io.Reader
	logf     func(format string, args ...any)

	initialized bool
}

// NewServer builds a Server. Store and Pipeline must be non-nil.
func NewServer(opts ServerOptions) *Server {
	logf := opts.Logf
	if logf == nil {
		logf = func(string, ...any) {}
	}

	return &Server{
		store:    opts.Store,
		rootDir:  opts.RootDir,
		pipeline: opts.Pipeline,
		in:       opts.In,
		logf:     logf,
	}
}

// Run serves requests until the input stream closes or ctx is cancelled.
// Responses are written to out, one per line.
func (s *Server) Run(ctx context.Context, out io.Writer) error {
	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		s.logf("mcp: <- %s", line)

		resp := s.handleLine(ctx, []byte(line))
		if resp == nil {
			continue // notification
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("writing response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading requests: %w", err)
	}

	return nil
}

// handleLine parses and dispatches one message. Returns nil when no response
// is owed (notifications and unparseable notifications alike).
func (s *Server) handleLine(ctx context.Context, line []byte) *Response {
	var req Request

	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse(nil, CodeParseError, "parse error: "+err.Error())
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		if req.IsNotification() {
			return nil
		}

		return errorResponse(req.ID, CodeInvalidRequest, "invalid request")
	}

	resp := s.dispatch(ctx, req)

	if req.IsNotification() {
		return nil
	}

	return resp
}

func (s *Server) dispatch(ctx context.Context, req Request) *Response {
	switch req.Method {
	case "initialize":
		s.initialized = true

		return resultResponse(req.ID, InitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    Capabilities{Tools: ToolsCapability{ListChanged: false}},
			ServerInfo:      ServerInfo{Name: serverName, Version: serverVersion},
		})

	case "notifications/initialized", "initialized":
		return nil

	case "ping":
		return resultResponse(req.ID, map[string]any{})

	case "tools/list":
		defs := s.toolTable()
		tools := make([]Tool, 0, len(defs))

		for _, def := range defs {
			tools = append(tools, def.tool)
		}

		return resultResponse(req.ID, ToolsListResult{Tools: tools})

	case "tools/call":
		return s.callTool(ctx, req)

	default:
		return errorResponse(req.ID, CodeMethodNotFound, "method not found: "+req.Method)
	}
}

func (s *Server) callTool(ctx context.Context, req Request) *Response {
	if !s.initialized {
		s.logf("mcp: tools/call before initialize, serving anyway")
	}

	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, "invalid params: "+err.Error())
	}

	for _, def := range s.toolTable() {
		if def.tool.Name != params.Name {
			continue
		}

		s.logf("mcp: calling tool %s", params.Name)

		result, err := def.handler(ctx, params.Arguments)
		if err != nil {
			// Tool-level failure: in-band, so the client can show it to
			// the model instead of aborting the session.
			return resultResponse(req.ID, ToolCallResult{
				Content: []ContentItem{{Type: "text", Text: err.Error()}},
				IsError: true,
			})
		}

		text, err := json.Marshal(result)
		if err != nil {
			return errorResponse(req.ID, CodeInternalError, "encoding result: "+err.Error())
		}

		return resultResponse(req.ID, ToolCallResult{
			Content: []ContentItem{{Type: "text", Text: string(text)}},
		})
	}

	return errorResponse(req.ID, CodeInvalidParams, "unknown tool: "+params.Name)
}

func resultResponse(id any, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id any, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}
