// Package mcpserver exposes the query workflow as Model Context Protocol
// tools over stdio, so an assistant can load a CSV and ask questions
// without the TUI.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/0anu/VoiceAI/internal/orchestrator"
)

// Server adapts an orchestrator to MCP tools. Tool calls run one at a time
// so collected notices belong to the call that produced them.
type Server struct {
	orch      *orchestrator.Orchestrator
	collector *Collector
	log       zerolog.Logger
	mcp       *server.MCPServer

	mu sync.Mutex
}

// New registers the tools. collector must be the orchestrator's surface.
func New(orch *orchestrator.Orchestrator, collector *Collector, version string, log zerolog.Logger) *Server {
	s := &Server{
		orch:      orch,
		collector: collector,
		log:       log.With().Str("component", "mcp").Logger(),
		mcp:       server.NewMCPServer("voiceai", version, server.WithToolCapabilities(false)),
	}

	s.mcp.AddTool(mcp.NewTool("health",
		mcp.WithDescription("Check that the VoiceAI backend API is reachable."),
	), s.handleHealth)

	s.mcp.AddTool(mcp.NewTool("load_csv",
		mcp.WithDescription("Upload a CSV file to the backend and index it for questions. Only one CSV can be loaded per session."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to a .csv file")),
		mcp.WithString("api_key", mcp.Description("Optional Groq API key forwarded to the backend")),
	), s.handleLoadCSV)

	s.mcp.AddTool(mcp.NewTool("ask",
		mcp.WithDescription("Ask a natural-language question about the loaded CSV and get the retrieved context and generated SQL."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The question to ask")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("reset",
		mcp.WithDescription("Clear the current question and result."),
	), s.handleReset)

	return s
}

// ServeStdio serves on stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	s.log.Info().Msg("serving MCP on stdio")
	return server.ServeStdio(s.mcp)
}

// call runs fn and turns its outcome and the collected notices into a tool
// result.
func (s *Server) call(name string, fn func() (string, error)) *mcp.CallToolResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collector.Drain()
	text, err := fn()
	notices := s.collector.Drain()
	if err != nil {
		s.log.Warn().Err(err).Str("tool", name).Msg("tool failed")
		if errors.Is(err, orchestrator.ErrBusy) || len(notices) == 0 {
			return mcp.NewToolResultError(err.Error())
		}
		return mcp.NewToolResultError(strings.Join(notices, "\n"))
	}
	if text == "" {
		text = strings.Join(notices, "\n")
	}
	return mcp.NewToolResultText(text)
}

func (s *Server) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.call("health", func() (string, error) {
		if err := s.orch.ProbeHealth(ctx); err != nil {
			return "", err
		}
		return "Backend API is reachable.", nil
	}), nil
}

func (s *Server) handleLoadCSV(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	apiKey := request.GetString("api_key", "")

	return s.call("load_csv", func() (string, error) {
		if err := s.orch.SelectFile(path); err != nil {
			return "", err
		}
		return "", s.orch.Upload(ctx, apiKey)
	}), nil
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return s.call("ask", func() (string, error) {
		if err := s.orch.SetMode(orchestrator.ModeText); err != nil {
			return "", err
		}
		s.orch.SetTextInput(query)
		result, err := s.orch.Submit(ctx)
		if err != nil {
			return "", err
		}
		return FormatResult(result), nil
	}), nil
}

func (s *Server) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.call("reset", func() (string, error) {
		if err := s.orch.AskAnother(); err != nil {
			return "", err
		}
		return "Ready for another question.", nil
	}), nil
}

// FormatResult renders a query result as plain text.
func FormatResult(r orchestrator.QueryResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", r.OriginalQuery)
	fmt.Fprintf(&b, "Context:\n%s\n\n", r.RetrievedContext)
	fmt.Fprintf(&b, "SQL:\n%s", r.GeneratedSQL)
	return b.String()
}
