// Package mcpserver exposes a runtime as Model Context Protocol tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/randalmurphal/agentrouter/pkg/agentrouter/runtime"
)

// Server wraps a runtime in an MCP server.
type Server struct {
	runtime *runtime.Runtime
	logger  *slog.Logger
	mcp     *server.MCPServer
}

// New creates a Server. version is reported to clients.
func New(rt *runtime.Runtime, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		runtime: rt,
		logger:  logger,
		mcp:     server.NewMCPServer("agentrouter", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

// ServeStdio serves on stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("start_workflow",
		mcp.WithDescription("Start a workflow run. Returns the run snapshot as JSON."),
		mcp.WithString("workflow", mcp.Required(), mcp.Description("Registered workflow name")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Seed message for the run")),
		mcp.WithString("workflow_id", mcp.Description("Run id; generated when omitted")),
	), s.handleStart)

	s.mcp.AddTool(mcp.NewTool("resume_workflow",
		mcp.WithDescription("Deliver input to a run waiting at an approval gate."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Run id")),
		mcp.WithString("payload", mcp.Required(), mcp.Description("JSON value or plain text answer")),
	), s.handleResume)

	s.mcp.AddTool(mcp.NewTool("get_workflow_status",
		mcp.WithDescription("Get the latest snapshot of a run."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Run id")),
	), s.handleStatus)
}

func (s *Server) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflow, err := req.RequireString("workflow")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := req.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	snap, err := s.runtime.Start(ctx, workflow, runtime.Seed{
		Content:    message,
		WorkflowID: req.GetString("workflow_id", ""),
	})
	return s.result(snap, err)
}

func (s *Server) handleResume(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	raw, err := req.RequireString("payload")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var payload any = raw
	if json.Valid([]byte(raw)) {
		payload = json.RawMessage(raw)
	}

	snap, err := s.runtime.Resume(ctx, id, payload)
	return s.result(snap, err)
}

func (s *Server) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.runtime.Status(ctx, id)
	return s.result(snap, err)
}

// result reports failures as tool errors. A run that failed after starting
// still has a snapshot, which is returned instead.
func (s *Server) result(snap runtime.Snapshot, err error) (*mcp.CallToolResult, error) {
	if err != nil && snap.WorkflowID == "" {
		s.logger.Warn("mcp tool failed", slog.Any("error", err))
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, mErr := json.Marshal(snap)
	if mErr != nil {
		return nil, fmt.Errorf("encode snapshot: %w", mErr)
	}
	if err != nil {
		res := mcp.NewToolResultText(string(data))
		res.IsError = true
		return res, nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
