// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the update queue to coding agents via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/queueservice"
	"github.com/starford/raido/internal/update"
)

// Server wraps the MCP server with update queue tools.
type Server struct {
	mcp *server.MCPServer
	svc *queueservice.Service
}

// New creates a new MCP server with all queue tools registered.
func New(svc *queueservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_pending_updates",
		mcp.WithDescription("List all pending update records for this project, "+
			"classified by scope and checked against the authorization policy. "+
			"Call this at session start before planning or building."),
	), s.listPending)

	s.mcp.AddTool(mcp.NewTool("read_update",
		mcp.WithDescription("Read the full content of a pending update record, "+
			"including its instruction sections."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Update id (e.g. 2026-01-15-fix-config)")),
	), s.readUpdate)

	s.mcp.AddTool(mcp.NewTool("apply_update",
		mcp.WithDescription("Mark an update as applied AFTER completing the changes it "+
			"describes. Records the id in the applied ledger; project-local and legacy "+
			"records are deleted from disk, registry records stay for other projects."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Update id to apply")),
	), s.applyUpdate)

	s.mcp.AddTool(mcp.NewTool("skip_update",
		mcp.WithDescription("Defer an update without applying it. The record stays on "+
			"disk and resurfaces on the next discovery pass."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Update id to skip")),
	), s.skipUpdate)

	s.mcp.AddTool(mcp.NewTool("publish_update",
		mcp.WithDescription("Publish a new update record into the project-local queue. "+
			"Content MUST follow the canonical update record format. Read the contract "+
			"first via the get_update_contract tool or the raido://update-format resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Human-readable title")),
		mcp.WithString("createdBy", mcp.Required(), mcp.Description("Author identity (agent or person)")),
		mcp.WithString("whatToDo", mcp.Required(), mcp.Description("Instructions for the consuming agent")),
		mcp.WithString("filesAffected", mcp.Required(), mcp.Description("Bullet list of touched paths")),
		mcp.WithString("why", mcp.Required(), mcp.Description("Rationale for the change")),
		mcp.WithString("verification", mcp.Required(), mcp.Description("How to check the change landed")),
		mcp.WithString("priority", mcp.Description("low, normal, high, or urgent (default normal)")),
		mcp.WithString("type", mcp.Description("Free-form category, e.g. schema, config, process")),
		mcp.WithString("scope", mcp.Description("planning, implementation, or mixed (inferred when omitted)")),
	), s.publishUpdate)

	s.mcp.AddTool(mcp.NewTool("get_update_contract",
		mcp.WithDescription("Returns the canonical update record format contract. "+
			"Call this before publishing updates to ensure correct structure."),
	), s.getContract)

	// Resource: update record format contract.
	s.mcp.AddResource(
		mcp.NewResource("raido://update-format", "Update Record Format Contract",
			mcp.WithResourceDescription("Canonical Markdown format that all update records must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type pendingSummary struct {
	ID            string `json:"id"`
	Origin        string `json:"origin"`
	Title         string `json:"title"`
	Priority      string `json:"priority"`
	Type          string `json:"type"`
	Scope         string `json:"scope"`
	ScopeInferred bool   `json:"scopeInferred"`
	Authorized    bool   `json:"authorized"`
}

func (s *Server) listPending(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending, err := s.svc.Discover(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out := make([]pendingSummary, len(pending))
	for i, p := range pending {
		out[i] = pendingSummary{
			ID:            p.Record.ID,
			Origin:        string(p.Record.Origin),
			Title:         p.Record.Title,
			Priority:      p.Record.Meta.Priority,
			Type:          p.Record.Meta.EffectiveType(),
			Scope:         p.Scope.Value,
			ScopeInferred: p.Scope.Inferred,
			Authorized:    p.Authorized,
		}
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(p.Record.Body), nil
}

func (s *Server) applyUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	entry, err := s.svc.Apply(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		case errors.Is(err, apperr.ErrAlreadyApplied):
			return mcp.NewToolResultError(fmt.Sprintf("already applied: %s", id)), nil
		case errors.Is(err, apperr.ErrRedirect):
			return mcp.NewToolResultError(fmt.Sprintf(
				"redirect required: %s is outside the current role's scope; hand it to the other agent", id)), nil
		default:
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	return mcp.NewToolResultText(fmt.Sprintf("applied: %s (type %s)", entry.ID, entry.UpdateType)), nil
}

func (s *Server) skipUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.svc.Skip(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("skipped: %s (will resurface next pass)", p.Record.ID)), nil
}

func (s *Server) publishUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	createdBy, err := req.RequireString("createdBy")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	whatToDo, err := req.RequireString("whatToDo")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	filesAffected, err := req.RequireString("filesAffected")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	why, err := req.RequireString("why")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	verification, err := req.RequireString("verification")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	meta := update.Meta{
		CreatedBy: createdBy,
		Priority:  req.GetString("priority", ""),
		Type:      req.GetString("type", ""),
		Scope:     req.GetString("scope", ""),
	}
	sections := map[string]string{
		"What to do":     whatToDo,
		"Files affected": filesAffected,
		"Why":            why,
		"Verification":   verification,
	}
	rec, err := s.svc.Publish(ctx, meta, title, sections)
	if err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return mcp.NewToolResultError("update already exists with that date and title"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("published: %s at %s", rec.ID, rec.Path)), nil
}

func (s *Server) getContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(UpdateFormatContract), nil
}

func (s *Server) readContractResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://update-format",
			MIMEType: "text/markdown",
			Text:     UpdateFormatContract,
		},
	}, nil
}
