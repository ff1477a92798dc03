// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
)

// NewMCPServer initializes and configures the composition MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, engine *core.Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"AI Composition Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		engine:  engine,
		now:     time.Now,
	}

	// --- 1. Tool: get_composition ---
	s.AddTool(mcp.NewTool("get_composition",
		mcp.WithDescription("Chart the AI share of an organization's code over time (Overall, Pure and Blended percentages)."),
		mcp.WithString("organization", mcp.Description("Organization name (defaults to the configured --org).")),
		mcp.WithString("repositories", mcp.Description("Comma-separated repository names restricting the chart. Defaults to every repository.")),
		mcp.WithString("since", mcp.Description("Start of the window: RFC3339, YYYY-MM-DD or relative such as '30 days ago'.")),
		mcp.WithString("until", mcp.Description("End of the window. Defaults to now.")),
		mcp.WithBoolean("daily", mcp.Description("Include per-bucket new-line deltas.")),
	), h.handleGetComposition)

	// --- 2. Tool: get_repository_composition ---
	s.AddTool(mcp.NewTool("get_repository_composition",
		mcp.WithDescription("Return the current composition of one repository."),
		mcp.WithNumber("repository_id", mcp.Description("Repository ID."), mcp.Required()),
	), h.handleGetRepositoryComposition)

	// --- 3. Tool: get_status ---
	s.AddTool(mcp.NewTool("get_status",
		mcp.WithDescription("List organizations, repositories and merge requests with their stored composition."),
		mcp.WithString("organization", mcp.Description("Organization name. Empty lists every organization.")),
	), h.handleGetStatus)

	// --- 4. Tool: set_attestation ---
	s.AddTool(mcp.NewTool("set_attestation",
		mcp.WithDescription("Override the label of every code unit with a content hash and recalculate the affected snapshots."),
		mcp.WithNumber("repository_id", mcp.Description("Repository ID."), mcp.Required()),
		mcp.WithString("content_hash", mcp.Description("Content hash of the code unit."), mcp.Required()),
		mcp.WithString("label", mcp.Description("Reviewer label."), mcp.Required(), mcp.Enum("human", "ai_pure", "ai_blended")),
		mcp.WithString("comment", mcp.Description("Free-form reviewer note.")),
		mcp.WithString("author", mcp.Description("Reviewer identity.")),
	), h.handleSetAttestation)

	// --- 5. Tool: recalculate ---
	s.AddTool(mcp.NewTool("recalculate",
		mcp.WithDescription("Rerun the recalculation cascade over snapshots."),
		mcp.WithString("snapshot_ids", mcp.Description("Comma-separated snapshot IDs."), mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Recount clean files too.")),
	), h.handleRecalculate)

	return s
}

// StartMCPServer serves the composition tools over stdio until the client disconnects.
func StartMCPServer(ctx context.Context, baseCfg *contract.Config, mgr contract.StoreManager) error {
	store := mgr.GetCompositionStore()
	if store == nil {
		return errors.New("composition store is not initialized")
	}
	engine := core.NewEngineFromConfig(ctx, store, baseCfg)
	defer engine.Close()

	s := NewMCPServer(baseCfg, engine)
	return server.ServeStdio(s)
}
