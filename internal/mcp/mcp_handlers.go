package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/roy-sema/cto-tool-sub001/core"
	"github.com/roy-sema/cto-tool-sub001/internal/contract"
	"github.com/roy-sema/cto-tool-sub001/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	engine  *core.Engine
	now     func() time.Time
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonData, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(jsonData))
}

func (h *toolHandler) handleGetComposition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()
	now := h.now()
	if o := request.GetString("organization", ""); o != "" {
		cfg.Organization = o
	}
	if r := request.GetString("repositories", ""); r != "" {
		cfg.Repositories = nil
		for name := range strings.SplitSeq(r, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Repositories = append(cfg.Repositories, name)
			}
		}
	}

	cfg.Until = now.UTC()
	if u := request.GetString("until", ""); u != "" {
		t, err := contract.ParseTimeInput(u, now)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid until: %v", err)), nil
		}
		cfg.Until = t
	}
	cfg.Since = cfg.Until.AddDate(0, 0, -contract.DefaultLookbackDays)
	if s := request.GetString("since", ""); s != "" {
		t, err := contract.ParseTimeInput(s, now)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid since: %v", err)), nil
		}
		cfg.Since = t
	}
	cfg.IncludeDaily = request.GetBool("daily", cfg.IncludeDaily)

	req, err := core.BuildTimeseriesRequest(ctx, h.engine.Store, cfg.Organization, cfg.Repositories, cfg.Since, cfg.Until, cfg.IncludeDaily)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid composition parameters: %v", err)), nil
	}
	result, err := h.engine.Series.GetComposition(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("composition failed: %v", err)), nil
	}
	return jsonResult(result), nil
}

func (h *toolHandler) handleGetRepositoryComposition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(request.GetInt("repository_id", 0))
	if id <= 0 {
		return mcp.NewToolResultError("repository_id must be a positive integer"), nil
	}
	entity, err := core.RepositoryComposition(ctx, h.engine.Store, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	return jsonResult(entity), nil
}

func (h *toolHandler) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	organization := request.GetString("organization", h.baseCfg.Organization)
	report, err := core.BuildStatusReport(ctx, h.engine.Store, organization)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}
	return jsonResult(report), nil
}

func (h *toolHandler) handleSetAttestation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req := schema.AttestationRequest{
		RepositoryID: int64(request.GetInt("repository_id", 0)),
		ContentHash:  request.GetString("content_hash", ""),
		Label:        schema.Label(request.GetString("label", "")),
		Comment:      request.GetString("comment", ""),
		Author:       request.GetString("author", ""),
	}
	if err := req.Validate(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid attestation: %v", err)), nil
	}

	result, err := core.Attest(ctx, h.engine, req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("attestation failed: %v", err)), nil
	}
	return jsonResult(result), nil
}

func (h *toolHandler) handleRecalculate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := contract.ParseIDList(request.GetString("snapshot_ids", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(ids) == 0 {
		return mcp.NewToolResultError("snapshot_ids is required"), nil
	}

	result, err := core.Recalculate(ctx, h.engine, ids, request.GetBool("force", false))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recalculation failed: %v", err)), nil
	}
	return jsonResult(result), nil
}
