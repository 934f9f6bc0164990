package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/poolplan"
	"github.com/querypulse/querypulse/schema"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	svc     *core.Service
}

func (h *toolHandler) handleAnalyzeQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	an, err := h.svc.Analyzer()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := an.Analyze(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(result, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleSuggestIndexes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	table := request.GetString("table", "")
	if table == "" {
		return mcp.NewToolResultError("table is required"), nil
	}

	adv, err := h.svc.Advisor()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	suggestions, err := adv.Suggest(ctx, table)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("advice failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(suggestions, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handlePlanPool(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	collector, err := h.svc.Collector()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	metrics := collector.Snapshot()
	rec := poolplan.Plan(metrics)

	payload := struct {
		Metrics        schema.PoolMetrics        `json:"metrics"`
		Recommendation schema.PoolRecommendation `json:"recommendation"`
	}{metrics, rec}

	jsonData, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleCacheStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	hot, warm, err := h.svc.TierStatus(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("status failed: %v", err)), nil
	}

	payload := struct {
		Hot  schema.CacheStatus `json:"hot"`
		Warm schema.CacheStatus `json:"warm"`
	}{hot, warm}

	jsonData, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
