// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/querypulse/querypulse/core"
	"github.com/querypulse/querypulse/internal/contract"
)

// NewMCPServer initializes and configures the querypulse MCP server without
// starting it. This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, svc *core.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"QueryPulse Optimization Server",
		"1.0.0",
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		svc:     svc,
	}

	// --- 1. Tool: analyze_query ---
	s.AddTool(mcp.NewTool("analyze_query",
		mcp.WithDescription("Run a read-only SQL query with plan instrumentation and return derived metrics and recommendations."),
		mcp.WithString("query", mcp.Description("The read-only SQL statement to analyze."), mcp.Required()),
	), h.handleAnalyzeQuery)

	// --- 2. Tool: suggest_indexes ---
	s.AddTool(mcp.NewTool("suggest_indexes",
		mcp.WithDescription("Derive advisory index suggestions for a table from column statistics and recent slow executions."),
		mcp.WithString("table", mcp.Description("The table to advise on, optionally schema-qualified."), mcp.Required()),
	), h.handleSuggestIndexes)

	// --- 3. Tool: plan_pool ---
	s.AddTool(mcp.NewTool("plan_pool",
		mcp.WithDescription("Snapshot connection pool counters and propose min/max pool sizing."),
	), h.handlePlanPool)

	// --- 4. Tool: cache_status ---
	s.AddTool(mcp.NewTool("cache_status",
		mcp.WithDescription("Report entry counts and freshness for the hot and warm cache tiers."),
	), h.handleCacheStatus)

	return s
}

// StartMCPServer starts the querypulse MCP server over stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, svc *core.Service) error {
	s := NewMCPServer(baseCfg, svc)
	return server.ServeStdio(s)
}
