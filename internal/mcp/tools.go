// Package mcp exposes the optimizer as Model Context Protocol tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/llm-optimizer/internal/server"
)

// RegisterTools registers all MCP tools with the server.
func RegisterTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	listTool := mcp.NewTool("list_functions",
		mcp.WithDescription("List optimization jobs and the functions they target"),
		mcp.WithString("job",
			mcp.Description("Job name to describe (optional, lists every job if omitted)"),
		),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListFunctions(ctx, request, sc)
	})

	optimizeTool := mcp.NewTool("optimize_function",
		mcp.WithDescription("Measure the original code, evaluate candidate rewrites and keep the fastest equivalent one. Runs one job at a time."),
		mcp.WithString("job",
			mcp.Required(),
			mcp.Description("Job name as listed by list_functions"),
		),
		mcp.WithString("function",
			mcp.Description("Function ID to optimize (optional, all functions of the job if omitted)"),
		),
		mcp.WithBoolean("revert_winner",
			mcp.Description("Revert the winning rewrite after reporting it (default: server configuration)"),
		),
	)
	s.AddTool(optimizeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleOptimizeFunction(ctx, request, sc)
	})

	outcomesTool := mcp.NewTool("get_outcomes",
		mcp.WithDescription("Retrieve outcomes of past optimization runs"),
		mcp.WithString("run_id",
			mcp.Description("Specific run ID to retrieve (optional, lists all if omitted)"),
		),
		mcp.WithString("function",
			mcp.Description("Function ID within the run; returns its full outcome including the diff"),
		),
	)
	s.AddTool(outcomesTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetOutcomes(ctx, request, sc)
	})

	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
