package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/llm-optimizer/internal/runner"
	"github.com/giantswarm/llm-optimizer/internal/server"
)

func handleGetOutcomes(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	runID, _ := args["run_id"].(string)
	outputDir := sc.Config.OutputDir

	if runID == "" {
		return listRuns(outputDir)
	}

	runPath, err := resolveRunPath(outputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid run_id: %v", err)), nil
	}

	if fn, _ := args["function"].(string); fn != "" {
		return getFunctionOutcome(runPath, fn)
	}

	run, err := runner.LoadRun(outputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(summarize(run))
}

func listRuns(outputDir string) (*mcp.CallToolResult, error) {
	ids, err := runner.ListRuns(outputDir)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	runs := make([]runSummary, 0, len(ids))
	for _, id := range ids {
		run, err := runner.LoadRun(outputDir, id)
		if err != nil {
			continue
		}
		runs = append(runs, summarize(run))
	}
	return jsonResult(runs)
}

func getFunctionOutcome(runPath, functionID string) (*mcp.CallToolResult, error) {
	path, err := resolveOutcomePath(runPath, functionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid function: %v", err)), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("outcome for %q not found", functionID)), nil
	}

	var out runner.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse outcome: %v", err)), nil
	}
	return jsonResult(out)
}
