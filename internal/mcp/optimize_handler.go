package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/llm-optimizer/internal/runner"
	"github.com/giantswarm/llm-optimizer/internal/server"
)

type outcomeSummary struct {
	FunctionID        string        `json:"function_id"`
	Status            runner.Status `json:"status"`
	WinnerID          string        `json:"winner_id,omitempty"`
	Applied           bool          `json:"applied"`
	BaselineRuntimeNS int64         `json:"baseline_runtime_ns,omitempty"`
	WinnerRuntimeNS   int64         `json:"winner_runtime_ns,omitempty"`
	Speedup           float64       `json:"speedup,omitempty"`
	Candidates        int           `json:"candidates"`
	Reason            string        `json:"reason,omitempty"`
}

type runSummary struct {
	RunID     string           `json:"run_id"`
	Job       string           `json:"job"`
	Duration  string           `json:"duration"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Outcomes  []outcomeSummary `json:"outcomes"`
}

func handleOptimizeFunction(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name, ok := args["job"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("job is required"), nil
	}

	j, err := loadJob(sc.JobsDir, name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if fn, _ := args["function"].(string); fn != "" {
		if j, err = j.Select(fn); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	var revert *bool
	if v, ok := args["revert_winner"].(bool); ok {
		revert = &v
	}

	run, err := sc.Optimize(ctx, j, revert)
	if errors.Is(err, server.ErrBusy) {
		return mcp.NewToolResultError("another optimization is running, try again later"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("optimization failed: %v", err)), nil
	}
	return jsonResult(summarize(run))
}

func summarize(run *runner.Run) runSummary {
	s := runSummary{
		RunID:     run.ID,
		Job:       run.Job,
		Duration:  run.Duration.String(),
		Cancelled: run.Cancelled,
		Outcomes:  make([]outcomeSummary, 0, len(run.Outcomes)),
	}
	for _, o := range run.Outcomes {
		s.Outcomes = append(s.Outcomes, outcomeSummary{
			FunctionID:        o.FunctionID,
			Status:            o.Status,
			WinnerID:          o.WinnerID,
			Applied:           o.Applied,
			BaselineRuntimeNS: o.BaselineRuntimeNS,
			WinnerRuntimeNS:   o.WinnerRuntimeNS,
			Speedup:           o.Speedup,
			Candidates:        len(o.PerCandidate),
			Reason:            o.Reason,
		})
	}
	return s
}
