package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/llm-optimizer/internal/job"
	"github.com/giantswarm/llm-optimizer/internal/server"
)

type functionInfo struct {
	ID             string   `json:"id"`
	File           string   `json:"file"`
	Names          []string `json:"names"`
	Dependencies   int      `json:"dependencies"`
	ExistingSuites int      `json:"existing_suites"`
	GeneratedSuite bool     `json:"generated_suite"`
	CandidatesFile bool     `json:"candidates_file"`
}

type jobInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Functions   []functionInfo `json:"functions,omitempty"`
	Error       string         `json:"error,omitempty"`
}

func handleListFunctions(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	if name, _ := args["job"].(string); name != "" {
		j, err := loadJob(sc.JobsDir, name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(describeJob(name, j))
	}

	names, err := job.List(sc.JobsDir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list jobs: %v", err)), nil
	}

	jobs := make([]jobInfo, 0, len(names))
	for _, name := range names {
		j, err := loadJob(sc.JobsDir, name)
		if err != nil {
			jobs = append(jobs, jobInfo{Name: name, Error: err.Error()})
			continue
		}
		jobs = append(jobs, describeJob(name, j))
	}
	return jsonResult(jobs)
}

func describeJob(name string, j *job.Job) jobInfo {
	info := jobInfo{Name: name, Description: j.Description}
	for _, fn := range j.Functions {
		info.Functions = append(info.Functions, functionInfo{
			ID:             fn.ID,
			File:           fn.File,
			Names:          fn.Names,
			Dependencies:   len(fn.Dependencies),
			ExistingSuites: len(fn.ExistingSuites),
			GeneratedSuite: fn.GeneratedSuite != nil,
			CandidatesFile: fn.CandidatesFile != "",
		})
	}
	return info
}

func loadJob(jobsDir, name string) (*job.Job, error) {
	path, err := resolveJobPath(jobsDir, name)
	if err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}
	j, err := job.Load(path, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return j, nil
}
