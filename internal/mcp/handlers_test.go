package mcp

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/llm-optimizer/internal/config"
	"github.com/giantswarm/llm-optimizer/internal/digest"
	"github.com/giantswarm/llm-optimizer/internal/runner"
	"github.com/giantswarm/llm-optimizer/internal/server"
)

const sumSource = `package mathx

// Sum adds values.
func Sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
`

// The unit suite reports a runtime of 50ns once the fastSum rewrite is in
// the tree and 100ns otherwise.
const mathxJob = `name: mathx
description: hot paths in mathx
root: src
functions:
  - id: sum
    file: mathx/sum.go
    names: [Sum]
    existing_suites:
      - id: unit
        command:
          - sh
          - -c
          - |
            if grep -q fastSum mathx/sum.go; then rt=50; else rt=100; fi
            printf '{"id":"unit.sum","passed":true,"runtime_ns":%s}\n' "$rt" >> "$LLM_OPTIMIZER_RESULT_FILE"
    candidates_file: candidates.yaml
`

const mathxCandidates = `candidates:
  - id: fast
    explanation: index loop
    source: |
      func Sum(xs []int) int {
      	fastSum := 0
      	for i := range xs {
      		fastSum += xs[i]
      	}
      	return fastSum
      }
`

func boolPtr(b bool) *bool { return &b }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newJobsDir lays out <jobs>/mathx/{job.yaml,candidates.yaml,src/mathx/sum.go}.
func newJobsDir(t *testing.T) string {
	t.Helper()
	jobsDir := t.TempDir()
	writeFile(t, filepath.Join(jobsDir, "mathx", "job.yaml"), mathxJob)
	writeFile(t, filepath.Join(jobsDir, "mathx", "candidates.yaml"), mathxCandidates)
	writeFile(t, filepath.Join(jobsDir, "mathx", "src", "mathx", "sum.go"), sumSource)
	return jobsDir
}

func newServerContext(t *testing.T, jobsDir string) *server.ServerContext {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.MaxTrials = 3
	cfg.RevertWinnerImmediately = boolPtr(false)

	ch, err := digest.Open(digest.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	return &server.ServerContext{Config: cfg, Digests: ch, JobsDir: jobsDir}
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)
	content, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return content.Text
}

func TestHandleListFunctions(t *testing.T) {
	sc := newServerContext(t, newJobsDir(t))
	writeFile(t, filepath.Join(sc.JobsDir, "broken.yaml"), "name: broken\nfunctions: []\n")

	result, err := handleListFunctions(context.Background(), callRequest(nil), sc)
	require.NoError(t, err)

	var jobs []jobInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &jobs))
	require.Len(t, jobs, 2)

	assert.Equal(t, "broken", jobs[0].Name)
	assert.NotEmpty(t, jobs[0].Error)

	assert.Equal(t, "mathx", jobs[1].Name)
	assert.Equal(t, "hot paths in mathx", jobs[1].Description)
	require.Len(t, jobs[1].Functions, 1)
	fn := jobs[1].Functions[0]
	assert.Equal(t, "sum", fn.ID)
	assert.Equal(t, []string{"Sum"}, fn.Names)
	assert.Equal(t, 1, fn.ExistingSuites)
	assert.True(t, fn.CandidatesFile)
	assert.False(t, fn.GeneratedSuite)
}

func TestHandleListFunctionsSingleJob(t *testing.T) {
	sc := newServerContext(t, newJobsDir(t))

	result, err := handleListFunctions(context.Background(), callRequest(map[string]interface{}{"job": "mathx"}), sc)
	require.NoError(t, err)

	var info jobInfo
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &info))
	assert.Equal(t, "mathx", info.Name)
	require.Len(t, info.Functions, 1)
}

func TestHandleListFunctionsRejectsTraversal(t *testing.T) {
	sc := newServerContext(t, newJobsDir(t))

	for _, name := range []string{"../mathx", "..", "a/b"} {
		result, err := handleListFunctions(context.Background(), callRequest(map[string]interface{}{"job": name}), sc)
		require.NoError(t, err)
		assert.True(t, result.IsError, name)
		assert.Contains(t, resultText(t, result), "invalid job", name)
	}
}

func TestHandleOptimizeFunctionMissingJob(t *testing.T) {
	sc := newServerContext(t, newJobsDir(t))

	result, err := handleOptimizeFunction(context.Background(), callRequest(map[string]interface{}{}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "job is required")
}

func TestHandleOptimizeFunctionUnknownJob(t *testing.T) {
	sc := newServerContext(t, newJobsDir(t))

	result, err := handleOptimizeFunction(context.Background(), callRequest(map[string]interface{}{"job": "nonexistent"}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "failed to load job")
}

func TestHandleOptimizeFunctionUnknownFunction(t *testing.T) {
	sc := newServerContext(t, newJobsDir(t))

	result, err := handleOptimizeFunction(context.Background(), callRequest(map[string]interface{}{
		"job":      "mathx",
		"function": "product",
	}), sc)
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "product")
}

func TestHandleOptimizeFunctionEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	jobsDir := newJobsDir(t)
	sc := newServerContext(t, jobsDir)
	sc.Config.PerTrialTimeout = 10 * time.Second

	result, err := handleOptimizeFunction(context.Background(), callRequest(map[string]interface{}{
		"job":           "mathx",
		"function":      "sum",
		"revert_winner": true,
	}), sc)
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var summary runSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summary))
	assert.Equal(t, "mathx", summary.Job)
	require.Len(t, summary.Outcomes, 1)

	o := summary.Outcomes[0]
	assert.Equal(t, "sum", o.FunctionID)
	assert.Equal(t, runner.StatusAccepted, o.Status)
	assert.Equal(t, "fast", o.WinnerID)
	assert.False(t, o.Applied)
	assert.Equal(t, int64(100), o.BaselineRuntimeNS)
	assert.Equal(t, int64(50), o.WinnerRuntimeNS)
	assert.InDelta(t, 1.0, o.Speedup, 1e-9)

	// The winner was reverted after reporting.
	src, err := os.ReadFile(filepath.Join(jobsDir, "mathx", "src", "mathx", "sum.go"))
	require.NoError(t, err)
	assert.Equal(t, sumSource, string(src))

	// The run is retrievable afterwards.
	outcomes, err := handleGetOutcomes(context.Background(), callRequest(map[string]interface{}{
		"run_id":   summary.RunID,
		"function": "sum",
	}), sc)
	require.NoError(t, err)
	require.False(t, outcomes.IsError, resultText(t, outcomes))

	var full runner.Outcome
	require.NoError(t, json.Unmarshal([]byte(resultText(t, outcomes)), &full))
	assert.Equal(t, "fast", full.WinnerID)
	assert.Contains(t, full.Diff, "fastSum")
}

func TestHandleGetOutcomesEmpty(t *testing.T) {
	sc := newServerContext(t, t.TempDir())

	result, err := handleGetOutcomes(context.Background(), callRequest(nil), sc)
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, result))
}

func writeStoredRun(t *testing.T, outputDir string) *runner.Run {
	t.Helper()
	run := &runner.Run{
		ID:       "mathx_20260101-120000_abcd1234",
		Job:      "mathx",
		Duration: 3 * time.Second,
		Outcomes: []*runner.Outcome{{
			FunctionID:        "sum",
			Status:            runner.StatusRejectedAllCandidates,
			BaselineRuntimeNS: 100,
			Reason:            "no candidate beat the original",
		}},
	}
	dir := filepath.Join(outputDir, run.ID)
	data, err := json.Marshal(run)
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, runner.RunFile), string(data))

	out, err := json.Marshal(run.Outcomes[0])
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, runner.OutcomeFileName("sum")), string(out))
	return run
}

func TestHandleGetOutcomes(t *testing.T) {
	sc := newServerContext(t, t.TempDir())
	run := writeStoredRun(t, sc.Config.OutputDir)

	t.Run("list", func(t *testing.T) {
		result, err := handleGetOutcomes(context.Background(), callRequest(nil), sc)
		require.NoError(t, err)

		var runs []runSummary
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, run.ID, runs[0].RunID)
	})

	t.Run("single run", func(t *testing.T) {
		result, err := handleGetOutcomes(context.Background(), callRequest(map[string]interface{}{"run_id": run.ID}), sc)
		require.NoError(t, err)

		var summary runSummary
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &summary))
		require.Len(t, summary.Outcomes, 1)
		assert.Equal(t, runner.StatusRejectedAllCandidates, summary.Outcomes[0].Status)
		assert.Equal(t, "no candidate beat the original", summary.Outcomes[0].Reason)
	})

	t.Run("function outcome", func(t *testing.T) {
		result, err := handleGetOutcomes(context.Background(), callRequest(map[string]interface{}{
			"run_id":   run.ID,
			"function": "sum",
		}), sc)
		require.NoError(t, err)

		var out runner.Outcome
		require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
		assert.Equal(t, int64(100), out.BaselineRuntimeNS)
	})

	t.Run("unknown function", func(t *testing.T) {
		result, err := handleGetOutcomes(context.Background(), callRequest(map[string]interface{}{
			"run_id":   run.ID,
			"function": "product",
		}), sc)
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "not found")
	})

	t.Run("unknown run", func(t *testing.T) {
		result, err := handleGetOutcomes(context.Background(), callRequest(map[string]interface{}{"run_id": "missing"}), sc)
		require.NoError(t, err)
		assert.True(t, result.IsError)
	})

	t.Run("path traversal", func(t *testing.T) {
		result, err := handleGetOutcomes(context.Background(), callRequest(map[string]interface{}{"run_id": "../etc"}), sc)
		require.NoError(t, err)
		assert.True(t, result.IsError)
		assert.Contains(t, resultText(t, result), "invalid run_id")
	})
}

func TestResolvePathWithinBase(t *testing.T) {
	base := t.TempDir()

	path, err := resolvePathWithinBase(base, "run-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1"), path)

	_, err = resolvePathWithinBase(base, "../outside")
	assert.Error(t, err)

	_, err = resolvePathWithinBase(base, "/etc/passwd")
	assert.Error(t, err)
}

func TestResolveJobPath(t *testing.T) {
	jobsDir := newJobsDir(t)
	writeFile(t, filepath.Join(jobsDir, "single.yaml"), "name: single\n")

	path, err := resolveJobPath(jobsDir, "mathx")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(jobsDir, "mathx"), path)

	path, err = resolveJobPath(jobsDir, "single")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(jobsDir, "single.yaml"), path)

	_, err = resolveJobPath("", "mathx")
	assert.Error(t, err)
}
