package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/llm-optimizer/internal/measure"
	"github.com/giantswarm/llm-optimizer/internal/patch"
	"github.com/giantswarm/llm-optimizer/internal/runner"
)

const before = `package mathx

func Sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
`

const after = `package mathx

func Sum(xs []int) int {
	acc := 0
	for i := range xs {
		acc += xs[i]
	}
	return acc
}
`

func TestParseDiffStats(t *testing.T) {
	d, err := patch.Diff("mathx/sum.go", []byte(before), []byte(after))
	require.NoError(t, err)

	stats, err := ParseDiffStats(d)
	require.NoError(t, err)
	assert.Equal(t, DiffStats{Files: 1, Added: 4, Removed: 4}, stats)
	assert.Equal(t, "1 file(s), +4 -4", stats.String())

	empty, err := ParseDiffStats("")
	require.NoError(t, err)
	assert.Equal(t, DiffStats{}, empty)
}

func TestConsoleReporter_ReportWinner(t *testing.T) {
	d, err := patch.Diff("mathx/sum.go", []byte(before), []byte(after))
	require.NoError(t, err)

	var buf bytes.Buffer
	rep := NewConsoleReporter(&buf)
	err = rep.ReportWinner(context.Background(), runner.Winner{
		FunctionID:        "sum",
		CandidateID:       "candidate-2",
		Explanation:       "Index instead of copying values.",
		Diff:              d,
		BaselineRuntimeNS: 100_000,
		RuntimeNS:         50_000,
		Speedup:           1.0,
		ReferenceReport:   "passed=3 failed=0",
		Applied:           true,
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "sum: candidate-2 is 100.0% faster")
	assert.Contains(t, out, "+4 -4")
	assert.Contains(t, out, "applied to the source tree")
	assert.Contains(t, out, "Index instead of copying values.")
	assert.Contains(t, out, "acc += xs[i]")
}

func TestConsoleReporter_RenderRun(t *testing.T) {
	run := &runner.Run{
		ID:       "mathx_20260101-000000_abcd1234",
		Job:      "mathx",
		Duration: 3 * time.Second,
		Outcomes: []*runner.Outcome{
			{
				FunctionID:        "sum",
				Status:            runner.StatusAccepted,
				Accepted:          true,
				WinnerID:          "candidate-2",
				BaselineRuntimeNS: 100_000,
				WinnerRuntimeNS:   50_000,
				Speedup:           1.0,
				BaselineStats:     measure.Summarize([]int64{100_000, 120_000}),
				PerCandidate: []runner.CandidateResult{
					{ID: "candidate-1", Verdict: measure.VerdictRejected, Reason: "behavior-changed"},
					{ID: "candidate-2", Verdict: measure.VerdictOk, Stats: measure.Summarize([]int64{50_000})},
					{ID: "candidate-3", Skipped: true},
				},
			},
			{FunctionID: "max", Status: runner.StatusAbortedNoBaseline, Reason: "no-signal"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewConsoleReporter(&buf).RenderRun(run))
	out := buf.String()

	assert.Contains(t, out, "Run mathx_20260101-000000_abcd1234")
	assert.Contains(t, out, "accepted")
	assert.Contains(t, out, "aborted-no-baseline")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "behavior-changed")

	rows := MeasurementRows(run)
	require.Len(t, rows, 4, "header, baseline and two timed candidates")
	assert.Equal(t, []string{"sum", "baseline", "2", measure.HumanizeRuntime(100_000), measure.HumanizeRuntime(110_000), measure.HumanizeRuntime(10_000), "-"}, rows[1])
	assert.Equal(t, "rejected (behavior-changed)", rows[2][6])
	assert.Equal(t, "ok *", rows[3][6])
}
