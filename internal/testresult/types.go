package testresult

import "time"

// TestType tells which kind of suite produced an outcome.
type TestType string

const (
	// TypeExistingUnitTest marks outcomes of the project's own tests.
	TypeExistingUnitTest TestType = "existing-unit-test"
	// TypeGeneratedRegression marks outcomes of synthesized regression tests.
	TypeGeneratedRegression TestType = "generated-regression"
)

// Outcome is the result of one test invocation within one trial.
// ID is stable across trials of the same logical test.
type Outcome struct {
	ID          string   `json:"id"`
	Type        TestType `json:"type"`
	Passed      bool     `json:"passed"`
	RuntimeNS   *int64   `json:"runtime_ns,omitempty"`
	ValueDigest string   `json:"digest,omitempty"`
}

// RunOutput is what a test executor hands back for one suite invocation.
type RunOutput struct {
	ExitCode   int
	Stdout     []byte
	Stderr     []byte
	ResultFile string
	TimedOut   bool
	Truncated  bool
	Duration   time.Duration
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}
