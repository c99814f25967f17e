package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/giantswarm/llm-optimizer/internal/executor"
	"github.com/giantswarm/llm-optimizer/internal/testresult"
	"github.com/giantswarm/llm-optimizer/probe"
)

// ScriptedRun is what ScriptedExecutor reports for one suite invocation.
type ScriptedRun struct {
	Outcomes []testresult.Outcome
	TimedOut bool
	Err      error
}

// ExecCall records one Execute invocation.
type ExecCall struct {
	SuiteID   string
	Iteration int
}

// ScriptedExecutor is an executor.TestExecutor whose results come from a
// script function. Outcomes are written to a result file the same way
// instrumented tests do, so the regular parsers read them back.
type ScriptedExecutor struct {
	Dir    string
	Script func(suite executor.Suite, iteration int) ScriptedRun

	// OnExecute, when set, runs before each scripted invocation.
	OnExecute func(suite executor.Suite, iteration int)

	mu    sync.Mutex
	calls []ExecCall
}

func (e *ScriptedExecutor) Execute(_ context.Context, suite executor.Suite, iteration int, _ map[string]string) (*testresult.RunOutput, error) {
	e.mu.Lock()
	n := len(e.calls)
	e.calls = append(e.calls, ExecCall{SuiteID: suite.ID, Iteration: iteration})
	e.mu.Unlock()

	if e.OnExecute != nil {
		e.OnExecute(suite, iteration)
	}

	run := e.Script(suite, iteration)
	path := filepath.Join(e.Dir, fmt.Sprintf("%s_%d_%d.jsonl", suite.ID, iteration, n))
	out := &testresult.RunOutput{ResultFile: path}

	if run.Err != nil {
		return out, run.Err
	}
	if run.TimedOut {
		out.TimedOut = true
		out.ExitCode = -1
		return out, fmt.Errorf("%w: scripted", executor.ErrTimeout)
	}
	for _, o := range run.Outcomes {
		if err := probe.Append(path, probe.Result{ID: o.ID, Passed: o.Passed, RuntimeNS: o.RuntimeNS, Digest: o.ValueDigest}); err != nil {
			return out, err
		}
	}
	return out, nil
}

// Calls returns the invocations seen so far.
func (e *ScriptedExecutor) Calls() []ExecCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExecCall(nil), e.calls...)
}

// CallsFor counts invocations for the given iteration.
func (e *ScriptedExecutor) CallsFor(iteration int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		if c.Iteration == iteration {
			n++
		}
	}
	return n
}

// Passed builds a passed outcome with a runtime.
func Passed(id string, runtimeNS int64, digest string) testresult.Outcome {
	return testresult.Outcome{ID: id, Passed: true, RuntimeNS: testresult.Int64Ptr(runtimeNS), ValueDigest: digest}
}

// Failed builds a failed outcome.
func Failed(id string, digest string) testresult.Outcome {
	return testresult.Outcome{ID: id, Passed: false, ValueDigest: digest}
}
