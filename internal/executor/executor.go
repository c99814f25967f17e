// Package executor runs test suites against the working tree and hands the
// raw output back for parsing.
package executor

import (
	"context"
	"errors"

	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

const (
	// EnvIteration carries the trial iteration (0 for the baseline,
	// candidate index + 1 otherwise) into the test process.
	EnvIteration = "LLM_OPTIMIZER_TEST_ITERATION"
	// EnvResultFile tells instrumented tests where to append their records.
	EnvResultFile = "LLM_OPTIMIZER_RESULT_FILE"
)

var (
	// ErrTimeout is returned when a suite invocation exceeds its per-trial timeout.
	ErrTimeout = errors.New("test execution timed out")
	// ErrEmptyCommand is returned for a suite without a command.
	ErrEmptyCommand = errors.New("suite has no command")
)

// Suite describes one runnable test suite.
type Suite struct {
	ID      string              `yaml:"id" json:"id" validate:"required"`
	Command []string            `yaml:"command" json:"command" validate:"required,min=1"`
	Dir     string              `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env     map[string]string   `yaml:"env,omitempty" json:"env,omitempty"`
	Parser  string              `yaml:"parser,omitempty" json:"parser,omitempty"`
	Type    testresult.TestType `yaml:"-" json:"type"`
}

// TestExecutor runs a suite once. A timed-out run returns the partial output
// together with an error wrapping ErrTimeout.
type TestExecutor interface {
	Execute(ctx context.Context, suite Suite, iteration int, env map[string]string) (*testresult.RunOutput, error)
}
