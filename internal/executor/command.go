package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

// DefaultMaxOutputBytes caps captured stdout and stderr per stream.
const DefaultMaxOutputBytes = 4 * 1024 * 1024

// waitDelay bounds how long Execute waits for output pipes after the
// process group was killed.
const waitDelay = 2 * time.Second

// CommandExecutor runs suites as child processes with a hard timeout.
type CommandExecutor struct {
	workDir   string
	resultDir string
	timeout   time.Duration
	maxOutput int
	logger    *slog.Logger
}

// CommandOption configures a CommandExecutor.
type CommandOption func(*CommandExecutor)

// WithMaxOutputBytes overrides the captured output cap.
func WithMaxOutputBytes(n int) CommandOption {
	return func(e *CommandExecutor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) CommandOption {
	return func(e *CommandExecutor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewCommandExecutor creates an executor rooted at workDir. Structured
// result files are written below resultDir.
func NewCommandExecutor(workDir, resultDir string, timeout time.Duration, opts ...CommandOption) *CommandExecutor {
	e := &CommandExecutor{
		workDir:   workDir,
		resultDir: resultDir,
		timeout:   timeout,
		maxOutput: DefaultMaxOutputBytes,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResultFile returns the structured result path for a suite and iteration.
func (e *CommandExecutor) ResultFile(suiteID string, iteration int) string {
	return filepath.Join(e.resultDir, fmt.Sprintf("results_%s_%d.jsonl", sanitize(suiteID), iteration))
}

// Execute runs suite once. Any stale result file for the same suite and
// iteration is removed first.
func (e *CommandExecutor) Execute(ctx context.Context, suite Suite, iteration int, env map[string]string) (*testresult.RunOutput, error) {
	if len(suite.Command) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyCommand, suite.ID)
	}

	if err := os.MkdirAll(e.resultDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	resultFile := e.ResultFile(suite.ID, iteration)
	if err := os.Remove(resultFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove stale result file: %w", err)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, suite.Command[0], suite.Command[1:]...)
	cmd.Dir = e.workDir
	if suite.Dir != "" {
		cmd.Dir = filepath.Join(e.workDir, suite.Dir)
	}
	cmd.Env = buildEnv(suite.Env, env, iteration, resultFile)
	setProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	stdoutLimited := &limitedWriter{w: &stdout, limit: e.maxOutput}
	stderrLimited := &limitedWriter{w: &stderr, limit: e.maxOutput}
	cmd.Stdout = stdoutLimited
	cmd.Stderr = stderrLimited

	e.logger.Debug("executing test suite",
		"suite", suite.ID,
		"iteration", iteration,
		"command", strings.Join(suite.Command, " "),
		"timeout", e.timeout,
	)

	start := time.Now()
	err := cmd.Run()

	out := &testresult.RunOutput{
		Stdout:     stdout.Bytes(),
		Stderr:     stderr.Bytes(),
		ResultFile: resultFile,
		Truncated:  stdoutLimited.truncated || stderrLimited.truncated,
		Duration:   time.Since(start),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		out.TimedOut = true
		out.ExitCode = -1
		e.logger.Warn("test suite timed out", "suite", suite.ID, "iteration", iteration, "timeout", e.timeout)
		return out, fmt.Errorf("%w: suite %s after %s", ErrTimeout, suite.ID, e.timeout)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			out.ExitCode = -1
			return out, fmt.Errorf("failed to run suite %s: %w", suite.ID, err)
		}
		// Failing tests exit non-zero; the parser decides what failed.
		out.ExitCode = exitErr.ExitCode()
	}

	return out, nil
}

func buildEnv(suiteEnv, extra map[string]string, iteration int, resultFile string) []string {
	env := os.Environ()
	for k, v := range suiteEnv {
		env = append(env, k+"="+v)
	}
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	env = append(env,
		EnvIteration+"="+strconv.Itoa(iteration),
		EnvResultFile+"="+resultFile,
	)
	return env
}

func sanitize(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		" ", "_",
		"*", "_",
		"?", "_",
	)
	return replacer.Replace(name)
}

type limitedWriter struct {
	w         io.Writer
	limit     int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.limit {
		lw.truncated = true
		return n, nil
	}
	if remaining := lw.limit - lw.written; len(p) > remaining {
		p = p[:remaining]
		lw.truncated = true
	}
	written, err := lw.w.Write(p)
	lw.written += written
	return n, err
}
