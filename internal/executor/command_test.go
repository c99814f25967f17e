package executor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
}

func TestExecuteWritesIterationAndResultFile(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	e := NewCommandExecutor(dir, filepath.Join(dir, "results"), 10*time.Second)

	suite := Suite{
		ID:      "unit/tests",
		Command: []string{"sh", "-c", `echo "{\"id\":\"t\",\"passed\":true,\"runtime_ns\":$LLM_OPTIMIZER_TEST_ITERATION}" > "$LLM_OPTIMIZER_RESULT_FILE"; echo "$EXTRA"`},
	}
	out, err := e.Execute(context.Background(), suite, 3, map[string]string{"EXTRA": "hello"})
	require.NoError(t, err)

	assert.Equal(t, 0, out.ExitCode)
	assert.False(t, out.TimedOut)
	assert.Equal(t, "hello\n", string(out.Stdout))
	assert.Equal(t, e.ResultFile("unit/tests", 3), out.ResultFile)

	data, err := os.ReadFile(out.ResultFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runtime_ns":3`)
}

func TestExecuteRemovesStaleResultFile(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	e := NewCommandExecutor(dir, dir, 10*time.Second)

	stale := e.ResultFile("s", 1)
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	_, err := e.Execute(context.Background(), Suite{ID: "s", Command: []string{"true"}}, 1, nil)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	e := NewCommandExecutor(dir, dir, 10*time.Second)

	out, err := e.Execute(context.Background(), Suite{ID: "s", Command: []string{"sh", "-c", "exit 3"}}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
}

func TestExecuteTimeout(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	e := NewCommandExecutor(dir, dir, 100*time.Millisecond)

	out, err := e.Execute(context.Background(), Suite{ID: "slow", Command: []string{"sleep", "5"}}, 0, nil)
	require.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, out)
	assert.True(t, out.TimedOut)
	assert.Equal(t, -1, out.ExitCode)
}

func TestExecuteTimeoutKillsChildProcesses(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	e := NewCommandExecutor(dir, dir, 100*time.Millisecond)

	// The shell's child keeps stdout open; the trial must still end at the timeout.
	start := time.Now()
	out, err := e.Execute(context.Background(), Suite{ID: "nested", Command: []string{"sh", "-c", "sleep 5; echo done"}}, 0, nil)
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrTimeout)
	require.NotNil(t, out)
	assert.True(t, out.TimedOut)
	assert.NotContains(t, string(out.Stdout), "done")
	assert.Less(t, elapsed, 3*time.Second)
}

func TestExecuteTimeoutKillsBackgroundProcesses(t *testing.T) {
	skipWithoutShell(t)
	dir := t.TempDir()
	e := NewCommandExecutor(dir, dir, 100*time.Millisecond)

	start := time.Now()
	_, err := e.Execute(context.Background(), Suite{ID: "background", Command: []string{"sh", "-c", "sleep 5 & sleep 5 & wait"}}, 0, nil)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestExecuteEmptyCommand(t *testing.T) {
	e := NewCommandExecutor(t.TempDir(), t.TempDir(), time.Second)
	_, err := e.Execute(context.Background(), Suite{ID: "empty"}, 0, nil)
	assert.ErrorIs(t, err, ErrEmptyCommand)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, limit: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.True(t, lw.truncated)
	assert.Equal(t, "abcde", buf.String())

	n, _ = lw.Write([]byte("more"))
	assert.Equal(t, 4, n)
	assert.Equal(t, "abcde", buf.String())
}
