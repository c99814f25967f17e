package job

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

const sampleJob = `name: mathx
description: hot paths in mathx
root: ../src
functions:
  - id: sum
    file: mathx/sum.go
    names: [Sum]
    dependencies:
      - file: mathx/helpers.go
        names: [add]
    existing_suites:
      - id: unit
        command: [go, test, ./mathx/...]
        env:
          GOFLAGS: -count=1
    generated_suite:
      file: mathx/zz_optimizer_test.go
      command: [go, test, -run, Optimizer, ./mathx/]
      source: tests/sum_test.go.txt
    candidates_file: candidates/sum.yaml
`

func writeJob(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeJob(t, dir, "jobs/mathx.yaml", sampleJob)

	j, err := LoadFile(path)
	require.NoError(t, err)

	jobsDir := filepath.Join(dir, "jobs")
	assert.Equal(t, "mathx", j.Name)
	assert.Equal(t, filepath.Join(dir, "src"), j.Root)
	require.Len(t, j.Functions, 1)

	fn := j.Functions[0]
	assert.Equal(t, filepath.Join(jobsDir, "candidates/sum.yaml"), fn.CandidatesFile)
	assert.Equal(t, filepath.Join(jobsDir, "tests/sum_test.go.txt"), fn.GeneratedSuite.Source)

	targets := fn.Targets()
	require.Len(t, targets, 2)
	assert.Equal(t, "mathx/sum.go", targets[0].File)
	assert.Equal(t, []string{"add"}, targets[1].Names)

	existing := fn.Existing()
	require.Len(t, existing, 1)
	assert.Equal(t, testresult.TypeExistingUnitTest, existing[0].Type)
	assert.Equal(t, "-count=1", existing[0].Env["GOFLAGS"])

	gen := fn.Generated()
	require.NotNil(t, gen)
	assert.Equal(t, "sum-generated", gen.ID)
	assert.Equal(t, testresult.TypeGeneratedRegression, gen.Type)
}

func TestLoadByName(t *testing.T) {
	dir := t.TempDir()
	writeJob(t, dir, "flat.yaml", sampleJob)
	writeJob(t, dir, "nested/job.yaml", sampleJob)

	j, err := Load("flat", dir)
	require.NoError(t, err)
	assert.Equal(t, "mathx", j.Name)

	j, err = Load("nested", dir)
	require.NoError(t, err)
	assert.Equal(t, "mathx", j.Name)

	j, err = Load(filepath.Join(dir, "nested"), "")
	require.NoError(t, err)
	assert.Equal(t, "mathx", j.Name)

	_, err = Load("missing", dir)
	assert.Error(t, err)

	names, err := List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"flat", "nested"}, names)
}

func TestLoadFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "no functions", content: "name: x\n"},
		{name: "no names", content: "name: x\nfunctions:\n  - id: a\n    file: a.go\n"},
		{name: "suite without command", content: "name: x\nfunctions:\n  - id: a\n    file: a.go\n    names: [A]\n    existing_suites:\n      - id: s\n"},
		{name: "generated without file", content: "name: x\nfunctions:\n  - id: a\n    file: a.go\n    names: [A]\n    generated_suite:\n      command: [go, test]\n"},
		{name: "malformed", content: "name: [x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeJob(t, t.TempDir(), "job.yaml", tt.content)
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_DuplicateIDs(t *testing.T) {
	path := writeJob(t, t.TempDir(), "job.yaml", `name: x
functions:
  - id: a
    file: a.go
    names: [A]
  - id: a
    file: b.go
    names: [B]
`)
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, ErrDuplicateFunction)
}

func TestSelect(t *testing.T) {
	j := &Job{Name: "x", Functions: []Function{{ID: "a"}, {ID: "b"}, {ID: "c"}}}

	all, err := j.Select()
	require.NoError(t, err)
	assert.Len(t, all.Functions, 3)

	sub, err := j.Select("c", "a")
	require.NoError(t, err)
	require.Len(t, sub.Functions, 2)
	assert.Equal(t, "a", sub.Functions[0].ID)
	assert.Equal(t, "c", sub.Functions[1].ID)
	assert.Len(t, j.Functions, 3)

	_, err = j.Select("zzz")
	assert.Error(t, err)
}
