package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// RunFile is the run summary written to every run directory.
const RunFile = "resultset.json"

// ErrRunNotFound is returned when a run directory has no summary.
var ErrRunNotFound = errors.New("run not found")

// OutcomeFileName is the name of a function's outcome file in a run directory.
func OutcomeFileName(functionID string) string {
	return sanitizeFilename(functionID) + ".json"
}

func writeOutcome(outputPath string, out *Outcome) error {
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputPath, OutcomeFileName(out.FunctionID)), data, 0o644)
}

func writeRunMetadata(outputPath string, run *Run) error {
	data, err := json.MarshalIndent(run, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputPath, RunFile), data, 0o644)
}

// LoadRun reads a run summary from outputDir/runID.
func LoadRun(outputDir, runID string) (*Run, error) {
	if runID != filepath.Base(runID) || runID == "." || runID == ".." {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	path := filepath.Join(outputDir, runID)
	data, err := os.ReadFile(filepath.Join(path, RunFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read run %s: %w", runID, err)
	}

	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("failed to parse run %s: %w", runID, err)
	}
	run.OutputDir = path
	return &run, nil
}

// ListRuns returns the IDs of the runs in outputDir, newest first.
func ListRuns(outputDir string) ([]string, error) {
	entries, err := os.ReadDir(outputDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	type entry struct {
		id  string
		mod int64
	}
	var runs []entry
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(outputDir, e.Name(), RunFile))
		if err != nil {
			continue
		}
		runs = append(runs, entry{id: e.Name(), mod: info.ModTime().UnixNano()})
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].mod != runs[j].mod {
			return runs[i].mod > runs[j].mod
		}
		return runs[i].id > runs[j].id
	})

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.id
	}
	return ids, nil
}
