package mcp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/giantswarm/llm-optimizer/internal/runner"
)

func resolveRunPath(outputDir, runID string) (string, error) {
	if err := validateName("run_id", runID); err != nil {
		return "", err
	}
	return resolvePathWithinBase(outputDir, runID)
}

// resolveJobPath maps a job name to <jobsDir>/<name> when that directory
// exists, otherwise to <jobsDir>/<name>.yaml.
func resolveJobPath(jobsDir, name string) (string, error) {
	if err := validateName("job", name); err != nil {
		return "", err
	}
	if jobsDir == "" {
		return "", fmt.Errorf("no jobs directory configured")
	}
	dir, err := resolvePathWithinBase(jobsDir, name)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return dir, nil
	}
	return dir + ".yaml", nil
}

// resolveOutcomePath returns the per-function outcome file inside a run.
func resolveOutcomePath(runPath, functionID string) (string, error) {
	if strings.TrimSpace(functionID) == "" {
		return "", fmt.Errorf("function is required")
	}
	return resolvePathWithinBase(runPath, runner.OutcomeFileName(functionID))
}

func validateName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if strings.Contains(value, string(filepath.Separator)) || strings.Contains(value, "/") {
		return fmt.Errorf("path separators are not allowed")
	}
	if value == "." || value == ".." {
		return fmt.Errorf("path traversal is not allowed")
	}
	return nil
}

func resolvePathWithinBase(baseDir, pathValue string) (string, error) {
	baseAbs, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base directory: %w", err)
	}
	target := pathValue
	if !filepath.IsAbs(target) {
		target = filepath.Join(baseAbs, target)
	}
	targetAbs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve relative path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path must be within base directory")
	}
	return targetAbs, nil
}
