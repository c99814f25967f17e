package patch

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff of one file.
func Diff(path string, before, after []byte) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(before)),
		B:        difflib.SplitLines(string(after)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s: %w", path, err)
	}
	return text, nil
}

// DiffTouched renders the diff between the pristine and current content of
// each path, skipping unchanged files.
func (w *Workspace) DiffTouched(paths ...string) (string, error) {
	var out string
	for _, p := range paths {
		before, err := w.Pristine(p)
		if err != nil {
			return "", fmt.Errorf("failed to read pristine %s: %w", p, err)
		}
		after, err := w.Read(p)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", p, err)
		}
		if string(before) == string(after) {
			continue
		}
		d, err := Diff(p, before, after)
		if err != nil {
			return "", err
		}
		out += d
	}
	return out, nil
}
