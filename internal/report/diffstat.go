package report

import (
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

// DiffStats summarizes a unified diff.
type DiffStats struct {
	Files   int `json:"files"`
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

func (s DiffStats) String() string {
	return fmt.Sprintf("%d file(s), +%d -%d", s.Files, s.Added, s.Removed)
}

// ParseDiffStats counts files and changed lines in a unified diff.
func ParseDiffStats(unified string) (DiffStats, error) {
	if strings.TrimSpace(unified) == "" {
		return DiffStats{}, nil
	}
	fileDiffs, err := diff.NewMultiFileDiffReader(strings.NewReader(unified)).ReadAllFiles()
	if err != nil {
		return DiffStats{}, fmt.Errorf("failed to parse diff: %w", err)
	}

	stats := DiffStats{Files: len(fileDiffs)}
	for _, fd := range fileDiffs {
		for _, hunk := range fd.Hunks {
			for _, line := range strings.Split(string(hunk.Body), "\n") {
				switch {
				case strings.HasPrefix(line, "+"):
					stats.Added++
				case strings.HasPrefix(line, "-"):
					stats.Removed++
				}
			}
		}
	}
	return stats, nil
}
