package generate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type candidateFile struct {
	Candidates []candidateEntry `yaml:"candidates"`
}

type candidateEntry struct {
	ID          string `yaml:"id"`
	Explanation string `yaml:"explanation"`
	Source      string `yaml:"source"`
	SourceFile  string `yaml:"source_file"`
}

// FileCandidateSource reads pre-written candidates from a YAML file.
// Relative source_file entries resolve against the YAML file's directory.
type FileCandidateSource struct {
	Path string
}

func (s *FileCandidateSource) Candidates(_ context.Context, req Request) ([]Candidate, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read candidates file: %w", err)
	}

	var f candidateFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse candidates file %s: %w", s.Path, err)
	}

	out := make([]Candidate, 0, len(f.Candidates))
	for i, e := range f.Candidates {
		if req.Count > 0 && len(out) == req.Count {
			break
		}
		c := Candidate{ID: e.ID, Explanation: e.Explanation}
		if c.ID == "" {
			c.ID = fmt.Sprintf("candidate-%d", i+1)
		}
		src := e.Source
		if src == "" && e.SourceFile != "" {
			path := e.SourceFile
			if !filepath.IsAbs(path) {
				path = filepath.Join(filepath.Dir(s.Path), path)
			}
			content, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read source of candidate %s: %w", c.ID, err)
			}
			src = string(content)
		}
		if src != "" {
			c.Source = &src
		}
		out = append(out, c)
	}
	return out, nil
}

// FileTestSynthesizer returns a pre-written regression test file.
type FileTestSynthesizer struct {
	Path string
}

func (s *FileTestSynthesizer) Synthesize(_ context.Context, _ Request) (*GeneratedSuite, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read generated suite: %w", err)
	}
	return &GeneratedSuite{Content: string(data)}, nil
}
