// Package job loads the job files that list the functions to optimize.
package job

import (
	"fmt"
	"sort"
	"strings"

	"github.com/giantswarm/llm-optimizer/internal/executor"
	"github.com/giantswarm/llm-optimizer/internal/patch"
	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

// Job is a batch of functions in one source tree.
type Job struct {
	Name        string     `yaml:"name" json:"name" validate:"required"`
	Description string     `yaml:"description" json:"description,omitempty"`
	Root        string     `yaml:"root" json:"root"` // project root, relative to the job file
	Functions   []Function `yaml:"functions" json:"functions" validate:"required,min=1,dive"`
}

// Function is one optimization target.
type Function struct {
	ID             string           `yaml:"id" json:"id" validate:"required"`
	File           string           `yaml:"file" json:"file" validate:"required"`
	Package        string           `yaml:"package" json:"package,omitempty"`
	Names          []string         `yaml:"names" json:"names" validate:"required,min=1"`
	Dependencies   []patch.Target   `yaml:"dependencies" json:"dependencies,omitempty" validate:"dive"`
	ExistingSuites []executor.Suite `yaml:"existing_suites" json:"existing_suites,omitempty" validate:"dive"`
	GeneratedSuite *GeneratedSuite  `yaml:"generated_suite" json:"generated_suite,omitempty"`
	CandidatesFile string           `yaml:"candidates_file" json:"candidates_file,omitempty"`
}

// GeneratedSuite describes where the synthesized regression test goes and
// how to run it. When Source is set the test is read from that file
// instead of being synthesized.
type GeneratedSuite struct {
	File    string            `yaml:"file" json:"file" validate:"required"`
	Command []string          `yaml:"command" json:"command" validate:"required,min=1"`
	Dir     string            `yaml:"dir" json:"dir,omitempty"`
	Env     map[string]string `yaml:"env" json:"env,omitempty"`
	Parser  string            `yaml:"parser" json:"parser,omitempty"`
	Source  string            `yaml:"source" json:"source,omitempty"`
}

// Targets returns the target file followed by the dependency files.
func (f Function) Targets() []patch.Target {
	targets := make([]patch.Target, 0, 1+len(f.Dependencies))
	targets = append(targets, patch.Target{File: f.File, Names: f.Names})
	return append(targets, f.Dependencies...)
}

// Existing returns the existing suites tagged with their test type.
func (f Function) Existing() []executor.Suite {
	suites := make([]executor.Suite, len(f.ExistingSuites))
	for i, s := range f.ExistingSuites {
		s.Type = testresult.TypeExistingUnitTest
		suites[i] = s
	}
	return suites
}

// Generated returns the generated suite as an executor suite, or nil.
func (f Function) Generated() *executor.Suite {
	if f.GeneratedSuite == nil {
		return nil
	}
	return &executor.Suite{
		ID:      f.ID + "-generated",
		Command: f.GeneratedSuite.Command,
		Dir:     f.GeneratedSuite.Dir,
		Env:     f.GeneratedSuite.Env,
		Parser:  f.GeneratedSuite.Parser,
		Type:    testresult.TypeGeneratedRegression,
	}
}

// Select returns a copy of the job limited to the given function IDs, in
// the order they appear in the job. No IDs selects every function.
func (j *Job) Select(ids ...string) (*Job, error) {
	if len(ids) == 0 {
		return j, nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	out := *j
	out.Functions = nil
	for _, fn := range j.Functions {
		if want[fn.ID] {
			out.Functions = append(out.Functions, fn)
			delete(want, fn.ID)
		}
	}
	if len(want) > 0 {
		missing := make([]string, 0, len(want))
		for id := range want {
			missing = append(missing, id)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("functions not found in job %s: %s", j.Name, strings.Join(missing, ", "))
	}
	return &out, nil
}
