// Package generate obtains candidate implementations and regression tests
// for a target function, either from an LLM or from files on disk.
package generate

import (
	"context"
	"errors"
)

// ErrNoCode is returned when a response contains no code block.
var ErrNoCode = errors.New("response contains no code block")

// Candidate is one proposed reimplementation. A nil Source means the
// candidate could not be produced and is skipped.
type Candidate struct {
	ID          string  `yaml:"id" json:"id"`
	Source      *string `yaml:"source" json:"source,omitempty"`
	Explanation string  `yaml:"explanation" json:"explanation,omitempty"`
}

// Request describes the function to optimize.
type Request struct {
	FunctionID  string
	Names       []string
	File        string
	PackageName string
	// Source is the pristine content of File.
	Source string
	// Context holds the pristine content of dependency files, keyed by path.
	Context map[string]string
	// Count is the number of candidates wanted.
	Count int
}

// GeneratedSuite is a synthesized regression test file.
type GeneratedSuite struct {
	Content string
}

// CandidateSource produces candidate implementations.
type CandidateSource interface {
	Candidates(ctx context.Context, req Request) ([]Candidate, error)
}

// TestSynthesizer produces a regression test file for the function.
type TestSynthesizer interface {
	Synthesize(ctx context.Context, req Request) (*GeneratedSuite, error)
}
