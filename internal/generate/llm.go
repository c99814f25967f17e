package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/giantswarm/llm-optimizer/internal/llm"
)

// LLMCandidateSource asks an LLM for Count independent rewrites in one request.
type LLMCandidateSource struct {
	client      llm.Client
	model       string
	temperature float64
}

// NewLLMCandidateSource creates a candidate source backed by client.
func NewLLMCandidateSource(client llm.Client, model string, temperature float64) *LLMCandidateSource {
	return &LLMCandidateSource{client: client, model: model, temperature: temperature}
}

func (s *LLMCandidateSource) Candidates(ctx context.Context, req Request) ([]Candidate, error) {
	count := req.Count
	if count < 1 {
		count = 1
	}

	resp, err := s.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:         s.model,
		SystemMessage: OptimizePrompt,
		UserMessage:   buildUserMessage(req),
		Temperature:   s.temperature,
		N:             count,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request candidates for %s: %w", req.FunctionID, err)
	}

	candidates := make([]Candidate, 0, len(resp.Choices))
	for i, choice := range resp.Choices {
		c := Candidate{ID: fmt.Sprintf("candidate-%d", i+1)}
		code, prose, ok := extractCode(choice)
		c.Explanation = prose
		if ok {
			c.Source = &code
		} else {
			slog.Warn("candidate reply has no code block", "function", req.FunctionID, "candidate", c.ID)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// LLMTestSynthesizer asks an LLM for a regression test file.
type LLMTestSynthesizer struct {
	client      llm.Client
	model       string
	temperature float64
}

// NewLLMTestSynthesizer creates a test synthesizer backed by client.
func NewLLMTestSynthesizer(client llm.Client, model string, temperature float64) *LLMTestSynthesizer {
	return &LLMTestSynthesizer{client: client, model: model, temperature: temperature}
}

func (s *LLMTestSynthesizer) Synthesize(ctx context.Context, req Request) (*GeneratedSuite, error) {
	resp, err := s.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:         s.model,
		SystemMessage: TestSynthesisPrompt,
		UserMessage:   buildUserMessage(req),
		Temperature:   s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request tests for %s: %w", req.FunctionID, err)
	}

	code, _, ok := extractCode(resp.Content)
	if !ok {
		return nil, fmt.Errorf("%w: tests for %s", ErrNoCode, req.FunctionID)
	}
	return &GeneratedSuite{Content: code + "\n"}, nil
}

func buildUserMessage(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", req.PackageName)
	fmt.Fprintf(&b, "Functions: %s\n\n", strings.Join(req.Names, ", "))
	fmt.Fprintf(&b, "File %s:\n```go\n%s\n```\n", req.File, strings.TrimRight(req.Source, "\n"))

	paths := make([]string, 0, len(req.Context))
	for p := range req.Context {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		fmt.Fprintf(&b, "\nRelated file %s:\n```go\n%s\n```\n", p, strings.TrimRight(req.Context[p], "\n"))
	}
	return b.String()
}
