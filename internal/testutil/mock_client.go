// Package testutil provides shared test helpers.
package testutil

import (
	"context"
	"sync"

	"github.com/giantswarm/llm-optimizer/internal/llm"
)

// MockLLMClient is a configurable mock for llm.Client used across test packages.
type MockLLMClient struct {
	// Responses maps user messages to canned responses.
	Responses map[string]string

	// DefaultResponse is returned when no matching key is found in Responses.
	DefaultResponse string

	// Choices, when set, is returned as the full choice list for every request.
	Choices []string

	// Err, when set, is returned by every call.
	Err error

	mu          sync.Mutex
	calls       int
	lastRequest llm.ChatRequest
}

func (m *MockLLMClient) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.calls++
	m.lastRequest = req
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}

	if len(m.Choices) > 0 {
		return &llm.ChatResponse{Content: m.Choices[0], Choices: append([]string(nil), m.Choices...)}, nil
	}

	content := "mock response"
	if resp, ok := m.Responses[req.UserMessage]; ok {
		content = resp
	} else if m.DefaultResponse != "" {
		content = m.DefaultResponse
	}
	return &llm.ChatResponse{Content: content, Choices: []string{content}}, nil
}

// Calls returns the number of ChatCompletion invocations.
func (m *MockLLMClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the most recent request.
func (m *MockLLMClient) LastRequest() llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}
