package cmd

import (
	"os"

	"github.com/giantswarm/llm-optimizer/internal/config"
	"github.com/giantswarm/llm-optimizer/internal/llm"
)

// newLLMClient creates an LLM client from the llm section of the config,
// falling back to the OPENAI_API_KEY environment variable when no explicit
// key is configured.
func newLLMClient(cfg config.LLM) llm.Client {
	var opts []llm.Option
	if cfg.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.Endpoint))
	}
	if cfg.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(cfg.APIKey))
	} else if envKey := os.Getenv("OPENAI_API_KEY"); envKey != "" {
		opts = append(opts, llm.WithAPIKey(envKey))
	}
	if cfg.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Model))
	}
	opts = append(opts, llm.WithTemperature(cfg.Temperature))
	return llm.NewOpenAIClient(opts...)
}
