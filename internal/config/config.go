// Package config holds the typed optimizer configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/llm-optimizer/internal/measure"
)

// ErrRevertWinnerUnset is returned when revert_winner_immediately is missing.
var ErrRevertWinnerUnset = errors.New("revert_winner_immediately must be set explicitly")

// Config controls measurement, selection and candidate generation.
type Config struct {
	// MinGain is the fractional speedup a candidate must exceed to win.
	MinGain float64 `yaml:"min_gain" json:"min_gain" validate:"gte=0"`

	PerTrialTimeout        time.Duration `yaml:"per_trial_timeout" json:"per_trial_timeout" validate:"gt=0"`
	MaxTrials              int           `yaml:"max_trials" json:"max_trials" validate:"gte=1"`
	MaxCumulativeRuntimeNS int64         `yaml:"max_cumulative_runtime_ns" json:"max_cumulative_runtime_ns" validate:"gt=0"`
	MaxWallPerFunction     time.Duration `yaml:"max_wall_per_function" json:"max_wall_per_function" validate:"gt=0"`

	// RevertWinnerImmediately has no default; a nil value fails validation.
	RevertWinnerImmediately *bool `yaml:"revert_winner_immediately" json:"revert_winner_immediately" validate:"required"`

	NumCandidates int    `yaml:"num_candidates" json:"num_candidates" validate:"gte=1,lte=64"`
	Parser        string `yaml:"parser" json:"parser" validate:"oneof=jsonl gotest junit"`
	DigestDir     string `yaml:"digest_dir" json:"digest_dir,omitempty"`
	OutputDir     string `yaml:"output_dir" json:"output_dir" validate:"required"`

	LLM LLM `yaml:"llm" json:"llm"`
}

// LLM configures the OpenAI-compatible endpoint used for generation.
type LLM struct {
	Endpoint    string  `yaml:"endpoint" json:"endpoint,omitempty" validate:"omitempty,url"`
	APIKey      string  `yaml:"api_key" json:"-"`
	Model       string  `yaml:"model" json:"model,omitempty"`
	Temperature float64 `yaml:"temperature" json:"temperature" validate:"gte=0,lte=2"`
}

// Default returns a configuration with every field except
// RevertWinnerImmediately populated.
func Default() Config {
	return Config{
		MinGain:                0.05,
		PerTrialTimeout:        15 * time.Second,
		MaxTrials:              50,
		MaxCumulativeRuntimeNS: int64(5 * time.Second),
		MaxWallPerFunction:     60 * time.Second,
		NumCandidates:          10,
		Parser:                 "jsonl",
		OutputDir:              "results",
		LLM: LLM{
			Endpoint:    "http://localhost:8000/v1",
			Temperature: 1.0,
		},
	}
}

// Load reads a YAML file on top of Default. The result is not validated so
// that callers can apply flag overrides first.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if c.RevertWinnerImmediately == nil {
		return ErrRevertWinnerUnset
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Budget returns the trial budget for one phase.
func (c Config) Budget() measure.Budget {
	return measure.Budget{
		MaxTrials:              c.MaxTrials,
		MaxCumulativeRuntimeNS: c.MaxCumulativeRuntimeNS,
		MaxWallPerFunction:     c.MaxWallPerFunction,
	}
}

// RevertWinner reports the explicit revert setting. Callers must Validate first.
func (c Config) RevertWinner() bool {
	return c.RevertWinnerImmediately != nil && *c.RevertWinnerImmediately
}
