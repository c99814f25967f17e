package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/giantswarm/llm-optimizer/internal/config"
	"github.com/giantswarm/llm-optimizer/internal/digest"
	"github.com/giantswarm/llm-optimizer/internal/generate"
	"github.com/giantswarm/llm-optimizer/internal/job"
	"github.com/giantswarm/llm-optimizer/internal/llm"
	"github.com/giantswarm/llm-optimizer/internal/runner"
)

// ErrBusy is returned when an optimization run is already in progress.
var ErrBusy = errors.New("an optimization run is already in progress")

// ServerContext holds shared dependencies for MCP tool handlers.
type ServerContext struct {
	Config    config.Config
	Digests   *digest.Channel
	LLMClient llm.Client // optional; without it only jobs with candidate files can run
	JobsDir   string
	Logger    *slog.Logger

	// running serializes optimization runs; only one may touch a source tree.
	running sync.Mutex
}

// Optimize runs j with the shared configuration. A non-nil revertWinner
// overrides the configured revert setting for this run. It fails fast
// with ErrBusy instead of queueing behind another run.
func (sc *ServerContext) Optimize(ctx context.Context, j *job.Job, revertWinner *bool, opts ...runner.Option) (*runner.Run, error) {
	if !sc.running.TryLock() {
		return nil, ErrBusy
	}
	defer sc.running.Unlock()

	cfg := sc.Config
	if revertWinner != nil {
		cfg.RevertWinnerImmediately = revertWinner
	}

	base := []runner.Option{runner.WithLogger(sc.Logger)}
	if sc.LLMClient != nil {
		base = append(base,
			runner.WithCandidateSource(generate.NewLLMCandidateSource(sc.LLMClient, cfg.LLM.Model, cfg.LLM.Temperature)),
			runner.WithTestSynthesizer(generate.NewLLMTestSynthesizer(sc.LLMClient, cfg.LLM.Model, cfg.LLM.Temperature)),
		)
	}

	r, err := runner.NewRunner(cfg, sc.Digests, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, j)
}
