// Package runner drives the per-function optimization state machine over
// the functions of a job.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/giantswarm/llm-optimizer/internal/config"
	"github.com/giantswarm/llm-optimizer/internal/digest"
	"github.com/giantswarm/llm-optimizer/internal/executor"
	"github.com/giantswarm/llm-optimizer/internal/generate"
	"github.com/giantswarm/llm-optimizer/internal/job"
	"github.com/giantswarm/llm-optimizer/internal/measure"
	"github.com/giantswarm/llm-optimizer/internal/patch"
	"github.com/giantswarm/llm-optimizer/internal/selector"
)

// ErrNoCandidateSource is returned when a function has neither a
// candidates file nor a configured candidate source.
var ErrNoCandidateSource = errors.New("no candidate source configured")

// ErrNoTestSynthesizer is returned when a function needs a generated suite
// but no synthesizer is configured.
var ErrNoTestSynthesizer = errors.New("no test synthesizer configured")

// Reporter receives the accepted candidate of a function.
type Reporter interface {
	ReportWinner(ctx context.Context, w Winner) error
}

// ProgressFunc is called on every state transition.
type ProgressFunc func(functionID string, state State)

// ExecutorFactory builds the test executor for a job rooted at root.
type ExecutorFactory func(root, resultDir string) executor.TestExecutor

// Runner optimizes the functions of a job one at a time.
type Runner struct {
	cfg         config.Config
	digests     *digest.Channel
	patcher     patch.Patcher
	candidates  generate.CandidateSource
	synth       generate.TestSynthesizer
	reporter    Reporter
	newExecutor ExecutorFactory
	measureOpts []measure.Option
	progress    ProgressFunc
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithCandidateSource sets the default candidate source.
func WithCandidateSource(s generate.CandidateSource) Option {
	return func(r *Runner) { r.candidates = s }
}

// WithTestSynthesizer sets the default test synthesizer.
func WithTestSynthesizer(s generate.TestSynthesizer) Option {
	return func(r *Runner) { r.synth = s }
}

// WithReporter sets the winner reporter.
func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

// WithPatcher overrides the source patcher.
func WithPatcher(p patch.Patcher) Option {
	return func(r *Runner) { r.patcher = p }
}

// WithExecutorFactory overrides how test executors are built.
func WithExecutorFactory(f ExecutorFactory) Option {
	return func(r *Runner) { r.newExecutor = f }
}

// WithMeasureOptions passes options to every measurer.
func WithMeasureOptions(opts ...measure.Option) Option {
	return func(r *Runner) { r.measureOpts = append(r.measureOpts, opts...) }
}

// WithProgressFunc sets the progress callback.
func WithProgressFunc(fn ProgressFunc) Option {
	return func(r *Runner) { r.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner. The configuration must be valid, which
// includes an explicit revert-winner setting.
func NewRunner(cfg config.Config, digests *digest.Channel, opts ...Option) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if digests == nil {
		return nil, errors.New("digest channel is required")
	}

	r := &Runner{
		cfg:     cfg,
		digests: digests,
		patcher: patch.GoPatcher{},
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.newExecutor == nil {
		r.newExecutor = func(root, resultDir string) executor.TestExecutor {
			return executor.NewCommandExecutor(root, resultDir, cfg.PerTrialTimeout, executor.WithLogger(r.logger))
		}
	}
	return r, nil
}

// Run optimizes every function of j in order and writes the outcomes to
// the output directory. Cancellation is honored between functions only.
func (r *Runner) Run(ctx context.Context, j *job.Job) (*Run, error) {
	timestamp := r.now()
	runID := fmt.Sprintf("%s_%s_%s", sanitizeFilename(j.Name), timestamp.Format("20060102-150405"), uuid.NewString()[:8])

	outputPath := filepath.Join(r.cfg.OutputDir, runID)
	if err := os.MkdirAll(outputPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	resultDir, err := os.MkdirTemp("", "llm-optimizer-results-")
	if err != nil {
		return nil, fmt.Errorf("failed to create result directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(resultDir) }()

	ws := patch.NewWorkspace(j.Root, r.logger)
	measurer := measure.NewMeasurer(
		r.newExecutor(j.Root, resultDir),
		r.digests,
		append([]measure.Option{measure.WithLogger(r.logger)}, r.measureOpts...)...,
	)

	run := &Run{
		ID:        runID,
		Job:       j.Name,
		Timestamp: timestamp,
		Outcomes:  make([]*Outcome, 0, len(j.Functions)),
		OutputDir: outputPath,
	}

	for _, fn := range j.Functions {
		if err := ctx.Err(); err != nil {
			r.logger.Warn("optimization run cancelled", "job", j.Name, "completed", len(run.Outcomes), "total", len(j.Functions))
			run.Cancelled = true
			break
		}

		out := r.optimizeFunction(ctx, ws, measurer, fn)
		run.Outcomes = append(run.Outcomes, out)
		if err := writeOutcome(outputPath, out); err != nil {
			return nil, fmt.Errorf("failed to write outcome for %s: %w", fn.ID, err)
		}
	}

	run.Duration = r.now().Sub(timestamp)
	if err := writeRunMetadata(outputPath, run); err != nil {
		return nil, fmt.Errorf("failed to write run metadata: %w", err)
	}

	r.logger.Info("optimization run complete", "run_id", run.ID, "functions", len(run.Outcomes), "duration", run.Duration)
	return run, nil
}

// functionRun carries the state of one function through the state machine.
type functionRun struct {
	r        *Runner
	ws       *patch.Workspace
	measurer *measure.Measurer
	fn       job.Function
	out      *Outcome
	logger   *slog.Logger
	span     trace.Span
	state    State
	traceID  string
	// lastIteration is the highest digest slot iteration used.
	lastIteration int
}

func (r *Runner) optimizeFunction(ctx context.Context, ws *patch.Workspace, m *measure.Measurer, fn job.Function) (out *Outcome) {
	traceID := uuid.NewString()
	out = &Outcome{FunctionID: fn.ID, TraceID: traceID, Status: StatusError}
	start := r.now()

	ctx, span := startFunctionSpan(ctx, fn.ID, traceID)
	f := &functionRun{
		r:        r,
		ws:       ws,
		measurer: m,
		fn:       fn,
		out:      out,
		logger:   r.logger.With("function", fn.ID, "trace_id", traceID),
		span:     span,
		state:    StateIdle,
		traceID:  traceID,
	}

	defer func() {
		if err := ws.Restore(); err != nil {
			f.logger.Error("failed to restore source tree", "error", err)
			out.Status = StatusError
			out.Reason = err.Error()
		}
		if rec := recover(); rec != nil {
			f.logger.Error("panic while optimizing function", "panic", rec)
			out.Status = StatusError
			out.Reason = fmt.Sprintf("panic: %v", rec)
		}
		f.releaseSlots()
		f.transition(ctx, StateDone)

		out.Duration = r.now().Sub(start)
		setFunctionSpanResult(span, out)
		span.End()
		recordFunctionMetrics(ctx, out, out.Duration)

		f.logger.Info("function done", "status", out.Status, "winner", out.WinnerID, "duration", out.Duration)
	}()

	f.run(ctx)
	return out
}

func (f *functionRun) run(ctx context.Context) {
	f.transition(ctx, StatePreparing)
	candidates, err := f.prepare(ctx)
	if err != nil {
		f.logger.Error("failed to prepare function", "error", err)
		f.out.Status = StatusError
		f.out.Reason = err.Error()
		return
	}
	if usable(candidates) == 0 {
		f.logger.Warn("no usable candidates, skipping function")
		f.out.Status = StatusSkipped
		f.out.Reason = "no usable candidates"
		return
	}

	suites := f.suites()
	budget := f.r.cfg.Budget()

	f.transition(ctx, StateBaseline)
	baseline, err := f.measurer.Baseline(ctx, f.traceID, suites, budget)
	if err != nil {
		var mf *measure.MeasurementFailure
		if errors.As(err, &mf) {
			f.logger.Warn("could not measure original code", "reason", mf.Reason, "trials", mf.Trials)
			f.out.Status = StatusAbortedNoBaseline
			f.out.Reason = string(mf.Reason)
			return
		}
		f.logger.Error("baseline measurement failed", "error", err)
		f.out.Status = StatusError
		f.out.Reason = err.Error()
		return
	}
	f.out.BaselineRuntimeNS = baseline.RuntimeNS
	f.out.BaselineStats = measure.Summarize(baseline.Samples)
	f.out.ReferenceReport = baseline.Reference.PassFailReport().String()

	if err := f.evaluateAll(ctx, candidates, baseline, suites, budget); err != nil {
		f.logger.Error("candidate evaluation aborted", "error", err)
		f.out.Status = StatusError
		f.out.Reason = err.Error()
		return
	}

	f.transition(ctx, StateSelecting)
	winnerID, ok := f.selectWinner(baseline.RuntimeNS)
	if !ok {
		f.transition(ctx, StateNoWinner)
		f.logger.Info("no candidate beat the original code", "baseline", measure.HumanizeRuntime(baseline.RuntimeNS))
		f.out.Status = StatusRejectedAllCandidates
		return
	}

	f.transition(ctx, StateApplyingWinner)
	if err := f.applyWinner(ctx, candidates, winnerID); err != nil {
		f.logger.Error("failed to apply winning candidate", "candidate", winnerID, "error", err)
		f.out.Status = StatusError
		f.out.Reason = err.Error()
	}
}

func (f *functionRun) transition(ctx context.Context, to State) {
	from := f.state
	f.state = to
	f.logger.Debug("state transition", "from", from, "to", to)
	recordStateTransition(ctx, f.span, from, to)
	if f.r.progress != nil {
		f.r.progress(f.fn.ID, to)
	}
}

func (f *functionRun) suites() measure.Suites {
	existing := f.fn.Existing()
	for i := range existing {
		if existing[i].Parser == "" {
			existing[i].Parser = f.r.cfg.Parser
		}
	}
	generated := f.fn.Generated()
	if generated != nil && generated.Parser == "" {
		generated.Parser = f.r.cfg.Parser
	}
	return measure.Suites{Existing: existing, Generated: generated}
}

// evaluateAll patches, evaluates and reverts each candidate in source order.
// The early-exit reference only moves for candidates that clear the minimum
// gain. Only a failed restore aborts the loop.
func (f *functionRun) evaluateAll(ctx context.Context, candidates []generate.Candidate, baseline *measure.Baseline, suites measure.Suites, budget measure.Budget) error {
	best := baseline.RuntimeNS
	targets := f.fn.Targets()

	for i, c := range candidates {
		res := CandidateResult{ID: c.ID, Explanation: c.Explanation}
		if c.Source == nil {
			res.Skipped = true
			res.Reason = "no source"
			f.out.PerCandidate = append(f.out.PerCandidate, res)
			recordCandidate(ctx, "skipped", res.Reason)
			continue
		}

		iteration := i + 1
		f.lastIteration = iteration
		f.transition(ctx, StatePatching)

		var ev *measure.Evaluation
		err := f.ws.WithPatch(f.r.patcher, targets, *c.Source, func() error {
			f.transition(ctx, StateEvaluating)
			var err error
			ev, err = f.measurer.Evaluate(ctx, f.traceID, c.ID, iteration, baseline, best, suites, budget)
			return err
		})
		f.transition(ctx, StateReverting)

		switch {
		case errors.Is(err, patch.ErrRestore):
			return err
		case errors.Is(err, patch.ErrPatchApply):
			f.logger.Info("candidate could not be applied", "candidate", c.ID, "error", err)
			res.Verdict = measure.VerdictRejected
			res.Reason = "patch-failed"
			res.Detail = err.Error()
		case err != nil:
			f.logger.Warn("candidate evaluation failed", "candidate", c.ID, "error", err)
			res.Verdict = measure.VerdictRejected
			res.Reason = "error"
			res.Detail = err.Error()
		default:
			res.Verdict = ev.Verdict
			res.Reason = string(ev.Reason)
			res.Detail = ev.Detail
			res.RuntimeNS = ev.RuntimeNS
			res.EarlyExit = ev.EarlyExit
			res.Stats = measure.Summarize(ev.Samples)
			if ev.Ok() {
				f.logger.Info("candidate measured",
					"candidate", c.ID,
					"runtime", measure.HumanizeRuntime(ev.RuntimeNS),
					"measured_over_runs", ev.Trials,
				)
				if ev.RuntimeNS < best && selector.Speedup(baseline.RuntimeNS, ev.RuntimeNS) > f.r.cfg.MinGain {
					best = ev.RuntimeNS
				}
			}
		}

		recordCandidate(ctx, string(res.Verdict), res.Reason)
		f.out.PerCandidate = append(f.out.PerCandidate, res)
	}
	return nil
}

// releaseSlots clears the digest slots used by this function.
func (f *functionRun) releaseSlots() {
	for i := digest.ReferenceIteration; i <= f.lastIteration; i++ {
		slot := digest.Slot{OptimizationID: f.traceID, Iteration: i}
		if err := f.r.digests.Reset(slot); err != nil && !errors.Is(err, digest.ErrClosed) {
			f.logger.Warn("failed to release digest slot", "iteration", i, "error", err)
		}
	}
}

func usable(candidates []generate.Candidate) int {
	n := 0
	for _, c := range candidates {
		if c.Source != nil {
			n++
		}
	}
	return n
}

// sanitizeFilename replaces characters unsafe for filenames with underscores.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "_",
	)
	return replacer.Replace(name)
}
