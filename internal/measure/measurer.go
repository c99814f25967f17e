package measure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/giantswarm/llm-optimizer/internal/digest"
	"github.com/giantswarm/llm-optimizer/internal/executor"
	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

// Measurer runs trials through a TestExecutor. It is not safe for
// concurrent use: trials share the digest channel and the source tree.
type Measurer struct {
	exec       executor.TestExecutor
	digests    *digest.Channel
	comparator digest.Comparator
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Measurer.
type Option func(*Measurer)

// WithComparator replaces the default digest comparator.
func WithComparator(c digest.Comparator) Option {
	return func(m *Measurer) { m.comparator = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Measurer) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the wall clock used for the per-function budget.
func WithClock(now func() time.Time) Option {
	return func(m *Measurer) { m.now = now }
}

// NewMeasurer creates a Measurer.
func NewMeasurer(exec executor.TestExecutor, digests *digest.Channel, opts ...Option) *Measurer {
	m := &Measurer{
		exec:       exec,
		digests:    digests,
		comparator: digest.DigestComparator{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type trial struct {
	results   *testresult.ResultSet
	runtimeNS int64
	timedOut  bool
}

// accumulator keeps the minimum over valid trials.
type accumulator struct {
	best       *trial
	samples    []int64
	cumulative int64
	trials     int
	executed   bool
	start      time.Time
}

func (a *accumulator) add(t *trial) {
	a.samples = append(a.samples, t.runtimeNS)
	a.cumulative += t.runtimeNS
	if a.best == nil || t.runtimeNS < a.best.runtimeNS {
		a.best = t
	}
}

func (a *accumulator) exhausted(b Budget, now time.Time) bool {
	if a.trials >= max(b.MaxTrials, 1) {
		return true
	}
	if a.trials == 0 {
		return false
	}
	if b.MaxCumulativeRuntimeNS > 0 && a.cumulative >= b.MaxCumulativeRuntimeNS {
		return true
	}
	return b.MaxWallPerFunction > 0 && now.Sub(a.start) > b.MaxWallPerFunction
}

// Baseline measures the original code. The runtime is the minimum over
// valid trials and the reference results are those of that trial. The
// reference generated outcomes are published to the reference slot.
func (m *Measurer) Baseline(ctx context.Context, optimizationID string, suites Suites, budget Budget) (*Baseline, error) {
	slot := digest.Slot{OptimizationID: optimizationID, Iteration: digest.ReferenceIteration}
	acc := &accumulator{start: m.now()}

	for !acc.exhausted(budget, m.now()) {
		t, err := m.runTrial(ctx, suites, slot)
		if err != nil {
			return nil, err
		}
		acc.trials++

		if acc.trials == 1 && !t.timedOut {
			m.logReport("original code", t.results)
		}
		if t.timedOut {
			m.logger.Warn("baseline trial timed out", "optimization_id", optimizationID, "trial", acc.trials)
			continue
		}
		if t.results.Len() == 0 {
			return nil, &MeasurementFailure{Reason: ReasonNoSignal, Trials: acc.trials}
		}
		acc.executed = true
		if t.runtimeNS == 0 {
			m.logger.Warn("baseline trial reported zero runtime", "optimization_id", optimizationID, "trial", acc.trials)
			continue
		}
		acc.add(t)
	}

	if acc.best == nil {
		reason := ReasonUnmeasurable
		if !acc.executed {
			reason = ReasonNoSignal
		}
		return nil, &MeasurementFailure{Reason: reason, Trials: acc.trials}
	}

	if err := m.digests.Reset(slot); err != nil {
		return nil, fmt.Errorf("failed to reset reference slot: %w", err)
	}
	if err := m.digests.Publish(slot, acc.best.results.FilterByType(testresult.TypeGeneratedRegression)); err != nil {
		return nil, fmt.Errorf("failed to publish reference digests: %w", err)
	}

	m.logger.Info("original code measured",
		"optimization_id", optimizationID,
		"runtime", HumanizeRuntime(acc.best.runtimeNS),
		"valid_trials", len(acc.samples),
		"trials", acc.trials,
	)

	return &Baseline{
		RuntimeNS: acc.best.runtimeNS,
		Reference: acc.best.results,
		Trials:    acc.trials,
		Samples:   acc.samples,
	}, nil
}

// Evaluate measures a candidate that the caller has already patched into
// the tree. Correctness is checked on the first completed trial only;
// later trials refine the runtime. Trials stop early once the candidate's
// best runtime exceeds EarlyExitFactor times bestRuntimeNS.
func (m *Measurer) Evaluate(ctx context.Context, optimizationID, candidateID string, iteration int, baseline *Baseline, bestRuntimeNS int64, suites Suites, budget Budget) (*Evaluation, error) {
	if iteration == digest.ReferenceIteration {
		return nil, fmt.Errorf("iteration %d is reserved for the original code", iteration)
	}
	slot := digest.Slot{OptimizationID: optimizationID, Iteration: iteration}
	acc := &accumulator{start: m.now()}
	gated := false
	earlyExit := false

	for !acc.exhausted(budget, m.now()) {
		var (
			t   *trial
			err error
		)
		if !gated {
			var detail string
			t, detail, err = m.gateTrial(ctx, suites, slot, baseline)
			if err != nil {
				return nil, err
			}
			acc.trials++
			if detail != "" {
				m.logger.Info("candidate changed behavior", "candidate", candidateID, "detail", detail)
				return rejected(candidateID, ReasonBehaviorChanged, detail, acc.trials), nil
			}
			gated = !t.timedOut
		} else {
			t, err = m.runTrial(ctx, suites, slot)
			if err != nil {
				return nil, err
			}
			acc.trials++
		}

		if t.timedOut {
			m.logger.Warn("candidate trial timed out", "candidate", candidateID, "trial", acc.trials)
			continue
		}
		if t.results.Len() == 0 {
			return rejected(candidateID, ReasonNoSignal, "no tests executed", acc.trials), nil
		}
		acc.executed = true
		if t.runtimeNS == 0 {
			m.logger.Warn("candidate trial reported zero runtime", "candidate", candidateID, "trial", acc.trials)
			continue
		}
		acc.add(t)

		if bestRuntimeNS > 0 && acc.best.runtimeNS > EarlyExitFactor*bestRuntimeNS {
			earlyExit = true
			m.logger.Info("candidate much slower than best so far, stopping trials",
				"candidate", candidateID,
				"runtime", HumanizeRuntime(acc.best.runtimeNS),
				"best", HumanizeRuntime(bestRuntimeNS),
			)
			break
		}
	}

	if acc.best == nil {
		if !acc.executed {
			return rejected(candidateID, ReasonNoSignal, "no trial completed", acc.trials), nil
		}
		return rejected(candidateID, ReasonUnmeasurable, "every trial reported zero runtime", acc.trials), nil
	}

	m.logger.Info("candidate measured",
		"candidate", candidateID,
		"runtime", HumanizeRuntime(acc.best.runtimeNS),
		"valid_trials", len(acc.samples),
	)

	return &Evaluation{
		CandidateID: candidateID,
		Verdict:     VerdictOk,
		RuntimeNS:   acc.best.runtimeNS,
		Trials:      acc.trials,
		Samples:     acc.samples,
		EarlyExit:   earlyExit,
	}, nil
}

// gateTrial runs the first trial of a candidate. Existing suites are run
// and checked first; the generated suite only runs when they match. A
// non-empty detail means the candidate changed behavior.
func (m *Measurer) gateTrial(ctx context.Context, suites Suites, slot digest.Slot, baseline *Baseline) (*trial, string, error) {
	if err := m.digests.Reset(slot); err != nil {
		return nil, "", fmt.Errorf("failed to reset digest slot: %w", err)
	}

	existing, timedOut, err := m.runSuites(ctx, suites.Existing, testresult.TypeExistingUnitTest, slot.Iteration)
	if err != nil || timedOut {
		return &trial{timedOut: timedOut}, "", err
	}
	m.logReport("candidate existing tests", existing)

	for _, o := range existing.Outcomes() {
		ref, ok := baseline.Reference.GetByID(o.ID)
		if !ok {
			return nil, fmt.Sprintf("test %s has no result for the original code", o.ID), nil
		}
		if ref.Passed != o.Passed {
			return nil, fmt.Sprintf("test %s passed=%t, original passed=%t", o.ID, o.Passed, ref.Passed), nil
		}
	}

	results := testresult.New()
	results.Merge(existing)

	if suites.Generated != nil {
		generated, timedOut, err := m.runSuites(ctx, []executor.Suite{*suites.Generated}, testresult.TypeGeneratedRegression, slot.Iteration)
		if err != nil || timedOut {
			return &trial{timedOut: timedOut}, "", err
		}
		m.logReport("candidate generated tests", generated)
		if err := m.digests.Publish(slot, generated); err != nil {
			return nil, "", fmt.Errorf("failed to publish digests: %w", err)
		}

		reference, err := m.digests.Get(digest.Slot{OptimizationID: slot.OptimizationID, Iteration: digest.ReferenceIteration})
		if err != nil {
			return nil, "", fmt.Errorf("failed to read reference digests: %w", err)
		}
		candidate, err := m.digests.Get(slot)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read candidate digests: %w", err)
		}
		if ok, detail := m.comparator.Equivalent(reference, candidate); !ok {
			return nil, detail, nil
		}
		results.Merge(generated)
	}

	return &trial{results: results, runtimeNS: results.TotalPassedRuntime()}, "", nil
}

// runTrial runs every suite once and publishes the generated outcomes to slot.
func (m *Measurer) runTrial(ctx context.Context, suites Suites, slot digest.Slot) (*trial, error) {
	if err := m.digests.Reset(slot); err != nil {
		return nil, fmt.Errorf("failed to reset digest slot: %w", err)
	}

	results, timedOut, err := m.runSuites(ctx, suites.Existing, testresult.TypeExistingUnitTest, slot.Iteration)
	if err != nil || timedOut {
		return &trial{timedOut: timedOut}, err
	}

	if suites.Generated != nil {
		generated, timedOut, err := m.runSuites(ctx, []executor.Suite{*suites.Generated}, testresult.TypeGeneratedRegression, slot.Iteration)
		if err != nil || timedOut {
			return &trial{timedOut: timedOut}, err
		}
		if err := m.digests.Publish(slot, generated); err != nil {
			return nil, fmt.Errorf("failed to publish digests: %w", err)
		}
		results.Merge(generated)
	}

	return &trial{results: results, runtimeNS: results.TotalPassedRuntime()}, nil
}

// runSuites executes suites in order. Trials are not interrupted by run
// cancellation; only the executor's per-trial timeout bounds them.
func (m *Measurer) runSuites(ctx context.Context, suites []executor.Suite, testType testresult.TestType, iteration int) (*testresult.ResultSet, bool, error) {
	trialCtx := context.WithoutCancel(ctx)
	results := testresult.New()

	for _, s := range suites {
		out, err := m.exec.Execute(trialCtx, s, iteration, nil)
		if errors.Is(err, executor.ErrTimeout) {
			return nil, true, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to execute suite %s: %w", s.ID, err)
		}
		if out.Truncated {
			m.logger.Debug("suite output truncated", "suite", s.ID)
		}

		parser, err := testresult.GetParser(s.Parser)
		if err != nil {
			return nil, false, err
		}
		rs, err := parser.Parse(out, testType)
		if err != nil {
			return nil, false, fmt.Errorf("failed to parse results of suite %s: %w", s.ID, err)
		}
		results.Merge(rs)
	}
	return results, false, nil
}

func (m *Measurer) logReport(label string, rs *testresult.ResultSet) {
	attrs := []any{"label", label, "total", rs.PassFailReport().String()}
	for typ, r := range rs.PassFailReportByType() {
		attrs = append(attrs, string(typ), r.String())
	}
	m.logger.Info("test results", attrs...)
}
