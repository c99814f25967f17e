// Package measure runs timed test trials for the original code and for
// candidate implementations and turns them into runtime verdicts.
package measure

import (
	"fmt"
	"time"

	"github.com/giantswarm/llm-optimizer/internal/executor"
	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

// EarlyExitFactor stops a candidate's trials once its best runtime exceeds
// this multiple of the best runtime seen so far.
const EarlyExitFactor = 3

// Budget bounds the trials spent on one phase.
type Budget struct {
	MaxTrials              int
	MaxCumulativeRuntimeNS int64
	MaxWallPerFunction     time.Duration
}

// Suites are the test suites run in every trial.
type Suites struct {
	Existing  []executor.Suite
	Generated *executor.Suite
}

// Reason explains a failed measurement or a rejected candidate.
type Reason string

const (
	ReasonNoSignal        Reason = "no-signal"
	ReasonUnmeasurable    Reason = "unmeasurable"
	ReasonBehaviorChanged Reason = "behavior-changed"
)

// MeasurementFailure means the original code could not be measured, so
// the function is abandoned.
type MeasurementFailure struct {
	Reason Reason
	Trials int
}

func (e *MeasurementFailure) Error() string {
	return fmt.Sprintf("baseline measurement failed after %d trials: %s", e.Trials, e.Reason)
}

// Baseline is the measured reference for one function.
type Baseline struct {
	RuntimeNS int64
	Reference *testresult.ResultSet
	Trials    int
	Samples   []int64
}

// Verdict is the evaluation outcome for one candidate.
type Verdict string

const (
	VerdictOk       Verdict = "ok"
	VerdictRejected Verdict = "rejected"
)

// Evaluation is the result of evaluating one candidate.
type Evaluation struct {
	CandidateID string  `json:"candidate_id"`
	Verdict     Verdict `json:"verdict"`
	Reason      Reason  `json:"reason,omitempty"`
	Detail      string  `json:"detail,omitempty"`
	RuntimeNS   int64   `json:"runtime_ns,omitempty"`
	Trials      int     `json:"trials"`
	Samples     []int64 `json:"samples,omitempty"`
	EarlyExit   bool    `json:"early_exit,omitempty"`
}

// Ok reports whether the candidate passed the correctness gate and was timed.
func (e *Evaluation) Ok() bool {
	return e != nil && e.Verdict == VerdictOk
}

func rejected(candidateID string, reason Reason, detail string, trials int) *Evaluation {
	return &Evaluation{
		CandidateID: candidateID,
		Verdict:     VerdictRejected,
		Reason:      reason,
		Detail:      detail,
		Trials:      trials,
	}
}
