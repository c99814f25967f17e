package runner

import (
	"time"

	"github.com/giantswarm/llm-optimizer/internal/measure"
)

// Status is the user-visible result of optimizing one function.
type Status string

const (
	StatusAccepted              Status = "accepted"
	StatusRejectedAllCandidates Status = "rejected-all-candidates"
	StatusAbortedNoBaseline     Status = "aborted-no-baseline"
	StatusSkipped               Status = "skipped"
	StatusError                 Status = "error"
)

// State is a step of the per-function state machine.
type State string

const (
	StateIdle           State = "idle"
	StatePreparing      State = "preparing"
	StateBaseline       State = "baseline"
	StatePatching       State = "patching"
	StateEvaluating     State = "evaluating"
	StateReverting      State = "reverting"
	StateSelecting      State = "selecting"
	StateApplyingWinner State = "applying-winner"
	StateNoWinner       State = "no-winner"
	StateDone           State = "done"
)

// CandidateResult records how one candidate fared.
type CandidateResult struct {
	ID          string          `json:"id"`
	Skipped     bool            `json:"skipped,omitempty"`
	Verdict     measure.Verdict `json:"verdict,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Detail      string          `json:"detail,omitempty"`
	RuntimeNS   int64           `json:"runtime_ns,omitempty"`
	Speedup     float64         `json:"speedup,omitempty"`
	Eligible    bool            `json:"eligible"`
	EarlyExit   bool            `json:"early_exit,omitempty"`
	Stats       measure.Summary `json:"stats"`
	Explanation string          `json:"explanation,omitempty"`
}

// Outcome is the result of optimizing one function.
type Outcome struct {
	FunctionID string `json:"function_id"`
	TraceID    string `json:"trace_id"`
	Status     Status `json:"status"`
	// Accepted is true when a winner was selected.
	Accepted bool `json:"accepted"`
	// Applied is true when the winner was left in the source tree.
	Applied           bool              `json:"applied"`
	WinnerID          string            `json:"winner_id,omitempty"`
	BaselineRuntimeNS int64             `json:"baseline_runtime_ns,omitempty"`
	WinnerRuntimeNS   int64             `json:"winner_runtime_ns,omitempty"`
	Speedup           float64           `json:"speedup,omitempty"`
	BaselineStats     measure.Summary   `json:"baseline_stats"`
	ReferenceReport   string            `json:"reference_report,omitempty"`
	PerCandidate      []CandidateResult `json:"per_candidate,omitempty"`
	Diff              string            `json:"diff,omitempty"`
	Explanation       string            `json:"explanation,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	Duration          time.Duration     `json:"duration"`
}

// Run is the result of a whole job.
type Run struct {
	ID        string        `json:"id"`
	Job       string        `json:"job"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Cancelled bool          `json:"cancelled,omitempty"`
	Outcomes  []*Outcome    `json:"outcomes"`
	OutputDir string        `json:"-"`
}

// Winner is handed to the Reporter when a candidate is accepted.
type Winner struct {
	FunctionID        string
	TraceID           string
	CandidateID       string
	Explanation       string
	Diff              string
	BaselineRuntimeNS int64
	RuntimeNS         int64
	Speedup           float64
	ReferenceReport   string
	Applied           bool
}

// Winner returns the accepted candidate of o in the form handed to a
// Reporter. It reports false when no candidate was accepted.
func (o *Outcome) Winner() (Winner, bool) {
	if o == nil || !o.Accepted {
		return Winner{}, false
	}
	return Winner{
		FunctionID:        o.FunctionID,
		TraceID:           o.TraceID,
		CandidateID:       o.WinnerID,
		Explanation:       o.Explanation,
		Diff:              o.Diff,
		BaselineRuntimeNS: o.BaselineRuntimeNS,
		RuntimeNS:         o.WinnerRuntimeNS,
		Speedup:           o.Speedup,
		ReferenceReport:   o.ReferenceReport,
		Applied:           o.Applied,
	}, true
}
