// Package selector picks the winning candidate from measured runtimes.
package selector

import "sort"

// Candidate is the evaluation summary the selector works from.
type Candidate struct {
	ID        string
	Ok        bool
	RuntimeNS int64
}

// Result is the per-candidate selection detail.
type Result struct {
	ID        string  `json:"id"`
	Ok        bool    `json:"ok"`
	RuntimeNS int64   `json:"runtime_ns,omitempty"`
	Speedup   float64 `json:"speedup"`
	Eligible  bool    `json:"eligible"`
}

// Selection is the outcome of Select. WinnerID is empty when no candidate
// is eligible.
type Selection struct {
	WinnerID     string            `json:"winner_id,omitempty"`
	PerCandidate map[string]Result `json:"per_candidate"`
}

// Winner returns the winning candidate's result.
func (s Selection) Winner() (Result, bool) {
	if s.WinnerID == "" {
		return Result{}, false
	}
	r, ok := s.PerCandidate[s.WinnerID]
	return r, ok
}

// Speedup is the relative gain of a candidate over the baseline, measured
// against the candidate's own runtime: (baseline - candidate) / candidate.
func Speedup(baselineNS, candidateNS int64) float64 {
	if candidateNS <= 0 {
		return 0
	}
	return float64(baselineNS-candidateNS) / float64(candidateNS)
}

// Select returns the eligible candidate with the lowest runtime. A
// candidate is eligible when it passed evaluation, its speedup exceeds
// minGain and it beats the baseline. Candidates are scanned in
// (runtime, ID) order rather than evaluation order, keeping the first
// strict improvement over the running best. That pre-sort is what makes
// the result independent of candidate order: runtime ties go to the
// smallest ID.
func Select(baselineNS int64, candidates []Candidate, minGain float64) Selection {
	sel := Selection{PerCandidate: make(map[string]Result, len(candidates))}

	ordered := append([]Candidate(nil), candidates...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].RuntimeNS != ordered[j].RuntimeNS {
			return ordered[i].RuntimeNS < ordered[j].RuntimeNS
		}
		return ordered[i].ID < ordered[j].ID
	})

	best := baselineNS
	for _, c := range ordered {
		r := Result{ID: c.ID, Ok: c.Ok}
		if c.Ok && c.RuntimeNS > 0 {
			r.RuntimeNS = c.RuntimeNS
			r.Speedup = Speedup(baselineNS, c.RuntimeNS)
			r.Eligible = r.Speedup > minGain && c.RuntimeNS < baselineNS
			if r.Eligible && c.RuntimeNS < best {
				best = c.RuntimeNS
				sel.WinnerID = c.ID
			}
		}
		sel.PerCandidate[c.ID] = r
	}
	return sel
}
