package testresult

import (
	"fmt"
	"sort"
)

// ResultSet is an unordered collection of outcomes keyed by test ID.
// The zero value is not usable; create one with New.
type ResultSet struct {
	outcomes map[string]Outcome
}

// Report counts passed and failed outcomes.
type Report struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

func (r Report) String() string {
	return fmt.Sprintf("passed=%d failed=%d", r.Passed, r.Failed)
}

// New creates a ResultSet holding the given outcomes. Later outcomes
// replace earlier ones with the same ID.
func New(outcomes ...Outcome) *ResultSet {
	rs := &ResultSet{outcomes: make(map[string]Outcome, len(outcomes))}
	for _, o := range outcomes {
		rs.Add(o)
	}
	return rs
}

// Add inserts o, replacing any outcome with the same ID.
func (rs *ResultSet) Add(o Outcome) {
	rs.outcomes[o.ID] = o
}

// Merge folds other into rs. On ID collision the outcome from other wins.
func (rs *ResultSet) Merge(other *ResultSet) {
	if other == nil {
		return
	}
	for id, o := range other.outcomes {
		rs.outcomes[id] = o
	}
}

// Len returns the number of distinct test IDs.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.outcomes)
}

// GetByID looks up the outcome recorded for id.
func (rs *ResultSet) GetByID(id string) (Outcome, bool) {
	if rs == nil {
		return Outcome{}, false
	}
	o, ok := rs.outcomes[id]
	return o, ok
}

// TotalPassedRuntime sums the runtime of passed outcomes that carry a
// runtime. Negative samples count as zero.
func (rs *ResultSet) TotalPassedRuntime() int64 {
	if rs == nil {
		return 0
	}
	var total int64
	for _, o := range rs.outcomes {
		if !o.Passed || o.RuntimeNS == nil {
			continue
		}
		if *o.RuntimeNS > 0 {
			total += *o.RuntimeNS
		}
	}
	return total
}

// Outcomes returns all outcomes sorted by ID.
func (rs *ResultSet) Outcomes() []Outcome {
	if rs == nil {
		return nil
	}
	out := make([]Outcome, 0, len(rs.outcomes))
	for _, o := range rs.outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FilterByType returns a new set with only the outcomes of type t.
func (rs *ResultSet) FilterByType(t TestType) *ResultSet {
	filtered := New()
	if rs == nil {
		return filtered
	}
	for _, o := range rs.outcomes {
		if o.Type == t {
			filtered.Add(o)
		}
	}
	return filtered
}

// PassFailReport counts passed and failed outcomes.
func (rs *ResultSet) PassFailReport() Report {
	var r Report
	if rs == nil {
		return r
	}
	for _, o := range rs.outcomes {
		if o.Passed {
			r.Passed++
		} else {
			r.Failed++
		}
	}
	return r
}

// PassFailReportByType counts passed and failed outcomes per test type.
func (rs *ResultSet) PassFailReportByType() map[TestType]Report {
	reports := make(map[TestType]Report)
	if rs == nil {
		return reports
	}
	for _, o := range rs.outcomes {
		r := reports[o.Type]
		if o.Passed {
			r.Passed++
		} else {
			r.Failed++
		}
		reports[o.Type] = r
	}
	return reports
}
