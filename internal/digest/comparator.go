package digest

import (
	"fmt"

	"github.com/giantswarm/llm-optimizer/internal/testresult"
)

// Comparator decides whether candidate outcomes are behaviorally
// equivalent to the reference outcomes.
type Comparator interface {
	// Equivalent reports whether candidate matches reference. When it does
	// not, the returned string names the first difference.
	Equivalent(reference, candidate *testresult.ResultSet) (bool, string)
}

// DigestComparator requires every reference outcome to be present in the
// candidate set with the same pass status and value digest.
type DigestComparator struct{}

func (DigestComparator) Equivalent(reference, candidate *testresult.ResultSet) (bool, string) {
	for _, want := range reference.Outcomes() {
		got, ok := candidate.GetByID(want.ID)
		if !ok {
			return false, fmt.Sprintf("test %s produced no result", want.ID)
		}
		if got.Passed != want.Passed {
			return false, fmt.Sprintf("test %s passed=%t, reference passed=%t", want.ID, got.Passed, want.Passed)
		}
		if got.ValueDigest != want.ValueDigest {
			return false, fmt.Sprintf("test %s returned different values", want.ID)
		}
	}
	return true, ""
}
