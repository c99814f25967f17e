package measure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]int64{50, 10, 80, 30})
	assert.Equal(t, 4, s.Trials)
	assert.Equal(t, int64(10), s.MinNS)
	assert.Equal(t, int64(80), s.MaxNS)
	assert.InDelta(t, 42.5, s.MeanNS, 1e-9)
	assert.InDelta(t, 25.86, s.StdDevNS, 0.01)
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestHumanizeRuntime(t *testing.T) {
	assert.Equal(t, "1.5 ms", HumanizeRuntime(1_500_000))
	assert.Equal(t, "2 s", HumanizeRuntime(2_000_000_000))
}
