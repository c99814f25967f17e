package measure

import (
	"math"
	"slices"

	"github.com/dustin/go-humanize"
)

// Summary describes the valid samples of one phase. Decisions use MinNS
// only; the rest is diagnostic.
type Summary struct {
	Trials   int     `json:"trials"`
	MinNS    int64   `json:"min_ns"`
	MaxNS    int64   `json:"max_ns"`
	MeanNS   float64 `json:"mean_ns"`
	StdDevNS float64 `json:"stddev_ns"`
}

// Summarize computes summary statistics over samples.
func Summarize(samples []int64) Summary {
	if len(samples) == 0 {
		return Summary{}
	}
	s := Summary{
		Trials: len(samples),
		MinNS:  slices.Min(samples),
		MaxNS:  slices.Max(samples),
	}

	var sum float64
	for _, v := range samples {
		sum += float64(v)
	}
	s.MeanNS = sum / float64(len(samples))

	var sq float64
	for _, v := range samples {
		d := float64(v) - s.MeanNS
		sq += d * d
	}
	s.StdDevNS = math.Sqrt(sq / float64(len(samples)))
	return s
}

// HumanizeRuntime renders a nanosecond runtime with an SI prefix, e.g. "1.5 ms".
func HumanizeRuntime(ns int64) string {
	return humanize.SIWithDigits(float64(ns)/1e9, 2, "s")
}
