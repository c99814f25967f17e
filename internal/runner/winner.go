package runner

import (
	"context"
	"fmt"

	"github.com/giantswarm/llm-optimizer/internal/generate"
	"github.com/giantswarm/llm-optimizer/internal/measure"
	"github.com/giantswarm/llm-optimizer/internal/selector"
)

// selectWinner fills in speedup and eligibility for every timed candidate
// and returns the winner's ID.
func (f *functionRun) selectWinner(baselineNS int64) (string, bool) {
	cands := make([]selector.Candidate, 0, len(f.out.PerCandidate))
	for _, res := range f.out.PerCandidate {
		if res.Skipped {
			continue
		}
		cands = append(cands, selector.Candidate{
			ID:        res.ID,
			Ok:        res.Verdict == measure.VerdictOk,
			RuntimeNS: res.RuntimeNS,
		})
	}

	sel := selector.Select(baselineNS, cands, f.r.cfg.MinGain)
	for i := range f.out.PerCandidate {
		if r, ok := sel.PerCandidate[f.out.PerCandidate[i].ID]; ok {
			f.out.PerCandidate[i].Speedup = r.Speedup
			f.out.PerCandidate[i].Eligible = r.Eligible
		}
	}

	w, ok := sel.Winner()
	if !ok {
		return "", false
	}
	f.logger.Info("selected winning candidate",
		"candidate", w.ID,
		"runtime", measure.HumanizeRuntime(w.RuntimeNS),
		"baseline", measure.HumanizeRuntime(baselineNS),
		"speedup", fmt.Sprintf("%.1f%%", w.Speedup*100),
	)
	f.out.WinnerRuntimeNS = w.RuntimeNS
	f.out.Speedup = w.Speedup
	return w.ID, true
}

// applyWinner re-applies the winner, records its diff and either keeps it
// or reverts it straight away depending on the configuration.
func (f *functionRun) applyWinner(ctx context.Context, candidates []generate.Candidate, winnerID string) error {
	var winner *generate.Candidate
	for i := range candidates {
		if candidates[i].ID == winnerID {
			winner = &candidates[i]
			break
		}
	}
	if winner == nil || winner.Source == nil {
		return fmt.Errorf("winning candidate %s has no source", winnerID)
	}

	targets := f.fn.Targets()
	paths := make([]string, 0, len(targets))
	for _, t := range targets {
		paths = append(paths, t.File)
	}

	if err := f.ws.Apply(f.r.patcher, targets, *winner.Source); err != nil {
		return err
	}
	diff, err := f.ws.DiffTouched(paths...)
	if err != nil {
		return err
	}

	applied := !f.r.cfg.RevertWinner()
	if applied {
		f.ws.Commit(paths...)
	} else if err := f.ws.Restore(paths...); err != nil {
		return err
	}

	f.out.Status = StatusAccepted
	f.out.Accepted = true
	f.out.Applied = applied
	f.out.WinnerID = winnerID
	f.out.Diff = diff
	f.out.Explanation = winner.Explanation

	if f.r.reporter != nil {
		w, _ := f.out.Winner()
		err := f.r.reporter.ReportWinner(ctx, w)
		if err != nil {
			f.logger.Error("failed to report winner", "candidate", winnerID, "error", err)
		}
	}
	return nil
}
