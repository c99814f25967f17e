package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/giantswarm/llm-optimizer/internal/generate"
	"github.com/giantswarm/llm-optimizer/internal/patch"
)

// prepare requests candidates and the regression test concurrently and
// writes the test into the tree.
func (f *functionRun) prepare(ctx context.Context) ([]generate.Candidate, error) {
	req, err := f.request()
	if err != nil {
		return nil, err
	}

	candSource := f.r.candidates
	if f.fn.CandidatesFile != "" {
		candSource = &generate.FileCandidateSource{Path: f.fn.CandidatesFile}
	}
	if candSource == nil {
		return nil, ErrNoCandidateSource
	}

	var synth generate.TestSynthesizer
	if gs := f.fn.GeneratedSuite; gs != nil {
		synth = f.r.synth
		if gs.Source != "" {
			synth = &generate.FileTestSynthesizer{Path: gs.Source}
		}
		if synth == nil {
			return nil, ErrNoTestSynthesizer
		}
	}

	var (
		candidates []generate.Candidate
		suite      *generate.GeneratedSuite
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := candSource.Candidates(gctx, req)
		if err != nil {
			return fmt.Errorf("failed to get candidates: %w", err)
		}
		candidates = c
		return nil
	})
	if synth != nil {
		g.Go(func() error {
			s, err := synth.Synthesize(gctx, req)
			if err != nil {
				return fmt.Errorf("failed to synthesize tests: %w", err)
			}
			suite = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if suite != nil {
		if err := f.ws.Write(f.fn.GeneratedSuite.File, []byte(suite.Content)); err != nil {
			return nil, fmt.Errorf("failed to write generated tests: %w", err)
		}
	}

	f.logger.Info("function prepared", "candidates", len(candidates), "usable", usable(candidates), "generated_tests", suite != nil)
	return uniqueIDs(candidates), nil
}

func (f *functionRun) request() (generate.Request, error) {
	src, err := f.ws.Pristine(f.fn.File)
	if err != nil {
		return generate.Request{}, fmt.Errorf("failed to read %s: %w", f.fn.File, err)
	}

	pkg := f.fn.Package
	if pkg == "" {
		if pkg, err = patch.PackageName(src); err != nil {
			return generate.Request{}, fmt.Errorf("failed to read package of %s: %w", f.fn.File, err)
		}
	}

	deps := make(map[string]string, len(f.fn.Dependencies))
	for _, d := range f.fn.Dependencies {
		content, err := f.ws.Pristine(d.File)
		if err != nil {
			return generate.Request{}, fmt.Errorf("failed to read dependency %s: %w", d.File, err)
		}
		deps[d.File] = string(content)
	}

	return generate.Request{
		FunctionID:  f.fn.ID,
		Names:       f.fn.Names,
		File:        f.fn.File,
		PackageName: pkg,
		Source:      string(src),
		Context:     deps,
		Count:       f.r.cfg.NumCandidates,
	}, nil
}

// uniqueIDs suffixes repeated candidate IDs with their position.
func uniqueIDs(candidates []generate.Candidate) []generate.Candidate {
	seen := make(map[string]bool, len(candidates))
	for i := range candidates {
		if seen[candidates[i].ID] {
			candidates[i].ID = fmt.Sprintf("%s-%d", candidates[i].ID, i+1)
		}
		seen[candidates[i].ID] = true
	}
	return candidates
}
