package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/llm-optimizer/internal/config"
	"github.com/giantswarm/llm-optimizer/internal/digest"
	"github.com/giantswarm/llm-optimizer/internal/generate"
	"github.com/giantswarm/llm-optimizer/internal/job"
	"github.com/giantswarm/llm-optimizer/internal/report"
	"github.com/giantswarm/llm-optimizer/internal/runner"
)

func newRunCmd() *cobra.Command {
	var (
		timeout time.Duration
		noDiff  bool
	)

	cmd := &cobra.Command{
		Use:   "run <job> [function...]",
		Short: "Optimize the functions of a job",
		Long: `Measure the original code of every function in the job, evaluate the
candidate rewrites and keep the fastest one that preserves behavior.

The job is a path to a job file or directory, or a name under --jobs-dir.
Function IDs limit the run to those functions. Interrupting the run stops
after the function in progress; the source tree is always restored.

Outcomes are written to the output directory as one JSON file per function
plus a run summary.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				if errors.Is(err, config.ErrRevertWinnerUnset) {
					return fmt.Errorf("%w: pass --revert-winner=true|false or set it in the config file", err)
				}
				return fmt.Errorf("invalid configuration: %w", err)
			}

			dir := jobsDir(cmd)
			j, err := job.Load(args[0], dir)
			if err != nil {
				return fmt.Errorf("failed to load job: %w", err)
			}
			if j, err = j.Select(args[1:]...); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			digests, err := digest.Open(digest.Config{Dir: cfg.DigestDir, Logger: slog.Default()})
			if err != nil {
				return err
			}
			defer func() { _ = digests.Close() }()

			out := cmd.OutOrStdout()
			console := report.NewConsoleReporter(out)
			console.ShowDiff = !noDiff

			client := newLLMClient(cfg.LLM)
			r, err := runner.NewRunner(cfg, digests,
				runner.WithCandidateSource(generate.NewLLMCandidateSource(client, cfg.LLM.Model, cfg.LLM.Temperature)),
				runner.WithTestSynthesizer(generate.NewLLMTestSynthesizer(client, cfg.LLM.Model, cfg.LLM.Temperature)),
				runner.WithReporter(console),
				runner.WithProgressFunc(func(functionID string, state runner.State) {
					_, _ = fmt.Fprintf(out, "  [%s] %s\n", functionID, state)
				}),
			)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "Job: %s\n", j.Name)
			if j.Description != "" {
				_, _ = fmt.Fprintf(out, "Description: %s\n", j.Description)
			}
			_, _ = fmt.Fprintf(out, "Functions: %d\n\n", len(j.Functions))

			run, err := r.Run(ctx, j)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(out)
			if err := console.RenderRun(run); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "\nRun ID: %s\n", run.ID)
			_, _ = fmt.Fprintf(out, "Duration: %s\n", run.Duration)
			_, _ = fmt.Fprintf(out, "Outcomes: %s\n", run.OutputDir)
			if run.Cancelled {
				_, _ = fmt.Fprintln(out, "Run was interrupted; remaining functions were not processed.")
			}

			slog.Info("optimization run complete", "run_id", run.ID)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.String("output-dir", "results", "Directory for run outcomes")
	fs.String("digest-dir", "", "Directory for the digest store (in-memory if empty)")
	fs.String("parser", "jsonl", "Default result parser: jsonl, gotest or junit")
	fs.Float64("min-gain", 0.05, "Minimum fractional speedup a candidate must exceed")
	fs.Int("max-trials", 50, "Maximum timing trials per phase")
	fs.Int("num-candidates", 10, "Number of candidates to request per function")
	fs.Duration("per-trial-timeout", 15*time.Second, "Timeout for a single test run")
	fs.Duration("max-wall", 60*time.Second, "Wall-clock budget for the trials of one phase")
	fs.Bool("revert-winner", false, "Revert the winning rewrite after reporting it (required unless set in the config file)")
	addLLMFlags(fs)
	fs.DurationVar(&timeout, "timeout", 0, "Overall timeout for the run (e.g. 30m, 1h). 0 means no timeout")
	fs.BoolVar(&noDiff, "no-diff", false, "Do not print the winner's diff")

	return cmd
}
