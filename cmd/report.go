package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/giantswarm/llm-optimizer/internal/report"
	"github.com/giantswarm/llm-optimizer/internal/runner"
)

func newReportCmd() *cobra.Command {
	var (
		latest bool
		noDiff bool
	)

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Show the outcomes of past runs",
		Long: `Without arguments, list the stored runs, newest first. With a run ID
(or --latest), render the outcome and measurement tables of that run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			ids, err := runner.ListRuns(cfg.OutputDir)
			if err != nil {
				return err
			}

			var runID string
			switch {
			case len(args) == 1:
				runID = args[0]
			case latest:
				if len(ids) == 0 {
					return fmt.Errorf("no runs found in %s", cfg.OutputDir)
				}
				runID = ids[0]
			}

			if runID == "" {
				if len(ids) == 0 {
					_, _ = fmt.Fprintln(out, "No runs found.")
					return nil
				}
				for _, id := range ids {
					run, err := runner.LoadRun(cfg.OutputDir, id)
					if err != nil {
						_, _ = fmt.Fprintf(out, "  - %s (error loading: %v)\n", id, err)
						continue
					}
					accepted := 0
					for _, o := range run.Outcomes {
						if o.Accepted {
							accepted++
						}
					}
					_, _ = fmt.Fprintf(out, "  - %s  %s  %d/%d accepted\n",
						run.ID, humanize.Time(run.Timestamp), accepted, len(run.Outcomes))
				}
				return nil
			}

			run, err := runner.LoadRun(cfg.OutputDir, runID)
			if err != nil {
				return err
			}
			console := report.NewConsoleReporter(out)
			console.ShowDiff = !noDiff

			for _, o := range run.Outcomes {
				if w, ok := o.Winner(); ok {
					if err := console.ReportWinner(cmd.Context(), w); err != nil {
						return err
					}
				}
			}
			if err := console.RenderRun(run); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "\nStarted %s\n", humanize.Time(run.Timestamp))
			return nil
		},
	}

	cmd.Flags().String("output-dir", "results", "Directory for run outcomes")
	cmd.Flags().BoolVar(&latest, "latest", false, "Render the most recent run")
	cmd.Flags().BoolVar(&noDiff, "no-diff", false, "Do not print diffs")

	return cmd
}
