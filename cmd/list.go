package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/giantswarm/llm-optimizer/internal/job"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available jobs and their functions",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := jobsDir(cmd)
			names, err := job.List(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(out, "No jobs found.")
				return nil
			}

			_, _ = fmt.Fprintf(out, "Available jobs:\n\n")
			for _, name := range names {
				j, err := job.Load(name, dir)
				if err != nil {
					_, _ = fmt.Fprintf(out, "  - %s (error loading: %v)\n", name, err)
					continue
				}
				_, _ = fmt.Fprintf(out, "  - %s\n", j.Name)
				if j.Description != "" {
					_, _ = fmt.Fprintf(out, "    Description: %s\n", j.Description)
				}
				_, _ = fmt.Fprintf(out, "    Root: %s\n", j.Root)
				_, _ = fmt.Fprintf(out, "    Functions:\n")
				for _, fn := range j.Functions {
					_, _ = fmt.Fprintf(out, "      %s  %s (%s)\n", fn.ID, fn.File, strings.Join(fn.Names, ", "))
				}
				_, _ = fmt.Fprintln(out)
			}
			return nil
		},
	}
	return cmd
}
