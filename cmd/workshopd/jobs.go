package main

import (
	"fmt"
	"strings"

	"github.com/preetsinghmakkar/workshops/internal/scheduler"
	"github.com/spf13/cobra"
)

func newJobsCmd() *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "Run scheduler jobs by hand",
	}
	jobs.AddCommand(&cobra.Command{
		Use:       "run <reminders|no-show|series>",
		Short:     "Run one scheduler job once and print its report",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"reminders", "no-show", "series"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			job, ok := a.Job(args[0])
			if !ok {
				return fmt.Errorf("unknown job %q (want one of %s)", args[0], strings.Join(a.JobNames(), ", "))
			}
			report, err := scheduler.RunOnce(cmd.Context(), job, log)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatReport(report))
			return nil
		},
	})
	return jobs
}

func formatReport(r scheduler.Report) string {
	return fmt.Sprintf("%s: processed=%d sent=%d created=%d cancelled=%d failed=%d",
		r.Job, r.Processed, r.Sent, r.Created, r.Cancelled, r.Failed)
}
