package admin

import (
	"fmt"

	"github.com/spf13/cobra"
)

// JobCmd groups job administration commands.
func JobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Inspect and manage ingestion jobs",
	}
	cmd.AddCommand(jobGetCmd(), jobRequeueCmd())
	return cmd
}

func jobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.ingestion.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id:      %s\nstatus:  %s\nsource:  %s\nupdated: %s\n",
				job.ID, job.Status, job.SourceID, job.UpdatedAt.Format("2006-01-02 15:04:05"))
			if job.Source != nil {
				fmt.Fprintf(w, "file:    %s (%s)\n", job.Source.FileName, job.Source.MediaType)
			}
			if job.Error != "" {
				fmt.Fprintf(w, "error:   %s\n", job.Error)
			}
			return nil
		},
	}
}

func jobRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <id>",
		Short: "Move a failed or abandoned job back to queued",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), appOptions{})
			if err != nil {
				return err
			}
			defer a.Close()

			job, err := a.ingestion.Requeue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "job %s is %s\n", job.ID, job.Status)
			return nil
		},
	}
}
