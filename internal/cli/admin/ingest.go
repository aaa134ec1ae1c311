package admin

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/otter/internal/service"
)

const defaultCLIPrincipal = "cli"

// IngestCmd uploads a local file and, with --wait, runs its job in-process.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Queue a local file for ingestion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			principal, _ := cmd.Flags().GetString("principal")
			wait, _ := cmd.Flags().GetBool("wait")
			mediaType, _ := cmd.Flags().GetString("media-type")

			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			if mediaType == "" {
				mediaType = http.DetectContentType(content)
			}

			a, err := newApp(ctx, appOptions{needsProvider: wait})
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.sources.Upload(ctx, service.UploadInput{
				PrincipalID: principal,
				FileName:    filepath.Base(args[0]),
				MediaType:   mediaType,
				Content:     content,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "source %s\njob    %s (%s)\n", out.Source.ID, out.Job.ID, out.Job.Status)
			if !wait {
				return nil
			}

			result, err := a.ingestion.ProcessJob(ctx, out.Job.ID)
			if err != nil {
				return fmt.Errorf("job %s failed: %w", out.Job.ID, err)
			}
			fmt.Fprintf(w, "item   %s (%d chunks, %d tokens)\n",
				result.Item.ID, result.Item.ChunksCount, result.Item.TotalTokens)
			return nil
		},
	}

	cmd.Flags().String("principal", defaultCLIPrincipal, "Principal recorded as the source owner")
	cmd.Flags().String("media-type", "", "Media type of the file (sniffed when empty)")
	cmd.Flags().Bool("wait", false, "Process the job now instead of leaving it for a worker")
	return cmd
}
