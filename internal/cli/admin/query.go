package admin

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/otter/internal/service"
)

const previewLen = 80

// QueryCmd runs a retrieval query and prints the nearest chunks.
func QueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Retrieve the chunks nearest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			principal, _ := cmd.Flags().GetString("principal")
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := newApp(ctx, appOptions{needsProvider: true})
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.retrieval.Search(ctx, service.SearchInput{
				Text:        strings.Join(args, " "),
				PrincipalID: principal,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "query %s\n\n", out.QueryID)
			fmt.Fprintln(w, "RANK\tDISTANCE\tCHUNK\tTEXT")
			for i, c := range out.Results {
				fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", i+1, c.Score, c.ChunkID, preview(c.Text))
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("principal", defaultCLIPrincipal, "Principal recorded on the query")
	cmd.Flags().IntP("limit", "n", service.DefaultRetrievalLimit, "Maximum number of chunks")
	return cmd
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if r := []rune(text); len(r) > previewLen {
		return string(r[:previewLen-1]) + "…"
	}
	return text
}
