package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/otter/internal/cli"
	"github.com/cloo-solutions/otter/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "otterd",
		Short:         "Otter ingestion and retrieval service",
		Long:          "otterd ingests documents into a vector store and answers nearest-chunk queries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(
		admin.ServeCmd(),
		admin.WorkerCmd(),
		admin.MigrateCmd(),
		admin.IngestCmd(),
		admin.QueryCmd(),
		admin.JobCmd(),
	)

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}

	if err := cli.Execute(context.Background(), rootCmd, args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
