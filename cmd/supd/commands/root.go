// Package commands implements the CLI commands for the metrics service.
package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "supd",
		Short:         "Token voting-power and supply-distribution metrics API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command with the given context.
func Execute(ctx context.Context) error {
	rootCmd := newRootCmd()
	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}
