package commands

import (
	"github.com/spf13/cobra"

	"github.com/d10r/sup-metrics-api/app"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics API service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			a, err := app.Initialize(ctx)
			if err != nil {
				return err
			}

			a.Start(ctx)
			return nil
		},
	}
}
