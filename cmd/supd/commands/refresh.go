package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d10r/sup-metrics-api/app"
)

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [scores|distribution|all]",
		Short: "Compute and persist metrics once, then exit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			target := "all"
			if len(args) == 1 {
				target = args[0]
			}

			a, err := app.Initialize(ctx)
			if err != nil {
				return err
			}

			switch target {
			case "scores":
				a.Scores.Refresh(ctx)
			case "distribution":
				a.Distribution.Refresh(ctx)
			case "all":
				a.Scores.Refresh(ctx)
				a.Distribution.Refresh(ctx)
			default:
				return fmt.Errorf("unknown metric %q", target)
			}
			return nil
		},
	}
}
