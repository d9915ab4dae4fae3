package main

import (
	"context"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the persisted sync state",
		Long: `Print the persisted sync state as JSON.

isRunning and hasScheduledTimer describe this process only and are always
false here; query GET /api/v1/sync/status on a running server for its view.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}

			var sched *syncer.Scheduler
			opts := oneShotOptions(cfg, root.verbose, fx.Populate(&sched))

			return runOnce(cmd.Context(), opts, func(ctx context.Context) error {
				st, err := sched.Status(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}
}
