package main

import (
	"context"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newReconcileCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Refresh the cached list of open tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}

			var r *syncer.Reconciler
			opts := oneShotOptions(cfg, root.verbose, fx.Populate(&r))

			return runOnce(cmd.Context(), opts, func(ctx context.Context) error {
				res, err := r.Reconcile(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
