package main

import (
	"context"
	"errors"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newConfigureCmd(root *rootOptions) *cobra.Command {
	var (
		enabled    bool
		intervalMs int64
		baseline   string
	)

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Change the persisted sync settings",
		Long: `Change the persisted sync settings. Only flags that are given are applied.

A running server picks the new settings up on its next restart; use
PUT /api/v1/sync/config to reconfigure a live server.`,
		Example: `  ticketsync configure --enabled --interval-ms 60000
  ticketsync configure --baseline 2024-01-01
  ticketsync configure --baseline ""`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var u syncer.ConfigUpdate
			flags := cmd.Flags()
			if flags.Changed("enabled") {
				u.Enabled = &enabled
			}
			if flags.Changed("interval-ms") {
				u.IntervalMs = &intervalMs
			}
			if flags.Changed("baseline") {
				u.BaselineDate = &baseline
			}
			if u.Enabled == nil && u.IntervalMs == nil && u.BaselineDate == nil {
				return errors.New("nothing to change: pass --enabled, --interval-ms or --baseline")
			}

			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}

			var store *syncer.StateStore
			opts := oneShotOptions(cfg, root.verbose, fx.Populate(&store))

			return runOnce(cmd.Context(), opts, func(ctx context.Context) error {
				st, err := store.Apply(ctx, u)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}

	cmd.Flags().BoolVar(&enabled, "enabled", false, "enable or disable periodic sync")
	cmd.Flags().Int64Var(&intervalMs, "interval-ms", 0, "sync interval in milliseconds (at least 1000)")
	cmd.Flags().StringVar(&baseline, "baseline", "", "ignore tickets resolved before this date (YYYY-MM-DD, empty clears)")
	return cmd
}
