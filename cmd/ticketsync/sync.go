package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var errCycleSkipped = errors.New("another sync cycle is in flight")

func newSyncCmd(root *rootOptions) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync cycle and exit",
		Long: `Run a single sync cycle against the configured tracker project and exit.

Every event the cycle emits is printed as one JSON line. The command exits
non-zero when the cycle ends with sync_error or when another cycle holds the
lock.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}

			var (
				sched *syncer.Scheduler
				bus   *events.Bus
			)
			opts := oneShotOptions(cfg, root.verbose, fx.Populate(&sched, &bus))

			return runOnce(cmd.Context(), opts, func(ctx context.Context) error {
				out := cmd.OutOrStdout()
				if !quiet {
					unsubscribe := bus.Subscribe(func(e events.Event) error {
						return printJSON(out, e)
					})
					defer unsubscribe()
				}

				res, ran := sched.TriggerNow(ctx)
				if !ran {
					return errCycleSkipped
				}
				if res.Err != nil {
					return fmt.Errorf("cycle %s failed: %w", res.CycleID, res.Err)
				}
				if quiet {
					_, err := fmt.Fprintf(out, "cycle %s: processed=%d skipped=%d unattributed=%d reward=%d\n",
						res.CycleID, res.Processed, res.Skipped, res.Unattributed, res.TotalReward)
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the cycle summary")
	return cmd
}
