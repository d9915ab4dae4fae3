package main

import (
	"context"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/health"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/profiling"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/server"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/task"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/ledger"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/syncer"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server, the event stream and the sync timer",
		Long: `Run the long-lived service.

The server exposes the control endpoints under /api/v1/sync, member progress
under /api/v1/members, and the live event stream at /api/v1/events (SSE) and
/api/v1/events/ws (WebSocket). When sync is enabled the scheduler runs a cycle
immediately and then on every interval.

With REDIS.ADDR set, the cycle lock is held in Redis so several replicas can
share one database, and active-ticket refreshes run on the task queue.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load(cmd.Context())
			if err != nil {
				return err
			}

			opts := append(infraOptions(cfg, root.verbose),
				ledger.Module,
				events.Module,
				syncer.Module,
				health.Module,
				server.ProvideHTTPServer,
			)
			if cfg.Redis.Addr != "" {
				opts = append(opts, task.Client, task.Server)
			}
			if cfg.Pyroscope.Addr != "" {
				opts = append(opts, profiling.Module)
			}

			if err := fx.ValidateApp(opts...); err != nil {
				return err
			}

			app := fx.New(opts...)
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}

			select {
			case <-cmd.Context().Done():
			case sig := <-app.Done():
				zap.L().Info("received signal", zap.String("signal", sig.String()))
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			return app.Stop(stopCtx)
		},
	}
}
