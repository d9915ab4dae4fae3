package main

import (
	"context"
	"time"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/db"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/gen"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/logger"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/otelcol"
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/redis"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/events"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/ledger"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/member"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/syncer"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const stopTimeout = 30 * time.Second

func fxLogger(verbose bool) fx.Option {
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		if verbose {
			return &fxevent.ZapLogger{Logger: log}
		}
		return fxevent.NopLogger
	})
}

// infraOptions is what every database-backed command shares.
func infraOptions(cfg *config.Config, verbose bool) []fx.Option {
	opts := []fx.Option{
		config.Module(cfg),
		logger.Module,
		db.Module,
		gen.Module,
		tracker.Module,
		member.Module,
		fxLogger(verbose),
	}
	if cfg.Redis.Addr != "" {
		opts = append(opts, redis.Module)
	}
	if cfg.Otel.Exporter != "" {
		opts = append(opts, otelcol.Module)
	}
	return opts
}

// oneShotOptions builds the sync machinery without HTTP, timer or workers.
func oneShotOptions(cfg *config.Config, verbose bool, extra ...fx.Option) []fx.Option {
	opts := append(infraOptions(cfg, verbose),
		ledger.Core,
		events.Core,
		syncer.Core,
	)
	return append(opts, extra...)
}

// runOnce starts a one-shot graph, runs fn and stops the graph again.
func runOnce(ctx context.Context, opts []fx.Option, fn func(ctx context.Context) error) error {
	if err := fx.ValidateApp(opts...); err != nil {
		return err
	}

	app := fx.New(opts...)
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()
		if err := app.Stop(stopCtx); err != nil {
			zap.L().Warn("failed to stop cleanly", zap.Error(err))
		}
	}()

	return fn(ctx)
}
