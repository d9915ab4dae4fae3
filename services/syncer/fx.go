package syncer

import (
	"context"
	"reflect"

	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"
	"github.com/nickh0112/jira-ticket-planner-sub001/services/tracker"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Core wires the cycle machinery without any HTTP surface or timer.
var Core = fx.Module("syncer.core",
	fx.Provide(
		NewStateStore,
		newRewardPolicy,
		func(c *tracker.Client) IssueSource { return c },
		NewProcessor,
		func(p *Processor) Cycler { return p },
		NewReconciler,
		NewLocker,
		NewScheduler,
	),
	fx.Invoke(migrate),
)

// Module is Core plus the control endpoints, the timer, the task handler
// and config hot reload.
var Module = fx.Module("syncer.service",
	Core,
	fx.Provide(NewHandler, NewTaskHandler),
	fx.Invoke(
		RegisterRoutes,
		registerTaskHandlers,
		subscribeActiveRefresher,
		RunScheduler,
		watchConfig,
	),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

func newRewardPolicy(cfg *config.Config) (*RewardPolicy, error) {
	return NewRewardPolicy(cfg.Sync.RewardExpression)
}

// watchConfig applies an edited SYNC section of the config file as a
// reconfiguration. Edits to other sections need a restart.
func watchConfig(cfg *config.Config, s *Scheduler) {
	last := cfg.Sync
	config.Watch(func(next *config.Config) {
		if reflect.DeepEqual(last, next.Sync) {
			return
		}
		last = next.Sync

		u := ConfigUpdate{
			Enabled:      &next.Sync.Enabled,
			IntervalMs:   &next.Sync.IntervalMs,
			BaselineDate: &next.Sync.BaselineDate,
		}
		if _, err := s.Reconfigure(context.Background(), u); err != nil {
			zap.L().Error("failed to apply reloaded sync config", zap.Error(err))
			return
		}
		zap.L().Info("sync config reloaded",
			zap.Bool("enabled", next.Sync.Enabled),
			zap.Int64("interval_ms", next.Sync.IntervalMs),
			zap.String("baseline_date", next.Sync.BaselineDate),
		)
	})
}
