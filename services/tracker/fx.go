package tracker

import (
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/config"

	"go.uber.org/fx"
)

var Module = fx.Module("tracker.client",
	fx.Provide(NewFromConfig),
)

func NewFromConfig(cfg *config.Config) *Client {
	t := cfg.Tracker
	return NewClient(Config{
		BaseURL:     t.BaseURL,
		Email:       t.Email,
		APIToken:    t.APIToken,
		MaxAttempts: t.MaxAttempts,
		BaseDelay:   t.BaseDelay,
		PageSize:    t.PageSize,
		Timeout:     t.Timeout,
	})
}
