package events

import (
	"github.com/nickh0112/jira-ticket-planner-sub001/pkg/server"

	"go.uber.org/fx"
)

// Core provides the in-process bus only.
var Core = fx.Module("events.bus",
	fx.Provide(
		NewBus,
		func(b *Bus) Publisher { return b },
	),
)

// Module adds the viewer transports and their routes.
var Module = fx.Module("events.transport",
	Core,
	fx.Provide(NewTransport, NewHandler, server.AsMount(NewWebSocketMount)),
	fx.Invoke(RegisterRoutes),
)
