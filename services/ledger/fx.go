package ledger

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// Core provides the service without HTTP routes.
var Core = fx.Module("ledger.core",
	fx.Provide(NewService),
	fx.Invoke(migrate),
)

var Module = fx.Module("ledger.service",
	Core,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
