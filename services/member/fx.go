package member

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("member.resolver",
	fx.Provide(
		NewTieredResolver,
		func(r *TieredResolver) Resolver { return r },
	),
	fx.Invoke(migrate),
)

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(&TeamMember{})
}
