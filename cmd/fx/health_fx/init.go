package health_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
	"voxbill/internal/api/controllers"
)

var Module = fx.Provide(provideHealthController)

func provideHealthController(db *gorm.DB) *controllers.HealthController {
	return controllers.NewHealthController(db)
}
