package usage_fx

import (
	"go.uber.org/fx"
	"gorm.io/gorm"
	"voxbill/internal/api/controllers"
	"voxbill/internal/repositories"
	"voxbill/internal/services"
)

var Module = fx.Provide(
	provideUsageRecordRepo, provideUsageService, provideUsageController)

func provideUsageRecordRepo(db *gorm.DB) repositories.UsageRecordRepository {
	return repositories.NewUsageRecordRepository(db)
}

func provideUsageService(
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	cycleRepo repositories.BillingCycleRepository,
	recordRepo repositories.UsageRecordRepository,
	gateway services.StripeGateway,
) services.UsageService {
	return services.NewUsageService(orgRepo, subRepo, cycleRepo, recordRepo, gateway)
}

func provideUsageController(usageService services.UsageService) *controllers.UsageController {
	return controllers.NewUsageController(usageService)
}
