package billing_fx

import (
	"os"

	"go.uber.org/fx"
	"gorm.io/gorm"
	"voxbill/internal/api/controllers"
	"voxbill/internal/repositories"
	"voxbill/internal/services"
	mem "voxbill/pkg/memcache"
)

var stripeCfg = services.StripeConfig{
	SecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
	WebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
	SuccessURL:    os.Getenv("STRIPE_CHECKOUT_SUCCESS_URL"),
	CancelURL:     os.Getenv("STRIPE_CHECKOUT_CANCEL_URL"),
	MeterName:     os.Getenv("STRIPE_METER_NAME"),
}

var Module = fx.Provide(
	provideSubscriptionRepo, provideBillingCycleRepo, provideWebhookEventRepo,
	provideStripeGateway,
	provideCheckoutService, provideLifecycleService, provideSummaryService,
	provideBillingController, provideWebhookController,
)

func provideSubscriptionRepo(db *gorm.DB) repositories.SubscriptionRepository {
	return repositories.NewSubscriptionRepository(db)
}

func provideBillingCycleRepo(db *gorm.DB) repositories.BillingCycleRepository {
	return repositories.NewBillingCycleRepository(db)
}

func provideWebhookEventRepo(db *gorm.DB) repositories.WebhookEventRepository {
	return repositories.NewWebhookEventRepository(db)
}

func provideStripeGateway() services.StripeGateway {
	return services.NewStripeGateway(stripeCfg)
}

func provideCheckoutService(
	planRepo repositories.IPlanRepository,
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	gateway services.StripeGateway,
) services.CheckoutService {
	return services.NewCheckoutService(planRepo, orgRepo, subRepo, gateway)
}

func provideLifecycleService(
	db *gorm.DB,
	planRepo repositories.IPlanRepository,
	orgRepo repositories.OrganizationRepository,
	subRepo repositories.SubscriptionRepository,
	cycleRepo repositories.BillingCycleRepository,
	eventRepo repositories.WebhookEventRepository,
	cache mem.EventCache,
	gateway services.StripeGateway,
	mail services.IMailService,
) services.LifecycleService {
	return services.NewLifecycleService(db, planRepo, orgRepo, subRepo, cycleRepo, eventRepo, cache, gateway, mail)
}

func provideSummaryService(
	subRepo repositories.SubscriptionRepository,
	cycleRepo repositories.BillingCycleRepository,
) services.SummaryService {
	return services.NewSummaryService(subRepo, cycleRepo)
}

func provideBillingController(
	checkoutService services.CheckoutService,
	summaryService services.SummaryService,
) *controllers.BillingController {
	return controllers.NewBillingController(checkoutService, summaryService)
}

func provideWebhookController(lifecycleService services.LifecycleService) *controllers.WebhookController {
	return controllers.NewWebhookController(lifecycleService)
}
