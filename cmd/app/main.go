package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"voxbill/cmd/fx/billing_fx"
	"voxbill/cmd/fx/db_fx"
	"voxbill/cmd/fx/health_fx"
	"voxbill/cmd/fx/mail_fx"
	"voxbill/cmd/fx/memcache_fx"
	"voxbill/cmd/fx/org_fx"
	"voxbill/cmd/fx/plan_fx"
	"voxbill/cmd/fx/usage_fx"
	"voxbill/internal/api/controllers"
	"voxbill/pkg/middleware"
	"voxbill/pkg/utils"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading config from environment")
	}

	app := fx.New(
		db_fx.Module,
		memcache_fx.Module,
		mail_fx.Module,
		org_fx.Module,
		plan_fx.Module,
		billing_fx.Module,
		usage_fx.Module,
		health_fx.Module,

		fx.Provide(ProvideRouter),
		fx.Invoke(StartServer),
	)

	app.Run()
}

func StartServer(lc fx.Lifecycle, engine *gin.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := os.Getenv("PORT")
				if port == "" {
					port = "8080"
				}
				log.Printf("Starting HTTP server at :%s", port)
				if err := engine.Run(":" + port); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Println("Stopping HTTP server")
			return nil
		},
	})
}

func ProvideRouter(
	orgController *controllers.OrganizationController,
	planController *controllers.PlanController,
	billingController *controllers.BillingController,
	webhookController *controllers.WebhookController,
	usageController *controllers.UsageController,
	healthController *controllers.HealthController) *gin.Engine {

	r := gin.Default()
	r.Use(gin.Recovery())
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.TraceIDMiddleware())

	RegisterRoutes(r, orgController, planController, billingController,
		webhookController, usageController, healthController)

	return r
}

func RegisterRoutes(r *gin.Engine,
	orgController *controllers.OrganizationController,
	planController *controllers.PlanController,
	billingController *controllers.BillingController,
	webhookController *controllers.WebhookController,
	usageController *controllers.UsageController,
	healthController *controllers.HealthController) {

	r.GET("/healthz", healthController.Healthz)

	orgGroup := r.Group("/orgs")
	orgGroup.POST("/register", orgController.Register)
	orgGroup.POST("/login", orgController.Login)

	planGroup := r.Group("/plans")
	planGroup.GET("", planController.ListPlans)

	billingGroup := r.Group("/billing")
	billingGroup.Use(middleware.JWTAuthMiddleware())
	billingGroup.POST("/checkout", billingController.CreateCheckout)
	billingGroup.GET("/summary", billingController.GetSummary)

	// Raw body route, signature verified inside; no JWT here.
	webhookGroup := r.Group("/webhooks")
	webhookGroup.POST("/stripe", webhookController.HandleStripeEvent)

	usageGroup := r.Group("/usage")
	usageGroup.Use(middleware.JWTAuthMiddleware(), middleware.RoleMiddleware(utils.RoleService))
	usageGroup.POST("/calls", usageController.ReportCallUsage)
}
