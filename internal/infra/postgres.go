package infra

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"log"
	"os"
	"voxbill/internal/models/db_models"
)

func InitPostgresql() *gorm.DB {

	dsn := os.Getenv("POSTGRES_URL")

	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the idempotency guards rely on.
	connectionPool, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})

	if err != nil {
		log.Printf("Error connecting to database: %v", err)
		log.Fatal("Error connecting to database")
	}

	return connectionPool
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&db_models.Plan{},
		&db_models.Organization{},
		&db_models.Subscription{},
		&db_models.BillingCycle{},
		&db_models.UsageRecord{},
		&db_models.WebhookEvent{},
	)
}

func ClosePostgresql(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting database instance: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("PostgreSQL database connection closed successfully")
	}
}
