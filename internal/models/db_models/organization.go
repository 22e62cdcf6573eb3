package db_models

type Organization struct {
	BaseModel
	Name         string
	Email        string `gorm:"uniqueIndex"`
	PasswordHash string

	// Created lazily on first checkout, then immutable and reused.
	StripeCustomerID *string `gorm:"uniqueIndex"`
}
