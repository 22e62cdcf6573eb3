package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubStatusTrialing SubscriptionStatus = "trialing"
	SubStatusActive   SubscriptionStatus = "active"
	SubStatusPastDue  SubscriptionStatus = "past_due"
	SubStatusCanceled SubscriptionStatus = "canceled"
)

// NonTerminalStatuses are the states in which an organization still counts as
// a live customer (setup-fee waiver, usage attribution).
func NonTerminalStatuses() []SubscriptionStatus {
	return []SubscriptionStatus{SubStatusActive, SubStatusTrialing, SubStatusPastDue}
}

// Subscription mirrors the provider's subscription object. Stripe owns the
// authoritative copy; rows here are never deleted, only canceled.
type Subscription struct {
	BaseModel
	OrganizationID uuid.UUID `gorm:"index"`
	PlanID         uuid.UUID `gorm:"index"`

	Status        SubscriptionStatus `gorm:"index"`
	BillingPeriod BillingPeriod

	CurrentPeriodStart int64 `gorm:"not null"`
	CurrentPeriodEnd   int64 `gorm:"not null"`
	CancelAtPeriodEnd  bool
	CanceledAt         *int64

	StripeCustomerID     string `gorm:"index"`
	StripeSubscriptionID string `gorm:"uniqueIndex"` // idempotency guard for checkout events

	Metadata datatypes.JSON `gorm:"type:jsonb;default:'{}'"`

	Organization Organization `gorm:"foreignKey:OrganizationID"`
	Plan         Plan         `gorm:"foreignKey:PlanID"`
}
