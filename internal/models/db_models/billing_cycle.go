package db_models

import (
	"github.com/google/uuid"
)

type BillingCycleStatus string

const (
	CycleStatusActive BillingCycleStatus = "active"
	CycleStatusClosed BillingCycleStatus = "closed"
)

// BillingCycle is one billed period of a subscription. At most one cycle per
// subscription is active at a time; MinutesUsed only ever grows within a
// cycle. MinutesIncluded is copied from the plan at creation so later plan
// edits do not rewrite open cycles.
type BillingCycle struct {
	BaseModel
	SubscriptionID uuid.UUID `gorm:"index;uniqueIndex:idx_billing_cycles_sub_period"`
	PeriodStart    int64     `gorm:"not null;uniqueIndex:idx_billing_cycles_sub_period"`
	PeriodEnd      int64     `gorm:"not null"`

	MinutesIncluded  int64
	MinutesUsed      int64
	OverageMinutes   int64
	OverageCostMinor int64

	Status BillingCycleStatus `gorm:"index"`

	// Audit reference attached when the provider reports the invoice paid.
	StripeInvoiceID string

	Subscription Subscription `gorm:"foreignKey:SubscriptionID"`
}
