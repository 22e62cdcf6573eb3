package db_models

import (
	"github.com/google/uuid"
)

// UsageRecord is the append-only audit row for one completed call. The unique
// CallID is the primary defense against double-billing: a concurrent second
// writer fails on insert instead of silently duplicating.
type UsageRecord struct {
	BaseModel
	CallID         string    `gorm:"uniqueIndex"`
	OrganizationID uuid.UUID `gorm:"index"`
	SubscriptionID uuid.UUID `gorm:"index"`

	// Nullable: the provider was billed even when no local cycle was open.
	BillingCycleID *uuid.UUID `gorm:"index"`

	RawDurationMinutes float64
	BilledMinutes      int64

	StripeMeterEventID string
}
