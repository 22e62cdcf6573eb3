package db_models

import (
	"gorm.io/datatypes"
)

// WebhookEvent is the durable idempotency ledger for provider notifications.
// One row per Stripe event id; re-deliveries hit the unique index and are
// acknowledged without reprocessing.
type WebhookEvent struct {
	BaseModel
	StripeEventID string `gorm:"uniqueIndex"`
	Kind          string `gorm:"index"`

	Payload datatypes.JSON `gorm:"type:jsonb;default:'{}'"`

	ProcessedAt int64
	// Non-empty when a side effect failed after the event was accepted;
	// reconciliation reads these instead of making Stripe retry.
	ProcessingError string
}
