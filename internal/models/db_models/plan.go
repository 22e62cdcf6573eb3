package db_models

import (
	"gorm.io/datatypes"
)

type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// Plan rows are seeded administratively; the billing engine never mutates them.
type Plan struct {
	BaseModel
	Code        string `gorm:"uniqueIndex"` // e.g., "starter", "pro"
	Name        string
	Description *string

	PriceMinor       int64  // flat fee in minor units, 999 = $9.99
	Currency         string `gorm:"size:3"` // ISO 4217
	IncludedMinutes  int64  // usage allowance per billing cycle
	OverageRateMinor int64  // per-minute rate beyond the allowance, minor units

	// Stripe price objects. Metered and setup-fee prices are optional per plan.
	StripePriceMonthlyID string `gorm:"index"`
	StripePriceYearlyID  string `gorm:"index"`
	StripeMeteredPriceID string
	StripeSetupFeeID     string

	IsActive bool           `gorm:"default:true"`
	Features datatypes.JSON `gorm:"type:jsonb;default:'{}'"`
}

// PriceIDForPeriod returns the recurring Stripe price for a billing term,
// or "" when the plan does not sell that term.
func (p *Plan) PriceIDForPeriod(period BillingPeriod) string {
	switch period {
	case PeriodMonthly:
		return p.StripePriceMonthlyID
	case PeriodYearly:
		return p.StripePriceYearlyID
	default:
		return ""
	}
}
