package response_models

import "github.com/google/uuid"

type PlanResponse struct {
	ID               uuid.UUID `json:"id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Description      *string   `json:"description,omitempty"`
	PriceMinor       int64     `json:"price_minor"`
	Currency         string    `json:"currency"`
	IncludedMinutes  int64     `json:"included_minutes"`
	OverageRateMinor int64     `json:"overage_rate_minor"`
	IsActive         bool      `json:"is_active"`
}
