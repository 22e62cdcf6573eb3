package response_models

import "github.com/google/uuid"

type CreateCheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

type BillingSummaryResponse struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	PlanCode       string    `json:"plan_code"`
	PlanName       string    `json:"plan_name"`
	Status         string    `json:"status"`
	BillingPeriod  string    `json:"billing_period"`

	CurrentPeriodStart int64 `json:"current_period_start"`
	CurrentPeriodEnd   int64 `json:"current_period_end"`
	CancelAtPeriodEnd  bool  `json:"cancel_at_period_end"`

	MinutesIncluded  int64 `json:"minutes_included"`
	MinutesUsed      int64 `json:"minutes_used"`
	OverageMinutes   int64 `json:"overage_minutes"`
	OverageCostMinor int64 `json:"overage_cost_minor"`
}
