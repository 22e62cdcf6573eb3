package request_models

type CreateCheckoutRequest struct {
	PlanID        string `json:"plan_id" binding:"required,uuid4"`
	BillingPeriod string `json:"billing_period" binding:"required"`
}
