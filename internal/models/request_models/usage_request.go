package request_models

type ReportCallUsageRequest struct {
	OrgID               string  `json:"org_id" binding:"required,uuid4"`
	CallDurationMinutes float64 `json:"call_duration_minutes" binding:"required,gt=0"`
	CallID              string  `json:"call_id" binding:"required"`
}
