package response_models

type ReportCallUsageResponse struct {
	CallID             string  `json:"call_id"`
	BilledMinutes      int64   `json:"billed_minutes"`
	RawDurationMinutes float64 `json:"raw_duration_minutes"`
	TotalMinutesUsed   int64   `json:"total_minutes_used"`
	OverageMinutes     int64   `json:"overage_minutes"`
	MeterEventSent     bool    `json:"meter_event_sent"`
	Duplicate          bool    `json:"duplicate"`
}
