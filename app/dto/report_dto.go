package dto

// DailyReportRequest asks for the account-level narrative for a time-of-day bucket
// TimeOfDay defaults to the bucket of the current hour in the user's timezone
type DailyReportRequest struct {
	TimeOfDay string `json:"time_of_day,omitempty" validate:"omitempty,oneof=morning afternoon evening"`
	Send      bool   `json:"send"`
}

// DailyReportResponse always carries narrative content, generated or rule-based
type DailyReportResponse struct {
	Message         string  `json:"message"`
	NarrativeID     string  `json:"narrative_id,omitempty"`
	TimeOfDay       string  `json:"time_of_day"`
	Content         string  `json:"content"`
	Summary         string  `json:"summary"`
	ShouldNotify    bool    `json:"should_notify"`
	GeneratedBy     string  `json:"generated_by"`
	CampaignCount   int     `json:"campaign_count"`
	TotalSpend      float64 `json:"total_spend"`
	Delivered       bool    `json:"delivered"`
	DeliverySkipped string  `json:"delivery_skipped,omitempty"`
}
