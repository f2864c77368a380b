package dto

// AlertDTO is an alert as shown to its owner
type AlertDTO struct {
	ID              uint           `json:"id"`
	UUID            string         `json:"uuid"`
	CampaignID      uint           `json:"campaign_id"`
	CampaignName    string         `json:"campaign_name,omitempty"`
	AlertType       string         `json:"alert_type"`
	Severity        string         `json:"severity"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	Metadata        map[string]any `json:"metadata"`
	IsResolved      bool           `json:"is_resolved"`
	Resolution      *string        `json:"resolution,omitempty"`
	ResolvedAt      *string        `json:"resolved_at,omitempty"`
	OccurrenceCount int            `json:"occurrence_count"`
	LastDetectedAt  string         `json:"last_detected_at"`
	CreatedAt       string         `json:"created_at"`
}

// DetectAlertsResponse is returned by POST /alerts/detect
type DetectAlertsResponse struct {
	Message            string     `json:"message"`
	CampaignsEvaluated int        `json:"campaigns_evaluated"`
	Alerts             []AlertDTO `json:"alerts"`
}

// ListAlertsRequest filters the caller's alerts
type ListAlertsRequest struct {
	UserID   uint    `json:"-"`
	Resolved *bool   `json:"resolved,omitempty"`
	Type     *string `json:"type,omitempty" validate:"omitempty,oneof=budget_depleted low_ctr high_costs campaign_paused high_frequency"`
	Page     int     `json:"page,omitempty" validate:"omitempty,gte=1"`
	PageSize int     `json:"page_size,omitempty" validate:"omitempty,gte=1,lte=100"`
}

// ListAlertsResponse is a page of alerts, newest first
type ListAlertsResponse struct {
	Message  string     `json:"message"`
	Items    []AlertDTO `json:"items"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
	Total    int64      `json:"total"`
}

// CloseAlertResponse is returned by the resolve and ignore endpoints
type CloseAlertResponse struct {
	Message string   `json:"message"`
	Alert   AlertDTO `json:"alert"`
}
