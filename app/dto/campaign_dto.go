package dto

// CampaignDTO is the stored view of a mirrored campaign
type CampaignDTO struct {
	ID                 uint     `json:"id"`
	UUID               string   `json:"uuid"`
	FacebookCampaignID string   `json:"facebook_campaign_id"`
	FacebookAccountID  uint     `json:"facebook_account_id"`
	Name               string   `json:"name"`
	Objective          string   `json:"objective,omitempty"`
	Status             string   `json:"status"`
	DailyBudget        *float64 `json:"daily_budget,omitempty"`
	LifetimeBudget     *float64 `json:"lifetime_budget,omitempty"`
	SpendCap           *float64 `json:"spend_cap,omitempty"`
	StartTime          *string  `json:"start_time,omitempty"`
	StopTime           *string  `json:"stop_time,omitempty"`
	UpdatedAt          string   `json:"updated_at"`
}

// AdDTO is a live ad from the ad platform
type AdDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status"`
	EffectiveStatus string `json:"effective_status"`
}

// AdSetDTO is a live ad set with its ads
type AdSetDTO struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Status           string   `json:"status"`
	EffectiveStatus  string   `json:"effective_status"`
	DailyBudget      *float64 `json:"daily_budget,omitempty"`
	OptimizationGoal string   `json:"optimization_goal,omitempty"`
	Ads              []AdDTO  `json:"ads"`
}

// CampaignStructureResponse lists the campaign's ad sets and ads as the platform reports them
// Ad sets whose ads could not be listed carry an empty ads list and an entry in Errors
type CampaignStructureResponse struct {
	Message  string      `json:"message"`
	Campaign CampaignDTO `json:"campaign"`
	AdSets   []AdSetDTO  `json:"ad_sets"`
	Errors   []string    `json:"errors,omitempty"`
}

// ExplainCampaignResponse is a plain-language explanation of the campaign's latest numbers
type ExplainCampaignResponse struct {
	Message      string `json:"message"`
	NarrativeID  string `json:"narrative_id,omitempty"`
	CampaignID   uint   `json:"campaign_id"`
	Content      string `json:"content"`
	Summary      string `json:"summary"`
	ShouldNotify bool   `json:"should_notify"`
	GeneratedBy  string `json:"generated_by"`
}
