package dto

import "time"

// Metrics granularity values
const (
	GranularityDaily  = "daily"
	GranularityHourly = "hourly"
)

// CampaignMetricsRequest selects snapshots for one campaign
// From/To are inclusive calendar dates (UTC); both default to the last 7 days
type CampaignMetricsRequest struct {
	UserID      uint       `json:"-"`
	CampaignID  uint       `json:"-"`
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
	Granularity string     `json:"granularity,omitempty" validate:"omitempty,oneof=daily hourly"`
}

// MetricSnapshotDTO is one stored measurement
type MetricSnapshotDTO struct {
	MetricDate            string  `json:"metric_date"`
	MetricHour            *int    `json:"metric_hour,omitempty"`
	CapturedAt            string  `json:"captured_at"`
	Impressions           int64   `json:"impressions"`
	Clicks                int64   `json:"clicks"`
	Spend                 float64 `json:"spend"`
	Reach                 int64   `json:"reach"`
	Frequency             float64 `json:"frequency"`
	CTR                   float64 `json:"ctr"`
	CPC                   float64 `json:"cpc"`
	CPM                   float64 `json:"cpm"`
	Conversions           int64   `json:"conversions"`
	LinkClicks            int64   `json:"link_clicks"`
	CostPerLinkClick      float64 `json:"cost_per_link_click"`
	MessagingClicks       int64   `json:"messaging_clicks"`
	CostPerMessagingClick float64 `json:"cost_per_messaging_click"`
	DataSource            string  `json:"data_source"`
	IsLatest              bool    `json:"is_latest"`
}

// MetricsSummary totals the range and recomputes the overall rates from the totals
type MetricsSummary struct {
	Snapshots       int     `json:"snapshots"`
	Impressions     int64   `json:"impressions"`
	Clicks          int64   `json:"clicks"`
	Spend           float64 `json:"spend"`
	Reach           int64   `json:"reach"`
	Conversions     int64   `json:"conversions"`
	LinkClicks      int64   `json:"link_clicks"`
	MessagingClicks int64   `json:"messaging_clicks"`
	CTR             float64 `json:"ctr"`
	CPC             float64 `json:"cpc"`
	CPM             float64 `json:"cpm"`
}

// TrendDelta compares the first and second half of the range
type TrendDelta struct {
	FirstHalf     float64 `json:"first_half"`
	SecondHalf    float64 `json:"second_half"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Direction     string  `json:"direction"` // up, down, flat
}

// MetricsTrend holds per-metric deltas; nil when fewer than two snapshots exist
type MetricsTrend struct {
	Impressions TrendDelta `json:"impressions"`
	Clicks      TrendDelta `json:"clicks"`
	Spend       TrendDelta `json:"spend"`
	CTR         TrendDelta `json:"ctr"`
	CPC         TrendDelta `json:"cpc"`
}

// CampaignMetricsResponse is returned by GET /campaigns/:id/metrics
type CampaignMetricsResponse struct {
	Message     string              `json:"message"`
	Campaign    CampaignDTO         `json:"campaign"`
	Granularity string              `json:"granularity"`
	From        string              `json:"from"`
	To          string              `json:"to"`
	Snapshots   []MetricSnapshotDTO `json:"snapshots"`
	Summary     MetricsSummary      `json:"summary"`
	Trend       *MetricsTrend       `json:"trend,omitempty"`
}
