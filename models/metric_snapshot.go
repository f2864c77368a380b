package models

import (
	"time"
)

// DataSource tells where a snapshot's numbers came from
type DataSource string

const (
	DataSourceAPI   DataSource = "api"
	DataSourceCache DataSource = "cache"
)

// MetricSnapshot is a point-in-time reading of a campaign's performance. A nil
// MetricHour marks a daily rollup. Exactly one row per campaign has IsLatest set.
type MetricSnapshot struct {
	ID                    uint       `gorm:"primaryKey" json:"id"`
	CampaignID            uint       `gorm:"not null;index:idx_metric_snapshots_campaign_id" json:"campaign_id"`
	CapturedAt            time.Time  `gorm:"not null" json:"captured_at"`
	MetricDate            time.Time  `gorm:"type:date;not null;index:idx_metric_snapshots_metric_date" json:"metric_date"`
	MetricHour            *int       `json:"metric_hour,omitempty"`
	Impressions           int64      `gorm:"not null;default:0" json:"impressions"`
	Clicks                int64      `gorm:"not null;default:0" json:"clicks"`
	Spend                 float64    `gorm:"type:numeric(14,2);not null;default:0" json:"spend"`
	Reach                 int64      `gorm:"not null;default:0" json:"reach"`
	Frequency             float64    `gorm:"type:numeric(10,4);not null;default:0" json:"frequency"`
	CTR                   float64    `gorm:"column:ctr;type:numeric(10,4);not null;default:0" json:"ctr"`
	CPC                   float64    `gorm:"column:cpc;type:numeric(14,4);not null;default:0" json:"cpc"`
	CPM                   float64    `gorm:"column:cpm;type:numeric(14,4);not null;default:0" json:"cpm"`
	Conversions           int64      `gorm:"not null;default:0" json:"conversions"`
	LinkClicks            int64      `gorm:"not null;default:0" json:"link_clicks"`
	CostPerLinkClick      float64    `gorm:"type:numeric(14,4);not null;default:0" json:"cost_per_link_click"`
	MessagingClicks       int64      `gorm:"not null;default:0" json:"messaging_clicks"`
	CostPerMessagingClick float64    `gorm:"type:numeric(14,4);not null;default:0" json:"cost_per_messaging_click"`
	DataSource            DataSource `gorm:"size:16;not null;default:'api'" json:"data_source"`
	IsLatest              bool       `gorm:"not null;default:false" json:"is_latest"`
	CreatedAt             time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt             time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MetricSnapshot) TableName() string { return "metric_snapshots" }

// IsHourly reports whether the snapshot covers a single hour bucket
func (m *MetricSnapshot) IsHourly() bool {
	return m.MetricHour != nil
}

// MetricSnapshotFilter provides filter fields for repository queries
type MetricSnapshotFilter struct {
	CampaignID *uint
	DateFrom   *time.Time
	DateTo     *time.Time
	Hourly     *bool
	IsLatest   *bool
}
