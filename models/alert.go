package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/adwatch/utils"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AlertType enumerates the anomaly kinds the detector emits
type AlertType string

const (
	AlertTypeBudgetDepleted AlertType = "budget_depleted"
	AlertTypeLowCTR         AlertType = "low_ctr"
	AlertTypeHighCosts      AlertType = "high_costs"
	AlertTypeCampaignPaused AlertType = "campaign_paused"
	AlertTypeHighFrequency  AlertType = "high_frequency"
)

// AllAlertTypes lists every alert type in evaluation order
var AllAlertTypes = []AlertType{
	AlertTypeCampaignPaused,
	AlertTypeBudgetDepleted,
	AlertTypeLowCTR,
	AlertTypeHighCosts,
	AlertTypeHighFrequency,
}

func (t AlertType) String() string { return string(t) }

// Valid checks if the alert type is valid
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypeBudgetDepleted, AlertTypeLowCTR, AlertTypeHighCosts,
		AlertTypeCampaignPaused, AlertTypeHighFrequency:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for AlertType
func (t *AlertType) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*t = ""
	case string:
		*t = AlertType(v)
	case []byte:
		*t = AlertType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AlertType", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AlertType
func (t AlertType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid AlertType: %s", t)
	}
	return string(t), nil
}

// AlertSeverity ranks alerts from informational to urgent
type AlertSeverity string

const (
	AlertSeverityLow      AlertSeverity = "low"
	AlertSeverityMedium   AlertSeverity = "medium"
	AlertSeverityHigh     AlertSeverity = "high"
	AlertSeverityCritical AlertSeverity = "critical"
)

func (s AlertSeverity) String() string { return string(s) }

// Rank orders severities so callers can sort or compare them
func (s AlertSeverity) Rank() int {
	switch s {
	case AlertSeverityLow:
		return 1
	case AlertSeverityMedium:
		return 2
	case AlertSeverityHigh:
		return 3
	case AlertSeverityCritical:
		return 4
	default:
		return 0
	}
}

// Scan implements the sql.Scanner interface for AlertSeverity
func (s *AlertSeverity) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = ""
	case string:
		*s = AlertSeverity(v)
	case []byte:
		*s = AlertSeverity(string(v))
	default:
		return fmt.Errorf("cannot scan %T into AlertSeverity", value)
	}
	return nil
}

// Value implements the driver.Valuer interface for AlertSeverity
func (s AlertSeverity) Value() (driver.Value, error) {
	if s.Rank() == 0 {
		return nil, fmt.Errorf("invalid AlertSeverity: %s", s)
	}
	return string(s), nil
}

// AlertResolution records how a user closed an alert
type AlertResolution string

const (
	AlertResolutionResolved AlertResolution = "resolved"
	AlertResolutionIgnored  AlertResolution = "ignored"
)

// Alert is a detected anomaly on a campaign. At most one unresolved alert exists
// per (campaign, type); re-detection refreshes it in place.
type Alert struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_alerts_uuid" json:"uuid"`
	CampaignID      uint              `gorm:"not null;index:idx_alerts_campaign_id" json:"campaign_id"`
	UserID          uint              `gorm:"not null;index:idx_alerts_user_id" json:"user_id"`
	AlertType       AlertType         `gorm:"type:alert_type;not null" json:"alert_type"`
	Severity        AlertSeverity     `gorm:"type:alert_severity;not null" json:"severity"`
	Title           string            `gorm:"size:255;not null" json:"title"`
	Message         string            `gorm:"type:text;not null" json:"message"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	IsResolved      bool              `gorm:"not null;default:false;index:idx_alerts_is_resolved" json:"is_resolved"`
	Resolution      *AlertResolution  `gorm:"size:16" json:"resolution,omitempty"`
	ResolvedBy      *uint             `json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time        `json:"resolved_at,omitempty"`
	OccurrenceCount int               `gorm:"not null;default:1" json:"occurrence_count"`
	LastDetectedAt  time.Time         `gorm:"not null" json:"last_detected_at"`
	CreatedAt       time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_alerts_created_at" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Details is the typed form of Metadata for freshly detected alerts
	Details AlertDetails `gorm:"-" json:"-"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

func (Alert) TableName() string { return "alerts" }

// BeforeCreate is called before creating a new record
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.UUID == uuid.Nil {
		a.UUID = uuid.New()
	}
	now := utils.UTCNow()
	if a.LastDetectedAt.IsZero() {
		a.LastDetectedAt = now
	}
	if a.OccurrenceCount == 0 {
		a.OccurrenceCount = 1
	}
	if a.Metadata == nil {
		a.Metadata = datatypes.JSONMap{}
	}
	return nil
}

// AlertFilter provides filter fields for repository queries
type AlertFilter struct {
	ID         *uint
	UUID       *uuid.UUID
	UserID     *uint
	CampaignID *uint
	AlertType  *AlertType
	IsResolved *bool
	Severity   *AlertSeverity
}

// AlertDetails is the typed payload behind an alert. Each variant knows its alert
// type and flattens itself into the stored metadata map.
type AlertDetails interface {
	Type() AlertType
	Metadata() datatypes.JSONMap
}

// BudgetDepletedDetails is attached to budget_depleted alerts
type BudgetDepletedDetails struct {
	Spend       float64
	DailyBudget float64
	BudgetUsage float64 // percent
	Threshold   float64 // percent
}

func (BudgetDepletedDetails) Type() AlertType { return AlertTypeBudgetDepleted }

func (d BudgetDepletedDetails) Metadata() datatypes.JSONMap {
	return datatypes.JSONMap{
		"spend":        utils.Round2(d.Spend),
		"daily_budget": utils.Round2(d.DailyBudget),
		"budget_usage": utils.Round2(d.BudgetUsage),
		"threshold":    d.Threshold,
	}
}

// LowCTRDetails is attached to low_ctr alerts
type LowCTRDetails struct {
	CTR       float64
	Threshold float64
}

func (LowCTRDetails) Type() AlertType { return AlertTypeLowCTR }

func (d LowCTRDetails) Metadata() datatypes.JSONMap {
	return datatypes.JSONMap{
		"ctr":       utils.Round2(d.CTR),
		"threshold": d.Threshold,
	}
}

// HighCostsDetails is attached to high_costs alerts
type HighCostsDetails struct {
	CPC       float64
	Threshold float64
}

func (HighCostsDetails) Type() AlertType { return AlertTypeHighCosts }

func (d HighCostsDetails) Metadata() datatypes.JSONMap {
	return datatypes.JSONMap{
		"cpc":       utils.Round2(d.CPC),
		"threshold": d.Threshold,
	}
}

// CampaignPausedDetails is attached to campaign_paused alerts
type CampaignPausedDetails struct {
	Status CampaignStatus
}

func (CampaignPausedDetails) Type() AlertType { return AlertTypeCampaignPaused }

func (d CampaignPausedDetails) Metadata() datatypes.JSONMap {
	return datatypes.JSONMap{
		"status": string(d.Status),
	}
}

// HighFrequencyDetails is attached to high_frequency alerts
type HighFrequencyDetails struct {
	Frequency float64
	Threshold float64
}

func (HighFrequencyDetails) Type() AlertType { return AlertTypeHighFrequency }

func (d HighFrequencyDetails) Metadata() datatypes.JSONMap {
	return datatypes.JSONMap{
		"frequency": utils.Round2(d.Frequency),
		"threshold": d.Threshold,
	}
}
