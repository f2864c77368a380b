package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/amirphl/adwatch/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus mirrors the effective status reported by the ad platform
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "ACTIVE"
	CampaignStatusPaused   CampaignStatus = "PAUSED"
	CampaignStatusDeleted  CampaignStatus = "DELETED"
	CampaignStatusArchived CampaignStatus = "ARCHIVED"
	CampaignStatusLearning CampaignStatus = "LEARNING"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusActive, CampaignStatusPaused, CampaignStatusDeleted,
		CampaignStatusArchived, CampaignStatusLearning:
		return true
	default:
		return false
	}
}

// Monitored reports whether alert detection looks at campaigns in this status
func (s CampaignStatus) Monitored() bool {
	return s == CampaignStatusActive || s == CampaignStatusLearning || s == CampaignStatusPaused
}

// ParseCampaignStatus maps a platform status string onto the local enum.
// Unknown platform states (IN_PROCESS, WITH_ISSUES, ...) are treated as LEARNING.
func ParseCampaignStatus(raw string) CampaignStatus {
	s := CampaignStatus(raw)
	if s.Valid() {
		return s
	}
	switch raw {
	case "CAMPAIGN_PAUSED", "ADSET_PAUSED":
		return CampaignStatusPaused
	default:
		return CampaignStatusLearning
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign is the local mirror of an ad platform campaign. Rows are upserted on
// (facebook_account_id, facebook_campaign_id) and never deleted.
type Campaign struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	UUID               uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	FacebookAccountID  uint           `gorm:"not null;uniqueIndex:uk_campaigns_account_campaign,priority:1" json:"facebook_account_id"`
	FacebookCampaignID string         `gorm:"size:64;not null;uniqueIndex:uk_campaigns_account_campaign,priority:2" json:"facebook_campaign_id"`
	UserID             uint           `gorm:"not null;index:idx_campaigns_user_id" json:"user_id"`
	Name               string         `gorm:"size:255;not null" json:"name"`
	Objective          string         `gorm:"size:64" json:"objective"`
	Status             CampaignStatus `gorm:"type:campaign_status;not null;default:'ACTIVE';index:idx_campaigns_status" json:"status"`
	DailyBudget        *float64       `gorm:"type:numeric(14,2)" json:"daily_budget,omitempty"`
	LifetimeBudget     *float64       `gorm:"type:numeric(14,2)" json:"lifetime_budget,omitempty"`
	SpendCap           *float64       `gorm:"type:numeric(14,2)" json:"spend_cap,omitempty"`
	CreatedTime        *time.Time     `json:"created_time,omitempty"`
	StartTime          *time.Time     `json:"start_time,omitempty"`
	StopTime           *time.Time     `json:"stop_time,omitempty"`
	CreatedAt          time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	// Relations
	Account        *FacebookAccount `gorm:"foreignKey:FacebookAccountID;references:ID" json:"account,omitempty"`
	LatestSnapshot *MetricSnapshot  `gorm:"foreignKey:CampaignID;references:ID" json:"latest_snapshot,omitempty"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusActive
	}
	now := utils.UTCNow()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	return nil
}

// BeforeUpdate is called before updating a record
func (c *Campaign) BeforeUpdate(tx *gorm.DB) error {
	c.UpdatedAt = utils.UTCNow()
	return nil
}

// HasDailyBudget reports whether a positive daily budget is set
func (c *Campaign) HasDailyBudget() bool {
	return c.DailyBudget != nil && *c.DailyBudget > 0
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID                 *uint            `json:"id,omitempty"`
	UserID             *uint            `json:"user_id,omitempty"`
	FacebookAccountID  *uint            `json:"facebook_account_id,omitempty"`
	FacebookCampaignID *string          `json:"facebook_campaign_id,omitempty"`
	Statuses           []CampaignStatus `json:"statuses,omitempty"`
}
