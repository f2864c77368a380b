package models

import (
	"time"
)

// Default thresholds applied when a user has not configured their own
const (
	DefaultLowCTR       = 1.0  // percent
	DefaultHighCPC      = 2.0  // currency units
	DefaultBudgetUsage  = 90.0 // percent of daily budget
	DefaultMaxSpend     = 1000.0
	DefaultFrequencyCap = 3.0
)

// AlertThreshold holds the per-user detection limits
type AlertThreshold struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;uniqueIndex:uk_alert_thresholds_user_id" json:"user_id"`
	LowCTR       float64   `gorm:"column:low_ctr;type:numeric(10,4);not null;default:1.0" json:"low_ctr"`
	HighCPC      float64   `gorm:"column:high_cpc;type:numeric(14,4);not null;default:2.0" json:"high_cpc"`
	BudgetUsage  float64   `gorm:"type:numeric(6,2);not null;default:90" json:"budget_usage"`
	MaxSpend     float64   `gorm:"type:numeric(14,2);not null;default:1000" json:"max_spend"`
	FrequencyCap float64   `gorm:"type:numeric(10,4);not null;default:3.0" json:"frequency_cap"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (AlertThreshold) TableName() string { return "alert_thresholds" }

// DefaultAlertThreshold returns the thresholds used when the user has none stored
func DefaultAlertThreshold(userID uint) *AlertThreshold {
	return &AlertThreshold{
		UserID:       userID,
		LowCTR:       DefaultLowCTR,
		HighCPC:      DefaultHighCPC,
		BudgetUsage:  DefaultBudgetUsage,
		MaxSpend:     DefaultMaxSpend,
		FrequencyCap: DefaultFrequencyCap,
	}
}
