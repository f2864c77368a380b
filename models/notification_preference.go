package models

import (
	"time"

	"github.com/lib/pq"
)

// NotificationFrequency controls how often digest messages go out
type NotificationFrequency string

const (
	NotificationFrequencyDaily  NotificationFrequency = "daily"
	NotificationFrequencyWeekly NotificationFrequency = "weekly"
	NotificationFrequencyCustom NotificationFrequency = "custom"
)

// TimeOfDay buckets the daily report runs
type TimeOfDay string

const (
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// TimeOfDayForHour maps a local clock hour to its bucket
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 17:
		return TimeOfDayAfternoon
	default:
		return TimeOfDayEvening
	}
}

// NotificationPreference stores a user's messaging opt-ins
type NotificationPreference struct {
	ID                 uint                  `gorm:"primaryKey" json:"id"`
	UserID             uint                  `gorm:"not null;uniqueIndex:uk_notification_preferences_user_id" json:"user_id"`
	WhatsAppNumber     string                `gorm:"column:whatsapp_number;size:32" json:"whatsapp_number"`
	Enabled            bool                  `gorm:"not null;default:true" json:"enabled"`
	MorningEnabled     bool                  `gorm:"not null;default:true" json:"morning_enabled"`
	AfternoonEnabled   bool                  `gorm:"not null;default:false" json:"afternoon_enabled"`
	EveningEnabled     bool                  `gorm:"not null;default:true" json:"evening_enabled"`
	DisabledAlertTypes pq.StringArray        `gorm:"type:text[];not null;default:'{}'" json:"disabled_alert_types"`
	QuietHoursEnabled  bool                  `gorm:"not null;default:false" json:"quiet_hours_enabled"`
	QuietHoursStart    string                `gorm:"size:5;default:'22:00'" json:"quiet_hours_start"`
	QuietHoursEnd      string                `gorm:"size:5;default:'07:00'" json:"quiet_hours_end"`
	Timezone           string                `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	Frequency          NotificationFrequency `gorm:"size:16;not null;default:'daily'" json:"frequency"`
	CreatedAt          time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt          time.Time             `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (NotificationPreference) TableName() string { return "notification_preferences" }

// AllowsAlertType reports whether the user has not opted out of the given type
func (p *NotificationPreference) AllowsAlertType(alertType string) bool {
	for _, t := range p.DisabledAlertTypes {
		if t == alertType {
			return false
		}
	}
	return true
}

// AllowsTimeOfDay reports whether digests for the given bucket are enabled
func (p *NotificationPreference) AllowsTimeOfDay(tod TimeOfDay) bool {
	switch tod {
	case TimeOfDayMorning:
		return p.MorningEnabled
	case TimeOfDayAfternoon:
		return p.AfternoonEnabled
	case TimeOfDayEvening:
		return p.EveningEnabled
	default:
		return false
	}
}
