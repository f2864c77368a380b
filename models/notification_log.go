package models

import "time"

// NotificationStatus is the terminal state of one dispatch attempt
type NotificationStatus string

const (
	NotificationStatusSent       NotificationStatus = "sent"
	NotificationStatusSuppressed NotificationStatus = "suppressed"
	NotificationStatusFailed     NotificationStatus = "failed"
)

// NotificationLog records the outcome of a dispatch attempt
type NotificationLog struct {
	ID                uint               `gorm:"primaryKey" json:"id"`
	UserID            uint               `gorm:"not null;index:idx_notification_logs_user_id" json:"user_id"`
	Recipient         string             `gorm:"size:32" json:"recipient"`
	AlertType         string             `gorm:"size:32;not null" json:"alert_type"`
	Status            NotificationStatus `gorm:"size:16;not null;index:idx_notification_logs_status" json:"status"`
	Reason            string             `gorm:"size:64" json:"reason,omitempty"`
	ProviderMessageID *string            `gorm:"size:128" json:"provider_message_id,omitempty"`
	CreatedAt         time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_notification_logs_created_at" json:"created_at"`
}

func (NotificationLog) TableName() string { return "notification_logs" }
