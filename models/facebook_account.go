package models

import (
	"time"
)

// FacebookAccount is an ad account connected by a user. FacebookAccountID is kept
// exactly as the user (or the platform) supplied it, with or without the act_ prefix.
type FacebookAccount struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index:idx_facebook_accounts_user_id;uniqueIndex:uk_facebook_accounts_user_account,priority:1" json:"user_id"`
	FacebookAccountID string     `gorm:"size:64;not null;uniqueIndex:uk_facebook_accounts_user_account,priority:2" json:"facebook_account_id"`
	AccountName       string     `gorm:"size:255" json:"account_name"`
	AccessToken       string     `gorm:"type:text;not null" json:"-"`
	Currency          string     `gorm:"size:8;default:'USD'" json:"currency"`
	IsActive          *bool      `gorm:"default:true;index:idx_facebook_accounts_is_active" json:"is_active"`
	LastSyncedAt      *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt         time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (FacebookAccount) TableName() string { return "facebook_accounts" }

// FacebookAccountFilter provides filter fields for repository queries
type FacebookAccountFilter struct {
	ID       *uint
	UserID   *uint
	IsActive *bool
}
