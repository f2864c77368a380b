package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NarrativeSource tells which path produced a narrative
type NarrativeSource string

const (
	NarrativeSourceLLM      NarrativeSource = "llm"
	NarrativeSourceFallback NarrativeSource = "fallback"
	NarrativeSourceCache    NarrativeSource = "cache"
)

// NarrativeStatus marks whether generation went through the primary path
type NarrativeStatus string

const (
	NarrativeStatusSuccess NarrativeStatus = "success"
	NarrativeStatusError   NarrativeStatus = "error"
)

// SourceTypeDailyDigest is the source_type of account-level daily narratives
const SourceTypeDailyDigest = "daily_digest"

// NarrativeRecord is an insert-only log of generated narratives
type NarrativeRecord struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UUID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uk_narrative_records_uuid" json:"uuid"`
	UserID        uint            `gorm:"not null;index:idx_narrative_records_user_id" json:"user_id"`
	CampaignID    *uint           `gorm:"index:idx_narrative_records_campaign_id" json:"campaign_id,omitempty"`
	Content       string          `gorm:"type:text;not null" json:"content"`
	Summary       string          `gorm:"type:text" json:"summary"`
	SourceType    string          `gorm:"size:32;not null" json:"source_type"`
	CampaignCount int             `gorm:"not null;default:0" json:"campaign_count"`
	TotalSpend    float64         `gorm:"type:numeric(14,2);not null;default:0" json:"total_spend"`
	GeneratedBy   NarrativeSource `gorm:"size:16;not null" json:"generated_by"`
	Status        NarrativeStatus `gorm:"size:16;not null" json:"status"`
	ErrorMessage  *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt     time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_narrative_records_created_at" json:"created_at"`
}

func (NarrativeRecord) TableName() string { return "narrative_records" }

// BeforeCreate is called before creating a new record
func (n *NarrativeRecord) BeforeCreate(tx *gorm.DB) error {
	if n.UUID == uuid.Nil {
		n.UUID = uuid.New()
	}
	return nil
}
