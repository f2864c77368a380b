// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/amirphl/adwatch/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines read operations for account owners
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ListActiveIDs(ctx context.Context) ([]uint, error)
}

// FacebookAccountRepository defines operations for connected ad accounts
type FacebookAccountRepository interface {
	Repository[models.FacebookAccount, models.FacebookAccountFilter]
	ListActiveByUser(ctx context.Context, userID uint) ([]*models.FacebookAccount, error)
	MarkSynced(ctx context.Context, id uint, at time.Time) error
}

// CampaignRepository defines operations for mirrored campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	Upsert(ctx context.Context, campaign *models.Campaign) error
	ByUserAndID(ctx context.Context, userID, campaignID uint) (*models.Campaign, error)
	ListWithLatestSnapshot(ctx context.Context, userID uint, statuses []models.CampaignStatus) ([]*models.Campaign, error)
}

// MetricSnapshotRepository defines operations for campaign metric snapshots
type MetricSnapshotRepository interface {
	Repository[models.MetricSnapshot, models.MetricSnapshotFilter]
	UpsertLatest(ctx context.Context, snapshot *models.MetricSnapshot) error
	UpsertBucket(ctx context.Context, snapshot *models.MetricSnapshot) error
	Latest(ctx context.Context, campaignID uint) (*models.MetricSnapshot, error)
	LatestCapturedAt(ctx context.Context, campaignIDs []uint) (map[uint]time.Time, error)
}

// AlertThresholdRepository defines operations for per-user detection thresholds
type AlertThresholdRepository interface {
	ByUserID(ctx context.Context, userID uint) (*models.AlertThreshold, error)
	Save(ctx context.Context, threshold *models.AlertThreshold) error
}

// AlertRepository defines operations for detected alerts
type AlertRepository interface {
	Repository[models.Alert, models.AlertFilter]
	SupersedeBatch(ctx context.Context, alerts []*models.Alert) error
	Close(ctx context.Context, userID, alertID uint, resolution models.AlertResolution, at time.Time) (*models.Alert, error)
}

// NotificationPreferenceRepository defines operations for messaging preferences
type NotificationPreferenceRepository interface {
	ByUserID(ctx context.Context, userID uint) (*models.NotificationPreference, error)
	Save(ctx context.Context, pref *models.NotificationPreference) error
}

// NarrativeRecordRepository stores generated narratives
type NarrativeRecordRepository interface {
	Save(ctx context.Context, record *models.NarrativeRecord) error
	ListByUser(ctx context.Context, userID uint, limit int) ([]*models.NarrativeRecord, error)
}

// NotificationLogRepository stores dispatch outcomes
type NotificationLogRepository interface {
	Save(ctx context.Context, entry *models.NotificationLog) error
	CountByStatus(ctx context.Context, userID uint, since time.Time) (map[models.NotificationStatus]int64, error)
}
