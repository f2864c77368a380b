package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// NotificationPreferenceRepositoryImpl implements NotificationPreferenceRepository
type NotificationPreferenceRepositoryImpl struct {
	*BaseRepository[models.NotificationPreference, any]
}

func NewNotificationPreferenceRepository(db *gorm.DB) NotificationPreferenceRepository {
	return &NotificationPreferenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.NotificationPreference, any](db),
	}
}

func (r *NotificationPreferenceRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.NotificationPreference, error) {
	var row models.NotificationPreference
	if err := r.getDB(ctx).Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load notification preference for user %d: %w", userID, err)
	}
	return &row, nil
}

// Save creates or replaces the user's preference row
func (r *NotificationPreferenceRepositoryImpl) Save(ctx context.Context, pref *models.NotificationPreference) error {
	return r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"whatsapp_number", "enabled", "morning_enabled", "afternoon_enabled", "evening_enabled",
			"disabled_alert_types", "quiet_hours_enabled", "quiet_hours_start", "quiet_hours_end",
			"timezone", "frequency", "updated_at",
		}),
	}).Create(pref).Error
}
