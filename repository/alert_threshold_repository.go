package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AlertThresholdRepositoryImpl implements AlertThresholdRepository
type AlertThresholdRepositoryImpl struct {
	*BaseRepository[models.AlertThreshold, any]
}

func NewAlertThresholdRepository(db *gorm.DB) AlertThresholdRepository {
	return &AlertThresholdRepositoryImpl{BaseRepository: NewBaseRepository[models.AlertThreshold, any](db)}
}

func (r *AlertThresholdRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.AlertThreshold, error) {
	var row models.AlertThreshold
	if err := r.getDB(ctx).Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load thresholds for user %d: %w", userID, err)
	}
	return &row, nil
}

// Save creates or replaces the user's thresholds
func (r *AlertThresholdRepositoryImpl) Save(ctx context.Context, threshold *models.AlertThreshold) error {
	return r.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"low_ctr", "high_cpc", "budget_usage", "max_spend", "frequency_cap", "updated_at",
		}),
	}).Create(threshold).Error
}
