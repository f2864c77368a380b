package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
)

// NotificationLogRepositoryImpl implements NotificationLogRepository
type NotificationLogRepositoryImpl struct {
	*BaseRepository[models.NotificationLog, any]
}

func NewNotificationLogRepository(db *gorm.DB) NotificationLogRepository {
	return &NotificationLogRepositoryImpl{BaseRepository: NewBaseRepository[models.NotificationLog, any](db)}
}

func (r *NotificationLogRepositoryImpl) CountByStatus(ctx context.Context, userID uint, since time.Time) (map[models.NotificationStatus]int64, error) {
	var rows []struct {
		Status models.NotificationStatus
		Total  int64
	}
	err := r.getDB(ctx).
		Model(&models.NotificationLog{}).
		Select("status, COUNT(*) AS total").
		Where("user_id = ? AND created_at >= ?", userID, since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	out := make(map[models.NotificationStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
