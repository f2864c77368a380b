package repository

import (
	"context"
	"fmt"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
)

// NarrativeRecordRepositoryImpl implements NarrativeRecordRepository
type NarrativeRecordRepositoryImpl struct {
	*BaseRepository[models.NarrativeRecord, any]
}

func NewNarrativeRecordRepository(db *gorm.DB) NarrativeRecordRepository {
	return &NarrativeRecordRepositoryImpl{BaseRepository: NewBaseRepository[models.NarrativeRecord, any](db)}
}

func (r *NarrativeRecordRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit int) ([]*models.NarrativeRecord, error) {
	var rows []*models.NarrativeRecord
	query := paginate(r.getDB(ctx).Where("user_id = ?", userID), "created_at DESC, id DESC", limit, 0)
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list narratives: %w", err)
	}
	return rows, nil
}
