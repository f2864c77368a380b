package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
)

// FacebookAccountRepositoryImpl implements FacebookAccountRepository
type FacebookAccountRepositoryImpl struct {
	*BaseRepository[models.FacebookAccount, models.FacebookAccountFilter]
}

func NewFacebookAccountRepository(db *gorm.DB) FacebookAccountRepository {
	return &FacebookAccountRepositoryImpl{
		BaseRepository: NewBaseRepository[models.FacebookAccount, models.FacebookAccountFilter](db),
	}
}

func (r *FacebookAccountRepositoryImpl) applyFilter(db *gorm.DB, f models.FacebookAccountFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("user_id = ?", *f.UserID)
	}
	if f.IsActive != nil {
		db = db.Where("is_active = ?", *f.IsActive)
	}
	return db
}

func (r *FacebookAccountRepositoryImpl) ByFilter(ctx context.Context, filter models.FacebookAccountFilter, orderBy string, limit, offset int) ([]*models.FacebookAccount, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.FacebookAccount{}), filter), orderBy, limit, offset)
	var rows []*models.FacebookAccount
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list facebook accounts: %w", err)
	}
	return rows, nil
}

func (r *FacebookAccountRepositoryImpl) Count(ctx context.Context, filter models.FacebookAccountFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.FacebookAccount{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FacebookAccountRepositoryImpl) Exists(ctx context.Context, filter models.FacebookAccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *FacebookAccountRepositoryImpl) ListActiveByUser(ctx context.Context, userID uint) ([]*models.FacebookAccount, error) {
	active := true
	return r.ByFilter(ctx, models.FacebookAccountFilter{UserID: &userID, IsActive: &active}, "id ASC", 0, 0)
}

func (r *FacebookAccountRepositoryImpl) MarkSynced(ctx context.Context, id uint, at time.Time) error {
	err := r.getDB(ctx).
		Model(&models.FacebookAccount{}).
		Where("id = ?", id).
		Updates(map[string]any{"last_synced_at": at, "updated_at": at}).Error
	if err != nil {
		return fmt.Errorf("failed to mark account %d synced: %w", id, err)
	}
	return nil
}
