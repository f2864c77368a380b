package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CampaignRepositoryImpl implements CampaignRepository
type CampaignRepositoryImpl struct {
	*BaseRepository[models.Campaign, models.CampaignFilter]
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &CampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.Campaign, models.CampaignFilter](db)}
}

func (r *CampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.CampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("campaigns.id = ?", *f.ID)
	}
	if f.UserID != nil {
		db = db.Where("campaigns.user_id = ?", *f.UserID)
	}
	if f.FacebookAccountID != nil {
		db = db.Where("campaigns.facebook_account_id = ?", *f.FacebookAccountID)
	}
	if f.FacebookCampaignID != nil {
		db = db.Where("campaigns.facebook_campaign_id = ?", *f.FacebookCampaignID)
	}
	if len(f.Statuses) > 0 {
		db = db.Where("campaigns.status IN ?", f.Statuses)
	}
	return db
}

func (r *CampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignFilter, orderBy string, limit, offset int) ([]*models.Campaign, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Campaign{}), filter), orderBy, limit, offset)
	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	return rows, nil
}

func (r *CampaignRepositoryImpl) Count(ctx context.Context, filter models.CampaignFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Campaign{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *CampaignRepositoryImpl) Exists(ctx context.Context, filter models.CampaignFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// Upsert inserts the campaign or overwrites the mutable fields of the existing row
// with the same (facebook_account_id, facebook_campaign_id). The stored row,
// including its original id, uuid and created_at, is scanned back into campaign.
func (r *CampaignRepositoryImpl) Upsert(ctx context.Context, campaign *models.Campaign) error {
	err := r.getDB(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "facebook_account_id"}, {Name: "facebook_campaign_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"user_id":         clause.Expr{SQL: "EXCLUDED.user_id"},
				"name":            clause.Expr{SQL: "EXCLUDED.name"},
				"objective":       clause.Expr{SQL: "EXCLUDED.objective"},
				"status":          clause.Expr{SQL: "EXCLUDED.status"},
				"daily_budget":    clause.Expr{SQL: "EXCLUDED.daily_budget"},
				"lifetime_budget": clause.Expr{SQL: "EXCLUDED.lifetime_budget"},
				"spend_cap":       clause.Expr{SQL: "EXCLUDED.spend_cap"},
				"created_time":    clause.Expr{SQL: "EXCLUDED.created_time"},
				"start_time":      clause.Expr{SQL: "EXCLUDED.start_time"},
				"stop_time":       clause.Expr{SQL: "EXCLUDED.stop_time"},
				"updated_at":      clause.Expr{SQL: "EXCLUDED.updated_at"},
			}),
		},
		clause.Returning{},
	).Create(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to upsert campaign %s: %w", campaign.FacebookCampaignID, err)
	}
	return nil
}

func (r *CampaignRepositoryImpl) ByUserAndID(ctx context.Context, userID, campaignID uint) (*models.Campaign, error) {
	var row models.Campaign
	err := r.getDB(ctx).
		Preload("Account").
		Where("id = ? AND user_id = ?", campaignID, userID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find campaign %d: %w", campaignID, err)
	}
	return &row, nil
}

// ListWithLatestSnapshot loads the user's campaigns in the given statuses together
// with their latest snapshot in a single joined query.
func (r *CampaignRepositoryImpl) ListWithLatestSnapshot(ctx context.Context, userID uint, statuses []models.CampaignStatus) ([]*models.Campaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Campaign{}), models.CampaignFilter{UserID: &userID, Statuses: statuses}).
		Joins("LatestSnapshot", db.Where(&models.MetricSnapshot{IsLatest: true})).
		Order("campaigns.id ASC")

	var rows []*models.Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list campaigns with snapshots: %w", err)
	}
	for _, c := range rows {
		if c.LatestSnapshot != nil && c.LatestSnapshot.ID == 0 {
			c.LatestSnapshot = nil
		}
	}
	return rows, nil
}
