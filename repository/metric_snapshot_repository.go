package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MetricSnapshotRepositoryImpl implements MetricSnapshotRepository
type MetricSnapshotRepositoryImpl struct {
	*BaseRepository[models.MetricSnapshot, models.MetricSnapshotFilter]
}

func NewMetricSnapshotRepository(db *gorm.DB) MetricSnapshotRepository {
	return &MetricSnapshotRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MetricSnapshot, models.MetricSnapshotFilter](db),
	}
}

func (r *MetricSnapshotRepositoryImpl) applyFilter(db *gorm.DB, f models.MetricSnapshotFilter) *gorm.DB {
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.DateFrom != nil {
		db = db.Where("metric_date >= ?", *f.DateFrom)
	}
	if f.DateTo != nil {
		db = db.Where("metric_date <= ?", *f.DateTo)
	}
	if f.Hourly != nil {
		if *f.Hourly {
			db = db.Where("metric_hour IS NOT NULL")
		} else {
			db = db.Where("metric_hour IS NULL")
		}
	}
	if f.IsLatest != nil {
		db = db.Where("is_latest = ?", *f.IsLatest)
	}
	return db
}

func (r *MetricSnapshotRepositoryImpl) ByFilter(ctx context.Context, filter models.MetricSnapshotFilter, orderBy string, limit, offset int) ([]*models.MetricSnapshot, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.MetricSnapshot{}), filter), orderBy, limit, offset)
	var rows []*models.MetricSnapshot
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list metric snapshots: %w", err)
	}
	return rows, nil
}

func (r *MetricSnapshotRepositoryImpl) Count(ctx context.Context, filter models.MetricSnapshotFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.MetricSnapshot{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *MetricSnapshotRepositoryImpl) Exists(ctx context.Context, filter models.MetricSnapshotFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// UpsertLatest stores the snapshot on its (campaign_id, metric_date, metric_hour)
// bucket and makes it the campaign's only latest row. The campaign row is locked
// for the duration so concurrent syncs of the same campaign swap one at a time.
func (r *MetricSnapshotRepositoryImpl) UpsertLatest(ctx context.Context, snapshot *models.MetricSnapshot) error {
	return r.inTransaction(ctx, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		var locked models.Campaign
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ?", snapshot.CampaignID).
			Take(&locked).Error; err != nil {
			return fmt.Errorf("failed to lock campaign %d: %w", snapshot.CampaignID, err)
		}

		if err := db.Model(&models.MetricSnapshot{}).
			Where("campaign_id = ? AND is_latest = TRUE", snapshot.CampaignID).
			Update("is_latest", false).Error; err != nil {
			return fmt.Errorf("failed to demote latest snapshot: %w", err)
		}

		now := utils.UTCNow()
		snapshot.IsLatest = true
		if snapshot.CapturedAt.IsZero() {
			snapshot.CapturedAt = now
		}
		snapshot.UpdatedAt = now

		if err := upsertBucket(db, snapshot); err != nil {
			return fmt.Errorf("failed to upsert snapshot for campaign %d: %w", snapshot.CampaignID, err)
		}
		return nil
	})
}

// UpsertBucket stores an hourly snapshot on its bucket without touching the
// campaign's latest row
func (r *MetricSnapshotRepositoryImpl) UpsertBucket(ctx context.Context, snapshot *models.MetricSnapshot) error {
	if snapshot.MetricHour == nil {
		return fmt.Errorf("snapshot for campaign %d has no hour", snapshot.CampaignID)
	}
	now := utils.UTCNow()
	snapshot.IsLatest = false
	if snapshot.CapturedAt.IsZero() {
		snapshot.CapturedAt = now
	}
	snapshot.UpdatedAt = now

	if err := upsertBucket(r.getDB(ctx), snapshot); err != nil {
		return fmt.Errorf("failed to upsert hourly snapshot for campaign %d: %w", snapshot.CampaignID, err)
	}
	return nil
}

// upsertBucket inserts the snapshot or overwrites the metrics of the row already
// on its (campaign_id, metric_date, metric_hour) bucket
func upsertBucket(db *gorm.DB, snapshot *models.MetricSnapshot) error {
	return db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "campaign_id"}, {Name: "metric_date"}, {Name: "metric_hour"}},
			DoUpdates: clause.Assignments(map[string]any{
				"captured_at":              clause.Expr{SQL: "EXCLUDED.captured_at"},
				"impressions":              clause.Expr{SQL: "EXCLUDED.impressions"},
				"clicks":                   clause.Expr{SQL: "EXCLUDED.clicks"},
				"spend":                    clause.Expr{SQL: "EXCLUDED.spend"},
				"reach":                    clause.Expr{SQL: "EXCLUDED.reach"},
				"frequency":                clause.Expr{SQL: "EXCLUDED.frequency"},
				"ctr":                      clause.Expr{SQL: "EXCLUDED.ctr"},
				"cpc":                      clause.Expr{SQL: "EXCLUDED.cpc"},
				"cpm":                      clause.Expr{SQL: "EXCLUDED.cpm"},
				"conversions":              clause.Expr{SQL: "EXCLUDED.conversions"},
				"link_clicks":              clause.Expr{SQL: "EXCLUDED.link_clicks"},
				"cost_per_link_click":      clause.Expr{SQL: "EXCLUDED.cost_per_link_click"},
				"messaging_clicks":         clause.Expr{SQL: "EXCLUDED.messaging_clicks"},
				"cost_per_messaging_click": clause.Expr{SQL: "EXCLUDED.cost_per_messaging_click"},
				"data_source":              clause.Expr{SQL: "EXCLUDED.data_source"},
				"is_latest":                clause.Expr{SQL: "EXCLUDED.is_latest"},
				"updated_at":               clause.Expr{SQL: "EXCLUDED.updated_at"},
			}),
		},
		clause.Returning{},
	).Create(snapshot).Error
}

func (r *MetricSnapshotRepositoryImpl) Latest(ctx context.Context, campaignID uint) (*models.MetricSnapshot, error) {
	var row models.MetricSnapshot
	err := r.getDB(ctx).Where("campaign_id = ? AND is_latest = TRUE", campaignID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find latest snapshot: %w", err)
	}
	return &row, nil
}

// LatestCapturedAt returns, per campaign id, when its latest snapshot was captured.
// Campaigns without a snapshot are absent from the map.
func (r *MetricSnapshotRepositoryImpl) LatestCapturedAt(ctx context.Context, campaignIDs []uint) (map[uint]time.Time, error) {
	out := make(map[uint]time.Time, len(campaignIDs))
	if len(campaignIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		CampaignID uint
		CapturedAt time.Time
	}
	err := r.getDB(ctx).
		Model(&models.MetricSnapshot{}).
		Select("campaign_id, captured_at").
		Where("campaign_id IN ? AND is_latest = TRUE", campaignIDs).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot freshness: %w", err)
	}
	for _, row := range rows {
		out[row.CampaignID] = row.CapturedAt
	}
	return out, nil
}
