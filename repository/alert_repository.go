package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/adwatch/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAlertAlreadyClosed is returned when resolving an alert that is no longer open
var ErrAlertAlreadyClosed = errors.New("alert already closed")

// AlertRepositoryImpl implements AlertRepository
type AlertRepositoryImpl struct {
	*BaseRepository[models.Alert, models.AlertFilter]
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &AlertRepositoryImpl{BaseRepository: NewBaseRepository[models.Alert, models.AlertFilter](db)}
}

func (r *AlertRepositoryImpl) applyFilter(db *gorm.DB, f models.AlertFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("alerts.id = ?", *f.ID)
	}
	if f.UUID != nil {
		db = db.Where("alerts.uuid = ?", *f.UUID)
	}
	if f.UserID != nil {
		db = db.Where("alerts.user_id = ?", *f.UserID)
	}
	if f.CampaignID != nil {
		db = db.Where("alerts.campaign_id = ?", *f.CampaignID)
	}
	if f.AlertType != nil {
		db = db.Where("alerts.alert_type = ?", *f.AlertType)
	}
	if f.IsResolved != nil {
		db = db.Where("alerts.is_resolved = ?", *f.IsResolved)
	}
	if f.Severity != nil {
		db = db.Where("alerts.severity = ?", *f.Severity)
	}
	return db
}

func (r *AlertRepositoryImpl) ByFilter(ctx context.Context, filter models.AlertFilter, orderBy string, limit, offset int) ([]*models.Alert, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Alert{}), filter), orderBy, limit, offset)
	var rows []*models.Alert
	if err := query.Preload("Campaign").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return rows, nil
}

func (r *AlertRepositoryImpl) Count(ctx context.Context, filter models.AlertFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Alert{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AlertRepositoryImpl) Exists(ctx context.Context, filter models.AlertFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// SupersedeBatch writes the alerts in one statement. When an unresolved alert of the
// same (campaign_id, alert_type) already exists it is refreshed in place and its
// occurrence count bumped, so repeated detection runs never pile up duplicates.
func (r *AlertRepositoryImpl) SupersedeBatch(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	// Deduplicate by conflict key to avoid ON CONFLICT hitting same row twice in one statement
	type aggKey struct {
		campaignID uint
		alertType  models.AlertType
	}
	seen := make(map[aggKey]int, len(alerts))
	deduped := make([]*models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if a == nil {
			continue
		}
		key := aggKey{campaignID: a.CampaignID, alertType: a.AlertType}
		if idx, exists := seen[key]; exists {
			deduped[idx] = a
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, a)
	}

	err := r.getDB(ctx).Clauses(
		clause.OnConflict{
			Columns:     []clause.Column{{Name: "campaign_id"}, {Name: "alert_type"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{clause.Expr{SQL: "is_resolved = FALSE"}}},
			DoUpdates: clause.Assignments(map[string]any{
				"severity":         clause.Expr{SQL: "EXCLUDED.severity"},
				"title":            clause.Expr{SQL: "EXCLUDED.title"},
				"message":          clause.Expr{SQL: "EXCLUDED.message"},
				"metadata":         clause.Expr{SQL: "EXCLUDED.metadata"},
				"occurrence_count": clause.Expr{SQL: "alerts.occurrence_count + 1"},
				"last_detected_at": clause.Expr{SQL: "EXCLUDED.last_detected_at"},
				"updated_at":       clause.Expr{SQL: "EXCLUDED.updated_at"},
			}),
		},
		clause.Returning{},
	).Create(&deduped).Error
	if err != nil {
		return fmt.Errorf("failed to save alerts: %w", err)
	}
	return nil
}

// Close marks an open alert as resolved or ignored. It returns (nil, nil) when the
// alert does not exist for the user and ErrAlertAlreadyClosed when it is not open.
func (r *AlertRepositoryImpl) Close(ctx context.Context, userID, alertID uint, resolution models.AlertResolution, at time.Time) (*models.Alert, error) {
	var out *models.Alert
	err := r.inTransaction(ctx, func(txCtx context.Context) error {
		db := r.getDB(txCtx)

		var row models.Alert
		if err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", alertID, userID).
			Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load alert %d: %w", alertID, err)
		}
		if row.IsResolved {
			out = &row
			return ErrAlertAlreadyClosed
		}

		updates := map[string]any{
			"is_resolved": true,
			"resolution":  resolution,
			"resolved_by": userID,
			"resolved_at": at,
			"updated_at":  at,
		}
		if err := db.Model(&row).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to close alert %d: %w", alertID, err)
		}
		out = &row
		return nil
	})
	return out, err
}
