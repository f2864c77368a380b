package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
)

// monitoredStatuses are the campaign statuses detection looks at
var monitoredStatuses = []models.CampaignStatus{
	models.CampaignStatusActive,
	models.CampaignStatusLearning,
	models.CampaignStatusPaused,
}

// AlertFlow runs threshold detection and the user actions on alerts
type AlertFlow interface {
	Detect(ctx context.Context, userID uint) ([]*models.Alert, int, error)
	DetectAlerts(ctx context.Context, userID uint) (*dto.DetectAlertsResponse, error)
	ListAlerts(ctx context.Context, req dto.ListAlertsRequest) (*dto.ListAlertsResponse, error)
	ResolveAlert(ctx context.Context, userID, alertID uint) (*dto.CloseAlertResponse, error)
	IgnoreAlert(ctx context.Context, userID, alertID uint) (*dto.CloseAlertResponse, error)
}

type AlertFlowImpl struct {
	campaignRepo  repository.CampaignRepository
	thresholdRepo repository.AlertThresholdRepository
	alertRepo     repository.AlertRepository
	logger        *log.Logger
	now           func() time.Time
}

func NewAlertFlow(
	campaignRepo repository.CampaignRepository,
	thresholdRepo repository.AlertThresholdRepository,
	alertRepo repository.AlertRepository,
	logger *log.Logger,
) AlertFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &AlertFlowImpl{
		campaignRepo:  campaignRepo,
		thresholdRepo: thresholdRepo,
		alertRepo:     alertRepo,
		logger:        logger,
		now:           utils.UTCNow,
	}
}

// Detect evaluates the user's thresholds against every monitored campaign's latest
// snapshot and stores the resulting alerts. It returns the alerts (open rows after
// the upsert) and the number of campaigns evaluated.
func (f *AlertFlowImpl) Detect(ctx context.Context, userID uint) ([]*models.Alert, int, error) {
	if userID == 0 {
		return nil, 0, ErrUserIDRequired
	}

	threshold, err := f.thresholdRepo.ByUserID(ctx, userID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load thresholds: %w", err)
	}
	if threshold == nil {
		threshold = models.DefaultAlertThreshold(userID)
	}

	campaigns, err := f.campaignRepo.ListWithLatestSnapshot(ctx, userID, monitoredStatuses)
	if err != nil {
		return nil, 0, err
	}

	detectedAt := f.now()
	alerts := make([]*models.Alert, 0)
	for _, c := range campaigns {
		alerts = append(alerts, evaluateCampaign(c, threshold, detectedAt)...)
	}

	if len(alerts) == 0 {
		return alerts, len(campaigns), nil
	}
	if err := f.alertRepo.SupersedeBatch(ctx, alerts); err != nil {
		return nil, len(campaigns), err
	}

	byID := make(map[uint]*models.Campaign, len(campaigns))
	for _, c := range campaigns {
		byID[c.ID] = c
	}
	for _, a := range alerts {
		a.Campaign = byID[a.CampaignID]
		alertsDetectedTotal.WithLabelValues(a.AlertType.String(), a.Severity.String()).Inc()
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
	})

	f.logger.Printf("detect user=%d campaigns=%d alerts=%d", userID, len(campaigns), len(alerts))
	return alerts, len(campaigns), nil
}

func (f *AlertFlowImpl) DetectAlerts(ctx context.Context, userID uint) (*dto.DetectAlertsResponse, error) {
	alerts, evaluated, err := f.Detect(ctx, userID)
	if err != nil {
		return nil, NewBusinessError("DETECT_ALERTS_FAILED", "Failed to detect alerts", err)
	}

	items := make([]dto.AlertDTO, 0, len(alerts))
	for _, a := range alerts {
		items = append(items, ToAlertDTO(*a))
	}
	return &dto.DetectAlertsResponse{
		Message:            "Alert detection completed",
		CampaignsEvaluated: evaluated,
		Alerts:             items,
	}, nil
}

func (f *AlertFlowImpl) ListAlerts(ctx context.Context, req dto.ListAlertsRequest) (_ *dto.ListAlertsResponse, err error) {
	defer func() {
		if err != nil {
			err = NewBusinessError("LIST_ALERTS_FAILED", "Failed to list alerts", err)
		}
	}()

	if req.UserID == 0 {
		err = ErrUserIDRequired
		return nil, err
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}
	if req.Page < 1 {
		err = ErrInvalidPage
		return nil, err
	}
	if req.PageSize < 1 || req.PageSize > 100 {
		err = ErrInvalidPageSize
		return nil, err
	}

	filter := models.AlertFilter{UserID: &req.UserID, IsResolved: req.Resolved}
	if req.Type != nil {
		t := models.AlertType(*req.Type)
		filter.AlertType = &t
	}

	total, err := f.alertRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := f.alertRepo.ByFilter(ctx, filter, "last_detected_at DESC, id DESC", req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		return nil, err
	}

	items := make([]dto.AlertDTO, 0, len(rows))
	for _, a := range rows {
		items = append(items, ToAlertDTO(*a))
	}
	return &dto.ListAlertsResponse{
		Message:  "Alerts retrieved successfully",
		Items:    items,
		Page:     req.Page,
		PageSize: req.PageSize,
		Total:    total,
	}, nil
}

func (f *AlertFlowImpl) ResolveAlert(ctx context.Context, userID, alertID uint) (*dto.CloseAlertResponse, error) {
	return f.closeAlert(ctx, userID, alertID, models.AlertResolutionResolved)
}

func (f *AlertFlowImpl) IgnoreAlert(ctx context.Context, userID, alertID uint) (*dto.CloseAlertResponse, error) {
	return f.closeAlert(ctx, userID, alertID, models.AlertResolutionIgnored)
}

func (f *AlertFlowImpl) closeAlert(ctx context.Context, userID, alertID uint, resolution models.AlertResolution) (*dto.CloseAlertResponse, error) {
	code := "RESOLVE_ALERT_FAILED"
	if resolution == models.AlertResolutionIgnored {
		code = "IGNORE_ALERT_FAILED"
	}

	alert, err := f.alertRepo.Close(ctx, userID, alertID, resolution, f.now())
	if err != nil {
		if errors.Is(err, repository.ErrAlertAlreadyClosed) {
			return nil, NewBusinessError(code, "Alert is already closed", ErrAlertAlreadyClosed)
		}
		return nil, NewBusinessError(code, "Failed to update alert", err)
	}
	if alert == nil {
		return nil, NewBusinessError(code, "Alert not found", ErrAlertNotFound)
	}

	return &dto.CloseAlertResponse{
		Message: fmt.Sprintf("Alert %s", resolution),
		Alert:   ToAlertDTO(*alert),
	}, nil
}
