package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
	"golang.org/x/sync/errgroup"
)

// Action types read from the insights action list
const (
	actionLinkClick           = "link_click"
	actionMessagingConversion = "onsite_conversion.messaging_conversation_started_7d"
)

// conversionActions are summed into MetricSnapshot.Conversions
var conversionActions = []string{
	"lead",
	"purchase",
	"complete_registration",
	"offsite_conversion.fb_pixel_purchase",
	"offsite_conversion.fb_pixel_lead",
}

// ReconcileOptions controls one reconcile pass over an account's campaigns
type ReconcileOptions struct {
	Window      services.InsightWindow
	Concurrency int
	// Hourly also stores the per-hour breakdown of the window
	Hourly bool
}

// ReconcileResult reports what one reconcile pass did
type ReconcileResult struct {
	Processed int
	Stored    int
	NoData    int
	Errors    []string
}

// Reconciler turns gateway campaigns and insights into stored campaigns and snapshots
type Reconciler struct {
	gateway      services.FacebookGateway
	campaignRepo repository.CampaignRepository
	snapshotRepo repository.MetricSnapshotRepository
	logger       *log.Logger
	now          func() time.Time
}

// NewReconciler creates a reconciler
func NewReconciler(
	gateway services.FacebookGateway,
	campaignRepo repository.CampaignRepository,
	snapshotRepo repository.MetricSnapshotRepository,
	logger *log.Logger,
) *Reconciler {
	if logger == nil {
		logger = log.Default()
	}
	return &Reconciler{
		gateway:      gateway,
		campaignRepo: campaignRepo,
		snapshotRepo: snapshotRepo,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

// Reconcile upserts every campaign and, when the platform has data for it, its
// snapshot. A failing campaign is recorded in Errors and does not stop the others.
func (r *Reconciler) Reconcile(ctx context.Context, account *models.FacebookAccount, campaigns []services.FacebookCampaign, opts ReconcileOptions) ReconcileResult {
	result := ReconcileResult{Errors: make([]string, 0)}
	if len(campaigns) == 0 {
		return result
	}
	// only single-day windows map onto daily buckets
	if !opts.Window.Valid() || !opts.Window.SingleDay() {
		opts.Window = services.InsightWindowToday
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(opts.Concurrency)

	for i := range campaigns {
		fc := campaigns[i]
		g.Go(func() error {
			stored, err := r.reconcileOne(ctx, account, fc, opts)

			mu.Lock()
			defer mu.Unlock()
			result.Processed++
			switch {
			case err != nil:
				result.Errors = append(result.Errors, fmt.Sprintf("campaign %s (%s): %s", fc.ID, fc.Name, describeGatewayError(err)))
				syncCampaignsTotal.WithLabelValues("failed").Inc()
			case stored:
				result.Stored++
				syncCampaignsTotal.WithLabelValues("stored").Inc()
			default:
				result.NoData++
				syncCampaignsTotal.WithLabelValues("no_data").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

func (r *Reconciler) reconcileOne(ctx context.Context, account *models.FacebookAccount, fc services.FacebookCampaign, opts ReconcileOptions) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	campaign := campaignFromGateway(account, fc)
	if err := r.campaignRepo.Upsert(ctx, campaign); err != nil {
		return false, err
	}

	insights, err := r.gateway.GetCampaignInsights(ctx, account.AccessToken, fc.ID, opts.Window)
	if err != nil {
		return false, err
	}
	if insights == nil {
		return false, nil
	}
	if !insights.SingleDay() {
		r.logger.Printf("campaign %s: skipping %s..%s insight row, not a single day", fc.ID, insights.DateStart, insights.DateStop)
		return false, nil
	}

	capturedAt := r.now()
	snapshot := snapshotFromInsights(campaign.ID, insights, capturedAt)
	if err := r.snapshotRepo.UpsertLatest(ctx, snapshot); err != nil {
		return false, err
	}

	if opts.Hourly {
		if err := r.storeHourly(ctx, account, fc.ID, campaign.ID, opts.Window, capturedAt); err != nil {
			r.logger.Printf("campaign %s: hourly breakdown not stored: %v", fc.ID, err)
		}
	}
	return true, nil
}

// storeHourly upserts one bucket per reported hour of the window
func (r *Reconciler) storeHourly(ctx context.Context, account *models.FacebookAccount, facebookCampaignID string, campaignID uint, window services.InsightWindow, capturedAt time.Time) error {
	rows, err := r.gateway.GetCampaignHourlyInsights(ctx, account.AccessToken, facebookCampaignID, window)
	if err != nil {
		return err
	}
	for i := range rows {
		hour, ok := rows[i].Hour()
		if !ok || !rows[i].SingleDay() {
			continue
		}
		snapshot := snapshotFromInsights(campaignID, &rows[i], capturedAt)
		snapshot.MetricHour = &hour
		snapshot.IsLatest = false
		if err := r.snapshotRepo.UpsertBucket(ctx, snapshot); err != nil {
			return err
		}
	}
	return nil
}

// campaignFromGateway maps a platform campaign onto the stored model
func campaignFromGateway(account *models.FacebookAccount, fc services.FacebookCampaign) *models.Campaign {
	status := fc.EffectiveStatus
	if status == "" {
		status = fc.Status
	}
	return &models.Campaign{
		FacebookAccountID:  account.ID,
		FacebookCampaignID: fc.ID,
		UserID:             account.UserID,
		Name:               fc.Name,
		Objective:          fc.Objective,
		Status:             models.ParseCampaignStatus(status),
		DailyBudget:        services.ParseMinorUnits(fc.DailyBudget),
		LifetimeBudget:     services.ParseMinorUnits(fc.LifetimeBudget),
		SpendCap:           services.ParseMinorUnits(fc.SpendCap),
		CreatedTime:        services.ParseGraphTime(fc.CreatedTime),
		StartTime:          services.ParseGraphTime(fc.StartTime),
		StopTime:           services.ParseGraphTime(fc.StopTime),
	}
}

// snapshotFromInsights builds a snapshot keyed on the insight stop date. Callers
// only pass single-day rows.
// Rates missing from the response are derived from the raw counts.
func snapshotFromInsights(campaignID uint, in *services.FacebookInsights, capturedAt time.Time) *models.MetricSnapshot {
	impressions := in.ImpressionsCount()
	clicks := in.ClicksCount()
	spend := in.SpendAmount()

	ctr := in.CTRValue()
	if ctr == 0 && clicks > 0 {
		ctr = utils.SafeDivide(float64(clicks), float64(impressions)) * 100
	}
	cpc := in.CPCValue()
	if cpc == 0 && clicks > 0 {
		cpc = utils.SafeDivide(spend, float64(clicks))
	}
	cpm := in.CPMValue()
	if cpm == 0 && impressions > 0 {
		cpm = utils.SafeDivide(spend, float64(impressions)) * 1000
	}

	linkClicks := in.ActionCount(actionLinkClick)
	messagingClicks := in.ActionCount(actionMessagingConversion)
	var conversions int64
	for _, a := range conversionActions {
		conversions += in.ActionCount(a)
	}

	metricDate := utils.TruncateToDay(capturedAt)
	if d, err := time.Parse(dateLayout, in.DateStop); err == nil {
		metricDate = d
	}

	return &models.MetricSnapshot{
		CampaignID:            campaignID,
		CapturedAt:            capturedAt,
		MetricDate:            metricDate,
		Impressions:           impressions,
		Clicks:                clicks,
		Spend:                 spend,
		Reach:                 in.ReachCount(),
		Frequency:             in.FrequencyValue(),
		CTR:                   ctr,
		CPC:                   cpc,
		CPM:                   cpm,
		Conversions:           conversions,
		LinkClicks:            linkClicks,
		CostPerLinkClick:      costPerAction(spend, linkClicks),
		MessagingClicks:       messagingClicks,
		CostPerMessagingClick: costPerAction(spend, messagingClicks),
		DataSource:            models.DataSourceAPI,
		IsLatest:              true,
	}
}

// costPerAction is spend divided by the action count, or zero when nothing happened
func costPerAction(spend float64, count int64) float64 {
	if count <= 0 {
		return 0
	}
	return spend / float64(count)
}

// describeGatewayError turns classified platform failures into actionable text
func describeGatewayError(err error) string {
	switch {
	case errors.Is(err, services.ErrFacebookInvalidToken):
		return "access token is invalid or expired, reconnect the ad account"
	case errors.Is(err, services.ErrFacebookPermissionDenied):
		return "missing ads_read permission for this account, grant access again"
	case errors.Is(err, services.ErrFacebookRateLimited):
		return "ad platform rate limit reached, retry later"
	case errors.Is(err, context.DeadlineExceeded):
		return "sync time limit reached"
	case errors.Is(err, services.ErrFacebookTransport):
		return "ad platform unreachable: " + err.Error()
	default:
		return err.Error()
	}
}
