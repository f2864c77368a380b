package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/config"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
)

// SyncFlow pulls campaigns and insights for a user's ad accounts
type SyncFlow interface {
	SyncAccounts(ctx context.Context, userID uint, req dto.SyncRequest) *dto.SyncResponse
}

type SyncFlowImpl struct {
	gateway      services.FacebookGateway
	reconciler   *Reconciler
	accountRepo  repository.FacebookAccountRepository
	campaignRepo repository.CampaignRepository
	snapshotRepo repository.MetricSnapshotRepository
	locker       services.Locker
	cfg          config.SyncConfig
	logger       *log.Logger
	now          func() time.Time
}

func NewSyncFlow(
	gateway services.FacebookGateway,
	reconciler *Reconciler,
	accountRepo repository.FacebookAccountRepository,
	campaignRepo repository.CampaignRepository,
	snapshotRepo repository.MetricSnapshotRepository,
	locker services.Locker,
	cfg config.SyncConfig,
	logger *log.Logger,
) SyncFlow {
	if logger == nil {
		logger = log.Default()
	}
	if locker == nil {
		locker = services.NewMemoryLocker()
	}
	return &SyncFlowImpl{
		gateway:      gateway,
		reconciler:   reconciler,
		accountRepo:  accountRepo,
		campaignRepo: campaignRepo,
		snapshotRepo: snapshotRepo,
		locker:       locker,
		cfg:          cfg,
		logger:       logger,
		now:          utils.UTCNow,
	}
}

// SyncAccounts reconciles the requested account, or every active account of the
// user, one account at a time. It never fails: problems are reported in the
// response's Errors and reflected in its Status.
func (f *SyncFlowImpl) SyncAccounts(ctx context.Context, userID uint, req dto.SyncRequest) *dto.SyncResponse {
	start := time.Now()
	res := &dto.SyncResponse{Errors: make([]string, 0)}
	defer func() {
		res.Status = syncStatus(res)
		res.DurationMS = time.Since(start).Milliseconds()
		syncDuration.WithLabelValues(res.Status).Observe(time.Since(start).Seconds())
	}()

	if userID == 0 {
		res.Errors = append(res.Errors, ErrUserIDRequired.Error())
		return res
	}

	window := services.InsightWindow(req.Window)
	if window == "" {
		window = services.InsightWindow(f.cfg.DefaultWindow)
	}
	if !window.Valid() || !window.SingleDay() {
		res.Errors = append(res.Errors, ErrInvalidWindow.Error())
		return res
	}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	accounts, err := f.loadAccounts(ctx, userID, req.AccountID)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	for _, account := range accounts {
		if err := ctx.Err(); err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("account %s: %s", account.FacebookAccountID, describeGatewayError(err)))
			break
		}
		f.syncAccount(ctx, account, window, req.ForceRefresh, res)
	}

	f.logger.Printf("sync user=%d accounts=%d campaigns=%d updated=%d errors=%d",
		userID, res.AccountsProcessed, res.CampaignsProcessed, res.CampaignsUpdated, len(res.Errors))
	return res
}

func (f *SyncFlowImpl) loadAccounts(ctx context.Context, userID uint, accountID *uint) ([]*models.FacebookAccount, error) {
	if accountID == nil {
		accounts, err := f.accountRepo.ListActiveByUser(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load ad accounts: %w", err)
		}
		return accounts, nil
	}

	active := true
	accounts, err := f.accountRepo.ByFilter(ctx, models.FacebookAccountFilter{
		ID:       accountID,
		UserID:   &userID,
		IsActive: &active,
	}, "", 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load ad account %d: %w", *accountID, err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("account %d: %w", *accountID, ErrFacebookAccountNotFound)
	}
	return accounts, nil
}

func (f *SyncFlowImpl) syncAccount(ctx context.Context, account *models.FacebookAccount, window services.InsightWindow, force bool, res *dto.SyncResponse) {
	label := account.FacebookAccountID

	release, err := f.locker.Acquire(ctx, fmt.Sprintf("sync:account:%d", account.ID), f.cfg.LockTTL)
	if err != nil {
		if errors.Is(err, services.ErrLockHeld) {
			err = ErrSyncInProgress
		}
		res.Errors = append(res.Errors, fmt.Sprintf("account %s: %s", label, err.Error()))
		return
	}
	defer release()

	res.AccountsProcessed++

	if !force {
		cached, count, err := f.freshFromCache(ctx, account)
		if err != nil {
			f.logger.Printf("sync cache check failed for account %s: %v", label, err)
		}
		if cached {
			res.AccountsFromCache++
			res.CampaignsProcessed += count
			syncCampaignsTotal.WithLabelValues("cached").Add(float64(count))
			return
		}
	}

	campaigns, err := f.gateway.ListCampaignsWithFallback(ctx, account.AccessToken, account.FacebookAccountID)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("account %s: %s", label, describeGatewayError(err)))
		return
	}

	result := f.reconciler.Reconcile(ctx, account, campaigns, ReconcileOptions{
		Window:      window,
		Concurrency: f.cfg.Concurrency,
		Hourly:      f.cfg.HourlyBuckets,
	})
	res.CampaignsProcessed += result.Processed
	res.CampaignsUpdated += result.Stored
	for _, e := range result.Errors {
		res.Errors = append(res.Errors, fmt.Sprintf("account %s: %s", label, e))
	}

	if len(result.Errors) == 0 || result.Stored > 0 {
		if err := f.accountRepo.MarkSynced(ctx, account.ID, f.now()); err != nil {
			f.logger.Printf("failed to mark account %s synced: %v", label, err)
		}
	}
}

// freshFromCache reports whether every stored campaign of the account already has
// a latest snapshot captured within the freshness window.
func (f *SyncFlowImpl) freshFromCache(ctx context.Context, account *models.FacebookAccount) (bool, int, error) {
	if f.cfg.CacheFreshness <= 0 {
		return false, 0, nil
	}

	campaigns, err := f.campaignRepo.ByFilter(ctx, models.CampaignFilter{FacebookAccountID: &account.ID}, "id ASC", 0, 0)
	if err != nil {
		return false, 0, err
	}
	if len(campaigns) == 0 {
		return false, 0, nil
	}

	ids := make([]uint, 0, len(campaigns))
	for _, c := range campaigns {
		ids = append(ids, c.ID)
	}
	captured, err := f.snapshotRepo.LatestCapturedAt(ctx, ids)
	if err != nil {
		return false, 0, err
	}

	cutoff := f.now().Add(-f.cfg.CacheFreshness)
	for _, id := range ids {
		at, ok := captured[id]
		if !ok || at.Before(cutoff) {
			return false, 0, nil
		}
	}
	return true, len(ids), nil
}

func syncStatus(res *dto.SyncResponse) string {
	switch {
	case len(res.Errors) == 0:
		return dto.SyncStatusSuccess
	case res.CampaignsUpdated > 0 || res.AccountsFromCache > 0:
		return dto.SyncStatusPartial
	default:
		return dto.SyncStatusFailed
	}
}
