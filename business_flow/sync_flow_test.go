package businessflow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/config"
	"github.com/amirphl/adwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type syncFixture struct {
	flow      *SyncFlowImpl
	gateway   *gatewayMock
	accounts  *fakeAccountRepo
	campaigns *fakeCampaignRepo
	snapshots *fakeSnapshotRepo
	locker    *services.MemoryLocker
}

func newSyncFixture(t *testing.T, accounts ...*models.FacebookAccount) *syncFixture {
	t.Helper()
	gw := &gatewayMock{}
	accountRepo := newFakeAccountRepo(accounts...)
	snapshots := newFakeSnapshotRepo()
	campaigns := newFakeCampaignRepo(snapshots, accountRepo)
	locker := services.NewMemoryLocker()

	reconciler := newTestReconciler(gw, campaigns, snapshots)
	flow := NewSyncFlow(gw, reconciler, accountRepo, campaigns, snapshots, locker, config.SyncConfig{
		Concurrency:    2,
		Timeout:        time.Minute,
		CacheFreshness: 15 * time.Minute,
		LockTTL:        time.Minute,
		DefaultWindow:  "today",
	}, discardLogger).(*SyncFlowImpl)
	flow.now = fixedClock(syncTime)

	return &syncFixture{flow: flow, gateway: gw, accounts: accountRepo, campaigns: campaigns, snapshots: snapshots, locker: locker}
}

func insightsRow(impressions, clicks int, spend string) *services.FacebookInsights {
	return &services.FacebookInsights{
		Impressions: fmt.Sprint(impressions),
		Clicks:      fmt.Sprint(clicks),
		Spend:       spend,
		DateStop:    "2024-03-04",
	}
}

func TestSyncFlow_SuccessfulSync(t *testing.T) {
	account := activeAccount(1, 1, "123")
	f := newSyncFixture(t, account)

	f.gateway.On("ListCampaignsWithFallback", mock.Anything, account.AccessToken, "123").
		Return([]services.FacebookCampaign{{ID: "c1", Name: "one", Status: "ACTIVE"}, {ID: "c2", Name: "two", Status: "PAUSED"}}, nil)
	f.gateway.On("GetCampaignInsights", mock.Anything, account.AccessToken, "c1", services.InsightWindowToday).Return(insightsRow(1000, 20, "10.00"), nil)
	f.gateway.On("GetCampaignInsights", mock.Anything, account.AccessToken, "c2", services.InsightWindowToday).Return(nil, nil)

	res := f.flow.SyncAccounts(context.Background(), 1, dto.SyncRequest{})

	assert.Equal(t, dto.SyncStatusSuccess, res.Status)
	assert.Equal(t, 1, res.AccountsProcessed)
	assert.Equal(t, 2, res.CampaignsProcessed)
	assert.Equal(t, 1, res.CampaignsUpdated)
	assert.Empty(t, res.Errors)
	assert.Equal(t, syncTime, f.accounts.synced[1])
}

func TestSyncFlow_PartialWhenSomeCampaignsFail(t *testing.T) {
	account := activeAccount(1, 1, "act_123")
	f := newSyncFixture(t, account)

	f.gateway.On("ListCampaignsWithFallback", mock.Anything, mock.Anything, "act_123").
		Return([]services.FacebookCampaign{{ID: "c1", Status: "ACTIVE"}, {ID: "c2", Status: "ACTIVE"}}, nil)
	f.gateway.On("GetCampaignInsights", mock.Anything, mock.Anything, "c1", mock.Anything).Return(insightsRow(1000, 20, "10.00"), nil)
	f.gateway.On("GetCampaignInsights", mock.Anything, mock.Anything, "c2", mock.Anything).
		Return(nil, fmt.Errorf("%w: connection reset", services.ErrFacebookTransport))

	res := f.flow.SyncAccounts(context.Background(), 1, dto.SyncRequest{})
	assert.Equal(t, dto.SyncStatusPartial, res.Status)
	assert.Equal(t, 1, res.CampaignsUpdated)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "act_123")
	assert.Contains(t, res.Errors[0], "unreachable")
}

func TestSyncFlow_FailedWhenListingFails(t *testing.T) {
	account := activeAccount(1, 1, "123")
	f := newSyncFixture(t, account)
	f.gateway.On("ListCampaignsWithFallback", mock.Anything, mock.Anything, "123").
		Return(nil, fmt.Errorf("graph: %w", services.ErrFacebookInvalidToken))

	res := f.flow.SyncAccounts(context.Background(), 1, dto.SyncRequest{})
	assert.Equal(t, dto.SyncStatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "reconnect")
	assert.Empty(t, f.accounts.synced)
}

func TestSyncFlow_CacheFirst(t *testing.T) {
	account := activeAccount(1, 1, "123")
	f := newSyncFixture(t, account)
	ctx := context.Background()

	c := &models.Campaign{FacebookAccountID: 1, FacebookCampaignID: "c1", UserID: 1, Status: models.CampaignStatusActive}
	require.NoError(t, f.campaigns.Upsert(ctx, c))
	require.NoError(t, f.snapshots.UpsertLatest(ctx, &models.MetricSnapshot{
		CampaignID: c.ID, MetricDate: utcDay(syncTime), CapturedAt: syncTime.Add(-5 * time.Minute),
	}))

	res := f.flow.SyncAccounts(ctx, 1, dto.SyncRequest{})
	assert.Equal(t, dto.SyncStatusSuccess, res.Status)
	assert.Equal(t, 1, res.AccountsFromCache)
	assert.Equal(t, 1, res.CampaignsProcessed)
	assert.Equal(t, 0, res.CampaignsUpdated)
	f.gateway.AssertNotCalled(t, "ListCampaignsWithFallback", mock.Anything, mock.Anything, mock.Anything)

	// force refresh bypasses the cache
	f.gateway.On("ListCampaignsWithFallback", mock.Anything, mock.Anything, "123").Return([]services.FacebookCampaign{}, nil)
	res = f.flow.SyncAccounts(ctx, 1, dto.SyncRequest{ForceRefresh: true})
	assert.Equal(t, 0, res.AccountsFromCache)
	f.gateway.AssertCalled(t, "ListCampaignsWithFallback", mock.Anything, mock.Anything, "123")
}

func TestSyncFlow_StaleCacheSyncsAgain(t *testing.T) {
	account := activeAccount(1, 1, "123")
	f := newSyncFixture(t, account)
	ctx := context.Background()

	c := &models.Campaign{FacebookAccountID: 1, FacebookCampaignID: "c1", UserID: 1, Status: models.CampaignStatusActive}
	require.NoError(t, f.campaigns.Upsert(ctx, c))
	require.NoError(t, f.snapshots.UpsertLatest(ctx, &models.MetricSnapshot{
		CampaignID: c.ID, MetricDate: utcDay(syncTime), CapturedAt: syncTime.Add(-time.Hour),
	}))
	f.gateway.On("ListCampaignsWithFallback", mock.Anything, mock.Anything, "123").Return([]services.FacebookCampaign{}, nil)

	res := f.flow.SyncAccounts(ctx, 1, dto.SyncRequest{})
	assert.Equal(t, 0, res.AccountsFromCache)
	f.gateway.AssertExpectations(t)
}

func TestSyncFlow_LockHeld(t *testing.T) {
	account := activeAccount(1, 1, "123")
	f := newSyncFixture(t, account)

	release, err := f.locker.Acquire(context.Background(), "sync:account:1", time.Minute)
	require.NoError(t, err)
	defer release()

	res := f.flow.SyncAccounts(context.Background(), 1, dto.SyncRequest{})
	assert.Equal(t, dto.SyncStatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], ErrSyncInProgress.Error())
}

func TestSyncFlow_Validation(t *testing.T) {
	f := newSyncFixture(t, activeAccount(1, 1, "123"))
	ctx := context.Background()

	res := f.flow.SyncAccounts(ctx, 1, dto.SyncRequest{Window: "last_year"})
	assert.Equal(t, dto.SyncStatusFailed, res.Status)
	assert.Contains(t, res.Errors, ErrInvalidWindow.Error())

	res = f.flow.SyncAccounts(ctx, 1, dto.SyncRequest{Window: "last_7d"})
	assert.Equal(t, dto.SyncStatusFailed, res.Status)
	assert.Contains(t, res.Errors, ErrInvalidWindow.Error(), "multi-day windows would overwrite daily buckets")
	f.gateway.AssertNotCalled(t, "ListCampaignsWithFallback", mock.Anything, mock.Anything, mock.Anything)

	other := uint(99)
	res = f.flow.SyncAccounts(ctx, 1, dto.SyncRequest{AccountID: &other})
	assert.Equal(t, dto.SyncStatusFailed, res.Status)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], ErrFacebookAccountNotFound.Error())

	res = f.flow.SyncAccounts(ctx, 2, dto.SyncRequest{})
	assert.Equal(t, dto.SyncStatusSuccess, res.Status, "a user without accounts has nothing to do")
	assert.Equal(t, 0, res.AccountsProcessed)
}

func TestSyncStatus(t *testing.T) {
	tests := []struct {
		name string
		res  dto.SyncResponse
		want string
	}{
		{name: "no errors", res: dto.SyncResponse{CampaignsUpdated: 2}, want: dto.SyncStatusSuccess},
		{name: "no errors and nothing to update", res: dto.SyncResponse{}, want: dto.SyncStatusSuccess},
		{name: "errors with stored campaigns", res: dto.SyncResponse{CampaignsUpdated: 1, Errors: []string{"x"}}, want: dto.SyncStatusPartial},
		{name: "errors with a cached account", res: dto.SyncResponse{AccountsFromCache: 1, Errors: []string{"x"}}, want: dto.SyncStatusPartial},
		{name: "errors and nothing stored", res: dto.SyncResponse{Errors: []string{"x"}}, want: dto.SyncStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncStatus(&tt.res))
		})
	}
}
