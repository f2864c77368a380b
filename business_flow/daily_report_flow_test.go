package businessflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type reportFixture struct {
	flow       *DailyReportFlowImpl
	gateway    *gatewayMock
	prefs      *fakePrefRepo
	narratives *fakeNarrativeRepo
	dispatcher *recordingDispatcher
	users      *fakeUserRepo
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	ctx := context.Background()
	gw := &gatewayMock{}
	accounts := newFakeAccountRepo(activeAccount(1, 1, "act_1"))
	snapshots := newFakeSnapshotRepo()
	campaigns := newFakeCampaignRepo(snapshots, accounts)
	prefs := &fakePrefRepo{}
	narrativeRepo := &fakeNarrativeRepo{}
	dispatcher := &recordingDispatcher{result: true}
	users := &fakeUserRepo{ids: []uint{1}}

	for _, fbID := range []string{"c1", "c2"} {
		c := &models.Campaign{FacebookAccountID: 1, FacebookCampaignID: fbID, UserID: 1, Name: "Campaign " + fbID, Status: models.CampaignStatusActive}
		require.NoError(t, campaigns.Upsert(ctx, c))
		require.NoError(t, snapshots.UpsertLatest(ctx, &models.MetricSnapshot{
			CampaignID: c.ID, MetricDate: utcDay(syncTime), Impressions: 1000, Clicks: 5, Spend: 2,
		}))
	}

	generator := NewNarrativeGenerator(nil, nil, 0, 0, discardLogger)
	flow := NewDailyReportFlow(gw, users, accounts, campaigns, prefs, narrativeRepo, generator, dispatcher, 2, discardLogger).(*DailyReportFlowImpl)
	flow.now = fixedClock(syncTime)
	return &reportFixture{flow: flow, gateway: gw, prefs: prefs, narratives: narrativeRepo, dispatcher: dispatcher, users: users}
}

func TestDailyReport_LiveNumbersWithStoredFallback(t *testing.T) {
	f := newReportFixture(t)
	f.gateway.On("GetCampaignInsights", mock.Anything, "token-act_1", "c1", services.InsightWindowToday).
		Return(&services.FacebookInsights{Impressions: "3000", Clicks: "60", Spend: "18.00", DateStop: "2024-03-04"}, nil)
	f.gateway.On("GetCampaignInsights", mock.Anything, "token-act_1", "c2", services.InsightWindowToday).
		Return(nil, fmt.Errorf("%w: timeout", services.ErrFacebookTransport))

	res, err := f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{TimeOfDay: "morning"})
	require.NoError(t, err)
	assert.Equal(t, "morning", res.TimeOfDay)
	assert.Equal(t, 2, res.CampaignCount)
	assert.Equal(t, 20.0, res.TotalSpend, "live 18.00 plus stored 2.00")
	assert.Equal(t, string(models.NarrativeSourceFallback), res.GeneratedBy)
	assert.NotEmpty(t, res.Content)
	assert.False(t, res.Delivered)
	assert.Empty(t, f.dispatcher.requests, "send=false never dispatches")

	require.Len(t, f.narratives.records, 1)
	assert.Equal(t, models.SourceTypeDailyDigest, f.narratives.records[0].SourceType)
	assert.Equal(t, models.NarrativeStatusSuccess, f.narratives.records[0].Status)
}

func TestDailyReport_DefaultTimeOfDayUsesUserTimezone(t *testing.T) {
	f := newReportFixture(t)
	f.gateway.On("GetCampaignInsights", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	res, err := f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, "afternoon", res.TimeOfDay, "15:30 UTC")

	p := enabledPref(1)
	p.Timezone = "Asia/Tokyo"
	require.NoError(t, f.prefs.Save(context.Background(), p))
	res, err = f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{})
	require.NoError(t, err)
	assert.Equal(t, "evening", res.TimeOfDay, "00:30 in Tokyo")

	_, err = f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{TimeOfDay: "midnight"})
	assert.True(t, errors.Is(err, ErrInvalidTimeOfDay))
}

func TestDailyReport_SendDispatchesDigest(t *testing.T) {
	f := newReportFixture(t)
	f.gateway.On("GetCampaignInsights", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	require.NoError(t, f.prefs.Save(context.Background(), enabledPref(1)))

	res, err := f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{TimeOfDay: "evening", Send: true})
	require.NoError(t, err)
	assert.True(t, res.Delivered)

	require.Len(t, f.dispatcher.requests, 1)
	req := f.dispatcher.requests[0]
	assert.Equal(t, models.SourceTypeDailyDigest, req.AlertType)
	assert.Equal(t, Greeting(models.TimeOfDayEvening), req.Payload["greeting"])
	assert.Equal(t, res.Content, req.Payload["content"])
}

func TestDailyReport_SendSkipped(t *testing.T) {
	f := newReportFixture(t)
	f.gateway.On("GetCampaignInsights", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	require.NoError(t, f.prefs.Save(context.Background(), enabledPref(1)))

	res, err := f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{TimeOfDay: "afternoon", Send: true})
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, skipTimeOfDayDisabled, res.DeliverySkipped)
	assert.Empty(t, f.dispatcher.requests)

	f.dispatcher.result = false
	res, err = f.flow.GenerateDailyReport(context.Background(), 1, dto.DailyReportRequest{TimeOfDay: "morning", Send: true})
	require.NoError(t, err)
	assert.Equal(t, skipDispatchRejected, res.DeliverySkipped)
}

func TestDailyReport_RunForActiveUsers(t *testing.T) {
	f := newReportFixture(t)
	f.gateway.On("GetCampaignInsights", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.users.ids = []uint{1, 2}

	delivered, err := f.flow.RunDailyReports(context.Background(), models.TimeOfDayMorning)
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Len(t, f.narratives.records, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.flow.RunDailyReports(ctx, models.TimeOfDayMorning)
	assert.ErrorIs(t, err, context.Canceled)
}
