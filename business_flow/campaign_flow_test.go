package businessflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type campaignFixture struct {
	flow       *CampaignFlowImpl
	gateway    *gatewayMock
	campaign   *models.Campaign
	snapshots  *fakeSnapshotRepo
	narratives *fakeNarrativeRepo
	llm        *fakeLLM
}

func newCampaignFixture(t *testing.T) *campaignFixture {
	t.Helper()
	ctx := context.Background()
	gw := &gatewayMock{}
	accounts := newFakeAccountRepo(activeAccount(1, 1, "act_1"))
	snapshots := newFakeSnapshotRepo()
	campaigns := newFakeCampaignRepo(snapshots, accounts)
	narrativeRepo := &fakeNarrativeRepo{}
	llm := &fakeLLM{err: errors.New("model unavailable")}

	c := &models.Campaign{FacebookAccountID: 1, FacebookCampaignID: "c1", UserID: 1, Name: "Spring Sale", Status: models.CampaignStatusActive}
	require.NoError(t, campaigns.Upsert(ctx, c))

	generator := NewNarrativeGenerator(llm, nil, 0, 0, discardLogger)
	flow := NewCampaignFlow(gw, campaigns, snapshots, narrativeRepo, generator, discardLogger).(*CampaignFlowImpl)
	flow.now = fixedClock(syncTime)
	return &campaignFixture{flow: flow, gateway: gw, campaign: c, snapshots: snapshots, narratives: narrativeRepo, llm: llm}
}

func TestCampaignFlow_GetStructure(t *testing.T) {
	f := newCampaignFixture(t)
	f.gateway.On("ListAdSets", mock.Anything, "token-act_1", "c1").Return([]services.FacebookAdSet{
		{ID: "as1", Name: "Lookalike", Status: "ACTIVE", DailyBudget: "1500"},
		{ID: "as2", Name: "Retargeting", Status: "PAUSED"},
	}, nil)
	f.gateway.On("ListAds", mock.Anything, "token-act_1", "as1").Return([]services.FacebookAd{
		{ID: "ad1", Name: "Video", Status: "ACTIVE"},
		{ID: "ad2", Name: "Carousel", Status: "ACTIVE"},
	}, nil)
	f.gateway.On("ListAds", mock.Anything, "token-act_1", "as2").
		Return(nil, fmt.Errorf("graph: %w", services.ErrFacebookRateLimited))

	res, err := f.flow.GetStructure(context.Background(), 1, f.campaign.ID)
	require.NoError(t, err)
	require.Len(t, res.AdSets, 2)
	assert.Len(t, res.AdSets[0].Ads, 2)
	require.NotNil(t, res.AdSets[0].DailyBudget)
	assert.Equal(t, 15.0, *res.AdSets[0].DailyBudget)
	assert.Empty(t, res.AdSets[1].Ads)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "as2")
	f.gateway.AssertExpectations(t)
}

func TestCampaignFlow_GetStructureFailures(t *testing.T) {
	f := newCampaignFixture(t)
	f.gateway.On("ListAdSets", mock.Anything, mock.Anything, "c1").
		Return(nil, fmt.Errorf("graph: %w", services.ErrFacebookInvalidToken))

	_, err := f.flow.GetStructure(context.Background(), 1, f.campaign.ID)
	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "GET_CAMPAIGN_STRUCTURE_FAILED", be.Code)
	assert.Contains(t, be.Message, "reconnect")

	_, err = f.flow.GetStructure(context.Background(), 2, f.campaign.ID)
	assert.True(t, errors.Is(err, ErrCampaignNotFound))
}

func TestCampaignFlow_ExplainFallsBackAndRecords(t *testing.T) {
	f := newCampaignFixture(t)
	require.NoError(t, f.snapshots.UpsertLatest(context.Background(), &models.MetricSnapshot{
		CampaignID: f.campaign.ID, MetricDate: utcDay(syncTime), Impressions: 2000, Reach: 1500, Clicks: 30, Spend: 12.34,
	}))

	res, err := f.flow.ExplainCampaign(context.Background(), 1, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.NarrativeSourceFallback), res.GeneratedBy)
	assert.Contains(t, res.Content, "Spring Sale")
	assert.NotEmpty(t, res.NarrativeID)
	assert.Equal(t, 300, f.llm.last.MaxTokens)

	require.Len(t, f.narratives.records, 1)
	rec := f.narratives.records[0]
	assert.Equal(t, "campaign_explanation", rec.SourceType)
	assert.Equal(t, models.NarrativeStatusError, rec.Status)
	require.NotNil(t, rec.ErrorMessage)
	assert.Contains(t, *rec.ErrorMessage, "model unavailable")
	assert.Equal(t, 12.34, rec.TotalSpend)
	require.NotNil(t, rec.CampaignID)
	assert.Equal(t, f.campaign.ID, *rec.CampaignID)
}

func TestCampaignFlow_ExplainWithoutSnapshot(t *testing.T) {
	f := newCampaignFixture(t)
	f.llm.err = nil
	f.llm.reply = `{"content": "Your campaign has not started yet.", "summary": "Not started"}`

	res, err := f.flow.ExplainCampaign(context.Background(), 1, f.campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "Your campaign has not started yet.", res.Content)
	assert.Equal(t, string(models.NarrativeSourceLLM), res.GeneratedBy)
	assert.Equal(t, models.NarrativeStatusSuccess, f.narratives.records[0].Status)

	_, err = f.flow.ExplainCampaign(context.Background(), 0, f.campaign.ID)
	assert.True(t, errors.Is(err, ErrUserIDRequired))
}
