package businessflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
)

// CampaignFlow serves single-campaign views: the live structure and an explanation
type CampaignFlow interface {
	GetStructure(ctx context.Context, userID, campaignID uint) (*dto.CampaignStructureResponse, error)
	ExplainCampaign(ctx context.Context, userID, campaignID uint) (*dto.ExplainCampaignResponse, error)
}

type CampaignFlowImpl struct {
	gateway       services.FacebookGateway
	campaignRepo  repository.CampaignRepository
	snapshotRepo  repository.MetricSnapshotRepository
	narrativeRepo repository.NarrativeRecordRepository
	narratives    NarrativeGenerator
	logger        *log.Logger
	now           func() time.Time
}

func NewCampaignFlow(
	gateway services.FacebookGateway,
	campaignRepo repository.CampaignRepository,
	snapshotRepo repository.MetricSnapshotRepository,
	narrativeRepo repository.NarrativeRecordRepository,
	narratives NarrativeGenerator,
	logger *log.Logger,
) CampaignFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &CampaignFlowImpl{
		gateway:       gateway,
		campaignRepo:  campaignRepo,
		snapshotRepo:  snapshotRepo,
		narrativeRepo: narrativeRepo,
		narratives:    narratives,
		logger:        logger,
		now:           utils.UTCNow,
	}
}

// GetStructure lists the campaign's ad sets and their ads straight from the ad
// platform. A failing ad listing is reported per ad set.
func (f *CampaignFlowImpl) GetStructure(ctx context.Context, userID, campaignID uint) (*dto.CampaignStructureResponse, error) {
	campaign, err := f.ownedCampaign(ctx, userID, campaignID)
	if err != nil {
		return nil, NewBusinessError("GET_CAMPAIGN_STRUCTURE_FAILED", "Failed to get campaign structure", err)
	}
	if campaign.Account == nil {
		return nil, NewBusinessError("GET_CAMPAIGN_STRUCTURE_FAILED", "Failed to get campaign structure", ErrFacebookAccountNotFound)
	}
	token := campaign.Account.AccessToken

	adSets, err := f.gateway.ListAdSets(ctx, token, campaign.FacebookCampaignID)
	if err != nil {
		return nil, NewBusinessError("GET_CAMPAIGN_STRUCTURE_FAILED", describeGatewayError(err), err)
	}

	resp := &dto.CampaignStructureResponse{
		Message:  "Campaign structure retrieved successfully",
		Campaign: ToCampaignDTO(*campaign),
		AdSets:   make([]dto.AdSetDTO, 0, len(adSets)),
	}
	for _, as := range adSets {
		item := dto.AdSetDTO{
			ID:               as.ID,
			Name:             as.Name,
			Status:           as.Status,
			EffectiveStatus:  as.EffectiveStatus,
			DailyBudget:      services.ParseMinorUnits(as.DailyBudget),
			OptimizationGoal: as.OptimizationGoal,
			Ads:              make([]dto.AdDTO, 0),
		}

		ads, err := f.gateway.ListAds(ctx, token, as.ID)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("ad set %s: %s", as.ID, describeGatewayError(err)))
		}
		for _, ad := range ads {
			item.Ads = append(item.Ads, dto.AdDTO{
				ID:              ad.ID,
				Name:            ad.Name,
				Status:          ad.Status,
				EffectiveStatus: ad.EffectiveStatus,
			})
		}
		resp.AdSets = append(resp.AdSets, item)
	}
	return resp, nil
}

// ExplainCampaign writes a narrative about the campaign's latest snapshot. It fails
// only when the campaign cannot be found; narrative problems fall back to rules.
func (f *CampaignFlowImpl) ExplainCampaign(ctx context.Context, userID, campaignID uint) (*dto.ExplainCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, userID, campaignID)
	if err != nil {
		return nil, NewBusinessError("EXPLAIN_CAMPAIGN_FAILED", "Failed to explain campaign", err)
	}

	snapshot, err := f.snapshotRepo.Latest(ctx, campaign.ID)
	if err != nil {
		f.logger.Printf("explain campaign %d: failed to load latest snapshot: %v", campaign.ID, err)
		snapshot = nil
	}

	result := f.narratives.Explain(ctx, NarrativeContext{
		Kind:      NarrativeKindCampaign,
		TimeOfDay: models.TimeOfDayForHour(f.now().Hour()),
		Campaigns: []NarrativeCampaign{narrativeCampaignFrom(campaign, snapshot)},
	})

	spend := 0.0
	if snapshot != nil {
		spend = snapshot.Spend
	}
	record := narrativeRecordFrom(userID, &campaign.ID, string(NarrativeKindCampaign), 1, spend, result)
	narrativeID := saveNarrative(ctx, f.narrativeRepo, record, f.logger)

	return &dto.ExplainCampaignResponse{
		Message:      "Campaign explanation generated",
		NarrativeID:  narrativeID,
		CampaignID:   campaign.ID,
		Content:      result.Text,
		Summary:      result.Summary,
		ShouldNotify: result.ShouldNotify,
		GeneratedBy:  string(result.Source),
	}, nil
}

func (f *CampaignFlowImpl) ownedCampaign(ctx context.Context, userID, campaignID uint) (*models.Campaign, error) {
	if userID == 0 {
		return nil, ErrUserIDRequired
	}
	campaign, err := f.campaignRepo.ByUserAndID(ctx, userID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, ErrCampaignNotFound
	}
	return campaign, nil
}

// narrativeRecordFrom builds the insert-only log row for a generated narrative
func narrativeRecordFrom(userID uint, campaignID *uint, sourceType string, campaignCount int, totalSpend float64, res NarrativeResult) *models.NarrativeRecord {
	record := &models.NarrativeRecord{
		UserID:        userID,
		CampaignID:    campaignID,
		Content:       res.Text,
		Summary:       res.Summary,
		SourceType:    sourceType,
		CampaignCount: campaignCount,
		TotalSpend:    utils.Round2(totalSpend),
		GeneratedBy:   res.Source,
		Status:        models.NarrativeStatusSuccess,
	}
	if res.Err != nil {
		msg := res.Err.Error()
		record.Status = models.NarrativeStatusError
		record.ErrorMessage = &msg
	}
	return record
}

// saveNarrative stores the record best-effort and returns its public id, or "" when
// the write failed
func saveNarrative(ctx context.Context, repo repository.NarrativeRecordRepository, record *models.NarrativeRecord, logger *log.Logger) string {
	if repo == nil {
		return ""
	}
	if err := repo.Save(ctx, record); err != nil {
		logger.Printf("failed to store narrative for user %d: %v", record.UserID, err)
		return ""
	}
	return record.UUID.String()
}
