package businessflow

import (
	"context"
	"log"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/app/services"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
	"golang.org/x/sync/errgroup"
)

// Reasons a requested daily digest was not delivered
const (
	skipTimeOfDayDisabled = "time_of_day_disabled"
	skipDispatchRejected  = "dispatch_suppressed_or_failed"
)

// DailyReportFlow builds the account-level narrative for a time-of-day bucket
type DailyReportFlow interface {
	GenerateDailyReport(ctx context.Context, userID uint, req dto.DailyReportRequest) (*dto.DailyReportResponse, error)
	RunDailyReports(ctx context.Context, tod models.TimeOfDay) (int, error)
}

type DailyReportFlowImpl struct {
	gateway       services.FacebookGateway
	userRepo      repository.UserRepository
	accountRepo   repository.FacebookAccountRepository
	campaignRepo  repository.CampaignRepository
	prefRepo      repository.NotificationPreferenceRepository
	narrativeRepo repository.NarrativeRecordRepository
	narratives    NarrativeGenerator
	dispatcher    NotificationDispatcher
	concurrency   int
	logger        *log.Logger
	now           func() time.Time
}

func NewDailyReportFlow(
	gateway services.FacebookGateway,
	userRepo repository.UserRepository,
	accountRepo repository.FacebookAccountRepository,
	campaignRepo repository.CampaignRepository,
	prefRepo repository.NotificationPreferenceRepository,
	narrativeRepo repository.NarrativeRecordRepository,
	narratives NarrativeGenerator,
	dispatcher NotificationDispatcher,
	concurrency int,
	logger *log.Logger,
) DailyReportFlow {
	if logger == nil {
		logger = log.Default()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &DailyReportFlowImpl{
		gateway:       gateway,
		userRepo:      userRepo,
		accountRepo:   accountRepo,
		campaignRepo:  campaignRepo,
		prefRepo:      prefRepo,
		narrativeRepo: narrativeRepo,
		narratives:    narratives,
		dispatcher:    dispatcher,
		concurrency:   concurrency,
		logger:        logger,
		now:           utils.UTCNow,
	}
}

// GenerateDailyReport always returns narrative content once the input is valid.
// Today's numbers are read live from the ad platform; a campaign whose live read
// fails uses its latest stored snapshot.
func (f *DailyReportFlowImpl) GenerateDailyReport(ctx context.Context, userID uint, req dto.DailyReportRequest) (*dto.DailyReportResponse, error) {
	if userID == 0 {
		return nil, NewBusinessError("DAILY_REPORT_FAILED", "Failed to generate daily report", ErrUserIDRequired)
	}

	pref, err := f.prefRepo.ByUserID(ctx, userID)
	if err != nil {
		f.logger.Printf("daily report user=%d: failed to load preferences: %v", userID, err)
		pref = nil
	}

	tod := models.TimeOfDay(req.TimeOfDay)
	switch tod {
	case "":
		tz := ""
		if pref != nil {
			tz = pref.Timezone
		}
		tod = models.TimeOfDayForHour(utils.InLocation(f.now(), tz).Hour())
	case models.TimeOfDayMorning, models.TimeOfDayAfternoon, models.TimeOfDayEvening:
	default:
		return nil, NewBusinessError("DAILY_REPORT_FAILED", "Failed to generate daily report", ErrInvalidTimeOfDay)
	}

	campaigns, err := f.campaignRepo.ListWithLatestSnapshot(ctx, userID, monitoredStatuses)
	if err != nil {
		f.logger.Printf("daily report user=%d: failed to load campaigns: %v", userID, err)
		campaigns = nil
	}
	inputs := f.todaysNumbers(ctx, userID, campaigns)

	result := f.narratives.Explain(ctx, NarrativeContext{
		Kind:      NarrativeKindAccount,
		TimeOfDay: tod,
		Campaigns: inputs,
	})

	totalSpend := totalsOf(inputs).spend
	record := narrativeRecordFrom(userID, nil, models.SourceTypeDailyDigest, len(inputs), totalSpend, result)
	narrativeID := saveNarrative(ctx, f.narrativeRepo, record, f.logger)

	resp := &dto.DailyReportResponse{
		Message:       "Daily report generated",
		NarrativeID:   narrativeID,
		TimeOfDay:     string(tod),
		Content:       result.Text,
		Summary:       result.Summary,
		ShouldNotify:  result.ShouldNotify,
		GeneratedBy:   string(result.Source),
		CampaignCount: len(inputs),
		TotalSpend:    utils.Round2(totalSpend),
	}

	if !req.Send {
		return resp, nil
	}
	if pref != nil && !pref.AllowsTimeOfDay(tod) {
		resp.DeliverySkipped = skipTimeOfDayDisabled
		return resp, nil
	}

	resp.Delivered = f.dispatcher.Dispatch(ctx, DispatchRequest{
		UserID:    userID,
		AlertType: models.SourceTypeDailyDigest,
		Payload: map[string]any{
			"greeting": Greeting(tod),
			"content":  result.Text,
			"summary":  result.Summary,
		},
	})
	if !resp.Delivered {
		resp.DeliverySkipped = skipDispatchRejected
	}
	return resp, nil
}

// RunDailyReports generates and sends the digest for every active user and
// returns how many were delivered
func (f *DailyReportFlowImpl) RunDailyReports(ctx context.Context, tod models.TimeOfDay) (int, error) {
	userIDs, err := f.userRepo.ListActiveIDs(ctx)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, id := range userIDs {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		resp, err := f.GenerateDailyReport(ctx, id, dto.DailyReportRequest{TimeOfDay: string(tod), Send: true})
		if err != nil {
			f.logger.Printf("daily report user=%d failed: %v", id, err)
			continue
		}
		if resp.Delivered {
			delivered++
		}
	}
	f.logger.Printf("daily reports %s: users=%d delivered=%d", tod, len(userIDs), delivered)
	return delivered, nil
}

// todaysNumbers reads today's insights per campaign, keeping the stored snapshot
// for campaigns the platform could not answer for
func (f *DailyReportFlowImpl) todaysNumbers(ctx context.Context, userID uint, campaigns []*models.Campaign) []NarrativeCampaign {
	out := make([]NarrativeCampaign, len(campaigns))
	if len(campaigns) == 0 {
		return out
	}

	tokens := make(map[uint]string)
	if f.gateway != nil {
		accounts, err := f.accountRepo.ListActiveByUser(ctx, userID)
		if err != nil {
			f.logger.Printf("daily report user=%d: failed to load accounts: %v", userID, err)
		}
		for _, a := range accounts {
			tokens[a.ID] = a.AccessToken
		}
	}

	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, c := range campaigns {
		i, c := i, c
		g.Go(func() error {
			snapshot := c.LatestSnapshot
			if token, ok := tokens[c.FacebookAccountID]; ok {
				insights, err := f.gateway.GetCampaignInsights(ctx, token, c.FacebookCampaignID, services.InsightWindowToday)
				switch {
				case err != nil:
					f.logger.Printf("daily report campaign %d: live insights unavailable, using stored snapshot: %s", c.ID, describeGatewayError(err))
				case insights != nil:
					snapshot = snapshotFromInsights(c.ID, insights, f.now())
				}
			}

			out[i] = narrativeCampaignFrom(c, snapshot)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
