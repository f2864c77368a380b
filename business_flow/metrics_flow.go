package businessflow

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/models"
	"github.com/amirphl/adwatch/repository"
	"github.com/amirphl/adwatch/utils"
	"github.com/xuri/excelize/v2"
)

const (
	defaultMetricsRange = 7
	maxMetricsRangeDays = 366
)

// MetricsFlow reads stored snapshots for a campaign
type MetricsFlow interface {
	GetCampaignMetrics(ctx context.Context, req dto.CampaignMetricsRequest) (*dto.CampaignMetricsResponse, error)
	ExportCampaignMetrics(ctx context.Context, req dto.CampaignMetricsRequest) (string, []byte, error)
}

type MetricsFlowImpl struct {
	campaignRepo repository.CampaignRepository
	snapshotRepo repository.MetricSnapshotRepository
	now          func() time.Time
}

func NewMetricsFlow(campaignRepo repository.CampaignRepository, snapshotRepo repository.MetricSnapshotRepository) MetricsFlow {
	return &MetricsFlowImpl{
		campaignRepo: campaignRepo,
		snapshotRepo: snapshotRepo,
		now:          utils.UTCNow,
	}
}

func (f *MetricsFlowImpl) GetCampaignMetrics(ctx context.Context, req dto.CampaignMetricsRequest) (*dto.CampaignMetricsResponse, error) {
	campaign, snapshots, from, to, err := f.load(ctx, &req)
	if err != nil {
		return nil, NewBusinessError("GET_CAMPAIGN_METRICS_FAILED", "Failed to get campaign metrics", err)
	}

	items := make([]dto.MetricSnapshotDTO, 0, len(snapshots))
	for _, s := range snapshots {
		items = append(items, ToMetricSnapshotDTO(*s))
	}

	return &dto.CampaignMetricsResponse{
		Message:     "Campaign metrics retrieved successfully",
		Campaign:    ToCampaignDTO(*campaign),
		Granularity: req.Granularity,
		From:        from.Format(dateLayout),
		To:          to.Format(dateLayout),
		Snapshots:   items,
		Summary:     summarizeSnapshots(snapshots),
		Trend:       trendOf(snapshots),
	}, nil
}

// ExportCampaignMetrics writes the same range as GetCampaignMetrics into an xlsx
// workbook with a snapshot sheet and a summary sheet.
func (f *MetricsFlowImpl) ExportCampaignMetrics(ctx context.Context, req dto.CampaignMetricsRequest) (string, []byte, error) {
	campaign, snapshots, from, to, err := f.load(ctx, &req)
	if err != nil {
		return "", nil, NewBusinessError("EXPORT_CAMPAIGN_METRICS_FAILED", "Failed to export campaign metrics", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const dataSheet = "Snapshots"
	const summarySheet = "Summary"
	xl.SetSheetName(xl.GetSheetName(0), dataSheet)

	header := []string{"metric_date", "metric_hour", "impressions", "clicks", "spend", "reach", "frequency", "ctr", "cpc", "cpm",
		"conversions", "link_clicks", "cost_per_link_click", "messaging_clicks", "cost_per_messaging_click", "data_source", "captured_at"}
	_ = xl.SetSheetRow(dataSheet, "A1", &header)

	for i, s := range snapshots {
		var hour any = ""
		if s.MetricHour != nil {
			hour = *s.MetricHour
		}
		record := []any{
			s.MetricDate.Format(dateLayout),
			hour,
			s.Impressions,
			s.Clicks,
			s.Spend,
			s.Reach,
			s.Frequency,
			s.CTR,
			s.CPC,
			s.CPM,
			s.Conversions,
			s.LinkClicks,
			s.CostPerLinkClick,
			s.MessagingClicks,
			s.CostPerMessagingClick,
			string(s.DataSource),
			s.CapturedAt.UTC().Format(time.RFC3339),
		}
		cellRef, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(dataSheet, cellRef, &record)
	}

	if _, err := xl.NewSheet(summarySheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	summary := summarizeSnapshots(snapshots)
	rows := [][]any{
		{"campaign", campaign.Name},
		{"facebook_campaign_id", campaign.FacebookCampaignID},
		{"from", from.Format(dateLayout)},
		{"to", to.Format(dateLayout)},
		{"granularity", req.Granularity},
		{"snapshots", summary.Snapshots},
		{"impressions", summary.Impressions},
		{"clicks", summary.Clicks},
		{"spend", summary.Spend},
		{"reach", summary.Reach},
		{"conversions", summary.Conversions},
		{"ctr", summary.CTR},
		{"cpc", summary.CPC},
		{"cpm", summary.CPM},
	}
	for i, row := range rows {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("campaign_%d_metrics_%s_%s.xlsx", campaign.ID, from.Format("20060102"), to.Format("20060102"))
	return filename, buf.Bytes(), nil
}

// load validates the request, applies defaults and fetches the campaign and its
// snapshots ordered by time.
func (f *MetricsFlowImpl) load(ctx context.Context, req *dto.CampaignMetricsRequest) (*models.Campaign, []*models.MetricSnapshot, time.Time, time.Time, error) {
	var zero time.Time
	if req.UserID == 0 {
		return nil, nil, zero, zero, ErrUserIDRequired
	}

	req.Granularity = strings.ToLower(strings.TrimSpace(req.Granularity))
	if req.Granularity == "" {
		req.Granularity = dto.GranularityDaily
	}
	if req.Granularity != dto.GranularityDaily && req.Granularity != dto.GranularityHourly {
		return nil, nil, zero, zero, ErrInvalidGranularity
	}

	to := utils.TruncateToDay(f.now())
	if req.To != nil {
		to = utils.TruncateToDay(req.To.UTC())
	}
	from := to.AddDate(0, 0, -(defaultMetricsRange - 1))
	if req.From != nil {
		from = utils.TruncateToDay(req.From.UTC())
	}
	if from.After(to) {
		return nil, nil, zero, zero, ErrStartDateAfterEndDate
	}
	if to.Sub(from) > maxMetricsRangeDays*24*time.Hour {
		return nil, nil, zero, zero, ErrDateRangeTooLong
	}

	campaign, err := f.campaignRepo.ByUserAndID(ctx, req.UserID, req.CampaignID)
	if err != nil {
		return nil, nil, zero, zero, err
	}
	if campaign == nil {
		return nil, nil, zero, zero, ErrCampaignNotFound
	}

	hourly := req.Granularity == dto.GranularityHourly
	snapshots, err := f.snapshotRepo.ByFilter(ctx, models.MetricSnapshotFilter{
		CampaignID: &campaign.ID,
		DateFrom:   &from,
		DateTo:     &to,
		Hourly:     &hourly,
	}, "metric_date ASC, metric_hour ASC NULLS FIRST, captured_at ASC", 0, 0)
	if err != nil {
		return nil, nil, zero, zero, err
	}
	return campaign, snapshots, from, to, nil
}

// summarizeSnapshots totals the counts and recomputes the rates from the totals
func summarizeSnapshots(snapshots []*models.MetricSnapshot) dto.MetricsSummary {
	var s dto.MetricsSummary
	s.Snapshots = len(snapshots)
	for _, m := range snapshots {
		s.Impressions += m.Impressions
		s.Clicks += m.Clicks
		s.Spend += m.Spend
		s.Reach += m.Reach
		s.Conversions += m.Conversions
		s.LinkClicks += m.LinkClicks
		s.MessagingClicks += m.MessagingClicks
	}
	s.Spend = utils.Round2(s.Spend)
	s.CTR = utils.Round2(utils.SafeDivide(float64(s.Clicks), float64(s.Impressions)) * 100)
	s.CPC = utils.Round2(utils.SafeDivide(s.Spend, float64(s.Clicks)))
	s.CPM = utils.Round2(utils.SafeDivide(s.Spend, float64(s.Impressions)) * 1000)
	return s
}

// trendOf compares the first half of the snapshots with the second half. With an
// odd count the middle snapshot belongs to the second half.
func trendOf(snapshots []*models.MetricSnapshot) *dto.MetricsTrend {
	if len(snapshots) < 2 {
		return nil
	}
	mid := len(snapshots) / 2
	first := summarizeSnapshots(snapshots[:mid])
	second := summarizeSnapshots(snapshots[mid:])
	return &dto.MetricsTrend{
		Impressions: delta(float64(first.Impressions), float64(second.Impressions)),
		Clicks:      delta(float64(first.Clicks), float64(second.Clicks)),
		Spend:       delta(first.Spend, second.Spend),
		CTR:         delta(first.CTR, second.CTR),
		CPC:         delta(first.CPC, second.CPC),
	}
}

func delta(first, second float64) dto.TrendDelta {
	d := dto.TrendDelta{
		FirstHalf:  first,
		SecondHalf: second,
		Change:     utils.Round2(second - first),
		Direction:  "flat",
	}
	if first != 0 {
		d.ChangePercent = utils.Round2((second - first) / math.Abs(first) * 100)
	}
	switch {
	case d.Change > 0:
		d.Direction = "up"
	case d.Change < 0:
		d.Direction = "down"
	}
	return d
}
