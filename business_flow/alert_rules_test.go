package businessflow

import (
	"testing"
	"time"

	"github.com/amirphl/adwatch/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var detectedAt = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

func campaignWith(status models.CampaignStatus, budget *float64, s *models.MetricSnapshot) *models.Campaign {
	return &models.Campaign{
		ID:                 11,
		UserID:             1,
		FacebookCampaignID: "120000111",
		Name:               "Spring Sale",
		Status:             status,
		DailyBudget:        budget,
		LatestSnapshot:     s,
	}
}

func alertOfType(alerts []*models.Alert, t models.AlertType) *models.Alert {
	for _, a := range alerts {
		if a.AlertType == t {
			return a
		}
	}
	return nil
}

func TestEvaluateCampaign_BudgetNearlySpent(t *testing.T) {
	c := campaignWith(models.CampaignStatusActive, ptrFloat(10), &models.MetricSnapshot{
		Impressions: 5000, Clicks: 100, Spend: 9.50, CTR: 2.0, CPC: 0.095, Frequency: 1.2,
	})

	alerts := evaluateCampaign(c, models.DefaultAlertThreshold(1), detectedAt)
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, models.AlertTypeBudgetDepleted, a.AlertType)
	assert.Equal(t, models.AlertSeverityMedium, a.Severity)
	assert.InDelta(t, 95.0, a.Metadata["budget_usage"], 0.01)
	assert.Equal(t, 9.5, a.Metadata["spend"])
	assert.Equal(t, "Spring Sale", a.Metadata["campaign_name"])
	assert.Equal(t, "120000111", a.Metadata["facebook_campaign_id"])
	assert.Contains(t, a.Message, "95%")
	assert.Equal(t, detectedAt, a.LastDetectedAt)

	details, ok := a.Details.(models.BudgetDepletedDetails)
	require.True(t, ok)
	assert.InDelta(t, 95.0, details.BudgetUsage, 0.001)
}

func TestEvaluateCampaign_BudgetOverspentIsHigh(t *testing.T) {
	c := campaignWith(models.CampaignStatusActive, ptrFloat(10), &models.MetricSnapshot{Spend: 10.40})
	a := alertOfType(evaluateCampaign(c, models.DefaultAlertThreshold(1), detectedAt), models.AlertTypeBudgetDepleted)
	require.NotNil(t, a)
	assert.Equal(t, models.AlertSeverityHigh, a.Severity)
}

func TestEvaluateCampaign_LowCTR(t *testing.T) {
	tests := []struct {
		name     string
		ctr      float64
		want     bool
		severity models.AlertSeverity
	}{
		{name: "far below target", ctr: 0.3, want: true, severity: models.AlertSeverityHigh},
		{name: "just below target", ctr: 0.8, want: true, severity: models.AlertSeverityMedium},
		{name: "half of target is medium", ctr: 0.5, want: true, severity: models.AlertSeverityMedium},
		{name: "at target", ctr: 1.0, want: false},
		{name: "zero means no data", ctr: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := campaignWith(models.CampaignStatusActive, nil, &models.MetricSnapshot{Impressions: 1000, CTR: tt.ctr})
			a := alertOfType(evaluateCampaign(c, models.DefaultAlertThreshold(1), detectedAt), models.AlertTypeLowCTR)
			if !tt.want {
				assert.Nil(t, a)
				return
			}
			require.NotNil(t, a)
			assert.Equal(t, tt.severity, a.Severity)
			assert.Equal(t, 1.0, a.Metadata["threshold"])
		})
	}
}

func TestEvaluateCampaign_HighCostsAndFrequency(t *testing.T) {
	c := campaignWith(models.CampaignStatusActive, nil, &models.MetricSnapshot{CTR: 1.5, CPC: 4.5, Frequency: 3.2})
	alerts := evaluateCampaign(c, models.DefaultAlertThreshold(1), detectedAt)

	costs := alertOfType(alerts, models.AlertTypeHighCosts)
	require.NotNil(t, costs)
	assert.Equal(t, models.AlertSeverityHigh, costs.Severity)

	freq := alertOfType(alerts, models.AlertTypeHighFrequency)
	require.NotNil(t, freq)
	assert.Equal(t, models.AlertSeverityMedium, freq.Severity)
}

func TestEvaluateCampaign_PausedCampaign(t *testing.T) {
	c := campaignWith(models.CampaignStatusPaused, nil, nil)
	alerts := evaluateCampaign(c, models.DefaultAlertThreshold(1), detectedAt)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertTypeCampaignPaused, alerts[0].AlertType)
	assert.Equal(t, models.AlertSeverityMedium, alerts[0].Severity)
	assert.Equal(t, "PAUSED", alerts[0].Metadata["status"])
}

func TestEvaluateCampaign_AbsentOrZeroMetricsNeverTrigger(t *testing.T) {
	threshold := models.DefaultAlertThreshold(1)

	assert.Empty(t, evaluateCampaign(campaignWith(models.CampaignStatusActive, ptrFloat(10), nil), threshold, detectedAt))
	assert.Empty(t, evaluateCampaign(campaignWith(models.CampaignStatusActive, ptrFloat(10), &models.MetricSnapshot{}), threshold, detectedAt))
	assert.Empty(t, evaluateCampaign(campaignWith(models.CampaignStatusActive, nil, &models.MetricSnapshot{Spend: 50}), threshold, detectedAt),
		"no daily budget means no budget alert")
}

func TestEvaluateCampaign_ThresholdMonotonicity(t *testing.T) {
	snapshot := &models.MetricSnapshot{Impressions: 1000, CTR: 0.9, CPC: 1.8, Frequency: 2.6, Spend: 8}
	c := campaignWith(models.CampaignStatusActive, ptrFloat(10), snapshot)

	count := func(th *models.AlertThreshold, at models.AlertType) int {
		if alertOfType(evaluateCampaign(c, th, detectedAt), at) != nil {
			return 1
		}
		return 0
	}

	// a stricter threshold never fires less than a looser one
	prev := -1
	for _, low := range []float64{0.5, 0.9, 0.95, 1.0, 2.0} {
		th := models.DefaultAlertThreshold(1)
		th.LowCTR = low
		got := count(th, models.AlertTypeLowCTR)
		assert.GreaterOrEqual(t, got, prev, "low_ctr threshold %v", low)
		prev = got
	}

	prev = -1
	for _, high := range []float64{3, 2, 1.8, 1.5, 1} {
		th := models.DefaultAlertThreshold(1)
		th.HighCPC = high
		got := count(th, models.AlertTypeHighCosts)
		assert.GreaterOrEqual(t, got, prev, "high_cpc threshold %v", high)
		prev = got
	}

	prev = -1
	for _, usage := range []float64{100, 90, 80, 50} {
		th := models.DefaultAlertThreshold(1)
		th.BudgetUsage = usage
		got := count(th, models.AlertTypeBudgetDepleted)
		assert.GreaterOrEqual(t, got, prev, "budget usage threshold %v", usage)
		prev = got
	}
}

func TestAlertNotificationPayload(t *testing.T) {
	c := campaignWith(models.CampaignStatusActive, nil, &models.MetricSnapshot{CTR: 0.3})
	a := alertOfType(evaluateCampaign(c, models.DefaultAlertThreshold(1), detectedAt), models.AlertTypeLowCTR)
	require.NotNil(t, a)

	payload := alertNotificationPayload(a)
	assert.Equal(t, "high", payload["severity"])
	assert.Equal(t, a.Title, payload["title"])

	body := RenderTemplate(templateFor(a.AlertType.String()), payload)
	assert.Contains(t, body, "Spring Sale")
	assert.Contains(t, body, "0.3%")
	assert.NotContains(t, body, "{{")
}
