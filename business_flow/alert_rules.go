package businessflow

import (
	"time"

	"github.com/amirphl/adwatch/models"
)

// alertRule evaluates one condition for a campaign. evaluate returns nil details
// when the condition does not hold.
type alertRule struct {
	title    string
	message  string
	evaluate func(c *models.Campaign, s *models.MetricSnapshot, t *models.AlertThreshold) (models.AlertDetails, models.AlertSeverity)
}

// alertRules is keyed by alert type; detection walks models.AllAlertTypes so the
// output order is stable.
var alertRules = map[models.AlertType]alertRule{
	models.AlertTypeCampaignPaused: {
		title:   "Campaign paused",
		message: "\"{{campaign_name}}\" is paused and not delivering ads.",
		evaluate: func(c *models.Campaign, _ *models.MetricSnapshot, _ *models.AlertThreshold) (models.AlertDetails, models.AlertSeverity) {
			if c.Status != models.CampaignStatusPaused {
				return nil, ""
			}
			return models.CampaignPausedDetails{Status: c.Status}, models.AlertSeverityMedium
		},
	},
	models.AlertTypeBudgetDepleted: {
		title:   "Budget almost spent",
		message: "\"{{campaign_name}}\" has used {{budget_usage}}% of its daily budget (${{spend}} of ${{daily_budget}}).",
		evaluate: func(c *models.Campaign, s *models.MetricSnapshot, t *models.AlertThreshold) (models.AlertDetails, models.AlertSeverity) {
			if s == nil || !c.HasDailyBudget() || s.Spend <= 0 {
				return nil, ""
			}
			usage := s.Spend / *c.DailyBudget * 100
			if usage < t.BudgetUsage {
				return nil, ""
			}
			severity := models.AlertSeverityMedium
			if usage >= 100 {
				severity = models.AlertSeverityHigh
			}
			return models.BudgetDepletedDetails{
				Spend:       s.Spend,
				DailyBudget: *c.DailyBudget,
				BudgetUsage: usage,
				Threshold:   t.BudgetUsage,
			}, severity
		},
	},
	models.AlertTypeLowCTR: {
		title:   "Low click-through rate",
		message: "Only {{ctr}}% of people who saw \"{{campaign_name}}\" clicked (target {{threshold}}%).",
		evaluate: func(_ *models.Campaign, s *models.MetricSnapshot, t *models.AlertThreshold) (models.AlertDetails, models.AlertSeverity) {
			if s == nil || s.CTR <= 0 || s.CTR >= t.LowCTR {
				return nil, ""
			}
			severity := models.AlertSeverityMedium
			if s.CTR < t.LowCTR/2 {
				severity = models.AlertSeverityHigh
			}
			return models.LowCTRDetails{CTR: s.CTR, Threshold: t.LowCTR}, severity
		},
	},
	models.AlertTypeHighCosts: {
		title:   "High cost per click",
		message: "Clicks on \"{{campaign_name}}\" cost ${{cpc}} each, above your ${{threshold}} limit.",
		evaluate: func(_ *models.Campaign, s *models.MetricSnapshot, t *models.AlertThreshold) (models.AlertDetails, models.AlertSeverity) {
			if s == nil || s.CPC <= 0 || s.CPC <= t.HighCPC {
				return nil, ""
			}
			severity := models.AlertSeverityMedium
			if s.CPC > t.HighCPC*2 {
				severity = models.AlertSeverityHigh
			}
			return models.HighCostsDetails{CPC: s.CPC, Threshold: t.HighCPC}, severity
		},
	},
	models.AlertTypeHighFrequency: {
		title:   "Ad shown too often",
		message: "People have seen \"{{campaign_name}}\" {{frequency}} times on average (limit {{threshold}}).",
		evaluate: func(_ *models.Campaign, s *models.MetricSnapshot, t *models.AlertThreshold) (models.AlertDetails, models.AlertSeverity) {
			if s == nil || s.Frequency <= 0 || s.Frequency <= t.FrequencyCap {
				return nil, ""
			}
			severity := models.AlertSeverityMedium
			if s.Frequency > t.FrequencyCap*1.5 {
				severity = models.AlertSeverityHigh
			}
			return models.HighFrequencyDetails{Frequency: s.Frequency, Threshold: t.FrequencyCap}, severity
		},
	},
}

// evaluateCampaign runs every rule against one campaign and its latest snapshot
func evaluateCampaign(c *models.Campaign, t *models.AlertThreshold, detectedAt time.Time) []*models.Alert {
	out := make([]*models.Alert, 0)
	for _, alertType := range models.AllAlertTypes {
		rule, ok := alertRules[alertType]
		if !ok {
			continue
		}
		details, severity := rule.evaluate(c, c.LatestSnapshot, t)
		if details == nil {
			continue
		}

		metadata := details.Metadata()
		metadata["campaign_name"] = c.Name
		metadata["facebook_campaign_id"] = c.FacebookCampaignID

		out = append(out, &models.Alert{
			CampaignID:      c.ID,
			UserID:          c.UserID,
			AlertType:       alertType,
			Severity:        severity,
			Title:           rule.title,
			Message:         RenderTemplate(rule.message, metadata),
			Metadata:        metadata,
			Details:         details,
			OccurrenceCount: 1,
			LastDetectedAt:  detectedAt,
			CreatedAt:       detectedAt,
			UpdatedAt:       detectedAt,
		})
	}
	return out
}

// alertNotificationPayload is the template data for dispatching an alert
func alertNotificationPayload(a *models.Alert) map[string]any {
	payload := make(map[string]any, len(a.Metadata)+4)
	for k, v := range a.Metadata {
		payload[k] = v
	}
	payload["title"] = a.Title
	payload["message"] = a.Message
	payload["severity"] = a.Severity.String()
	payload["detected_at"] = a.LastDetectedAt.UTC().Format("Jan 2, 15:04 MST")
	return payload
}
