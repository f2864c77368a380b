// Package businessflow contains the monitoring pipeline use cases: sync, metrics, alerting, narratives and dispatch
package businessflow

import (
	"time"

	"github.com/amirphl/adwatch/app/dto"
	"github.com/amirphl/adwatch/models"
)

const dateLayout = "2006-01-02"

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ToCampaignDTO converts a campaign model for API responses
func ToCampaignDTO(c models.Campaign) dto.CampaignDTO {
	return dto.CampaignDTO{
		ID:                 c.ID,
		UUID:               c.UUID.String(),
		FacebookCampaignID: c.FacebookCampaignID,
		FacebookAccountID:  c.FacebookAccountID,
		Name:               c.Name,
		Objective:          c.Objective,
		Status:             c.Status.String(),
		DailyBudget:        c.DailyBudget,
		LifetimeBudget:     c.LifetimeBudget,
		SpendCap:           c.SpendCap,
		StartTime:          formatTimePtr(c.StartTime),
		StopTime:           formatTimePtr(c.StopTime),
		UpdatedAt:          c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// ToMetricSnapshotDTO converts a snapshot model for API responses
func ToMetricSnapshotDTO(s models.MetricSnapshot) dto.MetricSnapshotDTO {
	return dto.MetricSnapshotDTO{
		MetricDate:            s.MetricDate.Format(dateLayout),
		MetricHour:            s.MetricHour,
		CapturedAt:            s.CapturedAt.UTC().Format(time.RFC3339),
		Impressions:           s.Impressions,
		Clicks:                s.Clicks,
		Spend:                 s.Spend,
		Reach:                 s.Reach,
		Frequency:             s.Frequency,
		CTR:                   s.CTR,
		CPC:                   s.CPC,
		CPM:                   s.CPM,
		Conversions:           s.Conversions,
		LinkClicks:            s.LinkClicks,
		CostPerLinkClick:      s.CostPerLinkClick,
		MessagingClicks:       s.MessagingClicks,
		CostPerMessagingClick: s.CostPerMessagingClick,
		DataSource:            string(s.DataSource),
		IsLatest:              s.IsLatest,
	}
}

// ToAlertDTO converts an alert model for API responses
func ToAlertDTO(a models.Alert) dto.AlertDTO {
	out := dto.AlertDTO{
		ID:              a.ID,
		UUID:            a.UUID.String(),
		CampaignID:      a.CampaignID,
		AlertType:       a.AlertType.String(),
		Severity:        a.Severity.String(),
		Title:           a.Title,
		Message:         a.Message,
		Metadata:        map[string]any(a.Metadata),
		IsResolved:      a.IsResolved,
		ResolvedAt:      formatTimePtr(a.ResolvedAt),
		OccurrenceCount: a.OccurrenceCount,
		LastDetectedAt:  a.LastDetectedAt.UTC().Format(time.RFC3339),
		CreatedAt:       a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	if a.Resolution != nil {
		r := string(*a.Resolution)
		out.Resolution = &r
	}
	if a.Campaign != nil {
		out.CampaignName = a.Campaign.Name
	}
	return out
}
