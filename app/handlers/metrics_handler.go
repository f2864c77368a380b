package handlers

import (
	"fmt"
	"log"
	"time"

	"github.com/amirphl/adwatch/app/dto"
	businessflow "github.com/amirphl/adwatch/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MetricsHandlerInterface defines the contract for campaign metrics handlers
type MetricsHandlerInterface interface {
	GetCampaignMetrics(c fiber.Ctx) error
	ExportCampaignMetrics(c fiber.Ctx) error
}

// MetricsHandler serves stored snapshots for a campaign
type MetricsHandler struct {
	metricsFlow businessflow.MetricsFlow
	validator   *validator.Validate
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(metricsFlow businessflow.MetricsFlow) *MetricsHandler {
	return &MetricsHandler{
		metricsFlow: metricsFlow,
		validator:   validator.New(),
	}
}

// parseMetricsRequest reads the campaign id from the path and from/to/granularity from the query
func (h *MetricsHandler) parseMetricsRequest(c fiber.Ctx) (dto.CampaignMetricsRequest, error) {
	var req dto.CampaignMetricsRequest

	campaignID, ok := pathID(c, "id")
	if !ok {
		return req, fmt.Errorf("campaign id must be a positive integer")
	}
	req.CampaignID = campaignID
	req.Granularity = c.Query("granularity")

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &req.From}, {"to", &req.To}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return req, fmt.Errorf("%s must be a date in YYYY-MM-DD format", p.name)
		}
		*p.dst = &t
	}
	return req, nil
}

func (h *MetricsHandler) metricsError(c fiber.Ctx, err error, fallbackCode string) error {
	switch {
	case businessflow.IsCampaignNotFound(err):
		return errorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsValidationError(err):
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{errorCause(err)})
	}
	log.Println("Campaign metrics failed", err)
	return errorResponse(c, fiber.StatusInternalServerError, "Failed to get campaign metrics", fallbackCode, nil)
}

// GetCampaignMetrics returns snapshots, summary and trend for a date range
// @Summary Campaign metrics
// @Tags Metrics
// @Produce json
// @Param id path int true "Campaign ID"
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param granularity query string false "daily or hourly"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignMetricsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/metrics [get]
func (h *MetricsHandler) GetCampaignMetrics(c fiber.Ctx) error {
	req, err := h.parseMetricsRequest(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}
	req.UserID = userID

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/metrics", defaultRequestTimeout)
	defer cancel()

	result, err := h.metricsFlow.GetCampaignMetrics(ctx, req)
	if err != nil {
		return h.metricsError(c, err, "GET_CAMPAIGN_METRICS_FAILED")
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// ExportCampaignMetrics returns the same range as an xlsx workbook
// @Summary Export campaign metrics
// @Tags Metrics
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path int true "Campaign ID"
// @Router /api/v1/campaigns/{id}/metrics/export [get]
func (h *MetricsHandler) ExportCampaignMetrics(c fiber.Ctx) error {
	req, err := h.parseMetricsRequest(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{err.Error()})
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}
	req.UserID = userID

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/metrics/export", defaultRequestTimeout)
	defer cancel()

	filename, data, err := h.metricsFlow.ExportCampaignMetrics(ctx, req)
	if err != nil {
		return h.metricsError(c, err, "EXPORT_CAMPAIGN_METRICS_FAILED")
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Status(fiber.StatusOK).Send(data)
}
