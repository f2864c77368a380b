package handlers

import (
	"context"
	"log"
	"strconv"

	"github.com/amirphl/adwatch/app/dto"
	businessflow "github.com/amirphl/adwatch/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// AlertHandlerInterface defines the contract for alert handlers
type AlertHandlerInterface interface {
	DetectAlerts(c fiber.Ctx) error
	ListAlerts(c fiber.Ctx) error
	ResolveAlert(c fiber.Ctx) error
	IgnoreAlert(c fiber.Ctx) error
	DailyReport(c fiber.Ctx) error
}

// AlertHandler serves alert detection, alert management and the daily narrative
type AlertHandler struct {
	alertFlow  businessflow.AlertFlow
	reportFlow businessflow.DailyReportFlow
	validator  *validator.Validate
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(alertFlow businessflow.AlertFlow, reportFlow businessflow.DailyReportFlow) *AlertHandler {
	return &AlertHandler{
		alertFlow:  alertFlow,
		reportFlow: reportFlow,
		validator:  validator.New(),
	}
}

// DetectAlerts runs threshold detection for the caller
// @Summary Detect alerts
// @Tags Alerts
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.DetectAlertsResponse}
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Failure 500 {object} dto.APIResponse "Data store failure"
// @Router /api/v1/alerts/detect [post]
func (h *AlertHandler) DetectAlerts(c fiber.Ctx) error {
	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}

	ctx, cancel := requestContext(c, "/api/v1/alerts/detect", defaultRequestTimeout)
	defer cancel()

	result, err := h.alertFlow.DetectAlerts(ctx, userID)
	if err != nil {
		log.Println("Alert detection failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Alert detection failed", "DETECT_ALERTS_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// ListAlerts returns a page of the caller's alerts
// @Summary List alerts
// @Tags Alerts
// @Produce json
// @Param resolved query bool false "Filter by resolution state"
// @Param type query string false "Alert type"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size (max 100)"
// @Success 200 {object} dto.APIResponse{data=dto.ListAlertsResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/alerts [get]
func (h *AlertHandler) ListAlerts(c fiber.Ctx) error {
	var req dto.ListAlertsRequest

	if raw := c.Query("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"resolved must be true or false"})
		}
		req.Resolved = &resolved
	}
	if raw := c.Query("type"); raw != "" {
		req.Type = &raw
	}
	if raw := c.Query("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"page must be a number"})
		}
		req.Page = page
	}
	if raw := c.Query("page_size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"page_size must be a number"})
		}
		req.PageSize = size
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}
	req.UserID = userID

	ctx, cancel := requestContext(c, "/api/v1/alerts", defaultRequestTimeout)
	defer cancel()

	result, err := h.alertFlow.ListAlerts(ctx, req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{errorCause(err)})
		}
		log.Println("List alerts failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to list alerts", "LIST_ALERTS_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// ResolveAlert marks an alert as handled
// @Summary Resolve alert
// @Tags Alerts
// @Param id path int true "Alert ID"
// @Success 200 {object} dto.APIResponse{data=dto.CloseAlertResponse}
// @Failure 404 {object} dto.APIResponse "Alert not found"
// @Failure 409 {object} dto.APIResponse "Alert already closed"
// @Router /api/v1/alerts/{id}/resolve [post]
func (h *AlertHandler) ResolveAlert(c fiber.Ctx) error {
	return h.closeAlert(c, "/api/v1/alerts/:id/resolve", h.alertFlow.ResolveAlert)
}

// IgnoreAlert dismisses an alert without acting on it
// @Summary Ignore alert
// @Tags Alerts
// @Param id path int true "Alert ID"
// @Success 200 {object} dto.APIResponse{data=dto.CloseAlertResponse}
// @Failure 404 {object} dto.APIResponse "Alert not found"
// @Failure 409 {object} dto.APIResponse "Alert already closed"
// @Router /api/v1/alerts/{id}/ignore [post]
func (h *AlertHandler) IgnoreAlert(c fiber.Ctx) error {
	return h.closeAlert(c, "/api/v1/alerts/:id/ignore", h.alertFlow.IgnoreAlert)
}

type closeAlertFunc func(ctx context.Context, userID, alertID uint) (*dto.CloseAlertResponse, error)

func (h *AlertHandler) closeAlert(c fiber.Ctx, endpoint string, closeFn closeAlertFunc) error {
	alertID, ok := pathID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"alert id must be a positive integer"})
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}

	ctx, cancel := requestContext(c, endpoint, defaultRequestTimeout)
	defer cancel()

	result, err := closeFn(ctx, userID, alertID)
	if err != nil {
		switch {
		case businessflow.IsAlertNotFound(err):
			return errorResponse(c, fiber.StatusNotFound, "Alert not found", "ALERT_NOT_FOUND", nil)
		case businessflow.IsAlertAlreadyClosed(err):
			return errorResponse(c, fiber.StatusConflict, "Alert is already closed", "ALERT_ALREADY_CLOSED", nil)
		}
		log.Println("Close alert failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to update alert", "CLOSE_ALERT_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// DailyReport generates the account narrative and optionally sends it over WhatsApp
// @Summary Daily narrative report
// @Tags Alerts
// @Accept json
// @Produce json
// @Param request body dto.DailyReportRequest false "Time of day and delivery flag"
// @Success 200 {object} dto.APIResponse{data=dto.DailyReportResponse}
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/alerts/daily [post]
func (h *AlertHandler) DailyReport(c fiber.Ctx) error {
	var req dto.DailyReportRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationFailed(c, err)
	}

	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}

	ctx, cancel := requestContext(c, "/api/v1/alerts/daily", defaultRequestTimeout)
	defer cancel()

	result, err := h.reportFlow.GenerateDailyReport(ctx, userID, req)
	if err != nil {
		if businessflow.IsValidationError(err) {
			return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{errorCause(err)})
		}
		log.Println("Daily report failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to generate daily report", "DAILY_REPORT_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}
