package handlers

import (
	"log"

	"github.com/amirphl/adwatch/app/dto"
	businessflow "github.com/amirphl/adwatch/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// SyncHandlerInterface defines the contract for sync handlers
type SyncHandlerInterface interface {
	Sync(c fiber.Ctx) error
}

// SyncHandler triggers ad account reconciliation
type SyncHandler struct {
	syncFlow  businessflow.SyncFlow
	validator *validator.Validate
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(syncFlow businessflow.SyncFlow) *SyncHandler {
	return &SyncHandler{
		syncFlow:  syncFlow,
		validator: validator.New(),
	}
}

// Sync handles the reconciliation trigger
// @Summary Sync ad accounts
// @Description Pull campaigns and today's insights for one or all connected ad accounts
// @Tags Sync
// @Accept json
// @Produce json
// @Param request body dto.SyncRequest false "Sync options"
// @Success 200 {object} dto.APIResponse{data=dto.SyncResponse} "Sync finished (check status for partial failures)"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/sync [post]
func (h *SyncHandler) Sync(c fiber.Ctx) error {
	var req dto.SyncRequest
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

	ctx, cancel := requestContext(c, "/api/v1/sync", syncRequestTimeout)
	defer cancel()

	result := h.syncFlow.SyncAccounts(ctx, userID, req)
	if result.Status != dto.SyncStatusSuccess {
		log.Printf("sync user=%d finished with status %s: %v", userID, result.Status, result.Errors)
	}

	message := "Sync completed"
	switch result.Status {
	case dto.SyncStatusPartial:
		message = "Sync completed with errors"
	case dto.SyncStatusFailed:
		message = "Sync failed"
	}
	return successResponse(c, fiber.StatusOK, message, result)
}
