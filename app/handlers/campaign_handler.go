package handlers

import (
	"log"

	businessflow "github.com/amirphl/adwatch/business_flow"
	"github.com/gofiber/fiber/v3"
)

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	GetStructure(c fiber.Ctx) error
	ExplainCampaign(c fiber.Ctx) error
}

// CampaignHandler handles single-campaign HTTP requests
type CampaignHandler struct {
	campaignFlow businessflow.CampaignFlow
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow) *CampaignHandler {
	return &CampaignHandler{campaignFlow: campaignFlow}
}

// GetStructure lists the campaign's live ad sets and ads
// @Summary Campaign structure
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.CampaignStructureResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Failure 502 {object} dto.APIResponse "Ad platform error"
// @Router /api/v1/campaigns/{id}/structure [get]
func (h *CampaignHandler) GetStructure(c fiber.Ctx) error {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"campaign id must be a positive integer"})
	}
	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/structure", defaultRequestTimeout)
	defer cancel()

	result, err := h.campaignFlow.GetStructure(ctx, userID, campaignID)
	if err != nil {
		switch {
		case businessflow.IsCampaignNotFound(err):
			return errorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		case businessflow.IsFacebookAccountNotFound(err):
			return errorResponse(c, fiber.StatusNotFound, "Ad account not connected", "FACEBOOK_ACCOUNT_NOT_FOUND", nil)
		}
		log.Println("Get campaign structure failed", err)
		return errorResponse(c, fiber.StatusBadGateway, errorMessage(err), "GET_CAMPAIGN_STRUCTURE_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}

// ExplainCampaign writes a plain-language explanation of the campaign's latest numbers
// @Summary Explain campaign
// @Tags Campaigns
// @Produce json
// @Param id path int true "Campaign ID"
// @Success 200 {object} dto.APIResponse{data=dto.ExplainCampaignResponse}
// @Failure 404 {object} dto.APIResponse "Campaign not found"
// @Router /api/v1/campaigns/{id}/explain [post]
func (h *CampaignHandler) ExplainCampaign(c fiber.Ctx) error {
	campaignID, ok := pathID(c, "id")
	if !ok {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", []string{"campaign id must be a positive integer"})
	}
	userID, ok := authenticatedUserID(c)
	if !ok {
		return missingUser(c)
	}

	ctx, cancel := requestContext(c, "/api/v1/campaigns/:id/explain", defaultRequestTimeout)
	defer cancel()

	result, err := h.campaignFlow.ExplainCampaign(ctx, userID, campaignID)
	if err != nil {
		if businessflow.IsCampaignNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
		}
		log.Println("Explain campaign failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to explain campaign", "EXPLAIN_CAMPAIGN_FAILED", nil)
	}
	return successResponse(c, fiber.StatusOK, result.Message, result)
}
