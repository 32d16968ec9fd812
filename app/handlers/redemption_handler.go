package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"
	businessflow "github.com/textwave/textwave-backend/business_flow"
)

// RedemptionHandlerInterface defines the contract for redemption handlers
type RedemptionHandlerInterface interface {
	TrackVisit(c fiber.Ctx) error
	ConfirmRedemption(c fiber.Ctx) error
}

// RedemptionHandler handles public tracking link HTTP requests
type RedemptionHandler struct {
	baseHandler
	redemptionFlow businessflow.RedemptionFlow
}

// NewRedemptionHandler creates a new redemption handler
func NewRedemptionHandler(redemptionFlow businessflow.RedemptionFlow) *RedemptionHandler {
	return &RedemptionHandler{
		baseHandler:    newBaseHandler(),
		redemptionFlow: redemptionFlow,
	}
}

// TrackVisit records a tracking link visit
func (h *RedemptionHandler) TrackVisit(c fiber.Ctx) error {
	trackingID := c.Params("trackingID")
	if trackingID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Tracking ID is required", "MISSING_TRACKING_ID", nil)
	}

	result, err := h.redemptionFlow.TrackVisit(h.requestContext(c, "/t/"+trackingID), trackingID, h.clientMetadata(c))
	if err != nil {
		return h.redemptionError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Visit recorded", result)
}

// ConfirmRedemption marks a visited tracking link as converted
func (h *RedemptionHandler) ConfirmRedemption(c fiber.Ctx) error {
	trackingID := c.Params("trackingID")
	if trackingID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Tracking ID is required", "MISSING_TRACKING_ID", nil)
	}

	result, err := h.redemptionFlow.ConfirmRedemption(h.requestContext(c, "/t/"+trackingID+"/redeem"), trackingID, h.clientMetadata(c))
	if err != nil {
		return h.redemptionError(c, err)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Redemption confirmed", result)
}

func (h *RedemptionHandler) redemptionError(c fiber.Ctx, err error) error {
	if businessflow.IsTrackingIDNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Tracking link not found", "TRACKING_LINK_NOT_FOUND", nil)
	}

	log.Println("Redemption processing failed", err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process tracking link", "REDEMPTION_FAILED", nil)
}
