package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/textwave/textwave-backend/app/dto"
	businessflow "github.com/textwave/textwave-backend/business_flow"
)

// WebhookHandlerInterface defines the contract for webhook handlers
type WebhookHandlerInterface interface {
	DeliveryWebhook(c fiber.Ctx) error
}

// WebhookHandler handles provider webhook HTTP requests. Signature
// verification happens in middleware before the handler runs.
type WebhookHandler struct {
	baseHandler
	deliveryFlow businessflow.DeliveryFlow
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(deliveryFlow businessflow.DeliveryFlow) *WebhookHandler {
	return &WebhookHandler{
		baseHandler:  newBaseHandler(),
		deliveryFlow: deliveryFlow,
	}
}

// DeliveryWebhook applies a batch of provider delivery reports. Once the
// signature has checked out the provider gets a 200 for anything the flow
// can absorb; a non-200 would make the provider replay the whole batch.
func (h *WebhookHandler) DeliveryWebhook(c fiber.Ctx) error {
	var req dto.DeliveryWebhookRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	result, err := h.deliveryFlow.ApplyDeliveryReports(h.requestContext(c, "/api/v1/webhooks/delivery"), &req)
	if err != nil {
		log.Println("Delivery webhook processing failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process delivery reports", "WEBHOOK_PROCESSING_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Delivery reports processed", result)
}
