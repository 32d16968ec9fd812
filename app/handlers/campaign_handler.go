package handlers

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/textwave/textwave-backend/app/dto"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/xuri/excelize/v2"
)

// exportTimeout bounds the messages export, which can page through large
// campaigns
const exportTimeout = 2 * time.Minute

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	ScheduleCampaign(c fiber.Ctx) error
	PauseCampaign(c fiber.Ctx) error
	ResumeCampaign(c fiber.Ctx) error
	PreviewCampaign(c fiber.Ctx) error
	EnqueueCampaign(c fiber.Ctx) error
	CampaignStatus(c fiber.Ctx) error
	ExportMessages(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	baseHandler
	campaignFlow  businessflow.CampaignFlow
	enqueueFlow   businessflow.EnqueueFlow
	finalizerFlow businessflow.FinalizerFlow
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(
	campaignFlow businessflow.CampaignFlow,
	enqueueFlow businessflow.EnqueueFlow,
	finalizerFlow businessflow.FinalizerFlow,
) *CampaignHandler {
	return &CampaignHandler{
		baseHandler:   newBaseHandler(),
		campaignFlow:  campaignFlow,
		enqueueFlow:   enqueueFlow,
		finalizerFlow: finalizerFlow,
	}
}

// CreateCampaign handles the campaign creation process
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.CreateCampaign(h.requestContext(c, "/api/v1/campaigns"), &req, customerID, h.clientMetadata(c))
	if err != nil {
		return h.campaignError(c, err, "Campaign creation failed", "CAMPAIGN_CREATION_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// UpdateCampaign handles the campaign update process
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.UpdateCampaign(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID), campaignUUID, &req, customerID, h.clientMetadata(c))
	if err != nil {
		return h.campaignError(c, err, "Campaign update failed", "CAMPAIGN_UPDATE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// GetCampaign returns one campaign by UUID
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.GetCampaign(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID), campaignUUID, customerID)
	if err != nil {
		return h.campaignError(c, err, "Failed to get campaign", "GET_CAMPAIGN_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// ListCampaigns returns the customer's campaigns with pagination and filters
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	var req dto.ListCampaignsRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.ListCampaigns(h.requestContext(c, "/api/v1/campaigns"), &req, customerID)
	if err != nil {
		return h.campaignError(c, err, "Failed to list campaigns", "LIST_CAMPAIGNS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// ScheduleCampaign sets or replaces the fire time of a campaign
func (h *CampaignHandler) ScheduleCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	var req dto.ScheduleCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.ScheduleCampaign(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID+"/schedule"), campaignUUID, &req, customerID, h.clientMetadata(c))
	if err != nil {
		return h.campaignError(c, err, "Campaign scheduling failed", "CAMPAIGN_SCHEDULE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign scheduled successfully", result)
}

// PauseCampaign pauses a scheduled campaign
func (h *CampaignHandler) PauseCampaign(c fiber.Ctx) error {
	return h.transition(c, "pause", "Campaign paused successfully", "CAMPAIGN_PAUSE_FAILED", h.campaignFlow.PauseCampaign)
}

// ResumeCampaign resumes a paused campaign
func (h *CampaignHandler) ResumeCampaign(c fiber.Ctx) error {
	return h.transition(c, "resume", "Campaign resumed successfully", "CAMPAIGN_RESUME_FAILED", h.campaignFlow.ResumeCampaign)
}

func (h *CampaignHandler) transition(
	c fiber.Ctx,
	action, successMessage, failureCode string,
	fn func(ctx context.Context, campaignUUID string, customerID uint, clientMeta *businessflow.ClientMetadata) (*dto.CampaignDTO, error),
) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := fn(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID+"/"+action), campaignUUID, customerID, h.clientMetadata(c))
	if err != nil {
		return h.campaignError(c, err, "Campaign "+action+" failed", failureCode)
	}

	return h.SuccessResponse(c, fiber.StatusOK, successMessage, result)
}

// EnqueueCampaign starts sending a campaign immediately
func (h *CampaignHandler) EnqueueCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.enqueueFlow.EnqueueCampaign(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID+"/enqueue"), campaignUUID, customerID, h.clientMetadata(c))
	if err != nil {
		if businessflow.IsInsufficientCredits(err) {
			return h.ErrorResponse(c, fiber.StatusPaymentRequired, "Insufficient credits", "INSUFFICIENT_CREDITS", nil)
		}
		if businessflow.IsNoRecipients(err) {
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Campaign has no recipients", "NO_RECIPIENTS", nil)
		}
		if businessflow.IsCampaignAlreadySending(err) {
			return h.ErrorResponse(c, fiber.StatusConflict, "Campaign is already sending", "CAMPAIGN_ALREADY_SENDING", nil)
		}
		return h.campaignError(c, err, "Campaign enqueue failed", "CAMPAIGN_ENQUEUE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusAccepted, "Campaign enqueued successfully", result)
}

// CampaignStatus returns per-status message counts for a campaign
func (h *CampaignHandler) CampaignStatus(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.finalizerFlow.CampaignStatus(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID+"/status"), campaignUUID, customerID)
	if err != nil {
		return h.campaignError(c, err, "Failed to get campaign status", "CAMPAIGN_STATUS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign status retrieved successfully", result)
}

// PreviewCampaign resolves the audience without mutating anything
func (h *CampaignHandler) PreviewCampaign(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.campaignFlow.PreviewCampaign(h.requestContext(c, "/api/v1/campaigns/"+campaignUUID+"/preview"), campaignUUID, customerID)
	if err != nil {
		return h.campaignError(c, err, "Campaign preview failed", "CAMPAIGN_PREVIEW_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Campaign preview generated successfully", result)
}

// ExportMessages streams a campaign's messages as an xlsx workbook
func (h *CampaignHandler) ExportMessages(c fiber.Ctx) error {
	campaignUUID := c.Params("uuid")
	if campaignUUID == "" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign UUID is required", "MISSING_CAMPAIGN_UUID", nil)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	limit := 10000
	if v, err := strconv.Atoi(c.Query("limit", "10000")); err == nil && v > 0 && v <= 100000 {
		limit = v
	}

	ctx := h.requestContextWithTimeout(c, "/api/v1/campaigns/"+campaignUUID+"/messages/export", exportTimeout)
	campaign, messages, err := h.finalizerFlow.ListMessages(ctx, campaignUUID, customerID, limit, 0)
	if err != nil {
		return h.campaignError(c, err, "Failed to export messages", "EXPORT_MESSAGES_FAILED")
	}

	file := excelize.NewFile()
	defer file.Close()

	sheet := "Messages"
	file.SetSheetName(file.GetSheetName(0), sheet)

	headers := []string{"Phone", "Status", "Tracking ID", "Provider Message ID", "Sent At", "Delivered At", "Failed At", "Error"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = file.SetCellValue(sheet, cell, header)
	}

	for row, message := range messages {
		values := []any{
			message.Phone,
			message.Status.String(),
			message.TrackingID.String(),
			message.ProviderMessageID,
			formatTimePtr(message.SentAt),
			formatTimePtr(message.DeliveredAt),
			formatTimePtr(message.FailedAt),
			message.ErrorMessage,
		}
		for col, value := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			_ = file.SetCellValue(sheet, cell, value)
		}
	}

	buf, err := file.WriteToBuffer()
	if err != nil {
		log.Println("Message export failed", err)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to build export file", "EXPORT_MESSAGES_FAILED", nil)
	}

	filename := fmt.Sprintf("campaign-%s-messages.xlsx", campaign.UUID.String())
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(buf.Bytes())
}

// campaignError maps business errors onto HTTP responses
func (h *CampaignHandler) campaignError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsCustomerNotFound(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
	case businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
	case businessflow.IsCampaignNotFound(err) || businessflow.IsCampaignAccessDenied(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Campaign not found", "CAMPAIGN_NOT_FOUND", nil)
	case businessflow.IsContactListNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Contact list not found", "CONTACT_LIST_NOT_FOUND", nil)
	case businessflow.IsTemplateNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Message template not found", "TEMPLATE_NOT_FOUND", nil)
	case businessflow.IsCampaignUpdateNotAllowed(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot be updated in current status", "CAMPAIGN_UPDATE_NOT_ALLOWED", nil)
	case businessflow.IsInvalidStateTransition(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Campaign cannot change to the requested status", "INVALID_STATE_TRANSITION", nil)
	case businessflow.IsCampaignTitleRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign title is required", "CAMPAIGN_TITLE_REQUIRED", nil)
	case businessflow.IsCampaignBodyRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Campaign body is required", "CAMPAIGN_BODY_REQUIRED", nil)
	case businessflow.IsScheduleTimeNotPresent(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule time is required", "SCHEDULE_TIME_NOT_PRESENT", nil)
	case businessflow.IsScheduleTimeInPast(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Schedule time must be in the future", "SCHEDULE_TIME_IN_PAST", nil)
	case businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
	}

	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}
