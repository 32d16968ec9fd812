package businessflow

import (
	"context"
	"strings"

	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// PreviewSampleLimit caps the rendered samples returned by a preview
const PreviewSampleLimit = 10

// CampaignFlow manages the campaign lifecycle up to (but not including)
// the enqueue transaction, which lives in EnqueueFlow.
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error)
	UpdateCampaign(ctx context.Context, campaignUUID string, req *dto.UpdateCampaignRequest, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error)
	GetCampaign(ctx context.Context, campaignUUID string, customerID uint) (*dto.CampaignDTO, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, customerID uint) (*dto.CampaignListResponse, error)
	ScheduleCampaign(ctx context.Context, campaignUUID string, req *dto.ScheduleCampaignRequest, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error)
	PauseCampaign(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error)
	ResumeCampaign(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error)
	PreviewCampaign(ctx context.Context, campaignUUID string, customerID uint) (*dto.PreviewCampaignResponse, error)
}

// CampaignFlowImpl implements CampaignFlow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	customerRepo repository.CustomerRepository
	listRepo     repository.ContactListRepository
	templateRepo repository.MessageTemplateRepository
	contactRepo  repository.ContactRepository
	auditRepo    repository.AuditLogRepository
	tx           repository.TxRunner
}

// NewCampaignFlow creates a new campaign flow
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	customerRepo repository.CustomerRepository,
	listRepo repository.ContactListRepository,
	templateRepo repository.MessageTemplateRepository,
	contactRepo repository.ContactRepository,
	auditRepo repository.AuditLogRepository,
	tx repository.TxRunner,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
		listRepo:     listRepo,
		templateRepo: templateRepo,
		contactRepo:  contactRepo,
		auditRepo:    auditRepo,
		tx:           tx,
	}
}

// CreateCampaign creates a draft campaign, optionally pre-scheduled
func (f *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error) {
	customer, err := getActiveCustomer(ctx, f.customerRepo, customerID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, NewBusinessError("validation_error", "campaign title is required", ErrCampaignTitleRequired)
	}

	body := strings.TrimSpace(req.Body)
	if req.TemplateUUID != nil {
		template, err := f.templateRepo.ByUUID(ctx, *req.TemplateUUID)
		if err != nil {
			return nil, NewBusinessError("internal_error", "failed to load template", err)
		}
		if template == nil || template.CustomerID != customerID {
			return nil, NewBusinessError("not_found", "template not found", ErrTemplateNotFound)
		}
		body = template.Body
	}
	if body == "" {
		return nil, NewBusinessError("validation_error", "campaign body is required", ErrCampaignBodyRequired)
	}

	campaign := &models.Campaign{
		CustomerID: customerID,
		Status:     models.CampaignStatusDraft,
		Title:      title,
		Body:       body,
		LineNumber: customer.DefaultLineNumber,
		CreatedAt:  utils.UTCNow(),
		UpdatedAt:  utils.UTCNow(),
	}
	if req.LineNumber != nil {
		campaign.LineNumber = *req.LineNumber
	}

	if req.ListUUID != nil {
		list, err := f.resolveList(ctx, *req.ListUUID, customerID)
		if err != nil {
			return nil, err
		}
		campaign.ListID = utils.ToPtr(list.ID)
	}

	if req.ScheduledAt != nil {
		if !req.ScheduledAt.After(utils.UTCNow()) {
			return nil, NewBusinessError("validation_error", "schedule time is in the past", ErrScheduleTimeInPast)
		}
		campaign.Status = models.CampaignStatusScheduled
		campaign.ScheduledAt = utils.ToPtr(req.ScheduledAt.UTC())
	}

	if err := f.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("internal_error", "failed to create campaign", err)
	}

	recordAudit(ctx, f.auditRepo, &customerID, models.AuditActionCampaignCreated, true,
		"campaign created", clientMeta, map[string]any{"campaign_uuid": campaign.UUID.String()})

	result := ToCampaignDTO(campaign)
	return &result, nil
}

// UpdateCampaign edits a draft or scheduled campaign
func (f *CampaignFlowImpl) UpdateCampaign(ctx context.Context, campaignUUID string, req *dto.UpdateCampaignRequest, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, customerID)
	if err != nil {
		return nil, err
	}
	if !campaign.IsEditable() {
		return nil, NewBusinessErrorf("invalid_state_transition", "campaign in status %s cannot be edited", ErrCampaignUpdateNotAllowed, campaign.Status)
	}

	if req.Title != nil {
		campaign.Title = strings.TrimSpace(*req.Title)
	}
	if req.Body != nil {
		campaign.Body = strings.TrimSpace(*req.Body)
	}
	if req.LineNumber != nil {
		campaign.LineNumber = *req.LineNumber
	}
	if req.ListUUID != nil {
		list, err := f.resolveList(ctx, *req.ListUUID, customerID)
		if err != nil {
			return nil, err
		}
		campaign.ListID = utils.ToPtr(list.ID)
	}

	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("internal_error", "failed to update campaign", err)
	}

	recordAudit(ctx, f.auditRepo, &customerID, models.AuditActionCampaignUpdated, true,
		"campaign updated", clientMeta, map[string]any{"campaign_uuid": campaign.UUID.String()})

	result := ToCampaignDTO(campaign)
	return &result, nil
}

// GetCampaign loads one campaign of the customer
func (f *CampaignFlowImpl) GetCampaign(ctx context.Context, campaignUUID string, customerID uint) (*dto.CampaignDTO, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, customerID)
	if err != nil {
		return nil, err
	}
	result := ToCampaignDTO(campaign)
	return &result, nil
}

// ListCampaigns pages through the customer's campaigns, newest first
func (f *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest, customerID uint) (*dto.CampaignListResponse, error) {
	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	filter := models.CampaignFilter{CustomerID: utils.ToPtr(customerID)}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessErrorf("validation_error", "unknown status %q", nil, *req.Status)
		}
		filter.Status = &status
	}

	total, err := f.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to count campaigns", err)
	}

	campaigns, err := f.campaignRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to list campaigns", err)
	}

	items := make([]dto.CampaignDTO, 0, len(campaigns))
	for _, campaign := range campaigns {
		items = append(items, ToCampaignDTO(campaign))
	}
	return &dto.CampaignListResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

// ScheduleCampaign sets or replaces the fire time. Rescheduling is just an
// update of scheduled_at: the scheduler reads the current value each tick,
// so the old time needs no explicit cancellation.
func (f *CampaignFlowImpl) ScheduleCampaign(ctx context.Context, campaignUUID string, req *dto.ScheduleCampaignRequest, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, customerID)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft && campaign.Status != models.CampaignStatusScheduled {
		return nil, NewBusinessErrorf("invalid_state_transition", "campaign in status %s cannot be scheduled", ErrInvalidStateTransition, campaign.Status)
	}
	if !req.ScheduledAt.After(utils.UTCNow()) {
		return nil, NewBusinessError("validation_error", "schedule time is in the past", ErrScheduleTimeInPast)
	}

	campaign.Status = models.CampaignStatusScheduled
	campaign.ScheduledAt = utils.ToPtr(req.ScheduledAt.UTC())
	if err := f.campaignRepo.Update(ctx, campaign); err != nil {
		return nil, NewBusinessError("internal_error", "failed to schedule campaign", err)
	}

	recordAudit(ctx, f.auditRepo, &customerID, models.AuditActionCampaignScheduled, true,
		"campaign scheduled", clientMeta, map[string]any{
			"campaign_uuid": campaign.UUID.String(),
			"scheduled_at":  campaign.ScheduledAt,
		})

	result := ToCampaignDTO(campaign)
	return &result, nil
}

// PauseCampaign takes a scheduled campaign out of the scheduler's reach
func (f *CampaignFlowImpl) PauseCampaign(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error) {
	return f.transition(ctx, campaignUUID, customerID, clientMeta,
		[]models.CampaignStatus{models.CampaignStatusScheduled},
		models.CampaignStatusPaused, models.AuditActionCampaignPaused)
}

// ResumeCampaign puts a paused campaign back on the schedule
func (f *CampaignFlowImpl) ResumeCampaign(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata) (*dto.CampaignDTO, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, customerID)
	if err != nil {
		return nil, err
	}
	if campaign.ScheduledAt == nil || !campaign.ScheduledAt.After(utils.UTCNow()) {
		// The fire time passed while paused; back to draft
		return f.transition(ctx, campaignUUID, customerID, clientMeta,
			[]models.CampaignStatus{models.CampaignStatusPaused},
			models.CampaignStatusDraft, models.AuditActionCampaignResumed)
	}
	return f.transition(ctx, campaignUUID, customerID, clientMeta,
		[]models.CampaignStatus{models.CampaignStatusPaused},
		models.CampaignStatusScheduled, models.AuditActionCampaignResumed)
}

// PreviewCampaign resolves the audience and renders samples without
// touching campaign state or the wallet
func (f *CampaignFlowImpl) PreviewCampaign(ctx context.Context, campaignUUID string, customerID uint) (*dto.PreviewCampaignResponse, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, customerID)
	if err != nil {
		return nil, err
	}

	audience, err := f.contactRepo.ResolveAudience(ctx, customerID, campaign.ListID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to resolve audience", err)
	}

	samples := make([]dto.PreviewMessage, 0, PreviewSampleLimit)
	for _, contact := range audience {
		if len(samples) == PreviewSampleLimit {
			break
		}
		samples = append(samples, dto.PreviewMessage{
			Phone: contact.Phone,
			Text:  RenderMessage(campaign.Body, contact),
		})
	}

	return &dto.PreviewCampaignResponse{
		CampaignUUID: campaign.UUID.String(),
		Recipients:   len(audience),
		Samples:      samples,
	}, nil
}

// RenderMessage renders a campaign body for one contact
func RenderMessage(body string, contact *models.Contact) string {
	return models.RenderTemplate(body, map[string]string{
		"first_name": contact.FirstName,
		"last_name":  contact.LastName,
		"phone":      contact.Phone,
	})
}

func (f *CampaignFlowImpl) transition(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata, from []models.CampaignStatus, to models.CampaignStatus, auditAction string) (*dto.CampaignDTO, error) {
	campaign, err := f.ownedCampaign(ctx, campaignUUID, customerID)
	if err != nil {
		return nil, err
	}

	ok, err := f.campaignRepo.TransitionStatus(ctx, campaign.ID, from, to, nil)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to transition campaign", err)
	}
	if !ok {
		return nil, NewBusinessErrorf("invalid_state_transition", "campaign in status %s cannot move to %s", ErrInvalidStateTransition, campaign.Status, to)
	}

	recordAudit(ctx, f.auditRepo, &customerID, auditAction, true,
		"campaign status changed", clientMeta, map[string]any{
			"campaign_uuid": campaign.UUID.String(),
			"to":            to.String(),
		})

	campaign.Status = to
	result := ToCampaignDTO(campaign)
	return &result, nil
}

func (f *CampaignFlowImpl) ownedCampaign(ctx context.Context, campaignUUID string, customerID uint) (*models.Campaign, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("not_found", "campaign not found", ErrCampaignNotFound)
	}
	if campaign.CustomerID != customerID {
		return nil, NewBusinessError("not_found", "campaign not found", ErrCampaignAccessDenied)
	}
	return campaign, nil
}

func (f *CampaignFlowImpl) resolveList(ctx context.Context, listUUID string, customerID uint) (*models.ContactList, error) {
	list, err := f.listRepo.ByUUID(ctx, listUUID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load contact list", err)
	}
	if list == nil || list.CustomerID != customerID {
		return nil, NewBusinessError("not_found", "contact list not found", ErrContactListNotFound)
	}
	return list, nil
}
