package businessflow

import (
	"context"
	"errors"
	"log"

	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/app/services"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// EnqueueFlow turns a campaign into materialized messages exactly once.
//
// The resolve / transition / debit / materialize steps run in one database
// transaction. The conditional transition to sending is the concurrency
// guard: of two racing enqueues only one updates the row, and the loser
// stops with campaign_already_sending before touching the wallet. An
// insufficient balance rolls the whole transaction back, which also reverts
// the status to what it was.
type EnqueueFlow interface {
	EnqueueCampaign(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata) (*dto.EnqueueCampaignResponse, error)
	// EnqueueByID is the scheduler entry point; ownership is implied.
	EnqueueByID(ctx context.Context, campaignID uint) (*dto.EnqueueCampaignResponse, error)
}

// EnqueueFlowImpl implements EnqueueFlow
type EnqueueFlowImpl struct {
	campaignRepo repository.CampaignRepository
	customerRepo repository.CustomerRepository
	contactRepo  repository.ContactRepository
	messageRepo  repository.CampaignMessageRepository
	auditRepo    repository.AuditLogRepository
	ledger       CreditLedger
	dispatcher   services.TaskDispatcher
	tx           repository.TxRunner
	logger       *log.Logger
}

// NewEnqueueFlow creates a new enqueue flow
func NewEnqueueFlow(
	campaignRepo repository.CampaignRepository,
	customerRepo repository.CustomerRepository,
	contactRepo repository.ContactRepository,
	messageRepo repository.CampaignMessageRepository,
	auditRepo repository.AuditLogRepository,
	ledger CreditLedger,
	dispatcher services.TaskDispatcher,
	tx repository.TxRunner,
	logger *log.Logger,
) EnqueueFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &EnqueueFlowImpl{
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
		contactRepo:  contactRepo,
		messageRepo:  messageRepo,
		auditRepo:    auditRepo,
		ledger:       ledger,
		dispatcher:   dispatcher,
		tx:           tx,
		logger:       logger,
	}
}

// EnqueueCampaign runs the enqueue for an API caller
func (f *EnqueueFlowImpl) EnqueueCampaign(ctx context.Context, campaignUUID string, customerID uint, clientMeta *ClientMetadata) (*dto.EnqueueCampaignResponse, error) {
	if _, err := getActiveCustomer(ctx, f.customerRepo, customerID); err != nil {
		return nil, err
	}

	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign == nil || campaign.CustomerID != customerID {
		return nil, NewBusinessError("not_found", "campaign not found", ErrCampaignNotFound)
	}

	return f.enqueue(ctx, campaign, clientMeta)
}

// EnqueueByID runs the enqueue for the scheduler
func (f *EnqueueFlowImpl) EnqueueByID(ctx context.Context, campaignID uint) (*dto.EnqueueCampaignResponse, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("not_found", "campaign not found", ErrCampaignNotFound)
	}
	return f.enqueue(ctx, campaign, nil)
}

func (f *EnqueueFlowImpl) enqueue(ctx context.Context, campaign *models.Campaign, clientMeta *ClientMetadata) (*dto.EnqueueCampaignResponse, error) {
	if !campaign.CanEnqueue() {
		if campaign.Status == models.CampaignStatusSending {
			return nil, NewBusinessError("campaign_already_sending", "campaign is already sending", ErrCampaignAlreadySending)
		}
		return nil, NewBusinessErrorf("invalid_state_transition", "campaign in status %s cannot be enqueued", ErrInvalidStateTransition, campaign.Status)
	}

	// Resolve the audience up front: an empty audience fails the campaign
	// without ever entering the transaction.
	audience, err := f.contactRepo.ResolveAudience(ctx, campaign.CustomerID, campaign.ListID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to resolve audience", err)
	}
	if len(audience) == 0 {
		if _, err := f.campaignRepo.TransitionStatus(ctx, campaign.ID,
			models.EnqueueableStatuses, models.CampaignStatusFailed,
			map[string]any{"finished_at": utils.UTCNow()}); err != nil {
			return nil, NewBusinessError("internal_error", "failed to fail campaign", err)
		}
		recordAudit(ctx, f.auditRepo, &campaign.CustomerID, models.AuditActionCampaignFailed, false,
			"campaign has no recipients", clientMeta, map[string]any{"campaign_uuid": campaign.UUID.String()})
		return nil, NewBusinessError("no_recipients", "campaign has no recipients", ErrNoRecipients)
	}

	var messages []*models.CampaignMessage
	var debited int64

	err = f.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		// Conditional transition is the enqueue lock
		won, err := f.campaignRepo.TransitionStatus(txCtx, campaign.ID,
			models.EnqueueableStatuses, models.CampaignStatusSending,
			map[string]any{
				"started_at": utils.UTCNow(),
				"total":      len(audience),
			})
		if err != nil {
			return NewBusinessError("internal_error", "failed to transition campaign", err)
		}
		if !won {
			return NewBusinessError("campaign_already_sending", "campaign is already sending", ErrCampaignAlreadySending)
		}

		// Debit one credit per recipient. On insufficient balance the
		// returned error aborts the transaction and the status transition
		// above rolls back with it.
		debited = int64(len(audience))
		if _, err := f.ledger.Debit(txCtx, campaign.CustomerID, debited,
			EnqueueReason(campaign.UUID.String()), utils.ToPtr(campaign.ID)); err != nil {
			return err
		}

		messages = make([]*models.CampaignMessage, 0, len(audience))
		for _, contact := range audience {
			messages = append(messages, &models.CampaignMessage{
				CampaignID: campaign.ID,
				CustomerID: campaign.CustomerID,
				ContactID:  contact.ID,
				Phone:      contact.Phone,
				Text:       RenderMessage(campaign.Body, contact),
				Status:     models.MessageStatusQueued,
				CreatedAt:  utils.UTCNow(),
				UpdatedAt:  utils.UTCNow(),
			})
		}
		if err := f.messageRepo.SaveBatch(txCtx, messages); err != nil {
			return NewBusinessError("internal_error", "failed to materialize messages", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			recordAudit(ctx, f.auditRepo, &campaign.CustomerID, models.AuditActionCampaignEnqueued, false,
				"insufficient credits", clientMeta, map[string]any{
					"campaign_uuid": campaign.UUID.String(),
					"recipients":    len(audience),
				})
		}
		return nil, err
	}

	// Task enqueues happen after commit and are best effort: a failed
	// enqueue leaves the message queued for the sweep to pick up.
	enqueued := 0
	for _, message := range messages {
		task := services.Task{
			ID:        message.TaskID(),
			Type:      services.TaskTypeDispatchMessage,
			MessageID: message.ID,
		}
		if err := f.dispatcher.Enqueue(ctx, task, 0); err != nil {
			f.logger.Printf("enqueue: dispatch task for message %d failed: %v", message.ID, err)
			continue
		}
		enqueued++
	}

	recordAudit(ctx, f.auditRepo, &campaign.CustomerID, models.AuditActionCampaignEnqueued, true,
		"campaign enqueued", clientMeta, map[string]any{
			"campaign_uuid": campaign.UUID.String(),
			"recipients":    len(audience),
			"debited":       debited,
			"enqueued":      enqueued,
		})

	return &dto.EnqueueCampaignResponse{
		CampaignUUID: campaign.UUID.String(),
		Status:       models.CampaignStatusSending.String(),
		Recipients:   len(audience),
		Debited:      debited,
		Enqueued:     enqueued,
	}, nil
}
