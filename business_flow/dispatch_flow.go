package businessflow

import (
	"context"
	"errors"
	"log"

	"github.com/textwave/textwave-backend/app/services"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// DispatchOutcome classifies the result of processing one dispatch task
type DispatchOutcome string

const (
	// DispatchOutcomeSent means the provider accepted the message
	DispatchOutcomeSent DispatchOutcome = "sent"
	// DispatchOutcomeRetry means a transient failure; the caller should
	// re-enqueue the task with backoff
	DispatchOutcomeRetry DispatchOutcome = "retry"
	// DispatchOutcomeFailed means a terminal failure; the message is failed
	// and the credit refunded
	DispatchOutcomeFailed DispatchOutcome = "failed"
	// DispatchOutcomeDropped means the task had nothing left to do
	DispatchOutcomeDropped DispatchOutcome = "dropped"
)

// DispatchFlow processes dispatch tasks: it submits one queued message to
// the SMS provider and applies the outcome.
//
// Failure handling splits on the provider response. No response or a 5xx or
// 429 is transient: the message stays queued and the task retries. Any other
// 4xx is terminal: the message fails and the consumed credit comes back as a
// refund, exactly once, guarded by both the conditional queued-to-failed
// update and the ledger's per-message refund idempotency.
type DispatchFlow interface {
	ProcessTask(ctx context.Context, task services.Task) (DispatchOutcome, error)
}

// DispatchFlowImpl implements DispatchFlow
type DispatchFlowImpl struct {
	messageRepo  repository.CampaignMessageRepository
	campaignRepo repository.CampaignRepository
	customerRepo repository.CustomerRepository
	ledger       CreditLedger
	provider     services.SMSProvider
	finalizer    FinalizerFlow
	logger       *log.Logger
}

// NewDispatchFlow creates a new dispatch flow
func NewDispatchFlow(
	messageRepo repository.CampaignMessageRepository,
	campaignRepo repository.CampaignRepository,
	customerRepo repository.CustomerRepository,
	ledger CreditLedger,
	provider services.SMSProvider,
	finalizer FinalizerFlow,
	logger *log.Logger,
) DispatchFlow {
	if logger == nil {
		logger = log.Default()
	}
	return &DispatchFlowImpl{
		messageRepo:  messageRepo,
		campaignRepo: campaignRepo,
		customerRepo: customerRepo,
		ledger:       ledger,
		provider:     provider,
		finalizer:    finalizer,
		logger:       logger,
	}
}

// ProcessTask submits one queued message to the provider
func (f *DispatchFlowImpl) ProcessTask(ctx context.Context, task services.Task) (DispatchOutcome, error) {
	message, err := f.messageRepo.ByID(ctx, task.MessageID)
	if err != nil {
		return DispatchOutcomeRetry, NewBusinessError("internal_error", "failed to load message", err)
	}
	// Deleted or already moved on by a webhook or an earlier attempt
	if message == nil || message.Status != models.MessageStatusQueued {
		return DispatchOutcomeDropped, nil
	}

	from, err := f.lineNumber(ctx, message)
	if err != nil {
		return DispatchOutcomeRetry, err
	}

	providerMessageID, sendErr := f.provider.Send(ctx, from, message.Phone, message.Text)
	if sendErr == nil {
		updated, err := f.messageRepo.MarkSent(ctx, message.ID, providerMessageID, utils.UTCNow())
		if err != nil {
			return DispatchOutcomeRetry, NewBusinessError("internal_error", "failed to mark message sent", err)
		}
		if !updated {
			// Lost a race with another writer after the send; the provider
			// has the message either way
			f.logger.Printf("dispatch: message %d accepted by provider but no longer queued", message.ID)
			return DispatchOutcomeDropped, nil
		}
		return DispatchOutcomeSent, nil
	}

	var providerErr *services.ProviderError
	if errors.As(sendErr, &providerErr) && !providerErr.Retryable() {
		return f.failTerminally(ctx, message, sendErr.Error())
	}

	// Transient: keep the message queued and surface the error for the retry
	if err := f.messageRepo.RecordAttemptError(ctx, message.ID, sendErr.Error()); err != nil {
		f.logger.Printf("dispatch: message %d record attempt error: %v", message.ID, err)
	}
	return DispatchOutcomeRetry, NewBusinessError("provider_transient_failure", "provider rejected message transiently", ErrProviderTransientFailure)
}

func (f *DispatchFlowImpl) failTerminally(ctx context.Context, message *models.CampaignMessage, errorMessage string) (DispatchOutcome, error) {
	failed, err := f.messageRepo.MarkFailed(ctx, message.ID, errorMessage, utils.UTCNow())
	if err != nil {
		return DispatchOutcomeRetry, NewBusinessError("internal_error", "failed to mark message failed", err)
	}
	if !failed {
		return DispatchOutcomeDropped, nil
	}

	// The refund is idempotent per message, so even a crash between the
	// failed update and here only delays it until the task redelivers.
	if _, err := f.ledger.Refund(ctx, message.CustomerID, 1, message.ID, utils.ToPtr(message.CampaignID)); err != nil {
		f.logger.Printf("dispatch: refund for message %d failed: %v", message.ID, err)
	}

	if _, err := f.finalizer.FinalizeCampaign(ctx, message.CampaignID); err != nil {
		f.logger.Printf("dispatch: finalize campaign %d failed: %v", message.CampaignID, err)
	}
	return DispatchOutcomeFailed, nil
}

func (f *DispatchFlowImpl) lineNumber(ctx context.Context, message *models.CampaignMessage) (string, error) {
	campaign, err := f.campaignRepo.ByID(ctx, message.CampaignID)
	if err != nil {
		return "", NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign != nil && campaign.LineNumber != "" {
		return campaign.LineNumber, nil
	}

	customer, err := f.customerRepo.ByID(ctx, message.CustomerID)
	if err != nil {
		return "", NewBusinessError("internal_error", "failed to load customer", err)
	}
	if customer == nil {
		return "", NewBusinessError("not_found", "customer not found", ErrCustomerNotFound)
	}
	return customer.DefaultLineNumber, nil
}
