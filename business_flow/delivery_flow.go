package businessflow

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/app/services"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// Provider status vocabularies. Providers disagree on spelling, so the
// webhook normalizes before applying anything.
var (
	deliveredStatuses = map[string]bool{
		"delivered": true,
		"delivrd":   true,
	}
	failedStatuses = map[string]bool{
		"failed":        true,
		"undeliverable": true,
		"rejected":      true,
		"expired":       true,
	}
	sentStatuses = map[string]bool{
		"sent":     true,
		"accepted": true,
		"buffered": true,
		"queued":   true,
	}
)

// DeliveryFlow reconciles provider delivery reports into message state.
//
// Every state movement is a conditional update, so replayed batches and
// out-of-order events settle on the same final state. A failed report never
// refunds: the provider accepted the message, so the credit was spent.
type DeliveryFlow interface {
	ApplyDeliveryReports(ctx context.Context, req *dto.DeliveryWebhookRequest) (*dto.DeliveryWebhookResponse, error)
}

// DeliveryFlowImpl implements DeliveryFlow
type DeliveryFlowImpl struct {
	messageRepo repository.CampaignMessageRepository
	finalizer   FinalizerFlow
	statsCache  services.CampaignStatsCache
	logger      *log.Logger
}

// NewDeliveryFlow creates a new delivery flow
func NewDeliveryFlow(
	messageRepo repository.CampaignMessageRepository,
	finalizer FinalizerFlow,
	statsCache services.CampaignStatsCache,
	logger *log.Logger,
) DeliveryFlow {
	if statsCache == nil {
		statsCache = services.NoopCampaignStatsCache{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &DeliveryFlowImpl{
		messageRepo: messageRepo,
		finalizer:   finalizer,
		statsCache:  statsCache,
		logger:      logger,
	}
}

type affectedCampaign struct {
	campaignID uint
	customerID uint
}

// ApplyDeliveryReports applies a batch of delivery events. Events that match
// no message or carry an unknown status are counted and skipped rather than
// failing the batch; the provider retries rejected batches whole, which
// would replay the events that did apply.
func (f *DeliveryFlowImpl) ApplyDeliveryReports(ctx context.Context, req *dto.DeliveryWebhookRequest) (*dto.DeliveryWebhookResponse, error) {
	resp := &dto.DeliveryWebhookResponse{}
	affected := make(map[uint]affectedCampaign)

	for _, event := range req.Events {
		messages, err := f.messageRepo.ListByProviderMessageID(ctx, event.ProviderMessageID)
		if err != nil {
			return nil, NewBusinessError("internal_error", "failed to look up message", err)
		}
		if len(messages) == 0 {
			f.logger.Printf("delivery: no message for provider id %q", event.ProviderMessageID)
			resp.Unmatched++
			continue
		}

		// Providers recycle identifiers; every row carrying the id moves
		anyApplied := false
		for _, message := range messages {
			applied, err := f.applyEvent(ctx, message, event)
			if err != nil {
				return nil, err
			}
			if applied {
				anyApplied = true
				affected[message.CampaignID] = affectedCampaign{
					campaignID: message.CampaignID,
					customerID: message.CustomerID,
				}
			}
		}
		if anyApplied {
			resp.Processed++
		} else {
			resp.Skipped++
		}
	}

	for _, c := range affected {
		f.statsCache.Invalidate(ctx, c.customerID, c.campaignID)
		if _, err := f.finalizer.FinalizeCampaign(ctx, c.campaignID); err != nil {
			f.logger.Printf("delivery: finalize campaign %d failed: %v", c.campaignID, err)
		}
	}
	return resp, nil
}

func (f *DeliveryFlowImpl) applyEvent(ctx context.Context, message *models.CampaignMessage, event dto.DeliveryEvent) (bool, error) {
	at := utils.UTCNow()
	if event.OccurredAt != nil {
		at = event.OccurredAt.UTC()
	}
	status := strings.ToLower(strings.TrimSpace(event.Status))

	switch {
	case deliveredStatuses[status]:
		return f.markDelivered(ctx, message, at)
	case failedStatuses[status]:
		return f.markFailed(ctx, message, event.Error, at)
	case sentStatuses[status]:
		// Informational: confirms the submit but only moves queued rows,
		// which happens when the webhook outruns the worker's own update
		return f.messageRepo.UpdateStatusIf(ctx, message.ID,
			[]models.MessageStatus{models.MessageStatusQueued},
			map[string]any{
				"status":  models.MessageStatusSent.String(),
				"sent_at": at,
			})
	default:
		f.logger.Printf("delivery: unknown status %q for message %d", event.Status, message.ID)
		return false, nil
	}
}

// markDelivered moves the message to delivered from any non-delivered state.
// Delivered is the strongest signal: a failed row flipping to delivered means
// the earlier failure report was wrong, and delivered sticks.
func (f *DeliveryFlowImpl) markDelivered(ctx context.Context, message *models.CampaignMessage, at time.Time) (bool, error) {
	if message.Status == models.MessageStatusFailed {
		f.logger.Printf("delivery: message %d reported delivered after failed", message.ID)
	}
	return f.messageRepo.UpdateStatusIf(ctx, message.ID,
		[]models.MessageStatus{models.MessageStatusQueued, models.MessageStatusSent, models.MessageStatusFailed},
		map[string]any{
			"status":       models.MessageStatusDelivered.String(),
			"delivered_at": at,
		})
}

// markFailed moves the message to failed unless it is already delivered
func (f *DeliveryFlowImpl) markFailed(ctx context.Context, message *models.CampaignMessage, errorMessage string, at time.Time) (bool, error) {
	if message.Status == models.MessageStatusDelivered {
		f.logger.Printf("delivery: message %d reported failed after delivered, keeping delivered", message.ID)
		return false, nil
	}
	return f.messageRepo.UpdateStatusIf(ctx, message.ID,
		[]models.MessageStatus{models.MessageStatusQueued, models.MessageStatusSent},
		map[string]any{
			"status":        models.MessageStatusFailed.String(),
			"error_message": errorMessage,
			"failed_at":     at,
		})
}
