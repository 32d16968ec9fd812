package businessflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// RedemptionFlow handles public tracking link visits. The endpoints are
// unauthenticated: the tracking UUID itself is the capability.
type RedemptionFlow interface {
	// TrackVisit records the first visit of a tracking link. Repeat visits
	// return the original record.
	TrackVisit(ctx context.Context, trackingID string, clientMeta *ClientMetadata) (*dto.RedemptionResponse, error)
	// ConfirmRedemption marks a visited link as converted, once.
	ConfirmRedemption(ctx context.Context, trackingID string, clientMeta *ClientMetadata) (*dto.RedemptionResponse, error)
}

// RedemptionFlowImpl implements RedemptionFlow
type RedemptionFlowImpl struct {
	messageRepo    repository.CampaignMessageRepository
	redemptionRepo repository.RedemptionRepository
	auditRepo      repository.AuditLogRepository
}

// NewRedemptionFlow creates a new redemption flow
func NewRedemptionFlow(
	messageRepo repository.CampaignMessageRepository,
	redemptionRepo repository.RedemptionRepository,
	auditRepo repository.AuditLogRepository,
) RedemptionFlow {
	return &RedemptionFlowImpl{
		messageRepo:    messageRepo,
		redemptionRepo: redemptionRepo,
		auditRepo:      auditRepo,
	}
}

// TrackVisit records the first visit of a tracking link
func (f *RedemptionFlowImpl) TrackVisit(ctx context.Context, trackingID string, clientMeta *ClientMetadata) (*dto.RedemptionResponse, error) {
	message, err := f.lookupMessage(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	redemption, err := f.redemptionRepo.ByMessageID(ctx, message.ID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load redemption", err)
	}
	if redemption == nil {
		redemption = &models.Redemption{
			MessageID:  message.ID,
			CampaignID: message.CampaignID,
			CustomerID: message.CustomerID,
			VisitedAt:  utils.UTCNow(),
			CreatedAt:  utils.UTCNow(),
		}
		if clientMeta != nil {
			redemption.VisitorIP = clientMeta.IPAddress
			redemption.VisitorUserAgent = clientMeta.UserAgent
		}
		if err := f.redemptionRepo.Save(ctx, redemption); err != nil {
			// A concurrent visit may have won the unique index; re-read
			redemption, err = f.redemptionRepo.ByMessageID(ctx, message.ID)
			if err != nil || redemption == nil {
				return nil, NewBusinessError("internal_error", "failed to record visit", err)
			}
		} else {
			recordAudit(ctx, f.auditRepo, &message.CustomerID, models.AuditActionRedemptionVisited, true,
				"tracking link visited", clientMeta, map[string]any{"tracking_id": trackingID})
		}
	}

	return f.toResponse(message, redemption), nil
}

// ConfirmRedemption marks a visited link as converted
func (f *RedemptionFlowImpl) ConfirmRedemption(ctx context.Context, trackingID string, clientMeta *ClientMetadata) (*dto.RedemptionResponse, error) {
	// A confirm without a prior visit still counts as a visit
	resp, err := f.TrackVisit(ctx, trackingID, clientMeta)
	if err != nil {
		return nil, err
	}
	if resp.RedeemedAt != nil {
		return resp, nil
	}

	message, err := f.lookupMessage(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	redemption, err := f.redemptionRepo.ByMessageID(ctx, message.ID)
	if err != nil || redemption == nil {
		return nil, NewBusinessError("internal_error", "failed to load redemption", err)
	}

	if !redemption.IsRedeemed() {
		at := utils.UTCNow()
		if err := f.redemptionRepo.MarkRedeemed(ctx, redemption.ID, at); err != nil {
			return nil, NewBusinessError("internal_error", "failed to confirm redemption", err)
		}
		redemption.RedeemedAt = &at
		recordAudit(ctx, f.auditRepo, &message.CustomerID, models.AuditActionRedemptionConfirmed, true,
			"tracking link redeemed", clientMeta, map[string]any{"tracking_id": trackingID})
	}

	return f.toResponse(message, redemption), nil
}

func (f *RedemptionFlowImpl) lookupMessage(ctx context.Context, trackingID string) (*models.CampaignMessage, error) {
	id, err := uuid.Parse(trackingID)
	if err != nil {
		return nil, NewBusinessError("not_found", "tracking link not found", ErrTrackingIDNotFound)
	}
	message, err := f.messageRepo.ByTrackingID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to look up tracking link", err)
	}
	if message == nil {
		return nil, NewBusinessError("not_found", "tracking link not found", ErrTrackingIDNotFound)
	}
	return message, nil
}

// toResponse builds the public payload. Internal identifiers never leak
// through the unauthenticated tracking endpoints.
func (f *RedemptionFlowImpl) toResponse(message *models.CampaignMessage, redemption *models.Redemption) *dto.RedemptionResponse {
	resp := &dto.RedemptionResponse{
		TrackingID: message.TrackingID.String(),
		VisitedAt:  redemption.VisitedAt.Format(time.RFC3339),
	}
	if redemption.RedeemedAt != nil {
		resp.RedeemedAt = utils.ToPtr(redemption.RedeemedAt.Format(time.RFC3339))
	}
	return resp
}
