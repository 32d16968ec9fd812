package businessflow

import (
	"context"

	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/app/services"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// FinalizerFlow closes out campaigns whose messages have all reached a
// terminal state, and serves campaign status reports. Finalization is safe
// to call from anywhere at any time: the completion itself is one
// conditional update, so concurrent callers and stale observations cannot
// complete a campaign twice or complete it early.
type FinalizerFlow interface {
	// FinalizeCampaign completes the campaign if it is sending and every
	// message is terminal. It reports true only for the call that performed
	// the transition.
	FinalizeCampaign(ctx context.Context, campaignID uint) (bool, error)
	CampaignStatus(ctx context.Context, campaignUUID string, customerID uint) (*dto.CampaignStatusResponse, error)
	// ListMessages returns a campaign's materialized messages for reporting
	// and export.
	ListMessages(ctx context.Context, campaignUUID string, customerID uint, limit, offset int) (*models.Campaign, []*models.CampaignMessage, error)
}

// FinalizerFlowImpl implements FinalizerFlow
type FinalizerFlowImpl struct {
	campaignRepo repository.CampaignRepository
	messageRepo  repository.CampaignMessageRepository
	statsCache   services.CampaignStatsCache
}

// NewFinalizerFlow creates a new finalizer flow
func NewFinalizerFlow(
	campaignRepo repository.CampaignRepository,
	messageRepo repository.CampaignMessageRepository,
	statsCache services.CampaignStatsCache,
) FinalizerFlow {
	if statsCache == nil {
		statsCache = services.NoopCampaignStatsCache{}
	}
	return &FinalizerFlowImpl{
		campaignRepo: campaignRepo,
		messageRepo:  messageRepo,
		statsCache:   statsCache,
	}
}

// FinalizeCampaign completes a fully terminal sending campaign
func (f *FinalizerFlowImpl) FinalizeCampaign(ctx context.Context, campaignID uint) (bool, error) {
	campaign, err := f.campaignRepo.ByID(ctx, campaignID)
	if err != nil {
		return false, NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign == nil || campaign.Status != models.CampaignStatusSending {
		return false, nil
	}
	// A sending campaign always has materialized messages; Total == 0 would
	// mean the enqueue never committed, so leave it alone.
	if campaign.Total == 0 {
		return false, nil
	}

	remaining, err := f.messageRepo.CountRemaining(ctx, campaignID)
	if err != nil {
		return false, NewBusinessError("internal_error", "failed to count remaining messages", err)
	}
	if remaining > 0 {
		return false, nil
	}

	done, err := f.campaignRepo.TransitionStatus(ctx, campaignID,
		[]models.CampaignStatus{models.CampaignStatusSending},
		models.CampaignStatusCompleted,
		map[string]any{"finished_at": utils.UTCNow()})
	if err != nil {
		return false, NewBusinessError("internal_error", "failed to complete campaign", err)
	}
	if done {
		f.statsCache.Invalidate(ctx, campaign.CustomerID, campaignID)
	}
	return done, nil
}

// CampaignStatus reports per-status message counts, serving from the stats
// cache when the counts are fresh. A read that finds the campaign fully
// terminal also finalizes it, so status polling alone converges a campaign
// that lost its last webhook.
func (f *FinalizerFlowImpl) CampaignStatus(ctx context.Context, campaignUUID string, customerID uint) (*dto.CampaignStatusResponse, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign == nil || campaign.CustomerID != customerID {
		return nil, NewBusinessError("not_found", "campaign not found", ErrCampaignNotFound)
	}

	var cached dto.CampaignStatusResponse
	if hit, err := f.statsCache.Get(ctx, customerID, campaign.ID, &cached); err == nil && hit {
		return &cached, nil
	}

	counts, err := f.messageRepo.StatusCounts(ctx, campaign.ID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to count messages", err)
	}

	status := campaign.Status
	if status == models.CampaignStatusSending && campaign.Total > 0 && counts.Remaining() == 0 {
		if done, err := f.FinalizeCampaign(ctx, campaign.ID); err == nil && done {
			status = models.CampaignStatusCompleted
		}
	}

	resp := &dto.CampaignStatusResponse{
		CampaignUUID: campaign.UUID.String(),
		Status:       status.String(),
		Total:        campaign.Total,
		Queued:       counts.Queued,
		Sent:         counts.Sent,
		Delivered:    counts.Delivered,
		Failed:       counts.Failed,
	}
	_ = f.statsCache.Set(ctx, customerID, campaign.ID, resp)
	return resp, nil
}

// ListMessages returns a campaign's materialized messages for reporting
func (f *FinalizerFlowImpl) ListMessages(ctx context.Context, campaignUUID string, customerID uint, limit, offset int) (*models.Campaign, []*models.CampaignMessage, error) {
	campaign, err := f.campaignRepo.ByUUID(ctx, campaignUUID)
	if err != nil {
		return nil, nil, NewBusinessError("internal_error", "failed to load campaign", err)
	}
	if campaign == nil || campaign.CustomerID != customerID {
		return nil, nil, NewBusinessError("not_found", "campaign not found", ErrCampaignNotFound)
	}

	messages, err := f.messageRepo.ListByCampaign(ctx, campaign.ID, limit, offset)
	if err != nil {
		return nil, nil, NewBusinessError("internal_error", "failed to list messages", err)
	}
	return campaign, messages, nil
}
