package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/utils"
	"gorm.io/gorm"
)

// CampaignMessageRepositoryImpl implements CampaignMessageRepository interface
type CampaignMessageRepositoryImpl struct {
	*BaseRepository[models.CampaignMessage, models.CampaignMessageFilter]
}

// NewCampaignMessageRepository creates a new campaign message repository
func NewCampaignMessageRepository(db *gorm.DB) CampaignMessageRepository {
	return &CampaignMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CampaignMessage, models.CampaignMessageFilter](db),
	}
}

// ByTrackingID finds a message by its public tracking ID
func (r *CampaignMessageRepositoryImpl) ByTrackingID(ctx context.Context, trackingID uuid.UUID) (*models.CampaignMessage, error) {
	db := r.getDB(ctx)
	var message models.CampaignMessage
	err := db.Where("tracking_id = ?", trackingID).Last(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

// ListByProviderMessageID finds every message carrying the provider-assigned
// identifier. Providers recycle identifiers, so a report can match more than
// one row and all of them must move.
func (r *CampaignMessageRepositoryImpl) ListByProviderMessageID(ctx context.Context, providerMessageID string) ([]*models.CampaignMessage, error) {
	db := r.getDB(ctx)
	var messages []*models.CampaignMessage
	err := db.Where("provider_message_id = ?", providerMessageID).Order("id").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// UpdateStatusIf performs a conditional update guarded on the current status.
// All status movements go through here so a redelivered task or a duplicate
// webhook never rewrites a row twice.
func (r *CampaignMessageRepositoryImpl) UpdateStatusIf(ctx context.Context, messageID uint, from []models.MessageStatus, set map[string]any) (bool, error) {
	db := r.getDB(ctx)

	updates := map[string]any{
		"updated_at": utils.UTCNow(),
	}
	for k, v := range set {
		updates[k] = v
	}

	res := db.Model(&models.CampaignMessage{}).
		Where("id = ? AND status IN ?", messageID, messageStatusStrings(from)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkSent moves a queued message to sent and records the provider ID
func (r *CampaignMessageRepositoryImpl) MarkSent(ctx context.Context, messageID uint, providerMessageID string, at time.Time) (bool, error) {
	return r.UpdateStatusIf(ctx, messageID, []models.MessageStatus{models.MessageStatusQueued}, map[string]any{
		"status":              models.MessageStatusSent.String(),
		"provider_message_id": providerMessageID,
		"sent_at":             at,
		"error_message":       "",
	})
}

// MarkFailed moves a queued message to failed
func (r *CampaignMessageRepositoryImpl) MarkFailed(ctx context.Context, messageID uint, errorMessage string, at time.Time) (bool, error) {
	return r.UpdateStatusIf(ctx, messageID, []models.MessageStatus{models.MessageStatusQueued}, map[string]any{
		"status":        models.MessageStatusFailed.String(),
		"error_message": errorMessage,
		"failed_at":     at,
	})
}

// RecordAttemptError stores the latest transient error without touching status
func (r *CampaignMessageRepositoryImpl) RecordAttemptError(ctx context.Context, messageID uint, errorMessage string) error {
	db := r.getDB(ctx)
	return db.Model(&models.CampaignMessage{}).
		Where("id = ?", messageID).
		Updates(map[string]any{
			"error_message": errorMessage,
			"updated_at":    utils.UTCNow(),
		}).Error
}

// StatusCounts summarizes a campaign's messages per status
func (r *CampaignMessageRepositoryImpl) StatusCounts(ctx context.Context, campaignID uint) (models.MessageStatusCounts, error) {
	db := r.getDB(ctx)

	var rows []struct {
		Status models.MessageStatus
		Count  int64
	}
	err := db.Model(&models.CampaignMessage{}).
		Select("status, COUNT(*) as count").
		Where("campaign_id = ?", campaignID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return models.MessageStatusCounts{}, err
	}

	var counts models.MessageStatusCounts
	for _, row := range rows {
		switch row.Status {
		case models.MessageStatusQueued:
			counts.Queued = row.Count
		case models.MessageStatusSent:
			counts.Sent = row.Count
		case models.MessageStatusDelivered:
			counts.Delivered = row.Count
		case models.MessageStatusFailed:
			counts.Failed = row.Count
		}
	}
	return counts, nil
}

// CountRemaining counts messages still outside a terminal state
func (r *CampaignMessageRepositoryImpl) CountRemaining(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.CampaignMessage{}).
		Where("campaign_id = ? AND status IN ?", campaignID,
			[]string{models.MessageStatusQueued.String(), models.MessageStatusSent.String()}).
		Count(&count).Error
	return count, err
}

// ListStalledQueued finds queued messages of sending campaigns untouched
// since the cutoff
func (r *CampaignMessageRepositoryImpl) ListStalledQueued(ctx context.Context, cutoff time.Time, limit int) ([]*models.CampaignMessage, error) {
	db := r.getDB(ctx)
	query := db.
		Joins("JOIN campaigns ON campaigns.id = campaign_messages.campaign_id").
		Where("campaign_messages.status = ? AND campaigns.status = ? AND campaign_messages.updated_at <= ?",
			models.MessageStatusQueued.String(), models.CampaignStatusSending.String(), cutoff).
		Order("campaign_messages.updated_at")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var messages []*models.CampaignMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// ListByCampaign retrieves a campaign's messages ordered by ID
func (r *CampaignMessageRepositoryImpl) ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignMessage, error) {
	db := r.getDB(ctx)
	query := db.Where("campaign_id = ?", campaignID).Order("id")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var messages []*models.CampaignMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// ByFilter retrieves messages matching the filter
func (r *CampaignMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.CampaignMessageFilter, orderBy string, limit, offset int) ([]*models.CampaignMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db, filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var messages []*models.CampaignMessage
	if err := query.Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// Count returns the number of messages matching the filter
func (r *CampaignMessageRepositoryImpl) Count(ctx context.Context, filter models.CampaignMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.CampaignMessage{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any message matching the filter exists
func (r *CampaignMessageRepositoryImpl) Exists(ctx context.Context, filter models.CampaignMessageFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CampaignMessageRepositoryImpl) applyFilter(db *gorm.DB, filter models.CampaignMessageFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ContactID != nil {
		db = db.Where("contact_id = ?", *filter.ContactID)
	}
	if filter.Status != nil {
		db = db.Where("status = ?", filter.Status.String())
	}
	if filter.TrackingID != nil {
		db = db.Where("tracking_id = ?", *filter.TrackingID)
	}
	if filter.ProviderMessageID != nil {
		db = db.Where("provider_message_id = ?", *filter.ProviderMessageID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}

func messageStatusStrings(statuses []models.MessageStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, s.String())
	}
	return out
}
