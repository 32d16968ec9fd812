package repository

import (
	"context"
	"errors"

	"time"

	"github.com/textwave/textwave-backend/models"
	"gorm.io/gorm"
)

// RedemptionRepositoryImpl implements RedemptionRepository interface
type RedemptionRepositoryImpl struct {
	*BaseRepository[models.Redemption, models.RedemptionFilter]
}

// NewRedemptionRepository creates a new redemption repository
func NewRedemptionRepository(db *gorm.DB) RedemptionRepository {
	return &RedemptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Redemption, models.RedemptionFilter](db),
	}
}

// ByMessageID finds the redemption row of a message
func (r *RedemptionRepositoryImpl) ByMessageID(ctx context.Context, messageID uint) (*models.Redemption, error) {
	db := r.getDB(ctx)
	var redemption models.Redemption
	err := db.Where("message_id = ?", messageID).Last(&redemption).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

// MarkRedeemed records the conversion time once
func (r *RedemptionRepositoryImpl) MarkRedeemed(ctx context.Context, redemptionID uint, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.Redemption{}).
		Where("id = ? AND redeemed_at IS NULL", redemptionID).
		Update("redeemed_at", at).Error
}

// ByFilter retrieves redemptions matching the filter
func (r *RedemptionRepositoryImpl) ByFilter(ctx context.Context, filter models.RedemptionFilter, orderBy string, limit, offset int) ([]*models.Redemption, error) {
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

	var redemptions []*models.Redemption
	if err := query.Find(&redemptions).Error; err != nil {
		return nil, err
	}
	return redemptions, nil
}

// Count returns the number of redemptions matching the filter
func (r *RedemptionRepositoryImpl) Count(ctx context.Context, filter models.RedemptionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.Redemption{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any redemption matching the filter exists
func (r *RedemptionRepositoryImpl) Exists(ctx context.Context, filter models.RedemptionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RedemptionRepositoryImpl) applyFilter(db *gorm.DB, filter models.RedemptionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.MessageID != nil {
		db = db.Where("message_id = ?", *filter.MessageID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.Redeemed != nil {
		if *filter.Redeemed {
			db = db.Where("redeemed_at IS NOT NULL")
		} else {
			db = db.Where("redeemed_at IS NULL")
		}
	}
	return db
}
