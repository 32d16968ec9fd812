package repository

import (
	"context"

	"github.com/textwave/textwave-backend/models"
	"gorm.io/gorm"
)

// CreditTransactionRepositoryImpl implements CreditTransactionRepository interface
type CreditTransactionRepositoryImpl struct {
	*BaseRepository[models.CreditTransaction, models.CreditTransactionFilter]
}

// NewCreditTransactionRepository creates a new credit transaction repository
func NewCreditTransactionRepository(db *gorm.DB) CreditTransactionRepository {
	return &CreditTransactionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CreditTransaction, models.CreditTransactionFilter](db),
	}
}

// SumSigned returns the signed sum of all ledger entries for a wallet
func (r *CreditTransactionRepositoryImpl) SumSigned(ctx context.Context, walletID uint) (int64, error) {
	db := r.getDB(ctx)
	var sum *int64
	err := db.Model(&models.CreditTransaction{}).
		Where("wallet_id = ?", walletID).
		Select("SUM(CASE WHEN type = ? THEN -amount ELSE amount END)", models.CreditTransactionTypeDebit).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	if sum == nil {
		return 0, nil
	}
	return *sum, nil
}

// ExistsRefundForMessage reports whether a refund entry exists for the message
func (r *CreditTransactionRepositoryImpl) ExistsRefundForMessage(ctx context.Context, messageID uint) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.CreditTransaction{}).
		Where("type = ? AND refunded_message_id = ?", models.CreditTransactionTypeRefund, messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ByFilter retrieves ledger entries matching the filter
func (r *CreditTransactionRepositoryImpl) ByFilter(ctx context.Context, filter models.CreditTransactionFilter, orderBy string, limit, offset int) ([]*models.CreditTransaction, error) {
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

	var transactions []*models.CreditTransaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, err
	}
	return transactions, nil
}

// Count returns the number of ledger entries matching the filter
func (r *CreditTransactionRepositoryImpl) Count(ctx context.Context, filter models.CreditTransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.CreditTransaction{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any ledger entry matching the filter exists
func (r *CreditTransactionRepositoryImpl) Exists(ctx context.Context, filter models.CreditTransactionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CreditTransactionRepositoryImpl) applyFilter(db *gorm.DB, filter models.CreditTransactionFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.Type != nil {
		db = db.Where("type = ?", *filter.Type)
	}
	if filter.WalletID != nil {
		db = db.Where("wallet_id = ?", *filter.WalletID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CampaignID != nil {
		db = db.Where("campaign_id = ?", *filter.CampaignID)
	}
	if filter.RefundedMessageID != nil {
		db = db.Where("refunded_message_id = ?", *filter.RefundedMessageID)
	}
	if filter.Reason != nil {
		db = db.Where("reason = ?", *filter.Reason)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
