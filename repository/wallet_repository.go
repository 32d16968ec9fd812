package repository

import (
	"context"
	"errors"

	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/utils"
	"gorm.io/gorm"
)

// WalletRepositoryImpl implements WalletRepository interface
type WalletRepositoryImpl struct {
	*BaseRepository[models.Wallet, models.WalletFilter]
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &WalletRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Wallet, models.WalletFilter](db),
	}
}

// ByUUID finds a wallet by UUID
func (r *WalletRepositoryImpl) ByUUID(ctx context.Context, uuid string) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("uuid = ?", uuid).Last(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// ByCustomerID finds a wallet by customer ID
func (r *WalletRepositoryImpl) ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error) {
	db := r.getDB(ctx)
	var wallet models.Wallet
	err := db.Where("customer_id = ?", customerID).Last(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// EnsureForCustomer returns the customer's wallet, creating one when missing
func (r *WalletRepositoryImpl) EnsureForCustomer(ctx context.Context, customerID uint) (*models.Wallet, error) {
	wallet, err := r.ByCustomerID(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet = &models.Wallet{
		CustomerID: customerID,
		Balance:    0,
		Metadata:   models.JSON(`{}`),
		CreatedAt:  utils.UTCNow(),
		UpdatedAt:  utils.UTCNow(),
	}
	if err := r.Save(ctx, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// DebitIfSufficient decrements the balance only when it covers the amount.
// The guard lives inside the UPDATE itself so the balance can never cross
// zero regardless of concurrent debits.
func (r *WalletRepositoryImpl) DebitIfSufficient(ctx context.Context, walletID uint, amount int64) (bool, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CreditBalance increments the balance
func (r *WalletRepositoryImpl) CreditBalance(ctx context.Context, walletID uint, amount int64) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": utils.UTCNow(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CurrentBalance reads the balance as of now
func (r *WalletRepositoryImpl) CurrentBalance(ctx context.Context, walletID uint) (int64, error) {
	db := r.getDB(ctx)
	var balance int64
	err := db.Model(&models.Wallet{}).
		Where("id = ?", walletID).
		Pluck("balance", &balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// ByFilter retrieves wallets matching the filter
func (r *WalletRepositoryImpl) ByFilter(ctx context.Context, filter models.WalletFilter, orderBy string, limit, offset int) ([]*models.Wallet, error) {
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

	var wallets []*models.Wallet
	if err := query.Find(&wallets).Error; err != nil {
		return nil, err
	}
	return wallets, nil
}

// Count returns the number of wallets matching the filter
func (r *WalletRepositoryImpl) Count(ctx context.Context, filter models.WalletFilter) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := r.applyFilter(db.Model(&models.Wallet{}), filter).Count(&count).Error
	return count, err
}

// Exists checks if any wallet matching the filter exists
func (r *WalletRepositoryImpl) Exists(ctx context.Context, filter models.WalletFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *WalletRepositoryImpl) applyFilter(db *gorm.DB, filter models.WalletFilter) *gorm.DB {
	if filter.ID != nil {
		db = db.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		db = db.Where("uuid = ?", *filter.UUID)
	}
	if filter.CustomerID != nil {
		db = db.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		db = db.Where("created_at <= ?", *filter.CreatedBefore)
	}
	return db
}
