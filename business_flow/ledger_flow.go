package businessflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

// CreditLedger is the single owner of wallet balances. Every balance change
// happens atomically together with an append-only CreditTransaction entry,
// so the signed sum of a wallet's entries always equals its balance.
type CreditLedger interface {
	Credit(ctx context.Context, customerID uint, amount int64, reason string, metadata map[string]any) (*models.CreditTransaction, error)
	Debit(ctx context.Context, customerID uint, amount int64, reason string, campaignID *uint) (*models.CreditTransaction, error)
	// Refund returns credits for a hard-failed message. It is idempotent per
	// message: a second call for the same message is a no-op.
	Refund(ctx context.Context, customerID uint, amount int64, messageID uint, campaignID *uint) (*models.CreditTransaction, error)
	Balance(ctx context.Context, customerID uint) (int64, error)
	History(ctx context.Context, customerID uint, page, pageSize int) ([]*models.CreditTransaction, int64, error)
}

// CreditLedgerImpl implements CreditLedger
type CreditLedgerImpl struct {
	walletRepo repository.WalletRepository
	txnRepo    repository.CreditTransactionRepository
	tx         repository.TxRunner
}

// NewCreditLedger creates a new credit ledger flow
func NewCreditLedger(
	walletRepo repository.WalletRepository,
	txnRepo repository.CreditTransactionRepository,
	tx repository.TxRunner,
) CreditLedger {
	return &CreditLedgerImpl{
		walletRepo: walletRepo,
		txnRepo:    txnRepo,
		tx:         tx,
	}
}

// RefundReason builds the deterministic reason for a hard-fail refund
func RefundReason(messageID uint) string {
	return fmt.Sprintf("hardfail:message:%d", messageID)
}

// EnqueueReason builds the debit reason for a campaign enqueue
func EnqueueReason(campaignUUID string) string {
	return fmt.Sprintf("campaign:%s:enqueue", campaignUUID)
}

// Credit adds credits to the customer's wallet
func (l *CreditLedgerImpl) Credit(ctx context.Context, customerID uint, amount int64, reason string, metadata map[string]any) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, NewBusinessError("validation_error", "credit amount must be positive", ErrAmountNotPositive)
	}

	var entry *models.CreditTransaction
	err := l.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		wallet, err := l.walletRepo.EnsureForCustomer(txCtx, customerID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to load wallet", err)
		}

		if err := l.walletRepo.CreditBalance(txCtx, wallet.ID, amount); err != nil {
			return NewBusinessError("internal_error", "failed to credit wallet", err)
		}

		balance, err := l.walletRepo.CurrentBalance(txCtx, wallet.ID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to read balance", err)
		}

		entry = &models.CreditTransaction{
			Type:         models.CreditTransactionTypeCredit,
			Amount:       amount,
			WalletID:     wallet.ID,
			CustomerID:   customerID,
			BalanceAfter: balance,
			Reason:       reason,
			Metadata:     marshalMetadata(metadata),
			CreatedAt:    utils.UTCNow(),
		}
		if err := l.txnRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("internal_error", "failed to record credit", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Debit consumes credits from the customer's wallet. The sufficiency check
// is part of the balance update itself, so concurrent debits can never push
// the balance below zero.
func (l *CreditLedgerImpl) Debit(ctx context.Context, customerID uint, amount int64, reason string, campaignID *uint) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, NewBusinessError("validation_error", "debit amount must be positive", ErrAmountNotPositive)
	}

	var entry *models.CreditTransaction
	err := l.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		wallet, err := l.walletRepo.EnsureForCustomer(txCtx, customerID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to load wallet", err)
		}

		ok, err := l.walletRepo.DebitIfSufficient(txCtx, wallet.ID, amount)
		if err != nil {
			return NewBusinessError("internal_error", "failed to debit wallet", err)
		}
		if !ok {
			return NewBusinessErrorf("insufficient_credits", "wallet cannot cover %d credits", ErrInsufficientCredits, amount)
		}

		balance, err := l.walletRepo.CurrentBalance(txCtx, wallet.ID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to read balance", err)
		}

		entry = &models.CreditTransaction{
			Type:         models.CreditTransactionTypeDebit,
			Amount:       amount,
			WalletID:     wallet.ID,
			CustomerID:   customerID,
			BalanceAfter: balance,
			Reason:       reason,
			CampaignID:   campaignID,
			CreatedAt:    utils.UTCNow(),
		}
		if err := l.txnRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("internal_error", "failed to record debit", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Refund returns credits for a hard-failed message, at most once per message.
// The in-transaction existence check handles the common case; the unique
// index on refunded_message_id backs it up under races.
func (l *CreditLedgerImpl) Refund(ctx context.Context, customerID uint, amount int64, messageID uint, campaignID *uint) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, NewBusinessError("validation_error", "refund amount must be positive", ErrAmountNotPositive)
	}

	var entry *models.CreditTransaction
	err := l.tx.RunInTransaction(ctx, func(txCtx context.Context) error {
		wallet, err := l.walletRepo.ByCustomerID(txCtx, customerID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to load wallet", err)
		}
		if wallet == nil {
			return NewBusinessError("not_found", "wallet not found", ErrWalletNotFound)
		}

		exists, err := l.txnRepo.ExistsRefundForMessage(txCtx, messageID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to check refund", err)
		}
		if exists {
			// Already refunded, nothing to do
			return nil
		}

		if err := l.walletRepo.CreditBalance(txCtx, wallet.ID, amount); err != nil {
			return NewBusinessError("internal_error", "failed to credit wallet", err)
		}

		balance, err := l.walletRepo.CurrentBalance(txCtx, wallet.ID)
		if err != nil {
			return NewBusinessError("internal_error", "failed to read balance", err)
		}

		entry = &models.CreditTransaction{
			Type:              models.CreditTransactionTypeRefund,
			Amount:            amount,
			WalletID:          wallet.ID,
			CustomerID:        customerID,
			BalanceAfter:      balance,
			Reason:            RefundReason(messageID),
			CampaignID:        campaignID,
			RefundedMessageID: utils.ToPtr(messageID),
			CreatedAt:         utils.UTCNow(),
		}
		if err := l.txnRepo.Save(txCtx, entry); err != nil {
			return NewBusinessError("internal_error", "failed to record refund", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Balance reads the customer's current credit balance
func (l *CreditLedgerImpl) Balance(ctx context.Context, customerID uint) (int64, error) {
	wallet, err := l.walletRepo.ByCustomerID(ctx, customerID)
	if err != nil {
		return 0, NewBusinessError("internal_error", "failed to load wallet", err)
	}
	if wallet == nil {
		return 0, nil
	}
	return l.walletRepo.CurrentBalance(ctx, wallet.ID)
}

// History pages through the customer's ledger, newest first
func (l *CreditLedgerImpl) History(ctx context.Context, customerID uint, page, pageSize int) ([]*models.CreditTransaction, int64, error) {
	if page < 1 {
		return nil, 0, NewBusinessError("validation_error", "invalid page", ErrInvalidPage)
	}
	if pageSize < 1 || pageSize > 100 {
		return nil, 0, NewBusinessError("validation_error", "invalid page size", ErrInvalidPageSize)
	}

	filter := models.CreditTransactionFilter{CustomerID: utils.ToPtr(customerID)}
	total, err := l.txnRepo.Count(ctx, filter)
	if err != nil {
		return nil, 0, NewBusinessError("internal_error", "failed to count transactions", err)
	}

	entries, err := l.txnRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, NewBusinessError("internal_error", "failed to list transactions", err)
	}
	return entries, total, nil
}

func marshalMetadata(metadata map[string]any) models.JSON {
	if metadata == nil {
		return models.JSON(`{}`)
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return models.JSON(`{}`)
	}
	return models.JSON(raw)
}
