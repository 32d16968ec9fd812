package businessflow

import (
	"context"

	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
)

// WalletFlow is the customer-facing surface over the credit ledger
type WalletFlow interface {
	TopUp(ctx context.Context, customerID uint, req *dto.TopUpRequest, clientMeta *ClientMetadata) (*dto.WalletBalanceResponse, error)
	Balance(ctx context.Context, customerID uint) (*dto.WalletBalanceResponse, error)
	History(ctx context.Context, customerID uint, req *dto.TransactionHistoryRequest) (*dto.TransactionHistoryResponse, error)
}

// WalletFlowImpl implements WalletFlow
type WalletFlowImpl struct {
	customerRepo repository.CustomerRepository
	auditRepo    repository.AuditLogRepository
	ledger       CreditLedger
}

// NewWalletFlow creates a new wallet flow
func NewWalletFlow(
	customerRepo repository.CustomerRepository,
	auditRepo repository.AuditLogRepository,
	ledger CreditLedger,
) WalletFlow {
	return &WalletFlowImpl{
		customerRepo: customerRepo,
		auditRepo:    auditRepo,
		ledger:       ledger,
	}
}

// TopUp credits the customer's wallet
func (f *WalletFlowImpl) TopUp(ctx context.Context, customerID uint, req *dto.TopUpRequest, clientMeta *ClientMetadata) (*dto.WalletBalanceResponse, error) {
	if _, err := getActiveCustomer(ctx, f.customerRepo, customerID); err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "top_up"
	}
	entry, err := f.ledger.Credit(ctx, customerID, req.Amount, reason, nil)
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, f.auditRepo, &customerID, models.AuditActionWalletCredited, true,
		"wallet topped up", clientMeta, map[string]any{
			"amount":        req.Amount,
			"balance_after": entry.BalanceAfter,
		})

	return &dto.WalletBalanceResponse{Balance: entry.BalanceAfter}, nil
}

// Balance reads the customer's current credit balance
func (f *WalletFlowImpl) Balance(ctx context.Context, customerID uint) (*dto.WalletBalanceResponse, error) {
	if _, err := getActiveCustomer(ctx, f.customerRepo, customerID); err != nil {
		return nil, err
	}
	balance, err := f.ledger.Balance(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return &dto.WalletBalanceResponse{Balance: balance}, nil
}

// History pages through the customer's ledger entries
func (f *WalletFlowImpl) History(ctx context.Context, customerID uint, req *dto.TransactionHistoryRequest) (*dto.TransactionHistoryResponse, error) {
	if _, err := getActiveCustomer(ctx, f.customerRepo, customerID); err != nil {
		return nil, err
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}

	entries, total, err := f.ledger.History(ctx, customerID, page, pageSize)
	if err != nil {
		return nil, err
	}

	items := make([]dto.CreditTransactionDTO, 0, len(entries))
	for _, entry := range entries {
		items = append(items, ToCreditTransactionDTO(entry))
	}
	return &dto.TransactionHistoryResponse{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}
