package dto

// WalletBalanceResponse reports the current credit balance
type WalletBalanceResponse struct {
	Balance int64 `json:"balance"`
}

// TopUpRequest credits a wallet
type TopUpRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

// CreditTransactionDTO is the API representation of a ledger entry
type CreditTransactionDTO struct {
	UUID         string `json:"uuid"`
	Type         string `json:"type"`
	Amount       int64  `json:"amount"`
	BalanceAfter int64  `json:"balance_after"`
	Reason       string `json:"reason"`
	CreatedAt    string `json:"created_at"`
}

// TransactionHistoryRequest pages through the ledger
type TransactionHistoryRequest struct {
	Page     int `query:"page" validate:"omitempty,min=1"`
	PageSize int `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// TransactionHistoryResponse is a paginated ledger listing
type TransactionHistoryResponse struct {
	Items    []CreditTransactionDTO `json:"items"`
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
}
