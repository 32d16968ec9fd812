package handlers

import (
	"log"

	"github.com/gofiber/fiber/v3"
	"github.com/textwave/textwave-backend/app/dto"
	businessflow "github.com/textwave/textwave-backend/business_flow"
)

// WalletHandlerInterface defines the contract for wallet handlers
type WalletHandlerInterface interface {
	TopUp(c fiber.Ctx) error
	Balance(c fiber.Ctx) error
	History(c fiber.Ctx) error
}

// WalletHandler handles wallet-related HTTP requests
type WalletHandler struct {
	baseHandler
	walletFlow businessflow.WalletFlow
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(walletFlow businessflow.WalletFlow) *WalletHandler {
	return &WalletHandler{
		baseHandler: newBaseHandler(),
		walletFlow:  walletFlow,
	}
}

// TopUp credits the customer's wallet
func (h *WalletHandler) TopUp(c fiber.Ctx) error {
	var req dto.TopUpRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.walletFlow.TopUp(h.requestContext(c, "/api/v1/wallet/credits"), customerID, &req, h.clientMetadata(c))
	if err != nil {
		return h.walletError(c, err, "Wallet top-up failed", "WALLET_TOP_UP_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Wallet topped up successfully", result)
}

// Balance returns the current credit balance
func (h *WalletHandler) Balance(c fiber.Ctx) error {
	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.walletFlow.Balance(h.requestContext(c, "/api/v1/wallet/balance"), customerID)
	if err != nil {
		return h.walletError(c, err, "Failed to get balance", "GET_BALANCE_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Balance retrieved successfully", result)
}

// History pages through the customer's ledger entries
func (h *WalletHandler) History(c fiber.Ctx) error {
	var req dto.TransactionHistoryRequest
	if err := c.Bind().Query(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if messages := h.validateStruct(&req); messages != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", messages)
	}

	customerID, ok := h.customerID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer ID not found in context", "MISSING_CUSTOMER_ID", nil)
	}

	result, err := h.walletFlow.History(h.requestContext(c, "/api/v1/wallet/transactions"), customerID, &req)
	if err != nil {
		return h.walletError(c, err, "Failed to list transactions", "LIST_TRANSACTIONS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Transactions retrieved successfully", result)
}

func (h *WalletHandler) walletError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsCustomerNotFound(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer not found", "CUSTOMER_NOT_FOUND", nil)
	case businessflow.IsAccountInactive(err):
		return h.ErrorResponse(c, fiber.StatusUnauthorized, "Customer account is inactive", "ACCOUNT_INACTIVE", nil)
	case businessflow.IsAmountNotPositive(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Amount must be positive", "AMOUNT_NOT_POSITIVE", nil)
	case businessflow.IsInvalidPage(err) || businessflow.IsInvalidPageSize(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid pagination parameters", "INVALID_PAGINATION", nil)
	}

	log.Println(fallbackMessage, err)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, fallbackCode, nil)
}
