// Package businessflow contains the core business logic and use cases for the campaign platform
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Customer-related errors
	ErrCustomerNotFound = errors.New("customer not found")
	ErrAccountInactive  = errors.New("account is inactive")

	// Wallet and ledger errors
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAmountNotPositive   = errors.New("amount must be positive")

	// Campaign-related errors
	ErrCampaignNotFound         = errors.New("campaign not found")
	ErrCampaignAccessDenied     = errors.New("campaign access denied")
	ErrCampaignTitleRequired    = errors.New("campaign title is required")
	ErrCampaignBodyRequired     = errors.New("campaign body is required")
	ErrCampaignUpdateNotAllowed = errors.New("campaign update not allowed")
	ErrInvalidStateTransition   = errors.New("invalid state transition")
	ErrCampaignAlreadySending   = errors.New("campaign is already sending")
	ErrNoRecipients             = errors.New("campaign has no recipients")
	ErrScheduleTimeNotPresent   = errors.New("schedule time is not present")
	ErrScheduleTimeInPast       = errors.New("schedule time is in the past")

	// Audience errors
	ErrContactListNotFound = errors.New("contact list not found")
	ErrTemplateNotFound    = errors.New("template not found")

	// Dispatch errors
	ErrMessageNotFound          = errors.New("message not found")
	ErrProviderTransientFailure = errors.New("provider transient failure")
	ErrProviderTerminalFailure  = errors.New("provider terminal failure")

	// Webhook errors
	ErrWebhookUnmatched = errors.New("delivery report does not match any message")

	// Redemption errors
	ErrTrackingIDNotFound = errors.New("tracking ID not found")

	// Filter errors
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 100")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsCustomerNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound)
}

func IsAccountInactive(err error) bool {
	return errors.Is(err, ErrAccountInactive)
}

func IsWalletNotFound(err error) bool {
	return errors.Is(err, ErrWalletNotFound)
}

func IsInsufficientCredits(err error) bool {
	return errors.Is(err, ErrInsufficientCredits)
}

func IsAmountNotPositive(err error) bool {
	return errors.Is(err, ErrAmountNotPositive)
}

func IsCampaignNotFound(err error) bool {
	return errors.Is(err, ErrCampaignNotFound)
}

func IsCampaignAccessDenied(err error) bool {
	return errors.Is(err, ErrCampaignAccessDenied)
}

func IsCampaignTitleRequired(err error) bool {
	return errors.Is(err, ErrCampaignTitleRequired)
}

func IsCampaignBodyRequired(err error) bool {
	return errors.Is(err, ErrCampaignBodyRequired)
}

func IsCampaignUpdateNotAllowed(err error) bool {
	return errors.Is(err, ErrCampaignUpdateNotAllowed)
}

func IsInvalidStateTransition(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition)
}

func IsCampaignAlreadySending(err error) bool {
	return errors.Is(err, ErrCampaignAlreadySending)
}

func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}

func IsScheduleTimeNotPresent(err error) bool {
	return errors.Is(err, ErrScheduleTimeNotPresent)
}

func IsScheduleTimeInPast(err error) bool {
	return errors.Is(err, ErrScheduleTimeInPast)
}

func IsContactListNotFound(err error) bool {
	return errors.Is(err, ErrContactListNotFound)
}

func IsTemplateNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

func IsMessageNotFound(err error) bool {
	return errors.Is(err, ErrMessageNotFound)
}

func IsProviderTransientFailure(err error) bool {
	return errors.Is(err, ErrProviderTransientFailure)
}

func IsProviderTerminalFailure(err error) bool {
	return errors.Is(err, ErrProviderTerminalFailure)
}

func IsWebhookUnmatched(err error) bool {
	return errors.Is(err, ErrWebhookUnmatched)
}

func IsTrackingIDNotFound(err error) bool {
	return errors.Is(err, ErrTrackingIDNotFound)
}

func IsInvalidPage(err error) bool {
	return errors.Is(err, ErrInvalidPage)
}

func IsInvalidPageSize(err error) bool {
	return errors.Is(err, ErrInvalidPageSize)
}
