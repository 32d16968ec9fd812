// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/textwave/textwave-backend/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TxRunner runs a function inside a database transaction. Business flows
// depend on this instead of *gorm.DB so they can be exercised without a
// real transaction in tests.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn func(context.Context) error) error
}

// CustomerRepository defines operations for customers
type CustomerRepository interface {
	Repository[models.Customer, models.CustomerFilter]
	ByEmail(ctx context.Context, email string) (*models.Customer, error)
	ByUUID(ctx context.Context, uuid string) (*models.Customer, error)
}

// WalletRepository defines operations for wallets and their balances
type WalletRepository interface {
	Repository[models.Wallet, models.WalletFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Wallet, error)
	ByCustomerID(ctx context.Context, customerID uint) (*models.Wallet, error)
	// EnsureForCustomer returns the customer's wallet, creating an empty one
	// when none exists yet.
	EnsureForCustomer(ctx context.Context, customerID uint) (*models.Wallet, error)
	// DebitIfSufficient atomically decrements the balance when it covers the
	// amount. Returns false when the balance was insufficient.
	DebitIfSufficient(ctx context.Context, walletID uint, amount int64) (bool, error)
	// CreditBalance atomically increments the balance.
	CreditBalance(ctx context.Context, walletID uint, amount int64) error
	// CurrentBalance reads the balance as of now.
	CurrentBalance(ctx context.Context, walletID uint) (int64, error)
}

// CreditTransactionRepository defines operations for the append-only ledger
type CreditTransactionRepository interface {
	Repository[models.CreditTransaction, models.CreditTransactionFilter]
	// SumSigned returns the signed sum of all entries for a wallet. It must
	// always equal the wallet balance.
	SumSigned(ctx context.Context, walletID uint) (int64, error)
	// ExistsRefundForMessage reports whether a refund entry already exists
	// for the given message.
	ExistsRefundForMessage(ctx context.Context, messageID uint) (bool, error)
}

// ContactRepository defines operations for contacts
type ContactRepository interface {
	Repository[models.Contact, models.ContactFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Contact, error)
	// ResolveAudience returns the deduplicated, subscribed contacts of a
	// customer, restricted to a list when listID is set. Contacts without a
	// dispatchable phone number are excluded.
	ResolveAudience(ctx context.Context, customerID uint, listID *uint) ([]*models.Contact, error)
	SetSubscribed(ctx context.Context, contactID uint, subscribed bool) error
}

// ContactListRepository defines operations for contact lists
type ContactListRepository interface {
	Repository[models.ContactList, models.ContactListFilter]
	ByUUID(ctx context.Context, uuid string) (*models.ContactList, error)
	AddContacts(ctx context.Context, listID uint, contactIDs []uint) error
}

// MessageTemplateRepository defines operations for message templates
type MessageTemplateRepository interface {
	Repository[models.MessageTemplate, models.MessageTemplateFilter]
	ByUUID(ctx context.Context, uuid string) (*models.MessageTemplate, error)
}

// CampaignRepository defines operations for campaigns
type CampaignRepository interface {
	Repository[models.Campaign, models.CampaignFilter]
	ByUUID(ctx context.Context, uuid string) (*models.Campaign, error)
	Update(ctx context.Context, campaign *models.Campaign) error
	// TransitionStatus performs a conditional status update: the row changes
	// only when its current status is in from. Returns false when another
	// actor won the race and zero rows were touched.
	TransitionStatus(ctx context.Context, campaignID uint, from []models.CampaignStatus, to models.CampaignStatus, set map[string]any) (bool, error)
	// ListDueScheduled returns scheduled campaigns whose fire time has passed.
	ListDueScheduled(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
}

// CampaignMessageRepository defines operations for materialized messages
type CampaignMessageRepository interface {
	Repository[models.CampaignMessage, models.CampaignMessageFilter]
	ByTrackingID(ctx context.Context, trackingID uuid.UUID) (*models.CampaignMessage, error)
	ListByProviderMessageID(ctx context.Context, providerMessageID string) ([]*models.CampaignMessage, error)
	// UpdateStatusIf performs a conditional update: the row changes only when
	// its current status is in from. Returns false when zero rows matched.
	UpdateStatusIf(ctx context.Context, messageID uint, from []models.MessageStatus, set map[string]any) (bool, error)
	MarkSent(ctx context.Context, messageID uint, providerMessageID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, messageID uint, errorMessage string, at time.Time) (bool, error)
	RecordAttemptError(ctx context.Context, messageID uint, errorMessage string) error
	StatusCounts(ctx context.Context, campaignID uint) (models.MessageStatusCounts, error)
	CountRemaining(ctx context.Context, campaignID uint) (int64, error)
	// ListStalledQueued finds queued messages of sending campaigns that have
	// not been touched since the cutoff, for the reconciliation sweep.
	ListStalledQueued(ctx context.Context, cutoff time.Time, limit int) ([]*models.CampaignMessage, error)
	ListByCampaign(ctx context.Context, campaignID uint, limit, offset int) ([]*models.CampaignMessage, error)
}

// RedemptionRepository defines operations for tracking link redemptions
type RedemptionRepository interface {
	Repository[models.Redemption, models.RedemptionFilter]
	ByMessageID(ctx context.Context, messageID uint) (*models.Redemption, error)
	MarkRedeemed(ctx context.Context, redemptionID uint, at time.Time) error
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ByCustomerID(ctx context.Context, customerID uint, limit, offset int) ([]*models.AuditLog, error)
}
