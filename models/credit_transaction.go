package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreditTransactionType represents the type of a ledger entry
type CreditTransactionType string

const (
	CreditTransactionTypeCredit CreditTransactionType = "credit" // Credits provisioned to the wallet
	CreditTransactionTypeDebit  CreditTransactionType = "debit"  // Credits consumed by a campaign enqueue
	CreditTransactionTypeRefund CreditTransactionType = "refund" // Credits returned for a hard-failed message
)

// String returns the string representation of the type
func (t CreditTransactionType) String() string {
	return string(t)
}

// Valid checks if the type is valid
func (t CreditTransactionType) Valid() bool {
	switch t {
	case CreditTransactionTypeCredit, CreditTransactionTypeDebit, CreditTransactionTypeRefund:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CreditTransactionType
func (t *CreditTransactionType) Scan(value any) error {
	if value == nil {
		*t = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*t = CreditTransactionType(v)
	case []byte:
		*t = CreditTransactionType(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CreditTransactionType", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CreditTransactionType
func (t CreditTransactionType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid CreditTransactionType: %s", t)
	}
	return string(t), nil
}

// Signed returns the amount with the sign implied by the transaction type.
// The signed sum of a wallet's transactions always equals its balance.
func (t CreditTransactionType) Signed(amount int64) int64 {
	if t == CreditTransactionTypeDebit {
		return -amount
	}
	return amount
}

// CreditTransaction is an immutable, append-only ledger entry. Rows are never
// updated or deleted; corrections happen through compensating entries.
type CreditTransaction struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	Type   CreditTransactionType `gorm:"type:varchar(20);not null;index" json:"type"`
	Amount int64                 `gorm:"not null" json:"amount"` // Always positive; sign is implied by Type

	WalletID   uint `gorm:"not null;index" json:"wallet_id"`
	CustomerID uint `gorm:"not null;index" json:"customer_id"`

	// Wallet balance immediately after this entry was applied
	BalanceAfter int64 `gorm:"not null" json:"balance_after"`

	// Why the entry exists, e.g. "campaign:<uuid>:enqueue" or "hardfail:message:<id>"
	Reason string `gorm:"type:varchar(255);not null;index" json:"reason"`

	// Optional links back to the campaign or message that caused the entry
	CampaignID *uint `gorm:"index" json:"campaign_id,omitempty"`

	// Set only for refunds. The unique index makes a second refund for the
	// same message structurally impossible.
	RefundedMessageID *uint `gorm:"uniqueIndex:uk_credit_transactions_refunded_message" json:"refunded_message_id,omitempty"`

	Metadata JSON `gorm:"type:jsonb;default:'{}'" json:"metadata"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`

	// Relationships
	Wallet   Wallet   `gorm:"foreignKey:WalletID;constraint:OnDelete:CASCADE" json:"wallet,omitempty"`
	Customer Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

// BeforeCreate ensures UUID is set
func (t *CreditTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

// CreditTransactionFilter represents filter criteria for ledger queries
type CreditTransactionFilter struct {
	ID                *uint                  `json:"id,omitempty"`
	UUID              *uuid.UUID             `json:"uuid,omitempty"`
	Type              *CreditTransactionType `json:"type,omitempty"`
	WalletID          *uint                  `json:"wallet_id,omitempty"`
	CustomerID        *uint                  `json:"customer_id,omitempty"`
	CampaignID        *uint                  `json:"campaign_id,omitempty"`
	RefundedMessageID *uint                  `json:"refunded_message_id,omitempty"`
	Reason            *string                `json:"reason,omitempty"`
	CreatedAfter      *time.Time             `json:"created_after,omitempty"`
	CreatedBefore     *time.Time             `json:"created_before,omitempty"`
}
