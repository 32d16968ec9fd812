package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageStatus represents the delivery state of a single campaign message
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusFailed    MessageStatus = "failed"
)

// String returns the string representation of the status
func (s MessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusQueued, MessageStatusSent, MessageStatusDelivered, MessageStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final
func (s MessageStatus) IsTerminal() bool {
	return s == MessageStatusDelivered || s == MessageStatusFailed
}

// Scan implements the sql.Scanner interface for MessageStatus
func (s *MessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = MessageStatus(v)
	case []byte:
		*s = MessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into MessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for MessageStatus
func (s MessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid MessageStatus: %s", s)
	}
	return string(s), nil
}

// CampaignMessage is one materialized message for one recipient. Rows are
// created exactly once per recipient during the enqueue transaction.
type CampaignMessage struct {
	ID         uint `gorm:"primaryKey;autoIncrement" json:"id"`
	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	CustomerID uint `gorm:"not null;index" json:"customer_id"`
	ContactID  uint `gorm:"not null;index" json:"contact_id"`

	Phone string `gorm:"size:20;not null" json:"phone"`
	Text  string `gorm:"type:text;not null" json:"text"`

	Status MessageStatus `gorm:"type:varchar(20);not null;default:'queued';index" json:"status"`

	// Per-message public identifier embedded in tracking links
	TrackingID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"tracking_id"`

	// Identifier assigned by the SMS provider on successful submit; delivery
	// reports are matched against this
	ProviderMessageID string `gorm:"size:255;index" json:"provider_message_id"`

	ErrorMessage string `gorm:"type:text" json:"error_message"`

	SentAt      *time.Time `json:"sent_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	FailedAt    *time.Time `json:"failed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"updated_at"`

	// Relationships
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
	Contact  *Contact  `gorm:"foreignKey:ContactID;references:ID" json:"contact,omitempty"`
}

// BeforeCreate ensures the tracking ID is set
func (m *CampaignMessage) BeforeCreate(tx *gorm.DB) error {
	if m.TrackingID == uuid.Nil {
		m.TrackingID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MessageStatusQueued
	}
	return nil
}

// TaskID returns the deterministic dispatch task identifier for the message.
// Re-enqueues of the same message always produce the same task ID so the
// dispatcher can deduplicate.
func (m *CampaignMessage) TaskID() string {
	return fmt.Sprintf("message:%d", m.ID)
}

// CampaignMessageFilter represents filter criteria for message queries
type CampaignMessageFilter struct {
	ID                *uint          `json:"id,omitempty"`
	CampaignID        *uint          `json:"campaign_id,omitempty"`
	CustomerID        *uint          `json:"customer_id,omitempty"`
	ContactID         *uint          `json:"contact_id,omitempty"`
	Status            *MessageStatus `json:"status,omitempty"`
	TrackingID        *uuid.UUID     `json:"tracking_id,omitempty"`
	ProviderMessageID *string        `json:"provider_message_id,omitempty"`
	CreatedAfter      *time.Time     `json:"created_after,omitempty"`
	CreatedBefore     *time.Time     `json:"created_before,omitempty"`
}

// MessageStatusCounts summarizes a campaign's messages per status
type MessageStatusCounts struct {
	Queued    int64 `json:"queued"`
	Sent      int64 `json:"sent"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
}

// Remaining returns the number of messages not yet in a terminal state
func (c MessageStatusCounts) Remaining() int64 {
	return c.Queued + c.Sent
}

// Total returns the number of messages across all states
func (c MessageStatusCounts) Total() int64 {
	return c.Queued + c.Sent + c.Delivered + c.Failed
}
