package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusPaused    CampaignStatus = "paused"
)

// EnqueueableStatuses are the states a campaign may be in when an enqueue
// starts. The transition to sending is a conditional update against this set,
// which is what makes concurrent enqueues safe.
var EnqueueableStatuses = []CampaignStatus{
	CampaignStatusDraft,
	CampaignStatusScheduled,
	CampaignStatusPaused,
}

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusSending,
		CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusPaused:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status is final
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// Campaign represents an SMS campaign owned by a customer
type Campaign struct {
	ID         uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID      `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint           `gorm:"not null;index" json:"customer_id"`
	Status     CampaignStatus `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	Title string `gorm:"size:255;not null" json:"title"`

	// Body is the template text snapshotted onto each message at enqueue time
	Body       string `gorm:"type:text;not null" json:"body"`
	TemplateID *uint  `gorm:"index" json:"template_id,omitempty"`

	// Audience: a specific list, or every subscribed contact when nil
	ListID *uint `gorm:"index" json:"list_id,omitempty"`

	// Sender line; falls back to the customer default when empty
	LineNumber string `gorm:"size:20" json:"line_number"`

	ScheduledAt *time.Time `gorm:"index" json:"scheduled_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`

	// Number of messages materialized at enqueue time
	Total int `gorm:"not null;default:0" json:"total"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer *Customer         `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	List     *ContactList      `gorm:"foreignKey:ListID;references:ID" json:"list,omitempty"`
	Messages []CampaignMessage `gorm:"foreignKey:CampaignID" json:"messages,omitempty"`
}

// BeforeCreate ensures UUID and status are set
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	return nil
}

// IsEditable checks if the campaign content can still be changed
func (c *Campaign) IsEditable() bool {
	return c.Status == CampaignStatusDraft || c.Status == CampaignStatusScheduled
}

// CanEnqueue checks if an enqueue may be attempted from the current status
func (c *Campaign) CanEnqueue() bool {
	for _, s := range EnqueueableStatuses {
		if c.Status == s {
			return true
		}
	}
	return false
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusSending ||
			newStatus == CampaignStatusFailed
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusDraft ||
			newStatus == CampaignStatusSending ||
			newStatus == CampaignStatusPaused ||
			newStatus == CampaignStatusFailed
	case CampaignStatusSending:
		return newStatus == CampaignStatusCompleted ||
			newStatus == CampaignStatusFailed
	case CampaignStatusPaused:
		return newStatus == CampaignStatusScheduled ||
			newStatus == CampaignStatusSending ||
			newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaign queries
type CampaignFilter struct {
	ID              *uint           `json:"id,omitempty"`
	UUID            *uuid.UUID      `json:"uuid,omitempty"`
	CustomerID      *uint           `json:"customer_id,omitempty"`
	Status          *CampaignStatus `json:"status,omitempty"`
	Title           *string         `json:"title,omitempty"`
	ListID          *uint           `json:"list_id,omitempty"`
	ScheduledAfter  *time.Time      `json:"scheduled_after,omitempty"`
	ScheduledBefore *time.Time      `json:"scheduled_before,omitempty"`
	CreatedAfter    *time.Time      `json:"created_after,omitempty"`
	CreatedBefore   *time.Time      `json:"created_before,omitempty"`
}
