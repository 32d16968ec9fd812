// Package models contains domain entities and business models for the campaign platform
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Customer represents a tenant account. Every campaign, contact, wallet and
// message in the system is scoped to exactly one customer.
type Customer struct {
	ID   uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`

	Name         string `gorm:"size:255;not null" json:"name"`
	ContactEmail string `gorm:"size:255;uniqueIndex;not null" json:"contact_email"`

	// Default sender line used when a campaign does not set its own
	DefaultLineNumber string `gorm:"size:20" json:"default_line_number"`

	IsActive *bool `gorm:"default:true" json:"is_active"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	ContactEmail  *string    `json:"contact_email,omitempty"`
	IsActive      *bool      `json:"is_active,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// BeforeCreate ensures UUID is set
func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	return nil
}

// CanOperate reports whether the account may create or enqueue campaigns
func (c *Customer) CanOperate() bool {
	return c.IsActive != nil && *c.IsActive
}
