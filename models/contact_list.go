package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ContactList is a named audience owned by a customer
type ContactList struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer    Customer                `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
	Memberships []ContactListMembership `gorm:"foreignKey:ListID" json:"memberships,omitempty"`
}

// ContactListMembership links a contact to a list. A contact appears in a
// list at most once.
type ContactListMembership struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id"`
	ListID    uint `gorm:"not null;index;uniqueIndex:uk_list_memberships_list_contact" json:"list_id"`
	ContactID uint `gorm:"not null;index;uniqueIndex:uk_list_memberships_list_contact" json:"contact_id"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Relationships
	List    ContactList `gorm:"foreignKey:ListID;constraint:OnDelete:CASCADE" json:"list,omitempty"`
	Contact Contact     `gorm:"foreignKey:ContactID;constraint:OnDelete:CASCADE" json:"contact,omitempty"`
}

// ContactListFilter represents filter criteria for contact list queries
type ContactListFilter struct {
	ID         *uint      `json:"id,omitempty"`
	UUID       *uuid.UUID `json:"uuid,omitempty"`
	CustomerID *uint      `json:"customer_id,omitempty"`
	Name       *string    `json:"name,omitempty"`
}

// BeforeCreate ensures UUID is set
func (l *ContactList) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	return nil
}
