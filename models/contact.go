package models

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// Contact is a single recipient owned by a customer. Only subscribed contacts
// with a valid phone number are ever selected into a campaign audience.
type Contact struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint      `gorm:"not null;index;uniqueIndex:uk_contacts_customer_phone" json:"customer_id"`

	// E.164, normalized on create
	Phone     string `gorm:"size:20;not null;uniqueIndex:uk_contacts_customer_phone" json:"phone"`
	FirstName string `gorm:"size:100" json:"first_name"`
	LastName  string `gorm:"size:100" json:"last_name"`

	Subscribed *bool `gorm:"default:true;index" json:"subscribed"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

// ContactFilter represents filter criteria for contact queries
type ContactFilter struct {
	ID            *uint      `json:"id,omitempty"`
	UUID          *uuid.UUID `json:"uuid,omitempty"`
	CustomerID    *uint      `json:"customer_id,omitempty"`
	Phone         *string    `json:"phone,omitempty"`
	Subscribed    *bool      `json:"subscribed,omitempty"`
	ListID        *uint      `json:"list_id,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}

// BeforeCreate ensures UUID is set and the phone number is normalized
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	c.Phone = NormalizePhone(c.Phone)
	return nil
}

// HasValidPhone reports whether the stored phone number is dispatchable
func (c *Contact) HasValidPhone() bool {
	return phonePattern.MatchString(c.Phone)
}

// IsSubscribed reports whether the contact may receive campaign messages
func (c *Contact) IsSubscribed() bool {
	return c.Subscribed != nil && *c.Subscribed
}

// NormalizePhone strips separators and coerces a leading "00" to "+"
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	phone = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(phone)
	if strings.HasPrefix(phone, "00") {
		phone = "+" + phone[2:]
	}
	return phone
}
