package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageTemplate is a reusable message body with {{placeholder}} variables
type MessageTemplate struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	CustomerID uint      `gorm:"not null;index" json:"customer_id"`

	Name string `gorm:"size:255;not null" json:"name"`
	Body string `gorm:"type:text;not null" json:"body"`

	// Audit fields
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Relationships
	Customer Customer `gorm:"foreignKey:CustomerID;constraint:OnDelete:CASCADE" json:"customer,omitempty"`
}

// MessageTemplateFilter represents filter criteria for template queries
type MessageTemplateFilter struct {
	ID         *uint      `json:"id,omitempty"`
	UUID       *uuid.UUID `json:"uuid,omitempty"`
	CustomerID *uint      `json:"customer_id,omitempty"`
	Name       *string    `json:"name,omitempty"`
}

// BeforeCreate ensures UUID is set
func (t *MessageTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.UUID == uuid.Nil {
		t.UUID = uuid.New()
	}
	return nil
}

var templatePlaceholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// RenderTemplate substitutes {{key}} placeholders in body with vars values.
// Placeholders without a matching var render as empty strings so a recipient
// never sees a raw {{token}}.
func RenderTemplate(body string, vars map[string]string) string {
	return templatePlaceholder.ReplaceAllStringFunc(body, func(token string) string {
		key := templatePlaceholder.FindStringSubmatch(token)[1]
		return vars[key]
	})
}

// Render substitutes placeholders in the template body
func (t *MessageTemplate) Render(vars map[string]string) string {
	return RenderTemplate(t.Body, vars)
}
