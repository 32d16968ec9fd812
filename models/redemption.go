package models

import (
	"time"

	"github.com/google/uuid"
)

// Redemption records the first visit (and optional conversion) of a message's
// tracking link. The unique message index keeps one row per message no matter
// how many times the link is opened.
type Redemption struct {
	ID        uint `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID uint `gorm:"not null;uniqueIndex" json:"message_id"`

	CampaignID uint `gorm:"not null;index" json:"campaign_id"`
	CustomerID uint `gorm:"not null;index" json:"customer_id"`

	VisitedAt  time.Time  `gorm:"not null" json:"visited_at"`
	RedeemedAt *time.Time `json:"redeemed_at,omitempty"`

	VisitorIP        string `gorm:"size:45" json:"visitor_ip"`
	VisitorUserAgent string `gorm:"type:text" json:"visitor_user_agent"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`

	// Relationships
	Message *CampaignMessage `gorm:"foreignKey:MessageID;references:ID" json:"message,omitempty"`
}

// RedemptionFilter represents filter criteria for redemption queries
type RedemptionFilter struct {
	ID         *uint      `json:"id,omitempty"`
	MessageID  *uint      `json:"message_id,omitempty"`
	CampaignID *uint      `json:"campaign_id,omitempty"`
	CustomerID *uint      `json:"customer_id,omitempty"`
	TrackingID *uuid.UUID `json:"tracking_id,omitempty"`
	Redeemed   *bool      `json:"redeemed,omitempty"`
}

// IsRedeemed reports whether the visit converted
func (r *Redemption) IsRedeemed() bool {
	return r.RedeemedAt != nil
}
