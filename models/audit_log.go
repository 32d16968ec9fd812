package models

import (
	"time"
)

type AuditLog struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	CustomerID   *uint           `gorm:"index:idx_audit_customer_id" json:"customer_id,omitempty"`
	Customer     *Customer       `gorm:"foreignKey:CustomerID;references:ID" json:"customer,omitempty"`
	Action       string          `gorm:"size:100;not null;index:idx_audit_action" json:"action"`
	Description  *string         `gorm:"type:text" json:"description,omitempty"`
	IPAddress    *string         `gorm:"size:45;index:idx_audit_ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `gorm:"type:text" json:"user_agent,omitempty"`
	RequestID    *string         `gorm:"size:255;index:idx_audit_request_id" json:"request_id,omitempty"`
	Metadata     JSON            `gorm:"type:jsonb" json:"metadata,omitempty"`
	Success      *bool           `gorm:"default:true;index:idx_audit_success" json:"success"`
	ErrorMessage *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time       `gorm:"default:CURRENT_TIMESTAMP;index:idx_audit_created_at" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_log"
}

// Audit action constants
const (
	AuditActionCampaignCreated    = "campaign_created"
	AuditActionCampaignUpdated    = "campaign_updated"
	AuditActionCampaignScheduled  = "campaign_scheduled"
	AuditActionCampaignPaused     = "campaign_paused"
	AuditActionCampaignResumed    = "campaign_resumed"
	AuditActionCampaignEnqueued   = "campaign_enqueued"
	AuditActionCampaignCompleted  = "campaign_completed"
	AuditActionCampaignFailed     = "campaign_failed"
	AuditActionWalletCredited     = "wallet_credited"
	AuditActionWalletDebited      = "wallet_debited"
	AuditActionWalletRefunded     = "wallet_refunded"
	AuditActionWebhookProcessed   = "webhook_processed"
	AuditActionWebhookRejected    = "webhook_rejected"
	AuditActionRedemptionVisited   = "redemption_visited"
	AuditActionRedemptionConfirmed = "redemption_confirmed"
)

// AuditLogFilter represents filter criteria for audit log queries
type AuditLogFilter struct {
	ID            *uint
	CustomerID    *uint
	Action        *string
	Success       *bool
	IPAddress     *string
	RequestID     *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

func (a *AuditLog) IsFailed() bool {
	return a.Success != nil && !*a.Success
}
