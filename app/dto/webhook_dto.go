package dto

import "time"

// DeliveryEvent is one status report from the SMS provider
type DeliveryEvent struct {
	ProviderMessageID string     `json:"provider_message_id" validate:"required"`
	Status            string     `json:"status" validate:"required"`
	Error             string     `json:"error,omitempty"`
	OccurredAt        *time.Time `json:"occurred_at,omitempty"`
}

// DeliveryWebhookRequest is the provider's delivery report payload
type DeliveryWebhookRequest struct {
	Events []DeliveryEvent `json:"events" validate:"required,min=1,dive"`
}

// DeliveryWebhookResponse acknowledges a delivery report batch
type DeliveryWebhookResponse struct {
	Processed int `json:"processed"`
	Unmatched int `json:"unmatched"`
	Skipped   int `json:"skipped"`
}
