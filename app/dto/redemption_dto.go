package dto

// RedemptionResponse is returned when a tracking link is visited or
// confirmed. The endpoints are public, so the tracking ID is the only
// identifier it ever carries.
type RedemptionResponse struct {
	TrackingID string  `json:"tracking_id"`
	VisitedAt  string  `json:"visited_at"`
	RedeemedAt *string `json:"redeemed_at,omitempty"`
}
