package dto

import "time"

// CreateCampaignRequest creates a draft campaign
type CreateCampaignRequest struct {
	Title        string     `json:"title" validate:"required,min=1,max=255"`
	Body         string     `json:"body" validate:"required_without=TemplateUUID,omitempty,min=1"`
	TemplateUUID *string    `json:"template_uuid,omitempty" validate:"omitempty,uuid4"`
	ListUUID     *string    `json:"list_uuid,omitempty" validate:"omitempty,uuid4"`
	LineNumber   *string    `json:"line_number,omitempty" validate:"omitempty,max=20"`
	ScheduledAt  *time.Time `json:"scheduled_at,omitempty"`
}

// UpdateCampaignRequest updates an editable campaign
type UpdateCampaignRequest struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Body       *string `json:"body,omitempty" validate:"omitempty,min=1"`
	ListUUID   *string `json:"list_uuid,omitempty" validate:"omitempty,uuid4"`
	LineNumber *string `json:"line_number,omitempty" validate:"omitempty,max=20"`
}

// ScheduleCampaignRequest sets or replaces the fire time of a campaign
type ScheduleCampaignRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
}

// ListCampaignsRequest filters the campaign listing
type ListCampaignsRequest struct {
	Status   *string `query:"status" validate:"omitempty,oneof=draft scheduled sending completed failed paused"`
	Page     int     `query:"page" validate:"omitempty,min=1"`
	PageSize int     `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// CampaignDTO is the API representation of a campaign
type CampaignDTO struct {
	UUID        string  `json:"uuid"`
	Title       string  `json:"title"`
	Body        string  `json:"body"`
	Status      string  `json:"status"`
	LineNumber  string  `json:"line_number,omitempty"`
	ListUUID    *string `json:"list_uuid,omitempty"`
	Total       int     `json:"total"`
	ScheduledAt *string `json:"scheduled_at,omitempty"`
	StartedAt   *string `json:"started_at,omitempty"`
	FinishedAt  *string `json:"finished_at,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// CampaignListResponse is a paginated campaign listing
type CampaignListResponse struct {
	Items    []CampaignDTO `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

// EnqueueCampaignResponse reports the outcome of an enqueue
type EnqueueCampaignResponse struct {
	CampaignUUID string `json:"campaign_uuid"`
	Status       string `json:"status"`
	Recipients   int    `json:"recipients"`
	Debited      int64  `json:"debited"`
	Enqueued     int    `json:"enqueued"`
}

// CampaignStatusResponse reports per-status message counts of a campaign
type CampaignStatusResponse struct {
	CampaignUUID string `json:"campaign_uuid"`
	Status       string `json:"status"`
	Total        int    `json:"total"`
	Queued       int64  `json:"queued"`
	Sent         int64  `json:"sent"`
	Delivered    int64  `json:"delivered"`
	Failed       int64  `json:"failed"`
}

// PreviewMessage is one rendered sample in a campaign preview
type PreviewMessage struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

// PreviewCampaignResponse reports the audience a campaign would reach
type PreviewCampaignResponse struct {
	CampaignUUID string           `json:"campaign_uuid"`
	Recipients   int              `json:"recipients"`
	Samples      []PreviewMessage `json:"samples"`
}
