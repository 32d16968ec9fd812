// Package businessflow contains the business logic for the application.
package businessflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/textwave/textwave-backend/app/dto"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	"github.com/textwave/textwave-backend/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	RequestID  string            `json:"request_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		Additional: make(map[string]string),
	}
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// recordAudit writes an audit log entry. Audit failures are swallowed so
// they never break the primary operation.
func recordAudit(ctx context.Context, repo repository.AuditLogRepository, customerID *uint, action string, success bool, description string, clientMeta *ClientMetadata, metadata map[string]any) {
	if repo == nil {
		return
	}

	entry := &models.AuditLog{
		CustomerID:  customerID,
		Action:      action,
		Success:     utils.ToPtr(success),
		Description: utils.ToPtr(description),
		CreatedAt:   utils.UTCNow(),
	}
	if clientMeta != nil {
		if clientMeta.IPAddress != "" {
			entry.IPAddress = utils.ToPtr(clientMeta.IPAddress)
		}
		if clientMeta.UserAgent != "" {
			entry.UserAgent = utils.ToPtr(clientMeta.UserAgent)
		}
		if clientMeta.RequestID != "" {
			entry.RequestID = utils.ToPtr(clientMeta.RequestID)
		}
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = models.JSON(raw)
		}
	}

	_ = repo.Save(ctx, entry)
}

// getActiveCustomer loads a customer and checks the account is usable
func getActiveCustomer(ctx context.Context, repo repository.CustomerRepository, customerID uint) (*models.Customer, error) {
	customer, err := repo.ByID(ctx, customerID)
	if err != nil {
		return nil, NewBusinessError("internal_error", "failed to load customer", err)
	}
	if customer == nil {
		return nil, NewBusinessError("not_found", "customer not found", ErrCustomerNotFound)
	}
	if !customer.CanOperate() {
		return nil, NewBusinessError("validation_error", "account is inactive", ErrAccountInactive)
	}
	return customer, nil
}

// ToCampaignDTO converts a campaign model to its API representation
func ToCampaignDTO(campaign *models.Campaign) dto.CampaignDTO {
	d := dto.CampaignDTO{
		UUID:       campaign.UUID.String(),
		Title:      campaign.Title,
		Body:       campaign.Body,
		Status:     campaign.Status.String(),
		LineNumber: campaign.LineNumber,
		Total:      campaign.Total,
		CreatedAt:  campaign.CreatedAt.Format(time.RFC3339),
	}
	if campaign.ScheduledAt != nil {
		d.ScheduledAt = utils.ToPtr(campaign.ScheduledAt.Format(time.RFC3339))
	}
	if campaign.StartedAt != nil {
		d.StartedAt = utils.ToPtr(campaign.StartedAt.Format(time.RFC3339))
	}
	if campaign.FinishedAt != nil {
		d.FinishedAt = utils.ToPtr(campaign.FinishedAt.Format(time.RFC3339))
	}
	return d
}

// ToCreditTransactionDTO converts a ledger entry to its API representation
func ToCreditTransactionDTO(txn *models.CreditTransaction) dto.CreditTransactionDTO {
	return dto.CreditTransactionDTO{
		UUID:         txn.UUID.String(),
		Type:         txn.Type.String(),
		Amount:       txn.Amount,
		BalanceAfter: txn.BalanceAfter,
		Reason:       txn.Reason,
		CreatedAt:    txn.CreatedAt.Format(time.RFC3339),
	}
}
