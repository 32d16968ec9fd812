package businessflow_test

import (
	"context"
	"testing"

	"github.com/textwave/textwave-backend/app/dto"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/textwave/textwave-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deliveryHarness struct {
	flow         businessflow.DeliveryFlow
	campaignRepo repository.CampaignRepository
	messageRepo  repository.CampaignMessageRepository
}

func newDeliveryHarness(testDB *testingutil.TestDB) *deliveryHarness {
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	messageRepo := repository.NewCampaignMessageRepository(testDB.DB)
	finalizer := businessflow.NewFinalizerFlow(campaignRepo, messageRepo, nil)
	return &deliveryHarness{
		flow:         businessflow.NewDeliveryFlow(messageRepo, finalizer, nil, nil),
		campaignRepo: campaignRepo,
		messageRepo:  messageRepo,
	}
}

// markSentWithProviderID moves a queued message to sent under a provider ID
func markSentWithProviderID(t *testing.T, messageRepo repository.CampaignMessageRepository, messageID uint, providerMessageID string) {
	t.Helper()
	updated, err := messageRepo.MarkSent(context.Background(), messageID, providerMessageID, utils.UTCNow())
	require.NoError(t, err)
	require.True(t, updated)
}

func TestApplyDeliveryReports(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		h := newDeliveryHarness(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		campaign, messages := sendingCampaign(t, testDB, fixtures, customer, 3)

		markSentWithProviderID(t, h.messageRepo, messages[0].ID, "pm-1")
		markSentWithProviderID(t, h.messageRepo, messages[1].ID, "pm-2")
		markSentWithProviderID(t, h.messageRepo, messages[2].ID, "pm-3")

		t.Run("DeliveredAndFailedVocabulary", func(t *testing.T) {
			result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
				Events: []dto.DeliveryEvent{
					{ProviderMessageID: "pm-1", Status: "DELIVRD"},
					{ProviderMessageID: "pm-2", Status: "undeliverable", Error: "handset off"},
					{ProviderMessageID: "pm-404", Status: "delivered"},
					{ProviderMessageID: "pm-3", Status: "flying"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 2, result.Processed)
			assert.Equal(t, 1, result.Unmatched)
			assert.Equal(t, 1, result.Skipped)

			first, err := h.messageRepo.ByID(ctx, messages[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.MessageStatusDelivered, first.Status)
			assert.NotNil(t, first.DeliveredAt)

			second, err := h.messageRepo.ByID(ctx, messages[1].ID)
			require.NoError(t, err)
			assert.Equal(t, models.MessageStatusFailed, second.Status)
			assert.Equal(t, "handset off", second.ErrorMessage)
			assert.NotNil(t, second.FailedAt)

			// The unknown status left the message alone
			third, err := h.messageRepo.ByID(ctx, messages[2].ID)
			require.NoError(t, err)
			assert.Equal(t, models.MessageStatusSent, third.Status)
		})

		t.Run("ReplayIsIdempotent", func(t *testing.T) {
			result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
				Events: []dto.DeliveryEvent{
					{ProviderMessageID: "pm-1", Status: "delivered"},
					{ProviderMessageID: "pm-2", Status: "failed"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 0, result.Processed)
			assert.Equal(t, 2, result.Skipped)
		})

		t.Run("FailedNeverOverridesDelivered", func(t *testing.T) {
			result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
				Events: []dto.DeliveryEvent{
					{ProviderMessageID: "pm-1", Status: "rejected", Error: "late reject"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 0, result.Processed)
			assert.Equal(t, 1, result.Skipped)

			first, err := h.messageRepo.ByID(ctx, messages[0].ID)
			require.NoError(t, err)
			assert.Equal(t, models.MessageStatusDelivered, first.Status)
		})

		t.Run("DeliveredCorrectsEarlierFailed", func(t *testing.T) {
			result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
				Events: []dto.DeliveryEvent{
					{ProviderMessageID: "pm-2", Status: "delivered"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 1, result.Processed)

			second, err := h.messageRepo.ByID(ctx, messages[1].ID)
			require.NoError(t, err)
			assert.Equal(t, models.MessageStatusDelivered, second.Status)
		})

		t.Run("FinalizesCampaignWhenAllTerminal", func(t *testing.T) {
			result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
				Events: []dto.DeliveryEvent{
					{ProviderMessageID: "pm-3", Status: "expired", Error: "validity period over"},
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 1, result.Processed)

			finalCampaign, err := h.campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusCompleted, finalCampaign.Status)
			assert.NotNil(t, finalCampaign.FinishedAt)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestDeliveryReportWithDuplicateProviderID(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		h := newDeliveryHarness(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, messages := sendingCampaign(t, testDB, fixtures, customer, 2)

		// The provider recycled one identifier across both submissions
		markSentWithProviderID(t, h.messageRepo, messages[0].ID, "dup-1")
		markSentWithProviderID(t, h.messageRepo, messages[1].ID, "dup-1")

		result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
			Events: []dto.DeliveryEvent{
				{ProviderMessageID: "dup-1", Status: "delivered"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)

		for _, m := range messages {
			reloaded, err := h.messageRepo.ByID(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MessageStatusDelivered, reloaded.Status)
		}

		return nil
	})
	require.NoError(t, err)
}

func TestDeliveryReportForQueuedMessage(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		h := newDeliveryHarness(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, messages := sendingCampaign(t, testDB, fixtures, customer, 1)

		// Provider ID recorded but the status update to sent was lost
		err = testDB.DB.Model(&models.CampaignMessage{}).Where("id = ?", messages[0].ID).
			Update("provider_message_id", "pm-q").Error
		require.NoError(t, err)

		result, err := h.flow.ApplyDeliveryReports(ctx, &dto.DeliveryWebhookRequest{
			Events: []dto.DeliveryEvent{
				{ProviderMessageID: "pm-q", Status: "delivered"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, result.Processed)

		reloaded, err := h.messageRepo.ByID(ctx, messages[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusDelivered, reloaded.Status)

		return nil
	})
	require.NoError(t, err)
}
