package businessflow_test

import (
	"context"
	"testing"

	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/textwave/textwave-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFinalizeCampaign(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		messageRepo := repository.NewCampaignMessageRepository(testDB.DB)
		flow := businessflow.NewFinalizerFlow(campaignRepo, messageRepo, nil)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		campaign, messages := sendingCampaign(t, testDB, fixtures, customer, 2)

		t.Run("NotDoneWhileMessagesRemain", func(t *testing.T) {
			done, err := flow.FinalizeCampaign(ctx, campaign.ID)
			require.NoError(t, err)
			assert.False(t, done)

			// One terminal message is still not enough
			updated, err := messageRepo.MarkFailed(ctx, messages[0].ID, "bad number", utils.UTCNow())
			require.NoError(t, err)
			require.True(t, updated)

			done, err = flow.FinalizeCampaign(ctx, campaign.ID)
			require.NoError(t, err)
			assert.False(t, done)
		})

		t.Run("CompletesWhenAllTerminal", func(t *testing.T) {
			updated, err := messageRepo.MarkSent(ctx, messages[1].ID, "pm-f1", utils.UTCNow())
			require.NoError(t, err)
			require.True(t, updated)
			applied, err := messageRepo.UpdateStatusIf(ctx, messages[1].ID,
				[]models.MessageStatus{models.MessageStatusSent},
				map[string]any{"status": models.MessageStatusDelivered.String(), "delivered_at": utils.UTCNow()})
			require.NoError(t, err)
			require.True(t, applied)

			done, err := flow.FinalizeCampaign(ctx, campaign.ID)
			require.NoError(t, err)
			assert.True(t, done)

			reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
			assert.NotNil(t, reloaded.FinishedAt)

			// Finalizing a completed campaign is a no-op
			done, err = flow.FinalizeCampaign(ctx, campaign.ID)
			require.NoError(t, err)
			assert.False(t, done)
		})

		t.Run("StatusReportsCounts", func(t *testing.T) {
			status, err := flow.CampaignStatus(ctx, campaign.UUID.String(), customer.ID)
			require.NoError(t, err)
			assert.Equal(t, "completed", status.Status)
			assert.Equal(t, int64(1), status.Delivered)
			assert.Equal(t, int64(1), status.Failed)
			assert.Equal(t, int64(0), status.Queued)

			_, err = flow.CampaignStatus(ctx, campaign.UUID.String(), customer.ID+1000)
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignStatusFinalizesOnRead(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		messageRepo := repository.NewCampaignMessageRepository(testDB.DB)
		flow := businessflow.NewFinalizerFlow(campaignRepo, messageRepo, nil)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		campaign, messages := sendingCampaign(t, testDB, fixtures, customer, 1)

		// Terminal message but the finalizing webhook never arrived
		updated, err := messageRepo.MarkFailed(ctx, messages[0].ID, "bad number", utils.UTCNow())
		require.NoError(t, err)
		require.True(t, updated)

		status, err := flow.CampaignStatus(ctx, campaign.UUID.String(), customer.ID)
		require.NoError(t, err)
		assert.Equal(t, "completed", status.Status)

		reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)

		return nil
	})
	require.NoError(t, err)
}
