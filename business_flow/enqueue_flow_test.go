package businessflow_test

import (
	"context"
	"testing"

	"github.com/textwave/textwave-backend/app/services"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/textwave/textwave-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnqueueFlow(testDB *testingutil.TestDB, dispatcher services.TaskDispatcher) businessflow.EnqueueFlow {
	walletRepo := repository.NewWalletRepository(testDB.DB)
	txnRepo := repository.NewCreditTransactionRepository(testDB.DB)
	txRunner := repository.NewTxRunner(testDB.DB)
	ledger := businessflow.NewCreditLedger(walletRepo, txnRepo, txRunner)

	return businessflow.NewEnqueueFlow(
		repository.NewCampaignRepository(testDB.DB),
		repository.NewCustomerRepository(testDB.DB),
		repository.NewContactRepository(testDB.DB),
		repository.NewCampaignMessageRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		ledger,
		dispatcher,
		txRunner,
		nil,
	)
}

func TestEnqueueCampaign(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dispatcher := services.NewInMemoryTaskDispatcher(64)
		flow := newEnqueueFlow(testDB, dispatcher)

		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		messageRepo := repository.NewCampaignMessageRepository(testDB.DB)
		walletRepo := repository.NewWalletRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, err = fixtures.CreateTestWallet(customer.ID, 100)
		require.NoError(t, err)

		contacts, err := fixtures.CreateTestContacts(customer.ID, 3)
		require.NoError(t, err)
		_, err = fixtures.CreateUnsubscribedContact(customer.ID)
		require.NoError(t, err)

		campaign, err := fixtures.CreateTestCampaign(customer.ID, "Hello {{first_name}}")
		require.NoError(t, err)

		ctx := context.Background()

		t.Run("SuccessfulEnqueue", func(t *testing.T) {
			result, err := flow.EnqueueCampaign(ctx, campaign.UUID.String(), customer.ID, nil)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, "sending", result.Status)
			assert.Equal(t, len(contacts), result.Recipients)
			assert.Equal(t, int64(len(contacts)), result.Debited)
			assert.Equal(t, len(contacts), result.Enqueued)

			// Campaign moved to sending with the audience size recorded
			reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
			require.NoError(t, err)
			assert.Equal(t, models.CampaignStatusSending, reloaded.Status)
			assert.Equal(t, len(contacts), reloaded.Total)
			assert.NotNil(t, reloaded.StartedAt)

			// One message per subscribed contact, rendered and queued
			messages, err := messageRepo.ByFilter(ctx, models.CampaignMessageFilter{
				CampaignID: utils.ToPtr(campaign.ID),
			}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, messages, len(contacts))
			for _, message := range messages {
				assert.Equal(t, models.MessageStatusQueued, message.Status)
				assert.Contains(t, message.Text, "Hello ")
				assert.NotEmpty(t, message.TrackingID)
			}

			// Wallet was debited once for the whole audience
			wallet, err := walletRepo.ByCustomerID(ctx, customer.ID)
			require.NoError(t, err)
			balance, err := walletRepo.CurrentBalance(ctx, wallet.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(100-len(contacts)), balance)

			// One dispatch task per message
			assert.Len(t, dispatcher.Enqueued, len(contacts))
		})

		t.Run("SecondEnqueueLosesTheRace", func(t *testing.T) {
			_, err := flow.EnqueueCampaign(ctx, campaign.UUID.String(), customer.ID, nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignAlreadySending(err))

			// No extra messages materialized
			count, err := messageRepo.Count(ctx, models.CampaignMessageFilter{
				CampaignID: utils.ToPtr(campaign.ID),
			})
			require.NoError(t, err)
			assert.Equal(t, int64(len(contacts)), count)
		})

		t.Run("OwnershipIsEnforced", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = flow.EnqueueCampaign(ctx, campaign.UUID.String(), other.ID, nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestEnqueueCampaignInsufficientCredits(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dispatcher := services.NewInMemoryTaskDispatcher(64)
		flow := newEnqueueFlow(testDB, dispatcher)

		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		messageRepo := repository.NewCampaignMessageRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, err = fixtures.CreateTestWallet(customer.ID, 2)
		require.NoError(t, err)
		_, err = fixtures.CreateTestContacts(customer.ID, 5)
		require.NoError(t, err)

		campaign, err := fixtures.CreateTestCampaign(customer.ID, "Sale on now")
		require.NoError(t, err)

		ctx := context.Background()

		_, err = flow.EnqueueCampaign(ctx, campaign.UUID.String(), customer.ID, nil)
		require.Error(t, err)
		assert.True(t, businessflow.IsInsufficientCredits(err))

		// The whole transaction rolled back: campaign still enqueueable,
		// nothing materialized, no tasks published
		reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusDraft, reloaded.Status)

		count, err := messageRepo.Count(ctx, models.CampaignMessageFilter{
			CampaignID: utils.ToPtr(campaign.ID),
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), count)
		assert.Empty(t, dispatcher.Enqueued)

		return nil
	})
	require.NoError(t, err)
}

func TestEnqueueCampaignEmptyAudience(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dispatcher := services.NewInMemoryTaskDispatcher(64)
		flow := newEnqueueFlow(testDB, dispatcher)

		campaignRepo := repository.NewCampaignRepository(testDB.DB)

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, err = fixtures.CreateTestWallet(customer.ID, 100)
		require.NoError(t, err)

		// Only an unsubscribed contact, so the audience resolves empty
		_, err = fixtures.CreateUnsubscribedContact(customer.ID)
		require.NoError(t, err)

		campaign, err := fixtures.CreateTestCampaign(customer.ID, "Nobody home")
		require.NoError(t, err)

		ctx := context.Background()

		_, err = flow.EnqueueCampaign(ctx, campaign.UUID.String(), customer.ID, nil)
		require.Error(t, err)
		assert.True(t, businessflow.IsNoRecipients(err))

		reloaded, err := campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusFailed, reloaded.Status)
		assert.NotNil(t, reloaded.FinishedAt)

		return nil
	})
	require.NoError(t, err)
}
