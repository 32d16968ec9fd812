package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/textwave/textwave-backend/app/services"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/textwave/textwave-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(testDB *testingutil.TestDB, dispatcher services.TaskDispatcher, stalledAfter time.Duration) *CampaignScheduler {
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	messageRepo := repository.NewCampaignMessageRepository(testDB.DB)
	txRunner := repository.NewTxRunner(testDB.DB)
	ledger := businessflow.NewCreditLedger(
		repository.NewWalletRepository(testDB.DB),
		repository.NewCreditTransactionRepository(testDB.DB),
		txRunner,
	)
	enqueue := businessflow.NewEnqueueFlow(
		campaignRepo,
		repository.NewCustomerRepository(testDB.DB),
		repository.NewContactRepository(testDB.DB),
		messageRepo,
		repository.NewAuditLogRepository(testDB.DB),
		ledger,
		dispatcher,
		txRunner,
		nil,
	)
	return NewCampaignScheduler(campaignRepo, messageRepo, enqueue, dispatcher, CampaignSchedulerConfig{
		StalledAfter: stalledAfter,
	})
}

func TestSchedulerRunsDueCampaigns(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dispatcher := services.NewInMemoryTaskDispatcher(64)
		sched := newTestScheduler(testDB, dispatcher, time.Minute)

		campaignRepo := repository.NewCampaignRepository(testDB.DB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, err = fixtures.CreateTestWallet(customer.ID, 100)
		require.NoError(t, err)
		_, err = fixtures.CreateTestContacts(customer.ID, 2)
		require.NoError(t, err)

		// Due a second ago
		due, err := fixtures.CreateTestCampaign(customer.ID, "scheduled blast")
		require.NoError(t, err)
		err = testDB.DB.Model(&models.Campaign{}).Where("id = ?", due.ID).
			Updates(map[string]any{
				"status":       models.CampaignStatusScheduled,
				"scheduled_at": utils.UTCNow().Add(-time.Second),
			}).Error
		require.NoError(t, err)

		// Not due for an hour
		future, err := fixtures.CreateTestCampaign(customer.ID, "later blast")
		require.NoError(t, err)
		err = testDB.DB.Model(&models.Campaign{}).Where("id = ?", future.ID).
			Updates(map[string]any{
				"status":       models.CampaignStatusScheduled,
				"scheduled_at": utils.UTCNow().Add(time.Hour),
			}).Error
		require.NoError(t, err)

		sched.runDueCampaigns(ctx)

		// Enqueues run on their own goroutines
		require.Eventually(t, func() bool {
			c, err := campaignRepo.ByID(ctx, due.ID)
			return err == nil && c.Status == models.CampaignStatusSending
		}, 3*time.Second, 20*time.Millisecond)

		untouched, err := campaignRepo.ByID(ctx, future.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusScheduled, untouched.Status)

		return nil
	})
	require.NoError(t, err)
}

func TestSweepReenqueuesStalledMessages(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		dispatcher := services.NewInMemoryTaskDispatcher(64)
		sched := newTestScheduler(testDB, dispatcher, time.Millisecond)

		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		campaign, err := fixtures.CreateTestCampaign(customer.ID, "stalled")
		require.NoError(t, err)
		err = testDB.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
			Updates(map[string]any{"status": models.CampaignStatusSending, "total": 1}).Error
		require.NoError(t, err)
		campaign.Status = models.CampaignStatusSending

		contact, err := fixtures.CreateTestContact(customer.ID)
		require.NoError(t, err)
		message, err := fixtures.CreateTestMessage(campaign, contact, models.MessageStatusQueued)
		require.NoError(t, err)

		// Let the message age past the stall cutoff
		time.Sleep(20 * time.Millisecond)

		sched.sweepStalledQueued(ctx)

		require.Len(t, dispatcher.Enqueued, 1)
		task := dispatcher.Enqueued[0]
		assert.Equal(t, message.TaskID(), task.ID)
		assert.Equal(t, message.ID, task.MessageID)
		// Attempt 1 bypasses the first-enqueue dedupe
		assert.Equal(t, 1, task.Attempt)

		return nil
	})
	require.NoError(t, err)
}
