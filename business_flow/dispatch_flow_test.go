package businessflow_test

import (
	"context"
	"testing"

	"github.com/textwave/textwave-backend/app/services"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type dispatchHarness struct {
	flow         businessflow.DispatchFlow
	ledger       businessflow.CreditLedger
	provider     *services.MockSMSProvider
	campaignRepo repository.CampaignRepository
	messageRepo  repository.CampaignMessageRepository
}

func newDispatchHarness(testDB *testingutil.TestDB) *dispatchHarness {
	campaignRepo := repository.NewCampaignRepository(testDB.DB)
	messageRepo := repository.NewCampaignMessageRepository(testDB.DB)
	walletRepo := repository.NewWalletRepository(testDB.DB)
	txnRepo := repository.NewCreditTransactionRepository(testDB.DB)
	ledger := businessflow.NewCreditLedger(walletRepo, txnRepo, repository.NewTxRunner(testDB.DB))
	provider := services.NewMockSMSProvider()
	finalizer := businessflow.NewFinalizerFlow(campaignRepo, messageRepo, nil)

	flow := businessflow.NewDispatchFlow(
		messageRepo,
		campaignRepo,
		repository.NewCustomerRepository(testDB.DB),
		ledger,
		provider,
		finalizer,
		nil,
	)
	return &dispatchHarness{
		flow:         flow,
		ledger:       ledger,
		provider:     provider,
		campaignRepo: campaignRepo,
		messageRepo:  messageRepo,
	}
}

// sendingCampaign creates a sending campaign with n queued messages
func sendingCampaign(t *testing.T, testDB *testingutil.TestDB, fixtures *testingutil.TestFixtures, customer *models.Customer, n int) (*models.Campaign, []*models.CampaignMessage) {
	t.Helper()

	campaign, err := fixtures.CreateTestCampaign(customer.ID, "Flash sale today")
	require.NoError(t, err)

	err = testDB.DB.Model(&models.Campaign{}).Where("id = ?", campaign.ID).
		Updates(map[string]any{"status": models.CampaignStatusSending, "total": n}).Error
	require.NoError(t, err)
	campaign.Status = models.CampaignStatusSending
	campaign.Total = n

	messages := make([]*models.CampaignMessage, 0, n)
	for i := 0; i < n; i++ {
		contact, err := fixtures.CreateTestContact(customer.ID)
		require.NoError(t, err)
		message, err := fixtures.CreateTestMessage(campaign, contact, models.MessageStatusQueued)
		require.NoError(t, err)
		messages = append(messages, message)
	}
	return campaign, messages
}

func dispatchTask(message *models.CampaignMessage) services.Task {
	return services.Task{
		ID:        message.TaskID(),
		Type:      services.TaskTypeDispatchMessage,
		MessageID: message.ID,
	}
}

func TestDispatchSuccessfulSend(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		h := newDispatchHarness(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, messages := sendingCampaign(t, testDB, fixtures, customer, 1)

		outcome, err := h.flow.ProcessTask(ctx, dispatchTask(messages[0]))
		require.NoError(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeSent, outcome)

		reloaded, err := h.messageRepo.ByID(ctx, messages[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusSent, reloaded.Status)
		assert.NotEmpty(t, reloaded.ProviderMessageID)
		assert.NotNil(t, reloaded.SentAt)

		// The customer's default line number was used as sender
		sent := h.provider.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, customer.DefaultLineNumber, sent[0].From)
		assert.Equal(t, messages[0].Phone, sent[0].To)

		// Replaying the task after the send is a no-op
		outcome, err = h.flow.ProcessTask(ctx, dispatchTask(messages[0]))
		require.NoError(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeDropped, outcome)
		assert.Len(t, h.provider.Sent(), 1)

		return nil
	})
	require.NoError(t, err)
}

func TestDispatchTransientFailureKeepsMessageQueued(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		h := newDispatchHarness(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, messages := sendingCampaign(t, testDB, fixtures, customer, 1)

		h.provider.FailWith = &services.ProviderError{StatusCode: 503, Body: "gateway busy"}
		h.provider.FailTimes = 1

		outcome, err := h.flow.ProcessTask(ctx, dispatchTask(messages[0]))
		require.Error(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeRetry, outcome)

		reloaded, err := h.messageRepo.ByID(ctx, messages[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusQueued, reloaded.Status)
		assert.Contains(t, reloaded.ErrorMessage, "503")

		// The provider recovered, the retry succeeds
		outcome, err = h.flow.ProcessTask(ctx, dispatchTask(messages[0]))
		require.NoError(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeSent, outcome)

		return nil
	})
	require.NoError(t, err)
}

func TestDispatchTerminalFailureRefundsOnce(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		h := newDispatchHarness(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, err = fixtures.CreateTestWallet(customer.ID, 10)
		require.NoError(t, err)
		campaign, messages := sendingCampaign(t, testDB, fixtures, customer, 1)

		h.provider.FailWith = &services.ProviderError{StatusCode: 400, Body: "invalid recipient"}

		outcome, err := h.flow.ProcessTask(ctx, dispatchTask(messages[0]))
		require.NoError(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeFailed, outcome)

		reloaded, err := h.messageRepo.ByID(ctx, messages[0].ID)
		require.NoError(t, err)
		assert.Equal(t, models.MessageStatusFailed, reloaded.Status)
		assert.Contains(t, reloaded.ErrorMessage, "400")
		assert.NotNil(t, reloaded.FailedAt)

		// One credit came back
		balance, err := h.ledger.Balance(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(11), balance)

		// Redelivering the task must not refund again
		outcome, err = h.flow.ProcessTask(ctx, dispatchTask(messages[0]))
		require.NoError(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeDropped, outcome)

		balance, err = h.ledger.Balance(ctx, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(11), balance)

		// That was the campaign's only message, so it finalized
		finalCampaign, err := h.campaignRepo.ByID(ctx, campaign.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CampaignStatusCompleted, finalCampaign.Status)
		assert.NotNil(t, finalCampaign.FinishedAt)

		return nil
	})
	require.NoError(t, err)
}

func TestDispatchUnknownMessageIsDropped(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		h := newDispatchHarness(testDB)

		outcome, err := h.flow.ProcessTask(context.Background(), services.Task{
			ID:        "message:999999",
			Type:      services.TaskTypeDispatchMessage,
			MessageID: 999999,
		})
		require.NoError(t, err)
		assert.Equal(t, businessflow.DispatchOutcomeDropped, outcome)

		return nil
	})
	require.NoError(t, err)
}
