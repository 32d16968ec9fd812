package businessflow_test

import (
	"context"
	"testing"

	"github.com/textwave/textwave-backend/app/dto"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletFlow(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		ledger := businessflow.NewCreditLedger(
			repository.NewWalletRepository(testDB.DB),
			repository.NewCreditTransactionRepository(testDB.DB),
			repository.NewTxRunner(testDB.DB),
		)
		flow := businessflow.NewWalletFlow(
			repository.NewCustomerRepository(testDB.DB),
			repository.NewAuditLogRepository(testDB.DB),
			ledger,
		)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		t.Run("TopUpAndBalance", func(t *testing.T) {
			result, err := flow.TopUp(ctx, customer.ID, &dto.TopUpRequest{Amount: 250}, nil)
			require.NoError(t, err)
			assert.Equal(t, int64(250), result.Balance)

			balance, err := flow.Balance(ctx, customer.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(250), balance.Balance)
		})

		t.Run("TopUpRejectsNonPositiveAmount", func(t *testing.T) {
			_, err := flow.TopUp(ctx, customer.ID, &dto.TopUpRequest{Amount: 0}, nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsAmountNotPositive(err))
		})

		t.Run("History", func(t *testing.T) {
			_, err := flow.TopUp(ctx, customer.ID, &dto.TopUpRequest{Amount: 50, Reason: "promo"}, nil)
			require.NoError(t, err)

			history, err := flow.History(ctx, customer.ID, &dto.TransactionHistoryRequest{})
			require.NoError(t, err)
			assert.Equal(t, int64(2), history.Total)
			require.Len(t, history.Items, 2)
			assert.Equal(t, "promo", history.Items[0].Reason)
			assert.Equal(t, int64(300), history.Items[0].BalanceAfter)
		})

		t.Run("UnknownCustomerIsRejected", func(t *testing.T) {
			_, err := flow.TopUp(ctx, 999999, &dto.TopUpRequest{Amount: 10}, nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsCustomerNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
