package businessflow_test

import (
	"context"
	"encoding/json"
	"testing"

	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditLedger(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		walletRepo := repository.NewWalletRepository(testDB.DB)
		txnRepo := repository.NewCreditTransactionRepository(testDB.DB)
		ledger := businessflow.NewCreditLedger(walletRepo, txnRepo, repository.NewTxRunner(testDB.DB))

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		ctx := context.Background()

		t.Run("CreditCreatesWalletAndEntry", func(t *testing.T) {
			entry, err := ledger.Credit(ctx, customer.ID, 100, "top_up", nil)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, models.CreditTransactionTypeCredit, entry.Type)
			assert.Equal(t, int64(100), entry.Amount)
			assert.Equal(t, int64(100), entry.BalanceAfter)

			balance, err := ledger.Balance(ctx, customer.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(100), balance)
		})

		t.Run("DebitConsumesCredits", func(t *testing.T) {
			entry, err := ledger.Debit(ctx, customer.ID, 30, "campaign:test:enqueue", nil)
			require.NoError(t, err)
			assert.Equal(t, models.CreditTransactionTypeDebit, entry.Type)
			assert.Equal(t, int64(70), entry.BalanceAfter)
		})

		t.Run("DebitFailsOnInsufficientBalance", func(t *testing.T) {
			_, err := ledger.Debit(ctx, customer.ID, 1000, "campaign:test:enqueue", nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsInsufficientCredits(err))

			// The failed debit must not touch the balance
			balance, err := ledger.Balance(ctx, customer.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(70), balance)
		})

		t.Run("RefundIsIdempotentPerMessage", func(t *testing.T) {
			const messageID = uint(7)

			entry, err := ledger.Refund(ctx, customer.ID, 1, messageID, nil)
			require.NoError(t, err)
			require.NotNil(t, entry)
			assert.Equal(t, models.CreditTransactionTypeRefund, entry.Type)
			assert.Equal(t, int64(71), entry.BalanceAfter)
			require.NotNil(t, entry.RefundedMessageID)
			assert.Equal(t, messageID, *entry.RefundedMessageID)

			// Second refund for the same message is a no-op
			second, err := ledger.Refund(ctx, customer.ID, 1, messageID, nil)
			require.NoError(t, err)
			assert.Nil(t, second)

			balance, err := ledger.Balance(ctx, customer.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(71), balance)
		})

		t.Run("BalanceEqualsSignedSumOfEntries", func(t *testing.T) {
			wallet, err := walletRepo.ByCustomerID(ctx, customer.ID)
			require.NoError(t, err)
			require.NotNil(t, wallet)

			sum, err := txnRepo.SumSigned(ctx, wallet.ID)
			require.NoError(t, err)

			balance, err := walletRepo.CurrentBalance(ctx, wallet.ID)
			require.NoError(t, err)
			assert.Equal(t, balance, sum)
		})

		t.Run("AmountMustBePositive", func(t *testing.T) {
			_, err := ledger.Credit(ctx, customer.ID, 0, "top_up", nil)
			assert.True(t, businessflow.IsAmountNotPositive(err))

			_, err = ledger.Debit(ctx, customer.ID, -5, "x", nil)
			assert.True(t, businessflow.IsAmountNotPositive(err))

			_, err = ledger.Refund(ctx, customer.ID, 0, 1, nil)
			assert.True(t, businessflow.IsAmountNotPositive(err))
		})

		t.Run("HistoryPagesNewestFirst", func(t *testing.T) {
			entries, total, err := ledger.History(ctx, customer.ID, 1, 2)
			require.NoError(t, err)
			assert.Equal(t, int64(3), total)
			require.Len(t, entries, 2)
			assert.Equal(t, models.CreditTransactionTypeRefund, entries[0].Type)

			_, _, err = ledger.History(ctx, customer.ID, 0, 10)
			assert.True(t, businessflow.IsInvalidPage(err))

			_, _, err = ledger.History(ctx, customer.ID, 1, 500)
			assert.True(t, businessflow.IsInvalidPageSize(err))
		})

		t.Run("MetadataScansBackAsJSON", func(t *testing.T) {
			// Debit and refund entries never set metadata; the column must
			// still round-trip as valid JSON on every driver
			entries, _, err := ledger.History(ctx, customer.ID, 1, 10)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			for _, entry := range entries {
				assert.True(t, json.Valid([]byte(entry.Metadata)),
					"entry %d metadata %q", entry.ID, string(entry.Metadata))
			}
		})

		t.Run("BalanceOfUnknownCustomerIsZero", func(t *testing.T) {
			balance, err := ledger.Balance(ctx, 999999)
			require.NoError(t, err)
			assert.Equal(t, int64(0), balance)
		})

		return nil
	})
	require.NoError(t, err)
}
