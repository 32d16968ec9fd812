package businessflow_test

import (
	"context"
	"encoding/json"
	"testing"

	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/models"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedemptionTracking(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		redemptionRepo := repository.NewRedemptionRepository(testDB.DB)
		flow := businessflow.NewRedemptionFlow(
			repository.NewCampaignMessageRepository(testDB.DB),
			redemptionRepo,
			repository.NewAuditLogRepository(testDB.DB),
		)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, messages := sendingCampaign(t, testDB, fixtures, customer, 2)
		trackingID := messages[0].TrackingID.String()

		t.Run("FirstVisitCreatesRedemption", func(t *testing.T) {
			result, err := flow.TrackVisit(ctx, trackingID, nil)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, trackingID, result.TrackingID)
			assert.NotEmpty(t, result.VisitedAt)
			assert.Nil(t, result.RedeemedAt)
		})

		t.Run("PublicPayloadCarriesOnlyTrackingID", func(t *testing.T) {
			result, err := flow.TrackVisit(ctx, trackingID, nil)
			require.NoError(t, err)

			raw, err := json.Marshal(result)
			require.NoError(t, err)
			var fields map[string]any
			require.NoError(t, json.Unmarshal(raw, &fields))
			for key := range fields {
				assert.Contains(t, []string{"tracking_id", "visited_at", "redeemed_at"}, key)
			}
		})

		t.Run("RepeatVisitIsIdempotent", func(t *testing.T) {
			first, err := flow.TrackVisit(ctx, trackingID, nil)
			require.NoError(t, err)
			second, err := flow.TrackVisit(ctx, trackingID, nil)
			require.NoError(t, err)
			assert.Equal(t, first.VisitedAt, second.VisitedAt)

			count, err := redemptionRepo.Count(ctx, models.RedemptionFilter{
				MessageID: &messages[0].ID,
			})
			require.NoError(t, err)
			assert.Equal(t, int64(1), count)
		})

		t.Run("ConfirmMarksRedeemed", func(t *testing.T) {
			result, err := flow.ConfirmRedemption(ctx, trackingID, nil)
			require.NoError(t, err)
			require.NotNil(t, result.RedeemedAt)

			// Confirming again keeps the original redemption time
			again, err := flow.ConfirmRedemption(ctx, trackingID, nil)
			require.NoError(t, err)
			assert.Equal(t, *result.RedeemedAt, *again.RedeemedAt)
		})

		t.Run("ConfirmWithoutPriorVisitCountsAsVisit", func(t *testing.T) {
			other := messages[1].TrackingID.String()
			result, err := flow.ConfirmRedemption(ctx, other, nil)
			require.NoError(t, err)
			assert.NotEmpty(t, result.VisitedAt)
			require.NotNil(t, result.RedeemedAt)
		})

		t.Run("UnknownTrackingID", func(t *testing.T) {
			_, err := flow.TrackVisit(ctx, uuid.NewString(), nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsTrackingIDNotFound(err))

			_, err = flow.TrackVisit(ctx, "not-a-uuid", nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsTrackingIDNotFound(err))
		})

		return nil
	})
	require.NoError(t, err)
}
