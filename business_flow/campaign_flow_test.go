package businessflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/textwave/textwave-backend/app/dto"
	businessflow "github.com/textwave/textwave-backend/business_flow"
	"github.com/textwave/textwave-backend/repository"
	testingutil "github.com/textwave/textwave-backend/testing"
	"github.com/textwave/textwave-backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCampaignFlow(testDB *testingutil.TestDB) businessflow.CampaignFlow {
	return businessflow.NewCampaignFlow(
		repository.NewCampaignRepository(testDB.DB),
		repository.NewCustomerRepository(testDB.DB),
		repository.NewContactListRepository(testDB.DB),
		repository.NewMessageTemplateRepository(testDB.DB),
		repository.NewContactRepository(testDB.DB),
		repository.NewAuditLogRepository(testDB.DB),
		repository.NewTxRunner(testDB.DB),
	)
}

func TestCampaignLifecycle(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)

		var campaignUUID string

		t.Run("CreateDraft", func(t *testing.T) {
			result, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				Title: "Spring promo",
				Body:  "Hi {{first_name}}, 20% off this week",
			}, customer.ID, nil)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, "draft", result.Status)
			assert.Equal(t, "Spring promo", result.Title)
			assert.Equal(t, customer.DefaultLineNumber, result.LineNumber)
			assert.NotEmpty(t, result.UUID)
			campaignUUID = result.UUID
		})

		t.Run("CreateRequiresTitleAndBody", func(t *testing.T) {
			_, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{Body: "no title"}, customer.ID, nil)
			assert.True(t, businessflow.IsCampaignTitleRequired(err))

			_, err = flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{Title: "no body"}, customer.ID, nil)
			assert.True(t, businessflow.IsCampaignBodyRequired(err))
		})

		t.Run("UpdateDraft", func(t *testing.T) {
			result, err := flow.UpdateCampaign(ctx, campaignUUID, &dto.UpdateCampaignRequest{
				Body: utils.ToPtr("Hi {{first_name}}, 30% off this week"),
			}, customer.ID, nil)
			require.NoError(t, err)
			assert.Contains(t, result.Body, "30%")
		})

		t.Run("ScheduleRejectsPastTime", func(t *testing.T) {
			_, err := flow.ScheduleCampaign(ctx, campaignUUID, &dto.ScheduleCampaignRequest{
				ScheduledAt: utils.UTCNow().Add(-time.Hour),
			}, customer.ID, nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsScheduleTimeInPast(err))
		})

		t.Run("ScheduleAndReschedule", func(t *testing.T) {
			fireAt := utils.UTCNow().Add(2 * time.Hour)
			result, err := flow.ScheduleCampaign(ctx, campaignUUID, &dto.ScheduleCampaignRequest{
				ScheduledAt: fireAt,
			}, customer.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "scheduled", result.Status)
			require.NotNil(t, result.ScheduledAt)

			// Rescheduling just replaces the fire time
			later := fireAt.Add(3 * time.Hour)
			result, err = flow.ScheduleCampaign(ctx, campaignUUID, &dto.ScheduleCampaignRequest{
				ScheduledAt: later,
			}, customer.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "scheduled", result.Status)
		})

		t.Run("PauseAndResume", func(t *testing.T) {
			result, err := flow.PauseCampaign(ctx, campaignUUID, customer.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "paused", result.Status)

			// Pausing twice fails the conditional transition
			_, err = flow.PauseCampaign(ctx, campaignUUID, customer.ID, nil)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidStateTransition(err))

			// Fire time is still in the future, so resume goes back to scheduled
			result, err = flow.ResumeCampaign(ctx, campaignUUID, customer.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "scheduled", result.Status)
		})

		t.Run("ResumeAfterFireTimePassedGoesToDraft", func(t *testing.T) {
			created, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
				Title:       "Expired schedule",
				Body:        "late",
				ScheduledAt: utils.ToPtr(utils.UTCNow().Add(50 * time.Millisecond)),
			}, customer.ID, nil)
			require.NoError(t, err)

			_, err = flow.PauseCampaign(ctx, created.UUID, customer.ID, nil)
			require.NoError(t, err)

			time.Sleep(100 * time.Millisecond)

			result, err := flow.ResumeCampaign(ctx, created.UUID, customer.ID, nil)
			require.NoError(t, err)
			assert.Equal(t, "draft", result.Status)
		})

		t.Run("GetAndListAreScopedToOwner", func(t *testing.T) {
			other, err := fixtures.CreateTestCustomer()
			require.NoError(t, err)

			_, err = flow.GetCampaign(ctx, campaignUUID, other.ID)
			require.Error(t, err)
			assert.True(t, businessflow.IsCampaignNotFound(err) || businessflow.IsCampaignAccessDenied(err))

			listing, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{}, other.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(0), listing.Total)

			mine, err := flow.ListCampaigns(ctx, &dto.ListCampaignsRequest{}, customer.ID)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, mine.Total, int64(2))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignPreview(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 12)
		require.NoError(t, err)
		_, err = fixtures.CreateUnsubscribedContact(customer.ID)
		require.NoError(t, err)

		created, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
			Title: "Preview me",
			Body:  "Hi {{first_name}}",
		}, customer.ID, nil)
		require.NoError(t, err)

		preview, err := flow.PreviewCampaign(ctx, created.UUID, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, len(contacts), preview.Recipients)
		require.Len(t, preview.Samples, businessflow.PreviewSampleLimit)
		assert.Equal(t, "Hi Alex", preview.Samples[0].Text)

		// Preview never touches campaign state
		reloaded, err := flow.GetCampaign(ctx, created.UUID, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, "draft", reloaded.Status)

		return nil
	})
	require.NoError(t, err)
}

func TestCampaignWithList(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		flow := newCampaignFlow(testDB)
		ctx := context.Background()

		customer, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		contacts, err := fixtures.CreateTestContacts(customer.ID, 5)
		require.NoError(t, err)

		list, err := fixtures.CreateTestList(customer.ID, []uint{contacts[0].ID, contacts[1].ID})
		require.NoError(t, err)

		created, err := flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
			Title:    "List only",
			Body:     "hello",
			ListUUID: utils.ToPtr(list.UUID.String()),
		}, customer.ID, nil)
		require.NoError(t, err)

		preview, err := flow.PreviewCampaign(ctx, created.UUID, customer.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, preview.Recipients)

		// A list owned by someone else is invisible
		other, err := fixtures.CreateTestCustomer()
		require.NoError(t, err)
		_, err = flow.CreateCampaign(ctx, &dto.CreateCampaignRequest{
			Title:    "Stolen list",
			Body:     "hello",
			ListUUID: utils.ToPtr(list.UUID.String()),
		}, other.ID, nil)
		require.Error(t, err)
		assert.True(t, businessflow.IsContactListNotFound(err))

		return nil
	})
	require.NoError(t, err)
}
