package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCampaignStatusTransitions(t *testing.T) {
	cases := []struct {
		from    CampaignStatus
		to      CampaignStatus
		allowed bool
	}{
		{CampaignStatusDraft, CampaignStatusScheduled, true},
		{CampaignStatusDraft, CampaignStatusSending, true},
		{CampaignStatusDraft, CampaignStatusFailed, true},
		{CampaignStatusDraft, CampaignStatusCompleted, false},
		{CampaignStatusDraft, CampaignStatusPaused, false},
		{CampaignStatusScheduled, CampaignStatusDraft, true},
		{CampaignStatusScheduled, CampaignStatusSending, true},
		{CampaignStatusScheduled, CampaignStatusPaused, true},
		{CampaignStatusScheduled, CampaignStatusCompleted, false},
		{CampaignStatusSending, CampaignStatusCompleted, true},
		{CampaignStatusSending, CampaignStatusFailed, true},
		{CampaignStatusSending, CampaignStatusPaused, false},
		{CampaignStatusSending, CampaignStatusDraft, false},
		{CampaignStatusPaused, CampaignStatusScheduled, true},
		{CampaignStatusPaused, CampaignStatusSending, true},
		{CampaignStatusPaused, CampaignStatusCompleted, false},
		{CampaignStatusCompleted, CampaignStatusDraft, false},
		{CampaignStatusCompleted, CampaignStatusSending, false},
		{CampaignStatusFailed, CampaignStatusSending, false},
	}

	for _, tc := range cases {
		campaign := &Campaign{Status: tc.from}
		assert.Equal(t, tc.allowed, campaign.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestCampaignCanEnqueue(t *testing.T) {
	assert.True(t, (&Campaign{Status: CampaignStatusDraft}).CanEnqueue())
	assert.True(t, (&Campaign{Status: CampaignStatusScheduled}).CanEnqueue())
	assert.True(t, (&Campaign{Status: CampaignStatusPaused}).CanEnqueue())
	assert.False(t, (&Campaign{Status: CampaignStatusSending}).CanEnqueue())
	assert.False(t, (&Campaign{Status: CampaignStatusCompleted}).CanEnqueue())
	assert.False(t, (&Campaign{Status: CampaignStatusFailed}).CanEnqueue())
}

func TestCampaignIsEditable(t *testing.T) {
	assert.True(t, (&Campaign{Status: CampaignStatusDraft}).IsEditable())
	assert.True(t, (&Campaign{Status: CampaignStatusScheduled}).IsEditable())
	assert.False(t, (&Campaign{Status: CampaignStatusSending}).IsEditable())
	assert.False(t, (&Campaign{Status: CampaignStatusPaused}).IsEditable())
	assert.False(t, (&Campaign{Status: CampaignStatusCompleted}).IsEditable())
}

func TestCampaignStatusTerminal(t *testing.T) {
	assert.True(t, CampaignStatusCompleted.IsTerminal())
	assert.True(t, CampaignStatusFailed.IsTerminal())
	assert.False(t, CampaignStatusDraft.IsTerminal())
	assert.False(t, CampaignStatusSending.IsTerminal())
	assert.False(t, CampaignStatusPaused.IsTerminal())
}

func TestMessageStatusTerminal(t *testing.T) {
	assert.True(t, MessageStatusDelivered.IsTerminal())
	assert.True(t, MessageStatusFailed.IsTerminal())
	assert.False(t, MessageStatusQueued.IsTerminal())
	assert.False(t, MessageStatusSent.IsTerminal())
}

func TestMessageStatusValid(t *testing.T) {
	assert.True(t, MessageStatusQueued.Valid())
	assert.True(t, MessageStatusDelivered.Valid())
	assert.False(t, MessageStatus("bounced").Valid())
	assert.False(t, MessageStatus("").Valid())
}

func TestMessageStatusCounts(t *testing.T) {
	counts := MessageStatusCounts{Queued: 3, Sent: 2, Delivered: 4, Failed: 1}
	assert.Equal(t, int64(5), counts.Remaining())
	assert.Equal(t, int64(10), counts.Total())

	done := MessageStatusCounts{Delivered: 7, Failed: 3}
	assert.Equal(t, int64(0), done.Remaining())
}

func TestCampaignMessageTaskID(t *testing.T) {
	message := &CampaignMessage{ID: 42}
	assert.Equal(t, "message:42", message.TaskID())
	// Stable across calls so re-enqueues deduplicate
	assert.Equal(t, message.TaskID(), message.TaskID())
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+15551234567", NormalizePhone(" +1 555 123-4567 "))
	assert.Equal(t, "+15551234567", NormalizePhone("0015551234567"))
	assert.Equal(t, "+15551234567", NormalizePhone("+1(555)123-4567"))
	assert.Equal(t, "15551234567", NormalizePhone("15551234567"))
}

func TestContactHasValidPhone(t *testing.T) {
	assert.True(t, (&Contact{Phone: "+15551234567"}).HasValidPhone())
	assert.False(t, (&Contact{Phone: "15551234567"}).HasValidPhone())
	assert.False(t, (&Contact{Phone: "+0551234567"}).HasValidPhone())
	assert.False(t, (&Contact{Phone: "+1555"}).HasValidPhone())
	assert.False(t, (&Contact{Phone: ""}).HasValidPhone())
}

func TestJSONScanAndValue(t *testing.T) {
	var j JSON

	// Text-mode drivers hand jsonb columns back as strings
	require.NoError(t, j.Scan(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, string(j))

	require.NoError(t, j.Scan([]byte(`{"b":2}`)))
	assert.Equal(t, `{"b":2}`, string(j))

	require.NoError(t, j.Scan(nil))
	assert.Equal(t, `{}`, string(j))

	assert.Error(t, j.Scan(42))

	// Empty values persist as an empty object, never invalid JSON
	v, err := JSON(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	v, err = JSON(`{"c":3}`).Value()
	require.NoError(t, err)
	assert.Equal(t, `{"c":3}`, v)
}

func TestRenderTemplate(t *testing.T) {
	body := "Hi {{first_name}} {{last_name}}, reply to {{phone}}"
	out := RenderTemplate(body, map[string]string{
		"first_name": "Alex",
		"last_name":  "Doe",
		"phone":      "+15551234567",
	})
	assert.Equal(t, "Hi Alex Doe, reply to +15551234567", out)

	// Unresolved placeholders render as empty strings, never raw tokens
	assert.Equal(t, "Hi Ada, mail us at ",
		RenderTemplate("Hi {{first_name}}, mail us at {{email}}", map[string]string{"first_name": "Ada"}))
	assert.Equal(t, "Hi  , reply to ", RenderTemplate(body, nil))

	// Whitespace inside the braces is tolerated
	assert.Equal(t, "Hi Ada", RenderTemplate("Hi {{ first_name }}", map[string]string{"first_name": "Ada"}))

	// Text without placeholders passes through
	assert.Equal(t, "plain text", RenderTemplate("plain text", nil))
}
