package models

import (
	"encoding/json"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlackEventRequestValidate(t *testing.T) {
	valid := &SlackEventRequest{
		Type:   EventTypeCallback,
		TeamID: "T0001",
		Event: &MessageEvent{
			Type:    "message",
			Channel: "C0001",
			User:    "U0001",
			Text:    "incidents",
		},
	}
	assert.NoError(t, valid.Validate())

	missingTeam := &SlackEventRequest{Type: EventTypeCallback, Event: valid.Event}
	assert.Error(t, missingTeam.Validate())

	missingEvent := &SlackEventRequest{Type: EventTypeCallback, TeamID: "T0001"}
	assert.Error(t, missingEvent.Validate())

	verification := &SlackEventRequest{Type: EventTypeURLVerification, Challenge: "x"}
	assert.Error(t, verification.Validate())
}

func TestMessageEventNestedFallback(t *testing.T) {
	raw := `{
		"type": "message",
		"subtype": "message_changed",
		"channel": "C0001",
		"message": {"user": "U0001", "text": "incidents", "subtype": "bot_message"}
	}`

	var event MessageEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))

	assert.Equal(t, "U0001", event.SenderID())
	assert.Equal(t, "incidents", event.MessageText())
	assert.Equal(t, SubtypeBotMessage, event.EffectiveSubtype())
	assert.True(t, event.IsBotMessage())
}

func TestMessageEventTopLevelFields(t *testing.T) {
	event := MessageEvent{Channel: "C0001", User: "U0001", Text: "whoami"}

	assert.Equal(t, "U0001", event.SenderID())
	assert.Equal(t, "whoami", event.MessageText())
	assert.False(t, event.IsBotMessage())
}

func TestInteractionPayloadSelectedValue(t *testing.T) {
	button := &InteractionPayload{Actions: []ActionInvocation{{Name: "ack", Value: "PIN01"}}}
	assert.Equal(t, "PIN01", button.SelectedValue())

	selected := &InteractionPayload{Actions: []ActionInvocation{{
		Name:            "incidents",
		SelectedOptions: []SelectedOption{{Value: "PIN02"}},
	}}}
	assert.Equal(t, "PIN02", selected.SelectedValue())

	empty := &InteractionPayload{}
	assert.Empty(t, empty.SelectedValue())
}

func TestInteractionPayloadValidate(t *testing.T) {
	valid := &InteractionPayload{
		Type:       InteractionTypeMessageAction,
		Team:       PayloadTeam{ID: "T0001"},
		User:       PayloadUser{ID: "U0001"},
		CallbackID: "incidents",
	}
	assert.NoError(t, valid.Validate())

	missingCallback := &InteractionPayload{
		Team: PayloadTeam{ID: "T0001"},
		User: PayloadUser{ID: "U0001"},
	}
	assert.Error(t, missingCallback.Validate())
}

func TestDecodeSlashCommand(t *testing.T) {
	form := url.Values{
		"token":        {"verification"},
		"team_id":      {"T0001"},
		"channel_id":   {"C0001"},
		"user_id":      {"U0001"},
		"user_name":    {"alex"},
		"command":      {"/mbincidents"},
		"text":         {"all"},
		"response_url": {"https://hooks.slack.example.com/respond"},
		"trigger_id":   {"trig-1"},
	}

	cmd, err := DecodeSlashCommand(form)
	require.NoError(t, err)
	assert.Equal(t, "T0001", cmd.TeamID)
	assert.Equal(t, "all", cmd.Params)
	assert.Equal(t, "mbincidents", cmd.CommandName())
}

func TestDecodeSlashCommandRejectsMissingFields(t *testing.T) {
	form := url.Values{
		"command": {"/mbincidents"},
		"team_id": {"T0001"},
		"user_id": {"U0001"},
	}

	_, err := DecodeSlashCommand(form)
	assert.Error(t, err)
}

func TestDecodeSlashCommandIgnoresUnknownKeys(t *testing.T) {
	form := url.Values{
		"command":             {"/mbdomain"},
		"team_id":             {"T0001"},
		"user_id":             {"U0001"},
		"response_url":        {"https://hooks.slack.example.com/respond"},
		"enterprise_id":       {"E0001"},
		"is_enterprise_team":  {"false"},
		"api_app_id":          {"A0001"},
		"channel_id":          {"C0001"},
		"response_url_ended":  {"x"},
		"some_future_feature": {"y"},
	}

	cmd, err := DecodeSlashCommand(form)
	require.NoError(t, err)
	assert.Equal(t, "mbdomain", cmd.CommandName())
}

func TestTeamValidate(t *testing.T) {
	valid := &Team{SlackTeamID: "T0001", SlackBotToken: "xoxb", SlackBotUserID: "U0BOT"}
	assert.NoError(t, valid.Validate())

	noBot := &Team{SlackTeamID: "T0001", SlackBotUserID: "U0BOT"}
	assert.Error(t, noBot.Validate())
}

func TestNeedsRelink(t *testing.T) {
	var missing *LinkedUser
	assert.True(t, missing.NeedsRelink())

	sentinel := &LinkedUser{SlackUserID: "U0001", PDSubdomain: RelinkSubdomain}
	assert.True(t, sentinel.NeedsRelink())

	linked := &LinkedUser{SlackUserID: "U0001", PDSubdomain: "acme"}
	assert.False(t, linked.NeedsRelink())
}
