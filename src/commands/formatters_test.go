package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martindstone/martbot/src/pd"
)

func TestMakeIncidentAttachmentsOpenIncident(t *testing.T) {
	incident := &pd.Incident{
		ID:             "PIN01",
		IncidentNumber: 42,
		Title:          "Database down",
		Status:         "triggered",
		HTMLURL:        "https://acme.pagerduty.com/incidents/PIN01",
		Service:        pd.Reference{Summary: "Database", HTMLURL: "https://acme.pagerduty.com/services/PSV01"},
		Assignments: []pd.Assignment{
			{Assignee: pd.Reference{Summary: "Alex", HTMLURL: "https://acme.pagerduty.com/users/PDU01"}},
		},
	}

	attachments := makeIncidentAttachments(incident)
	require.Len(t, attachments, 1)

	attachment := attachments[0]
	assert.Contains(t, attachment.Text, ":octagonal_sign:")
	assert.Contains(t, attachment.Text, "[#42]")
	assert.Equal(t, "incidents", attachment.CallbackID)

	names := make([]string, 0, len(attachment.Actions))
	for _, action := range attachment.Actions {
		names = append(names, action.Name)
	}
	assert.Equal(t, []string{"acknowledge", "resolve", "annotate"}, names)

	require.Len(t, attachment.Fields, 3)
	assert.Equal(t, "Triggered", attachment.Fields[0].Value)
	assert.Contains(t, attachment.Fields[2].Value, "Alex")
}

func TestMakeIncidentAttachmentsResolvedIncidentHasNoLifecycleButtons(t *testing.T) {
	incident := &pd.Incident{
		ID:             "PIN02",
		IncidentNumber: 7,
		Title:          "All better",
		Status:         "resolved",
		HTMLURL:        "https://acme.pagerduty.com/incidents/PIN02",
	}

	attachments := makeIncidentAttachments(incident)
	require.Len(t, attachments, 1)

	require.Len(t, attachments[0].Actions, 1)
	assert.Equal(t, "annotate", attachments[0].Actions[0].Name)
	assert.Contains(t, attachments[0].Text, ":white_check_mark:")
}

func TestMakeEPTextGroupsOncallsByLevel(t *testing.T) {
	ep := &pd.EscalationPolicy{
		ID:      "PEP01",
		Summary: "Default",
		HTMLURL: "https://acme.pagerduty.com/escalation_policies/PEP01",
		CurrentOncalls: []pd.OncallEntry{
			{EscalationLevel: 2, User: pd.Reference{Summary: "Blake", HTMLURL: "https://acme.pagerduty.com/users/PDU02"}},
			{EscalationLevel: 1, User: pd.Reference{Summary: "Alex", HTMLURL: "https://acme.pagerduty.com/users/PDU01"}},
			{EscalationLevel: 1, User: pd.Reference{Summary: "Casey", HTMLURL: "https://acme.pagerduty.com/users/PDU03"}},
		},
	}

	text := makeEPText(ep)

	assert.Contains(t, text, ":phone: Escalation policy <https://acme.pagerduty.com/escalation_policies/PEP01|Default>:")
	assert.Contains(t, text, "Level 1:")
	assert.Contains(t, text, "Level 2:")

	// Both level-1 oncalls land on the same line, in order.
	assert.Regexp(t, `Level 1: .*Alex.*, .*Casey`, text)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Triggered", titleCase("triggered"))
	assert.Equal(t, "", titleCase(""))
	assert.Equal(t, "A", titleCase("a"))
}
