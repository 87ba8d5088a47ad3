package commands

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
	"github.com/martindstone/martbot/src/slackapi"
)

// Incidents lists open incidents, serves an incident picker, and renders a
// picked incident's detail.
type Incidents struct {
	dispatcher.PatternSet
	deps Deps
}

func NewIncidents(deps Deps) *Incidents {
	return &Incidents{
		PatternSet: dispatcher.NewPatternSet("incidents", `^incidents`, `^mbincidents`),
		deps:       deps,
	}
}

func (c *Incidents) SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error {
	session := c.deps.PD.NewSession(user)

	incidents, err := session.FetchIncidents(ctx)
	if err != nil {
		c.deps.postError(ctx, team, req.Event.Channel, fmt.Errorf("incidents: %w", err))
		return err
	}

	if len(incidents) == 0 {
		text := fmt.Sprintf("There are currently no open incidents in domain *%s*", user.PDSubdomain)
		return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, req.Event.Channel, text, nil)
	}

	attachments := make([]models.Attachment, 0, len(incidents))
	for i := range incidents {
		incident := &incidents[i]
		attachments = append(attachments, models.Attachment{
			Text: fmt.Sprintf("%s *<%s|[#%d]>* %s",
				incidentStatusEmoji[incident.Status], incident.HTMLURL, incident.IncidentNumber, slackapi.Escape(incident.Description)),
			Color:          models.Green,
			AttachmentType: "default",
		})
	}

	text := fmt.Sprintf("Open incidents in domain *%s*:", user.PDSubdomain)
	return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, req.Event.Channel, text, attachments)
}

func (c *Incidents) SlackAction(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) error {
	if payload.Type == models.InteractionTypeDialogSubmission {
		return c.addNote(ctx, user, payload)
	}

	incidentID := payload.SelectedValue()
	if incidentID == "" || incidentID == nothingValue {
		return nil
	}

	var name string
	if len(payload.Actions) > 0 {
		name = payload.Actions[0].Name
	}

	switch name {
	case "acknowledge":
		return c.setStatus(ctx, user, payload, incidentID, "acknowledged")
	case "resolve":
		return c.setStatus(ctx, user, payload, incidentID, "resolved")
	case "annotate":
		return c.openNoteDialog(ctx, team, payload, incidentID)
	default:
		return c.showDetail(ctx, user, payload, incidentID)
	}
}

// showDetail replaces the picker message with the incident's interactive
// detail card.
func (c *Incidents) showDetail(ctx context.Context, user *models.LinkedUser, payload *models.InteractionPayload, incidentID string) error {
	session := c.deps.PD.NewSession(user)

	var out struct {
		Incident pd.Incident `json:"incident"`
	}
	if err := session.Get(ctx, fmt.Sprintf("incidents/%s", incidentID), nil, &out); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("incidents: %w", err))
		return err
	}

	return c.deps.Slack.Respond(ctx, payload.ResponseURL, &models.SlackResponse{
		Text:            "",
		Attachments:     makeIncidentAttachments(&out.Incident),
		ReplaceOriginal: true,
	})
}

func (c *Incidents) setStatus(ctx context.Context, user *models.LinkedUser, payload *models.InteractionPayload, incidentID, status string) error {
	session := c.deps.PD.NewSession(user)

	me, _, err := session.Me(ctx)
	if err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("incidents: %w", err))
		return err
	}

	body := map[string]interface{}{
		"incident": map[string]string{
			"type":   "incident_reference",
			"status": status,
		},
	}

	var out struct {
		Incident pd.Incident `json:"incident"`
	}
	endpoint := fmt.Sprintf("incidents/%s", incidentID)
	if err := session.DoAs(ctx, http.MethodPut, endpoint, me.Email, body, &out); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("incidents: %w", err))
		return err
	}

	return c.deps.Slack.Respond(ctx, payload.ResponseURL, &models.SlackResponse{
		Text:            "",
		Attachments:     makeIncidentAttachments(&out.Incident),
		ReplaceOriginal: true,
	})
}

// openNoteDialog collects note text in a modal; the incident id rides along
// in the dialog state.
func (c *Incidents) openNoteDialog(ctx context.Context, team *models.Team, payload *models.InteractionPayload, incidentID string) error {
	dialog := &models.Dialog{
		CallbackID:  "incidents",
		Title:       "Add a note",
		SubmitLabel: "Add",
		State:       incidentID,
		Elements: []models.DialogElement{
			{Name: "note", Label: "Note", Type: "textarea", Placeholder: "Note text"},
		},
	}

	if err := c.deps.Slack.OpenDialog(ctx, team.SlackAppToken, payload.TriggerID, dialog); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("incidents: %w", err))
		return err
	}

	return nil
}

func (c *Incidents) addNote(ctx context.Context, user *models.LinkedUser, payload *models.InteractionPayload) error {
	incidentID := payload.State
	if incidentID == "" {
		return nil
	}

	session := c.deps.PD.NewSession(user)

	me, _, err := session.Me(ctx)
	if err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("incidents: %w", err))
		return err
	}

	body := map[string]interface{}{
		"note": map[string]string{
			"content": payload.Submission["note"],
		},
	}

	endpoint := fmt.Sprintf("incidents/%s/notes", incidentID)
	if err := session.DoAs(ctx, http.MethodPost, endpoint, me.Email, body, nil); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("incidents: %w", err))
		return err
	}

	return c.deps.Slack.Respond(ctx, payload.ResponseURL, &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         "Note added.",
	})
}

func (c *Incidents) SlackLoadOptions(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) (*models.OptionsResponse, error) {
	session := c.deps.PD.NewSession(user)

	params := url.Values{}
	params.Set("query", payload.Value)
	params.Set("limit", strconv.Itoa(optionPageSize))
	params.Add("statuses[]", "triggered")
	params.Add("statuses[]", "acknowledged")

	var out struct {
		Incidents []pd.Incident `json:"incidents"`
	}
	if err := session.Get(ctx, "incidents", params, &out); err != nil {
		return nil, fmt.Errorf("incidents: %w", err)
	}

	options := make([]models.SelectOption, 0, len(out.Incidents)+1)
	for _, incident := range out.Incidents {
		options = append(options, models.SelectOption{
			Text:  incident.Summary,
			Label: incident.Summary,
			Value: incident.ID,
		})
	}

	if len(options) == 0 {
		options = append(options, models.SelectOption{
			Text:  "Nothing found.",
			Label: "Nothing found.",
			Value: nothingValue,
		})
	} else if len(options) == optionPageSize {
		options = append(options, models.SelectOption{
			Text:  "See more incidents...",
			Label: "See more incidents...",
			Value: "more:0",
		})
	}

	return &models.OptionsResponse{Options: options}, nil
}

func (c *Incidents) SlackCommand(ctx context.Context, team *models.Team, user *models.LinkedUser, cmd *models.SlashCommand) (*models.SlackResponse, error) {
	response := &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         "",
		Attachments: []models.Attachment{{
			Text:           fmt.Sprintf("Choose an incident in domain *%s*:", user.PDSubdomain),
			Color:          models.Green,
			AttachmentType: "default",
			CallbackID:     "incidents",
			Actions: []models.AttachmentAction{{
				Name:       "incidents",
				Text:       "Pick an incident",
				Type:       "select",
				DataSource: "external",
			}},
		}},
	}

	if err := c.deps.Slack.Respond(ctx, cmd.ResponseURL, response); err != nil {
		return nil, fmt.Errorf("incidents: %w", err)
	}

	return nil, nil
}
