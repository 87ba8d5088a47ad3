package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
	"github.com/martindstone/martbot/src/slackapi"
)

// Trigger opens a dialog to create a new incident and files it on submission.
type Trigger struct {
	dispatcher.PatternSet
	deps Deps
}

func NewTrigger(deps Deps) *Trigger {
	return &Trigger{
		PatternSet: dispatcher.NewPatternSet("trigger", `^trig`, `^page`, `mbtrigger`),
		deps:       deps,
	}
}

func (c *Trigger) SlackCommand(ctx context.Context, team *models.Team, user *models.LinkedUser, cmd *models.SlashCommand) (*models.SlackResponse, error) {
	dialog := &models.Dialog{
		CallbackID:  "trigger",
		Title:       "Trigger an incident",
		SubmitLabel: "Trigger",
		Elements: []models.DialogElement{
			{Name: "service", Label: "Service", Type: "select", DataSource: "external", Placeholder: "In PD service"},
			{Name: "user", Label: "User", Type: "select", DataSource: "external", Optional: true, Placeholder: "For PD user"},
			{Name: "title", Label: "Title", Type: "text", Placeholder: "Incident title"},
			{Name: "description", Label: "Description", Type: "textarea", Optional: true, Placeholder: "Optional details"},
		},
	}

	if err := c.deps.Slack.OpenDialog(ctx, team.SlackAppToken, cmd.TriggerID, dialog); err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}

	return nil, nil
}

// ValidateSubmission rejects placeholder sentinel choices before any incident
// gets created.
func (c *Trigger) ValidateSubmission(team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) *models.ValidationErrors {
	if payload.Submission["user"] == nothingValue {
		return &models.ValidationErrors{Errors: []models.ValidationError{
			{Name: "user", Error: "Please choose a user"},
		}}
	}

	if payload.Submission["service"] == nothingValue {
		return &models.ValidationErrors{Errors: []models.ValidationError{
			{Name: "service", Error: "Please choose a service"},
		}}
	}

	return nil
}

type incidentBody struct {
	Type        string           `json:"type"`
	Title       string           `json:"title"`
	Service     pd.Reference     `json:"service"`
	Body        *incidentDetails `json:"body,omitempty"`
	Assignments []pd.Assignment  `json:"assignments,omitempty"`
}

type incidentDetails struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

func (c *Trigger) SlackAction(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) error {
	if payload.Type != models.InteractionTypeDialogSubmission {
		return nil
	}

	description := payload.Submission["description"]
	description += fmt.Sprintf("\n\nIncident opened by @%s: https://www.slack.com/messages/@%s", payload.User.Name, payload.User.Name)

	body := map[string]incidentBody{
		"incident": {
			Type:  "incident",
			Title: payload.Submission["title"],
			Service: pd.Reference{
				ID:   payload.Submission["service"],
				Type: "service_reference",
			},
			Body: &incidentDetails{
				Type:    "incident_body",
				Details: description,
			},
		},
	}

	if assignee := payload.Submission["user"]; assignee != "" {
		incident := body["incident"]
		incident.Assignments = []pd.Assignment{{
			Assignee: pd.Reference{Type: "user_reference", ID: assignee},
		}}
		body["incident"] = incident
	}

	session := c.deps.PD.NewSession(user)

	var out struct {
		Incident pd.Incident `json:"incident"`
	}
	if err := session.Post(ctx, "incidents", body, &out); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("trigger: %w", err))
		return err
	}

	incident := &out.Incident
	response := &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         fmt.Sprintf("Created an incident in domain *%s*:", user.PDSubdomain),
		Attachments: []models.Attachment{{
			Text: fmt.Sprintf("*<%s|[#%d]>* %s",
				incident.HTMLURL, incident.IncidentNumber, slackapi.Escape(incident.Title)),
			Color:          models.Green,
			AttachmentType: "default",
			Fields: []models.AttachmentField{
				{Title: "Service", Value: referenceLink(incident.Service), Short: true},
				{Title: "Assigned to", Value: assignmentList(incident.Assignments), Short: true},
			},
		}},
	}

	return c.deps.Slack.Respond(ctx, payload.ResponseURL, response)
}

func (c *Trigger) SlackLoadOptions(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) (*models.OptionsResponse, error) {
	var endpoint string
	switch payload.Name {
	case "service":
		endpoint = "services"
	case "user":
		endpoint = "users"
	default:
		return nil, nil
	}

	session := c.deps.PD.NewSession(user)

	params := url.Values{}
	params.Set("query", payload.Value)
	params.Set("limit", strconv.Itoa(optionPageSize))

	var out struct {
		Services []pd.Service `json:"services"`
		Users    []pd.User    `json:"users"`
	}
	if err := session.Get(ctx, endpoint, params, &out); err != nil {
		return nil, fmt.Errorf("trigger: %w", err)
	}

	var options []models.SelectOption
	if endpoint == "services" {
		for _, service := range out.Services {
			options = append(options, models.SelectOption{Text: service.Name, Label: service.Name, Value: service.ID})
		}
	} else {
		for _, pdUser := range out.Users {
			options = append(options, models.SelectOption{Text: pdUser.Name, Label: pdUser.Name, Value: pdUser.ID})
		}
	}

	if len(options) == 0 {
		options = append(options, models.SelectOption{
			Text:  "Nothing found.",
			Label: "Nothing found.",
			Value: nothingValue,
		})
	} else if len(options) == optionPageSize {
		more := models.SelectOption{
			Text:  "-- More than 25 results found! Please type more letters. --",
			Label: "-- More than 25 results found! Please type more letters. --",
			Value: nothingValue,
		}
		options = append([]models.SelectOption{more}, options...)
	}

	return &models.OptionsResponse{Options: options}, nil
}
