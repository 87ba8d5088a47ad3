package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
)

// EscalationPolicies serves an escalation-policy picker and renders a picked
// policy with its current on-call rotation.
type EscalationPolicies struct {
	dispatcher.PatternSet
	deps Deps
}

func NewEscalationPolicies(deps Deps) *EscalationPolicies {
	return &EscalationPolicies{
		PatternSet: dispatcher.NewPatternSet("eps", `^eps`, `^escal`, `^mbeps`),
		deps:       deps,
	}
}

func (c *EscalationPolicies) pickerAttachment(user *models.LinkedUser, callbackID string) models.Attachment {
	return models.Attachment{
		Text:           fmt.Sprintf("Choose an escalation policy in domain %s", user.PDSubdomain),
		Color:          models.Green,
		AttachmentType: "default",
		CallbackID:     callbackID,
		Actions: []models.AttachmentAction{{
			Name:       "eps",
			Text:       "Pick an EP",
			Type:       "select",
			DataSource: "external",
		}},
	}
}

func (c *EscalationPolicies) SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error {
	attachments := []models.Attachment{c.pickerAttachment(user, req.Event.MessageText())}
	return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, req.Event.Channel, "", attachments)
}

func (c *EscalationPolicies) SlackAction(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) error {
	epID := payload.SelectedValue()
	if epID == "" || epID == nothingValue {
		return nil
	}

	session := c.deps.PD.NewSession(user)

	params := url.Values{}
	params.Add("include[]", "current_oncall")

	var out struct {
		EscalationPolicy pd.EscalationPolicy `json:"escalation_policy"`
	}
	if err := session.Get(ctx, fmt.Sprintf("escalation_policies/%s", epID), params, &out); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("eps: %w", err))
		return err
	}

	response := &models.SlackResponse{
		Text:            makeEPText(&out.EscalationPolicy),
		ReplaceOriginal: true,
	}

	return c.deps.Slack.Respond(ctx, payload.ResponseURL, response)
}

func (c *EscalationPolicies) SlackLoadOptions(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) (*models.OptionsResponse, error) {
	session := c.deps.PD.NewSession(user)

	params := url.Values{}
	params.Set("query", payload.Value)
	params.Set("limit", strconv.Itoa(optionPageSize))

	var out struct {
		EscalationPolicies []pd.EscalationPolicy `json:"escalation_policies"`
	}
	if err := session.Get(ctx, "escalation_policies", params, &out); err != nil {
		return nil, fmt.Errorf("eps: %w", err)
	}

	options := make([]models.SelectOption, 0, len(out.EscalationPolicies)+1)
	for _, ep := range out.EscalationPolicies {
		options = append(options, models.SelectOption{Text: ep.Name, Label: ep.Name, Value: ep.ID})
	}

	if len(options) == 0 {
		options = append(options, models.SelectOption{
			Text:  "Nothing found.",
			Label: "Nothing found.",
			Value: nothingValue,
		})
	} else if len(options) == optionPageSize {
		more := models.SelectOption{
			Text:  "(> 25 found, please type more letters.)",
			Label: "(> 25 found, please type more letters.)",
			Value: nothingValue,
		}
		options = append([]models.SelectOption{more}, options...)
	}

	return &models.OptionsResponse{Options: options}, nil
}

func (c *EscalationPolicies) SlackCommand(ctx context.Context, team *models.Team, user *models.LinkedUser, cmd *models.SlashCommand) (*models.SlackResponse, error) {
	response := &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         "",
		Attachments:  []models.Attachment{c.pickerAttachment(user, "eps")},
	}

	if err := c.deps.Slack.Respond(ctx, cmd.ResponseURL, response); err != nil {
		return nil, fmt.Errorf("eps: %w", err)
	}

	return nil, nil
}
