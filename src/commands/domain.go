package commands

import (
	"context"
	"fmt"

	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/linker"
	"github.com/martindstone/martbot/src/models"
)

// Domain reports which PagerDuty subdomain the user is linked to and offers a
// button to change it.
type Domain struct {
	dispatcher.PatternSet
	deps Deps
}

func NewDomain(deps Deps) *Domain {
	return &Domain{
		PatternSet: dispatcher.NewPatternSet("domain", `^domain`, `mbdomain`),
		deps:       deps,
	}
}

func (c *Domain) relinkAttachment(team *models.Team, user *models.LinkedUser) models.Attachment {
	return models.Attachment{
		Text:           "",
		Color:          models.Green,
		AttachmentType: "default",
		Actions: []models.AttachmentAction{{
			Text: "Change PD subdomain/user",
			Type: "button",
			URL:  linker.RelinkURL(c.deps.Host, team.SlackTeamID, user.SlackUserID),
		}},
	}
}

func (c *Domain) SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error {
	me, _, err := c.deps.PD.NewSession(user).Me(ctx)
	if err != nil {
		c.deps.postError(ctx, team, req.Event.Channel, fmt.Errorf("domain: %w", err))
		return err
	}

	text := fmt.Sprintf("You're currently logged in to subdomain *%s* as *%s*", user.PDSubdomain, me.Email)
	attachments := []models.Attachment{c.relinkAttachment(team, user)}

	return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, req.Event.Channel, text, attachments)
}

func (c *Domain) SlackCommand(ctx context.Context, team *models.Team, user *models.LinkedUser, cmd *models.SlashCommand) (*models.SlackResponse, error) {
	me, _, err := c.deps.PD.NewSession(user).Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}

	response := &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         fmt.Sprintf("You're currently logged in to subdomain *%s* as *%s*", user.PDSubdomain, me.Email),
		Attachments:  []models.Attachment{c.relinkAttachment(team, user)},
	}

	if err := c.deps.Slack.Respond(ctx, cmd.ResponseURL, response); err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}

	return nil, nil
}
