package commands

import (
	"context"
	"fmt"

	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/models"
)

// Whoami answers "whoami" with the linked PagerDuty identity.
type Whoami struct {
	dispatcher.PatternSet
	deps Deps
}

func NewWhoami(deps Deps) *Whoami {
	return &Whoami{
		PatternSet: dispatcher.NewPatternSet("whoami", `^whoami`, `who am i`),
		deps:       deps,
	}
}

func (c *Whoami) SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error {
	me, _, err := c.deps.PD.NewSession(user).Me(ctx)
	if err != nil {
		c.deps.postError(ctx, team, req.Event.Channel, fmt.Errorf("whoami: %w", err))
		return err
	}

	text := fmt.Sprintf("You're *%s* in domain *%s*", me.Email, user.PDSubdomain)
	return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, req.Event.Channel, text, nil)
}
