// Package commands holds the pluggable command handlers: each one matches a
// set of trigger patterns and implements whichever dispatcher capabilities it
// supports.
package commands

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
	"github.com/martindstone/martbot/src/slackapi"
)

// Deps is everything a command needs to do its work: the Slack client for
// replies, the PagerDuty client for API calls, and the public hostname for
// building re-link buttons.
type Deps struct {
	Slack *slackapi.Client
	PD    *pd.Client
	Host  string
}

// optionPageSize is the cap Slack enforces on external-select option lists.
// Commands must signal "nothing found" and "more than a page" explicitly
// rather than silently truncating.
const optionPageSize = 25

const nothingValue = "nothing"

// postError posts a degraded, user-visible error message in place of the
// reply the handler could not produce. Failures talking to PagerDuty must
// never silently swallow the interaction.
func (d Deps) postError(ctx context.Context, team *models.Team, channel string, err error) {
	log.Errorf("commands: %v", err)

	msg := "Something went wrong talking to PagerDuty. Please try again."
	if postErr := d.Slack.PostMessage(ctx, team.SlackBotToken, channel, msg, nil); postErr != nil {
		log.Errorf("commands: failed to post error message: %v", postErr)
	}
}

// respondError is postError for interactions that reply via response_url.
func (d Deps) respondError(ctx context.Context, responseURL string, err error) {
	log.Errorf("commands: %v", err)

	response := &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         "Something went wrong talking to PagerDuty. Please try again.",
	}
	if postErr := d.Slack.Respond(ctx, responseURL, response); postErr != nil {
		log.Errorf("commands: failed to post error response: %v", postErr)
	}
}
