package models

import "fmt"

// RelinkSubdomain is a sentinel written into a LinkedUser's PDSubdomain to
// force the user back through the PagerDuty authorization leg. A user carrying
// it is treated as unlinked by the dispatcher.
const RelinkSubdomain = "pdt-k18"

// Team is one Slack workspace installation of the bot.
type Team struct {
	SlackTeamID    string `json:"slack_team_id"`
	SlackAppToken  string `json:"slack_app_token"`
	SlackBotToken  string `json:"slack_bot_token"`
	SlackBotUserID string `json:"slack_bot_userid"`
}

// Validate rejects teams that are missing bot credentials. A team without a
// bot token cannot call the Slack API and must never be persisted.
func (t *Team) Validate() error {
	if t.SlackTeamID == "" {
		return fmt.Errorf("Team.Validate: missing slack team id")
	}

	if t.SlackBotToken == "" {
		return fmt.Errorf("Team.Validate: team %s is missing a bot token", t.SlackTeamID)
	}

	if t.SlackBotUserID == "" {
		return fmt.Errorf("Team.Validate: team %s is missing a bot user id", t.SlackTeamID)
	}

	return nil
}

// LinkedUser binds one Slack user to one PagerDuty account. At most one
// LinkedUser exists per Slack user per team.
type LinkedUser struct {
	SlackUserID string `json:"slack_userid"`
	PDUserID    string `json:"pd_userid"`
	PDToken     string `json:"pd_token"`
	PDSubdomain string `json:"pd_subdomain"`
}

func (u *LinkedUser) Validate() error {
	if u.SlackUserID == "" || u.PDUserID == "" || u.PDToken == "" || u.PDSubdomain == "" {
		return fmt.Errorf("LinkedUser.Validate: incomplete user mapping for slack user %q", u.SlackUserID)
	}

	return nil
}

// NeedsRelink reports whether the user has no usable PagerDuty credential.
func (u *LinkedUser) NeedsRelink() bool {
	return u == nil || u.PDSubdomain == RelinkSubdomain
}
