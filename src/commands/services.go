package commands

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/martindstone/martbot/src/dispatcher"
	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
)

var (
	servicesArgPattern = regexp.MustCompile(`^services( .*)$`)
	criticalArgPattern = regexp.MustCompile(`^trig|^red|^crit`)
	warningArgPattern  = regexp.MustCompile(`^ack|^orange|^amber|^warn`)
	allArgPattern      = regexp.MustCompile(`^all|list`)
)

// Services lists services by status or serves a service picker.
type Services struct {
	dispatcher.PatternSet
	deps Deps
}

func NewServices(deps Deps) *Services {
	return &Services{
		PatternSet: dispatcher.NewPatternSet("services", `^services`),
		deps:       deps,
	}
}

func (c *Services) SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error {
	session := c.deps.PD.NewSession(user)
	messageText := req.Event.MessageText()

	if match := servicesArgPattern.FindStringSubmatch(messageText); match != nil {
		return c.listByArg(ctx, session, team, user, req.Event.Channel, strings.TrimSpace(match[1]), messageText)
	}

	services, err := session.FetchServices(ctx)
	if err != nil {
		c.deps.postError(ctx, team, req.Event.Channel, fmt.Errorf("services: %w", err))
		return err
	}

	options := make([]models.SelectOption, 0, len(services))
	for _, service := range services {
		options = append(options, models.SelectOption{Text: service.Summary, Value: service.ID})
	}

	attachments := []models.Attachment{{
		Text:           fmt.Sprintf("Choose a service in domain %s", user.PDSubdomain),
		Color:          models.Green,
		AttachmentType: "default",
		CallbackID:     messageText,
		Actions: []models.AttachmentAction{{
			Name:    "services_list",
			Text:    "Pick a service",
			Type:    "select",
			Options: options,
		}},
	}}

	return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, req.Event.Channel, "", attachments)
}

func (c *Services) listByArg(ctx context.Context, session *pd.Session, team *models.Team, user *models.LinkedUser, channel, arg, messageText string) error {
	var wantStatus string
	var heading string

	switch {
	case criticalArgPattern.MatchString(arg):
		wantStatus = "critical"
		heading = fmt.Sprintf("Critical services in subdomain *%s*:\n", user.PDSubdomain)
	case warningArgPattern.MatchString(arg):
		wantStatus = "warning"
		heading = fmt.Sprintf("Warning services in subdomain *%s*:\n", user.PDSubdomain)
	case allArgPattern.MatchString(arg):
		heading = fmt.Sprintf("All services in subdomain *%s*:\n", user.PDSubdomain)
	default:
		text := fmt.Sprintf("No services found for *%s*", messageText)
		return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, channel, text, nil)
	}

	services, err := session.FetchServices(ctx)
	if err != nil {
		c.deps.postError(ctx, team, channel, fmt.Errorf("services: %w", err))
		return err
	}

	var b strings.Builder
	b.WriteString(heading)
	count := 0
	for _, service := range services {
		if wantStatus != "" && service.Status != wantStatus {
			continue
		}

		count++
		if wantStatus == "" {
			fmt.Fprintf(&b, "\t%s <%s|%s> (%s)\n", serviceStatusEmoji[service.Status], service.HTMLURL, service.Summary, service.Status)
		} else {
			fmt.Fprintf(&b, "\t%s <%s|%s>\n", serviceStatusEmoji[service.Status], service.HTMLURL, service.Summary)
		}
	}

	if count == 0 {
		text := fmt.Sprintf("No services found for *%s*", messageText)
		return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, channel, text, nil)
	}

	return c.deps.Slack.PostMessage(ctx, team.SlackBotToken, channel, b.String(), nil)
}

func (c *Services) SlackAction(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) error {
	serviceID := payload.SelectedValue()
	if serviceID == "" || serviceID == nothingValue {
		return nil
	}

	session := c.deps.PD.NewSession(user)

	var out struct {
		Service pd.Service `json:"service"`
	}
	if err := session.Get(ctx, fmt.Sprintf("services/%s", serviceID), nil, &out); err != nil {
		c.deps.respondError(ctx, payload.ResponseURL, fmt.Errorf("services: %w", err))
		return err
	}

	service := &out.Service

	var b strings.Builder
	fmt.Fprintf(&b, ":desktop_computer: Service <%s|%s> in subdomain %s:\n\n", service.HTMLURL, service.Summary, user.PDSubdomain)
	if service.Description != "" && service.Description != service.Summary {
		fmt.Fprintf(&b, "Description: %s\n", service.Description)
	}
	fmt.Fprintf(&b, "Status: %s %s\n", serviceStatusEmoji[service.Status], titleCase(service.Status))
	fmt.Fprintf(&b, "Escalation Policy: %s\n", referenceLink(service.EscalationPolicy))

	response := &models.SlackResponse{
		Text:            b.String(),
		ReplaceOriginal: true,
	}

	return c.deps.Slack.Respond(ctx, payload.ResponseURL, response)
}
