package dispatcher

import (
	"context"
	"regexp"

	"github.com/martindstone/martbot/src/models"
)

// Command is the minimum a registered handler provides: a name and a trigger
// predicate. Everything else is an optional capability discovered through
// interface checks.
type Command interface {
	Name() string
	Matches(text string) bool
}

// EventHandler handles message events. Runs on the worker pool, after the
// HTTP acknowledgement has been written.
type EventHandler interface {
	Command
	SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error
}

// ActionHandler handles interactive message actions and dialog submissions.
// Runs on the worker pool; replies go to the payload's response_url.
type ActionHandler interface {
	Command
	SlackAction(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) error
}

// OptionsLoader answers menu queries for external select elements. Runs
// synchronously: the return value is the HTTP response body.
type OptionsLoader interface {
	Command
	SlackLoadOptions(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) (*models.OptionsResponse, error)
}

// SlashHandler handles slash commands. A non-nil response is relayed
// synchronously; a nil response means the handler replied (or will reply)
// through the response_url.
type SlashHandler interface {
	Command
	SlackCommand(ctx context.Context, team *models.Team, user *models.LinkedUser, cmd *models.SlashCommand) (*models.SlackResponse, error)
}

// SubmissionValidator vets a dialog submission before its action handler is
// allowed to run. A non-nil result is returned to Slack as field errors and
// blocks dispatch entirely.
type SubmissionValidator interface {
	Command
	ValidateSubmission(team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) *models.ValidationErrors
}

// mentionPrefix matches the "<@U123ABC> " token Slack prepends when the bot
// is addressed directly; it is stripped before pattern matching.
var mentionPrefix = regexp.MustCompile(`^<[^\s]+> `)

// PatternSet implements the Command half of a handler: a name and a set of
// regexp triggers. Handler types embed it.
type PatternSet struct {
	name     string
	patterns []*regexp.Regexp
}

func NewPatternSet(name string, patterns ...string) PatternSet {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}

	return PatternSet{name: name, patterns: compiled}
}

func (p PatternSet) Name() string {
	return p.name
}

func (p PatternSet) Matches(text string) bool {
	stripped := mentionPrefix.ReplaceAllString(text, "")
	for _, pattern := range p.patterns {
		if pattern.MatchString(stripped) {
			return true
		}
	}

	return false
}

// Registry holds the registered commands in registration order. Matching is
// order-stable: the first registered command whose trigger matches and which
// implements the requested capability wins.
type Registry struct {
	commands []Command
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Register(cmd Command) {
	r.commands = append(r.commands, cmd)
}

func (r *Registry) MatchEvent(text string) (EventHandler, bool) {
	for _, cmd := range r.commands {
		if handler, ok := cmd.(EventHandler); ok && cmd.Matches(text) {
			return handler, true
		}
	}

	return nil, false
}

func (r *Registry) MatchAction(callbackID string) (ActionHandler, bool) {
	for _, cmd := range r.commands {
		if handler, ok := cmd.(ActionHandler); ok && cmd.Matches(callbackID) {
			return handler, true
		}
	}

	return nil, false
}

func (r *Registry) MatchOptions(callbackID string) (OptionsLoader, bool) {
	for _, cmd := range r.commands {
		if loader, ok := cmd.(OptionsLoader); ok && cmd.Matches(callbackID) {
			return loader, true
		}
	}

	return nil, false
}

func (r *Registry) MatchSlash(command string) (SlashHandler, bool) {
	for _, cmd := range r.commands {
		if handler, ok := cmd.(SlashHandler); ok && cmd.Matches(command) {
			return handler, true
		}
	}

	return nil, false
}

func (r *Registry) MatchValidator(callbackID string) (SubmissionValidator, bool) {
	for _, cmd := range r.commands {
		if validator, ok := cmd.(SubmissionValidator); ok && cmd.Matches(callbackID) {
			return validator, true
		}
	}

	return nil, false
}
