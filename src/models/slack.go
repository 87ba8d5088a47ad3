package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

// SlackEventRequest is the JSON body of an Events API callback. Slack sends
// url_verification once at subscription time and event_callback afterwards.
type SlackEventRequest struct {
	Type      string        `json:"type"`
	Token     string        `json:"token"`
	Challenge string        `json:"challenge,omitempty"`
	TeamID    string        `json:"team_id,omitempty"`
	EventID   string        `json:"event_id,omitempty"`
	Event     *MessageEvent `json:"event,omitempty"`
}

const (
	EventTypeURLVerification = "url_verification"
	EventTypeCallback        = "event_callback"

	SubtypeBotMessage = "bot_message"
)

// Validate checks the fields an event_callback must carry before the
// dispatcher will touch it. A missing required field is a parse error, not a
// silent nil.
func (r *SlackEventRequest) Validate() error {
	if r.Type != EventTypeCallback {
		return fmt.Errorf("SlackEventRequest.Validate: unexpected type %q", r.Type)
	}

	if r.TeamID == "" {
		return fmt.Errorf("SlackEventRequest.Validate: missing team_id")
	}

	if r.Event == nil {
		return fmt.Errorf("SlackEventRequest.Validate: missing event")
	}

	if r.Event.Channel == "" {
		return fmt.Errorf("SlackEventRequest.Validate: missing event channel")
	}

	if r.Event.SenderID() == "" {
		return fmt.Errorf("SlackEventRequest.Validate: missing event user")
	}

	return nil
}

// MessageEvent is the inner event of an event_callback. For message_changed
// style events the user and text live under a nested message instead of at
// the top level. Messages produced by a bot carry bot_id in place of user.
type MessageEvent struct {
	Type    string         `json:"type"`
	Subtype string         `json:"subtype,omitempty"`
	Channel string         `json:"channel"`
	User    string         `json:"user,omitempty"`
	BotID   string         `json:"bot_id,omitempty"`
	Text    string         `json:"text,omitempty"`
	Message *NestedMessage `json:"message,omitempty"`
}

type NestedMessage struct {
	User    string `json:"user,omitempty"`
	Text    string `json:"text,omitempty"`
	Subtype string `json:"subtype,omitempty"`
}

func (e *MessageEvent) SenderID() string {
	if e.User != "" {
		return e.User
	}
	if e.Message != nil {
		return e.Message.User
	}
	return ""
}

func (e *MessageEvent) MessageText() string {
	if e.Text != "" {
		return e.Text
	}
	if e.Message != nil {
		return e.Message.Text
	}
	return ""
}

// EffectiveSubtype is the subtype of either the event or its nested message.
func (e *MessageEvent) EffectiveSubtype() string {
	if e.Message != nil && e.Message.Subtype != "" {
		return e.Message.Subtype
	}
	return e.Subtype
}

// IsBotMessage reports whether the event was produced by a bot, including
// this one. Dispatching those would loop the bot against itself.
func (e *MessageEvent) IsBotMessage() bool {
	return e.EffectiveSubtype() == SubtypeBotMessage
}

// InteractionPayload is the decoded "payload" form field of an interactive
// message action, dialog submission, or external-select menu query.
type InteractionPayload struct {
	Type        string             `json:"type"`
	Team        PayloadTeam        `json:"team"`
	User        PayloadUser        `json:"user"`
	CallbackID  string             `json:"callback_id"`
	Actions     []ActionInvocation `json:"actions,omitempty"`
	Submission  map[string]string  `json:"submission,omitempty"`
	ResponseURL string             `json:"response_url,omitempty"`
	TriggerID   string             `json:"trigger_id,omitempty"`

	// State echoes the dialog's state value back on submission.
	State string `json:"state,omitempty"`

	// Menu queries only: the dialog field being completed and the text typed
	// so far.
	Name  string `json:"name,omitempty"`
	Value string `json:"value,omitempty"`
}

const (
	InteractionTypeMessageAction    = "interactive_message"
	InteractionTypeDialogSubmission = "dialog_submission"
)

type PayloadTeam struct {
	ID     string `json:"id"`
	Domain string `json:"domain,omitempty"`
}

type PayloadUser struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ActionInvocation struct {
	Name            string           `json:"name"`
	Type            string           `json:"type,omitempty"`
	Value           string           `json:"value,omitempty"`
	SelectedOptions []SelectedOption `json:"selected_options,omitempty"`
}

type SelectedOption struct {
	Value string `json:"value"`
}

func (p *InteractionPayload) Validate() error {
	if p.Team.ID == "" {
		return fmt.Errorf("InteractionPayload.Validate: missing team.id")
	}

	if p.User.ID == "" {
		return fmt.Errorf("InteractionPayload.Validate: missing user.id")
	}

	if p.CallbackID == "" {
		return fmt.Errorf("InteractionPayload.Validate: missing callback_id")
	}

	return nil
}

// SelectedValue returns the value carried by the first invoked action,
// whether it was a button press or a select-menu choice.
func (p *InteractionPayload) SelectedValue() string {
	if len(p.Actions) == 0 {
		return ""
	}

	action := p.Actions[0]
	if len(action.SelectedOptions) > 0 {
		return action.SelectedOptions[0].Value
	}

	return action.Value
}

// SlashCommand is received from Slack slash commands. The Content-Type is
// x-www-form-urlencoded.
type SlashCommand struct {
	Token       string `schema:"token"`
	TeamID      string `schema:"team_id"`
	TeamDomain  string `schema:"team_domain"`
	ChannelID   string `schema:"channel_id"`
	ChannelName string `schema:"channel_name"`
	UserID      string `schema:"user_id"`
	Username    string `schema:"user_name"`
	Cmd         string `schema:"command"`
	Params      string `schema:"text"`
	ResponseURL string `schema:"response_url"`
	TriggerID   string `schema:"trigger_id"`
}

var slashDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// DecodeSlashCommand decodes and validates a slash-command form body.
func DecodeSlashCommand(form url.Values) (*SlashCommand, error) {
	cmd := new(SlashCommand)
	if err := slashDecoder.Decode(cmd, form); err != nil {
		return nil, fmt.Errorf("DecodeSlashCommand: failed to decode form: %w", err)
	}

	if cmd.Cmd == "" {
		return nil, fmt.Errorf("DecodeSlashCommand: missing command")
	}

	if cmd.TeamID == "" {
		return nil, fmt.Errorf("DecodeSlashCommand: missing team_id")
	}

	if cmd.UserID == "" {
		return nil, fmt.Errorf("DecodeSlashCommand: missing user_id")
	}

	if cmd.ResponseURL == "" {
		return nil, fmt.Errorf("DecodeSlashCommand: missing response_url")
	}

	return cmd, nil
}

// CommandName is the command without its leading slash, the form the command
// registry matches against.
func (c *SlashCommand) CommandName() string {
	return strings.TrimPrefix(c.Cmd, "/")
}
