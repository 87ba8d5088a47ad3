package models

// Green is the accent color the bot uses on every attachment.
const Green = "#25c151"

const (
	ResponseTypeEphemeral = "ephemeral"
	ResponseTypeInChannel = "in_channel"
)

// SlackResponse is an outbound reply body, either posted to a response_url or
// returned synchronously from a slash-command handler.
type SlackResponse struct {
	ResponseType    string       `json:"response_type,omitempty"`
	Text            string       `json:"text"`
	Attachments     []Attachment `json:"attachments,omitempty"`
	ReplaceOriginal bool         `json:"replace_original,omitempty"`
}

type Attachment struct {
	Text           string             `json:"text"`
	Color          string             `json:"color,omitempty"`
	AttachmentType string             `json:"attachment_type,omitempty"`
	CallbackID     string             `json:"callback_id,omitempty"`
	Fields         []AttachmentField  `json:"fields,omitempty"`
	Actions        []AttachmentAction `json:"actions,omitempty"`
}

type AttachmentField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// AttachmentAction is a button or select menu inside an attachment. Buttons
// carry either a value (routed back via callback_id) or a plain link URL.
type AttachmentAction struct {
	Name       string         `json:"name,omitempty"`
	Text       string         `json:"text"`
	Type       string         `json:"type"`
	Value      string         `json:"value,omitempty"`
	URL        string         `json:"url,omitempty"`
	DataSource string         `json:"data_source,omitempty"`
	Options    []SelectOption `json:"options,omitempty"`
}

// SelectOption is one entry of a select menu or menu-query response. Slack
// dialogs expect "label", interactive message select menus expect "text", so
// both are populated.
type SelectOption struct {
	Text  string `json:"text,omitempty"`
	Label string `json:"label,omitempty"`
	Value string `json:"value"`
}

// OptionsResponse is the synchronous body of a menu-query (external select)
// request.
type OptionsResponse struct {
	Options []SelectOption `json:"options"`
}

// ValidationErrors is the synchronous body returned for a dialog submission
// that fails validation; Slack renders each error under its field.
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

type ValidationError struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// Dialog is the modal form opened through dialog.open. State is an opaque
// value Slack echoes back in the submission payload.
type Dialog struct {
	CallbackID  string          `json:"callback_id"`
	Title       string          `json:"title"`
	SubmitLabel string          `json:"submit_label,omitempty"`
	State       string          `json:"state,omitempty"`
	Elements    []DialogElement `json:"elements"`
}

type DialogElement struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	DataSource  string `json:"data_source,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
}
