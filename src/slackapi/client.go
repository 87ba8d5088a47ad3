package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/martindstone/martbot/src/models"
)

const DefaultBaseURL = "https://slack.com/api"

// Client calls the Slack Web API with a bot or app token, and posts reply
// bodies to response_urls. Both are interchangeable reply channels; handlers
// pick whichever the inbound shape supports.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (c *Client) apiCall(ctx context.Context, token, method string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("apiCall (Marshal): %w", err)
	}

	requestURL := fmt.Sprintf("%s/%s", strings.TrimSuffix(c.BaseURL, "/"), method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("apiCall (NewRequest): %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("apiCall (Do): %w", err)
	}

	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("apiCall (ReadAll): %w", err)
	}

	if res.StatusCode >= 400 {
		return fmt.Errorf("apiCall: %s returned http %d", method, res.StatusCode)
	}

	var api apiResponse
	if err := json.Unmarshal(raw, &api); err != nil {
		return fmt.Errorf("apiCall (Unmarshal): %w", err)
	}

	if !api.OK {
		return fmt.Errorf("apiCall: %s failed: %s", method, api.Error)
	}

	return nil
}

// PostMessage posts a channel message as the bot.
func (c *Client) PostMessage(ctx context.Context, botToken, channel, text string, attachments []models.Attachment) error {
	body := map[string]interface{}{
		"channel": channel,
		"text":    text,
	}
	if len(attachments) > 0 {
		body["attachments"] = attachments
	}

	return c.apiCall(ctx, botToken, "chat.postMessage", body)
}

// PostEphemeral posts a message only the given user can see.
func (c *Client) PostEphemeral(ctx context.Context, botToken, channel, userID, text string, attachments []models.Attachment) error {
	body := map[string]interface{}{
		"channel": channel,
		"user":    userID,
		"text":    text,
	}
	if len(attachments) > 0 {
		body["attachments"] = attachments
	}

	return c.apiCall(ctx, botToken, "chat.postEphemeral", body)
}

// OpenDialog opens a modal dialog against a user interaction's trigger_id.
// Dialogs are opened with the app-level token, not the bot token.
func (c *Client) OpenDialog(ctx context.Context, appToken, triggerID string, dialog *models.Dialog) error {
	return c.apiCall(ctx, appToken, "dialog.open", map[string]interface{}{
		"trigger_id": triggerID,
		"dialog":     dialog,
	})
}

// Respond posts a reply body to the response_url supplied in an inbound
// payload.
func (c *Client) Respond(ctx context.Context, responseURL string, response *models.SlackResponse) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("Respond (Marshal): %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("Respond (NewRequest): %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("Respond (Do): %w", err)
	}

	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return fmt.Errorf("Respond: response_url returned http %d", res.StatusCode)
	}

	return nil
}

// Escape escapes the three characters Slack message markup reserves.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
