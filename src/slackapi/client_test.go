package slackapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martindstone/martbot/src/models"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)

	return &Client{
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
	}, server
}

func TestPostMessageSendsTokenAndBody(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	err := client.PostMessage(context.Background(), "xoxb-bot", "C0001", "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, "/chat.postMessage", gotPath)
	assert.Equal(t, "Bearer xoxb-bot", gotAuth)
	assert.Equal(t, "C0001", gotBody["channel"])
	assert.Equal(t, "hello", gotBody["text"])
	assert.NotContains(t, gotBody, "attachments")
}

func TestPostEphemeralTargetsUser(t *testing.T) {
	var gotBody map[string]interface{}
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	attachments := []models.Attachment{{Text: "pick one", Color: models.Green}}
	err := client.PostEphemeral(context.Background(), "xoxb-bot", "C0001", "U0001", "", attachments)
	require.NoError(t, err)

	assert.Equal(t, "U0001", gotBody["user"])
	assert.Contains(t, gotBody, "attachments")
}

func TestAPICallSurfacesSlackError(t *testing.T) {
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer server.Close()

	err := client.PostMessage(context.Background(), "xoxb-bot", "C9999", "hello", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_not_found")
}

func TestOpenDialogUsesAppToken(t *testing.T) {
	var gotAuth string
	var gotBody struct {
		TriggerID string        `json:"trigger_id"`
		Dialog    models.Dialog `json:"dialog"`
	}
	client, server := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	dialog := &models.Dialog{
		CallbackID: "trigger",
		Title:      "Create an Incident",
		Elements:   []models.DialogElement{{Name: "service", Label: "Impacted Service", Type: "select"}},
	}
	err := client.OpenDialog(context.Background(), "xoxp-app", "trigger-id-1", dialog)
	require.NoError(t, err)

	assert.Equal(t, "Bearer xoxp-app", gotAuth)
	assert.Equal(t, "trigger-id-1", gotBody.TriggerID)
	assert.Equal(t, "trigger", gotBody.Dialog.CallbackID)
}

func TestRespondPostsToResponseURL(t *testing.T) {
	var gotBody models.SlackResponse
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &gotBody)
	}))
	defer server.Close()

	client := NewClient()
	err := client.Respond(context.Background(), server.URL, &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         "done",
	})
	require.NoError(t, err)

	assert.Equal(t, models.ResponseTypeEphemeral, gotBody.ResponseType)
	assert.Equal(t, "done", gotBody.Text)
}

func TestRespondFailsOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient()
	err := client.Respond(context.Background(), server.URL, &models.SlackResponse{Text: "done"})
	assert.Error(t, err)
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt;", Escape("a & b <c>"))
	assert.Equal(t, "plain", Escape("plain"))
}
