package linker

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	ss := NewSessionStore("secret")

	token := ss.Issue()
	ss.Put(token, &LinkSession{SlackTeamID: "T0001", SlackUserID: "U0001"})

	session, found := ss.Get(token)
	require.True(t, found)
	assert.Equal(t, "T0001", session.SlackTeamID)
	assert.Equal(t, "U0001", session.SlackUserID)
}

func TestSessionStoreRejectsTamperedToken(t *testing.T) {
	ss := NewSessionStore("secret")

	token := ss.Issue()
	ss.Put(token, &LinkSession{SlackTeamID: "T0001", SlackUserID: "U0001"})

	id, _, found := strings.Cut(token, ".")
	require.True(t, found)

	_, ok := ss.Get(id + ".deadbeef")
	assert.False(t, ok)

	_, ok = ss.Get(id)
	assert.False(t, ok)
}

func TestSessionStoreRejectsForeignSignature(t *testing.T) {
	mine := NewSessionStore("secret")
	theirs := NewSessionStore("other-secret")

	token := theirs.Issue()
	mine.Put(token, &LinkSession{SlackTeamID: "T0001"})

	_, found := mine.Get(token)
	assert.False(t, found)
}

func TestSessionStoreDelete(t *testing.T) {
	ss := NewSessionStore("secret")

	token := ss.Issue()
	ss.Put(token, &LinkSession{SlackTeamID: "T0001"})
	ss.Delete(token)

	_, found := ss.Get(token)
	assert.False(t, found)
}

func TestHasSlackInstall(t *testing.T) {
	complete := &LinkSession{
		SlackTeamID:    "T0001",
		SlackUserID:    "U0001",
		SlackAppToken:  "xoxp-app",
		SlackBotToken:  "xoxb-bot",
		SlackBotUserID: "U0BOT",
	}
	assert.True(t, complete.HasSlackInstall())

	missingBot := &LinkSession{SlackTeamID: "T0001", SlackUserID: "U0001"}
	assert.False(t, missingBot.HasSlackInstall())
}

func TestCookieRoundTrip(t *testing.T) {
	w := httptest.NewRecorder()
	SetCookie(w, "token-value")

	r := httptest.NewRequest(http.MethodGet, "/pdtoken", nil)
	for _, cookie := range w.Result().Cookies() {
		r.AddCookie(cookie)
	}

	token, ok := ReadCookie(r)
	require.True(t, ok)
	assert.Equal(t, "token-value", token)
}

func TestClearCookieExpires(t *testing.T) {
	w := httptest.NewRecorder()
	ClearCookie(w)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}
