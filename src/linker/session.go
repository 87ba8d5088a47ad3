package linker

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const sessionCookieName = "martbot_session"

// sessionTTL bounds how long an abandoned linking flow keeps its state. A
// flow that has not completed within this window restarts from the top.
const sessionTTL = 15 * time.Minute

// LinkSession is the transient state of one linking flow: who is linking and
// the Slack-side OAuth results gathered so far. It lives only in the TTL
// cache while the browser is off at the PagerDuty authorization endpoint, and
// is never written to durable storage.
type LinkSession struct {
	SlackTeamID    string
	SlackUserID    string
	SlackAppToken  string
	SlackBotToken  string
	SlackBotUserID string
}

// HasSlackInstall reports whether the session carries the complete results of
// the Slack install leg.
func (s *LinkSession) HasSlackInstall() bool {
	return s.SlackTeamID != "" && s.SlackUserID != "" && s.SlackBotToken != "" && s.SlackBotUserID != ""
}

// SessionStore issues signed session tokens and stores each token's
// LinkSession with a TTL. The token travels in a cookie; its HMAC signature
// keeps a client from minting or guessing another flow's token.
type SessionStore struct {
	secret   []byte
	sessions *cache.Cache
}

func NewSessionStore(secret string) *SessionStore {
	return &SessionStore{
		secret:   []byte(secret),
		sessions: cache.New(sessionTTL, 2*sessionTTL),
	}
}

func (ss *SessionStore) sign(id string) string {
	mac := hmac.New(sha256.New, ss.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue creates a new signed token with an empty session behind it.
func (ss *SessionStore) Issue() string {
	id := uuid.NewString()
	return id + "." + ss.sign(id)
}

func (ss *SessionStore) verify(token string) (string, bool) {
	id, sig, found := strings.Cut(token, ".")
	if !found {
		return "", false
	}

	if !hmac.Equal([]byte(sig), []byte(ss.sign(id))) {
		return "", false
	}

	return id, true
}

// Put stores the session for a token, replacing whatever was there. A second
// concurrent flow in the same browser simply overwrites the first; last
// redirect wins.
func (ss *SessionStore) Put(token string, session *LinkSession) {
	id, ok := ss.verify(token)
	if !ok {
		return
	}

	ss.sessions.Set(id, session, cache.DefaultExpiration)
}

func (ss *SessionStore) Get(token string) (*LinkSession, bool) {
	id, ok := ss.verify(token)
	if !ok {
		return nil, false
	}

	value, found := ss.sessions.Get(id)
	if !found {
		return nil, false
	}

	return value.(*LinkSession), true
}

// Delete drops the session. Called on both completion and abandonment so no
// state leaks into a later flow.
func (ss *SessionStore) Delete(token string) {
	if id, ok := ss.verify(token); ok {
		ss.sessions.Delete(id)
	}
}

// SetCookie attaches the session token to the browser for the rest of the
// redirect chain.
func SetCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
	})
}

// ClearCookie removes the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
	})
}

// ReadCookie returns the session token carried by the request, if any.
func ReadCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}

	return cookie.Value, true
}
