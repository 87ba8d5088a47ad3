// Package linker walks a Slack workspace user through the two chained OAuth
// flows that bind them to a PagerDuty account.
//
// The flow is a state machine held together by redirects and a transient
// LinkSession:
//
//	/slack_install  -> Slack authorize (workspace grant)
//	/code           -> exchange the Slack code, stash results in the session,
//	                   redirect to PagerDuty authorize (identity grant)
//	/pdtoken        -> receive the PagerDuty token, resolve the account,
//	                   write Team + LinkedUser in one transaction
//	/me             -> the re-link entry point: same PagerDuty leg for a user
//	                   in an already-installed workspace
//
// A missing parameter at any boundary restarts the affected leg; nothing is
// ever half-written.
package linker

import (
	"fmt"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/pd"
	"github.com/martindstone/martbot/src/store"
)

const (
	// SlackScopes is the fixed scope set requested on install. Slack's legacy
	// authorize endpoint takes a comma-separated list, so it is one scope
	// string as far as oauth2 is concerned.
	SlackScopes = "bot,commands,chat:write:bot"

	SlackAuthURL  = "https://slack.com/oauth/authorize"
	SlackTokenURL = "https://slack.com/api/oauth.access"

	DefaultPDAuthURL = "https://app.pagerduty.com/oauth/authorize"
)

// Linker owns the OAuth endpoints and writes completed links into the store.
type Linker struct {
	Store    store.Store
	PD       *pd.Client
	Sessions *SessionStore

	// Slack is the workspace-install oauth2 config. Its RedirectURL must
	// point at the /code endpoint on the public hostname.
	Slack *oauth2.Config

	PDAuthURL  string
	PDClientID string
	SlackAppID string

	// Host is the externally visible hostname all redirect URIs resolve
	// against.
	Host string
}

// NewSlackOAuthConfig builds the oauth2 config for the Slack install leg.
func NewSlackOAuthConfig(clientID, clientSecret, host string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  fmt.Sprintf("https://%s/code", host),
		Scopes:       []string{SlackScopes},
		Endpoint: oauth2.Endpoint{
			AuthURL:   SlackAuthURL,
			TokenURL:  SlackTokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// SlackInstallURL is the entry point of the workspace grant.
func (l *Linker) SlackInstallURL() string {
	return l.Slack.AuthCodeURL("")
}

// RelinkURL deep-links a specific workspace member into the re-link flow.
func RelinkURL(host, slackTeamID, slackUserID string) string {
	params := url.Values{}
	params.Set("slack_team_id", slackTeamID)
	params.Set("slack_userid", slackUserID)

	return fmt.Sprintf("https://%s/me?%s", host, params.Encode())
}

func (l *Linker) pdAuthorizeURL(redirectPath string) string {
	params := url.Values{}
	params.Set("client_id", l.PDClientID)
	params.Set("redirect_uri", fmt.Sprintf("https://%s%s", l.Host, redirectPath))
	params.Set("response_type", "token")

	authURL := l.PDAuthURL
	if authURL == "" {
		authURL = DefaultPDAuthURL
	}

	return authURL + "?" + params.Encode()
}

func (l *Linker) appRedirectURL() string {
	return fmt.Sprintf("https://slack.com/app_redirect?app=%s", l.SlackAppID)
}

// InstallHandler starts the workspace grant.
func (l *Linker) InstallHandler(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, l.SlackInstallURL(), http.StatusFound)
}

// CodeHandler receives the Slack authorization code, exchanges it, stashes
// the results in a fresh LinkSession, and sends the browser to PagerDuty.
// Any failure restarts the Slack leg; a team is never persisted here.
func (l *Linker) CodeHandler(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		log.Error("CodeHandler: missing code parameter, restarting slack install")
		http.Redirect(w, r, l.SlackInstallURL(), http.StatusFound)
		return
	}

	tok, err := l.Slack.Exchange(r.Context(), code)
	if err != nil {
		log.Errorf("CodeHandler: code exchange failed: %v", err)
		http.Redirect(w, r, l.SlackInstallURL(), http.StatusFound)
		return
	}

	session := &LinkSession{
		SlackTeamID:   stringExtra(tok, "team_id"),
		SlackUserID:   stringExtra(tok, "user_id"),
		SlackAppToken: tok.AccessToken,
	}

	// Bot credentials arrive nested under "bot" in Slack's oauth.access
	// response.
	if bot, ok := tok.Extra("bot").(map[string]interface{}); ok {
		session.SlackBotToken, _ = bot["bot_access_token"].(string)
		session.SlackBotUserID, _ = bot["bot_user_id"].(string)
	}

	if !session.HasSlackInstall() {
		log.Errorf("CodeHandler: incomplete oauth.access response for team %q, restarting slack install", session.SlackTeamID)
		http.Redirect(w, r, l.SlackInstallURL(), http.StatusFound)
		return
	}

	token := l.Sessions.Issue()
	l.Sessions.Put(token, session)
	SetCookie(w, token)

	http.Redirect(w, r, l.pdAuthorizeURL("/pdtoken"), http.StatusFound)
}

// TokenHandler finalizes an install. PagerDuty delivers the token in the URL
// fragment, which the server cannot see, so the first hit serves a shim page
// that reloads with the fragment as a query string.
func (l *Linker) TokenHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	accessToken := query.Get("access_token")
	if accessToken == "" || query.Get("subdomain") == "" {
		writeShimPage(w)
		return
	}

	session := l.takeSession(r)
	if session == nil || !session.HasSlackInstall() {
		// PagerDuty callback with no Slack results behind it: an abandoned
		// flow. Restart from the workspace grant.
		log.Error("TokenHandler: no slack session data, restarting slack install")
		http.Redirect(w, r, l.SlackInstallURL(), http.StatusFound)
		return
	}

	pdUser, subdomain, err := l.PD.NewTokenSession(accessToken).Me(r.Context())
	if err != nil {
		log.Errorf("TokenHandler: failed to resolve pagerduty identity: %v", err)
		http.Error(w, "Could not reach PagerDuty to finish linking. Please try again.", http.StatusBadGateway)
		return
	}

	team := &models.Team{
		SlackTeamID:    session.SlackTeamID,
		SlackAppToken:  session.SlackAppToken,
		SlackBotToken:  session.SlackBotToken,
		SlackBotUserID: session.SlackBotUserID,
	}
	user := &models.LinkedUser{
		SlackUserID: session.SlackUserID,
		PDUserID:    pdUser.ID,
		PDToken:     accessToken,
		PDSubdomain: subdomain,
	}

	if err := l.Store.Link(team, user); err != nil {
		log.Errorf("TokenHandler: failed to store link: %v", err)
		http.Error(w, "Could not save your account link. Please try again.", http.StatusInternalServerError)
		return
	}

	ClearCookie(w)
	log.Infof("TokenHandler: linked slack user %s in team %s to %s@%s", user.SlackUserID, team.SlackTeamID, user.PDUserID, subdomain)

	http.Redirect(w, r, l.appRedirectURL(), http.StatusFound)
}

// RelinkHandler maps (or re-maps) a single workspace member to a PagerDuty
// account. The workspace's bot credentials are left untouched.
func (l *Linker) RelinkHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if teamID, userID := query.Get("slack_team_id"), query.Get("slack_userid"); teamID != "" && userID != "" {
		// Entry: start a fresh flow, overwriting any prior session state.
		token := l.Sessions.Issue()
		l.Sessions.Put(token, &LinkSession{
			SlackTeamID: teamID,
			SlackUserID: userID,
		})
		SetCookie(w, token)

		http.Redirect(w, r, l.pdAuthorizeURL("/me"), http.StatusFound)
		return
	}

	accessToken := query.Get("access_token")
	if accessToken == "" || query.Get("subdomain") == "" {
		writeShimPage(w)
		return
	}

	session := l.takeSession(r)
	if session == nil || session.SlackTeamID == "" || session.SlackUserID == "" {
		log.Error("RelinkHandler: no session data, restarting slack install")
		http.Redirect(w, r, l.SlackInstallURL(), http.StatusFound)
		return
	}

	pdUser, subdomain, err := l.PD.NewTokenSession(accessToken).Me(r.Context())
	if err != nil {
		log.Errorf("RelinkHandler: failed to resolve pagerduty identity: %v", err)
		http.Error(w, "Could not reach PagerDuty to finish linking. Please try again.", http.StatusBadGateway)
		return
	}

	user := &models.LinkedUser{
		SlackUserID: session.SlackUserID,
		PDUserID:    pdUser.ID,
		PDToken:     accessToken,
		PDSubdomain: subdomain,
	}

	if err := l.Store.UpsertUser(session.SlackTeamID, user); err != nil {
		log.Errorf("RelinkHandler: failed to update mapping: %v", err)
		ClearCookie(w)
		http.Error(w, fmt.Sprintf("Oops, didn't update user mapping for slack user %s", session.SlackUserID), http.StatusInternalServerError)
		return
	}

	ClearCookie(w)
	log.Infof("RelinkHandler: relinked slack user %s in team %s to %s@%s", user.SlackUserID, session.SlackTeamID, user.PDUserID, subdomain)

	http.Redirect(w, r, l.appRedirectURL(), http.StatusFound)
}

// IndexHandler serves the landing page with an install link. Hitting it also
// abandons any in-flight linking session.
func (l *Linker) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if token, ok := ReadCookie(r); ok {
		l.Sessions.Delete(token)
	}
	ClearCookie(w)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, indexPage, l.SlackInstallURL())
}

// takeSession reads and removes the request's session in one step. Sessions
// are single-use: whatever happens next, this flow attempt is over.
func (l *Linker) takeSession(r *http.Request) *LinkSession {
	token, ok := ReadCookie(r)
	if !ok {
		return nil
	}

	session, found := l.Sessions.Get(token)
	if !found {
		return nil
	}

	l.Sessions.Delete(token)
	return session
}

func writeShimPage(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, shimPage)
}

// shimPage converts the URL fragment PagerDuty's implicit grant hands back
// into a query string the server can read.
const shimPage = `<!DOCTYPE html>
<html>
<head><title>Linking your account...</title></head>
<body>
<script>
  window.location.replace(window.location.pathname + "?" + window.location.hash.substring(1));
</script>
</body>
</html>
`

const indexPage = `<!DOCTYPE html>
<html>
<head><title>martbot</title></head>
<body>
<h1>martbot</h1>
<p>A Slack bot for PagerDuty.</p>
<p><a href="%s">Add to Slack</a></p>
</body>
</html>
`

func stringExtra(tok *oauth2.Token, key string) string {
	value, _ := tok.Extra(key).(string)
	return value
}
