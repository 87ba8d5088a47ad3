// Package dispatcher routes the four inbound Slack shapes (event callbacks,
// interactive actions, menu queries, slash commands) to registered command
// handlers, enforcing the must-be-linked precondition and each shape's timing
// contract.
package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"github.com/martindstone/martbot/src/linker"
	"github.com/martindstone/martbot/src/models"
	"github.com/martindstone/martbot/src/store"
)

// Notifier is the outbound Slack surface the dispatcher itself needs: the
// link invitation when an unlinked user shows up. Satisfied by
// slackapi.Client.
type Notifier interface {
	PostEphemeral(ctx context.Context, botToken, channel, userID, text string, attachments []models.Attachment) error
	Respond(ctx context.Context, responseURL string, response *models.SlackResponse) error
}

// Dispatcher holds the shared pipeline state. One instance serves all four
// endpoints.
type Dispatcher struct {
	Store    store.Store
	Registry *Registry
	Runner   TaskRunner
	Notifier Notifier

	// Host is the public hostname used for the re-link deep link in the
	// invitation message.
	Host string

	// seen deduplicates Events API deliveries by event_id. Slack retries
	// webhooks it believes failed, and an acknowledged-but-retried event must
	// not trigger a handler twice.
	seen *cache.Cache
}

const dedupeTTL = 5 * time.Minute

func New(st store.Store, registry *Registry, runner TaskRunner, notifier Notifier, host string) *Dispatcher {
	return &Dispatcher{
		Store:    st,
		Registry: registry,
		Runner:   runner,
		Notifier: notifier,
		Host:     host,
		seen:     cache.New(dedupeTTL, 2*dedupeTTL),
	}
}

// firstDelivery records the event id and reports whether this is the first
// time it has been seen. cache.Add is a mutex-guarded check-and-set, so two
// concurrent deliveries of the same event cannot both pass.
func (d *Dispatcher) firstDelivery(eventID string) bool {
	if eventID == "" {
		return true
	}

	return d.seen.Add(eventID, struct{}{}, cache.DefaultExpiration) == nil
}

func (d *Dispatcher) linkInvitation(slackTeamID, slackUserID string) []models.Attachment {
	return []models.Attachment{{
		Text:           "Looks like your Slack user isn't mapped to PagerDuty. Map it now?",
		Color:          models.Green,
		AttachmentType: "default",
		Actions: []models.AttachmentAction{{
			Text: "OK",
			Type: "button",
			URL:  linker.RelinkURL(d.Host, slackTeamID, slackUserID),
		}},
	}}
}

// lookup resolves the workspace and the invoking user's link. A nil team
// means the workspace is unknown (log and ignore); a team with a nil or
// needs-relink user means the invitation short circuit applies.
func (d *Dispatcher) lookup(slackTeamID, slackUserID string) (*models.Team, *models.LinkedUser) {
	team, err := d.Store.FindTeam(slackTeamID)
	if err != nil {
		log.Errorf("dispatcher: team lookup failed: %v", err)
		return nil, nil
	}

	if team == nil {
		log.Infof("dispatcher: team %s not found", slackTeamID)
		return nil, nil
	}

	user, err := d.Store.FindUser(slackTeamID, slackUserID)
	if err != nil {
		log.Errorf("dispatcher: user lookup failed: %v", err)
		return team, nil
	}

	return team, user
}

// SlackEventHandler serves POST /slack_event. Slack gives apps 3 seconds to
// respond, so the 200 is written up front and handler work runs on the pool.
func (d *Dispatcher) SlackEventHandler(w http.ResponseWriter, r *http.Request) {
	var req models.SlackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Errorf("SlackEventHandler: failed to decode body: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	if req.Type == models.EventTypeURLVerification {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(req.Challenge))
		return
	}

	w.WriteHeader(http.StatusOK)

	// don't talk to yourself. Bot messages carry a bot_id and no user field,
	// so they must be dropped before validation gets a chance to complain.
	if req.Event != nil && req.Event.IsBotMessage() {
		return
	}

	if err := req.Validate(); err != nil {
		log.Errorf("SlackEventHandler: %v", err)
		return
	}

	if !d.firstDelivery(req.EventID) {
		log.Infof("SlackEventHandler: duplicate delivery of event %s dropped", req.EventID)
		return
	}

	team, user := d.lookup(req.TeamID, req.Event.SenderID())
	if team == nil {
		return
	}

	if user.NeedsRelink() {
		d.inviteToLink(team, req.TeamID, req.Event.SenderID(), req.Event.Channel)
		return
	}

	handler, found := d.Registry.MatchEvent(req.Event.MessageText())
	if !found {
		return
	}

	d.submit(handler.Name(), func() error {
		return handler.SlackEvent(context.Background(), team, user, &req)
	})
}

// SlackActionHandler serves POST /slack_action: button presses, select
// choices, and dialog submissions. Submission validation runs synchronously
// and, on failure, is the HTTP response; everything else runs on the pool.
func (d *Dispatcher) SlackActionHandler(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeInteractionPayload(w, r)
	if !ok {
		return
	}

	team, user := d.lookup(payload.Team.ID, payload.User.ID)
	if team == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if user.NeedsRelink() {
		w.WriteHeader(http.StatusOK)
		d.inviteViaResponseURL(payload.ResponseURL, payload.Team.ID, payload.User.ID)
		return
	}

	if payload.Type == models.InteractionTypeDialogSubmission {
		if validator, found := d.Registry.MatchValidator(payload.CallbackID); found {
			if errs := validator.ValidateSubmission(team, user, payload); errs != nil {
				writeJSON(w, errs)
				return
			}
		}
	}

	w.WriteHeader(http.StatusOK)

	handler, found := d.Registry.MatchAction(payload.CallbackID)
	if !found {
		log.Infof("SlackActionHandler: no handler for callback %q", payload.CallbackID)
		return
	}

	d.submit(handler.Name(), func() error {
		return handler.SlackAction(context.Background(), team, user, payload)
	})
}

// SlackOptionsHandler serves POST /slack_load_options. The UI is blocked on
// this response, so the loader runs synchronously and its result is the body.
func (d *Dispatcher) SlackOptionsHandler(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeInteractionPayload(w, r)
	if !ok {
		return
	}

	team, user := d.lookup(payload.Team.ID, payload.User.ID)
	if team == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if user.NeedsRelink() {
		// A menu query can't carry a link button; signal in the only channel
		// available, the options list itself.
		writeJSON(w, &models.OptionsResponse{Options: []models.SelectOption{{
			Text:  "Your Slack user isn't mapped to PagerDuty.",
			Label: "Your Slack user isn't mapped to PagerDuty.",
			Value: "nothing",
		}}})
		return
	}

	loader, found := d.Registry.MatchOptions(payload.CallbackID)
	if !found {
		log.Infof("SlackOptionsHandler: no loader for callback %q", payload.CallbackID)
		w.WriteHeader(http.StatusOK)
		return
	}

	options, err := loader.SlackLoadOptions(r.Context(), team, user, payload)
	if err != nil {
		log.Errorf("SlackOptionsHandler: %s failed: %v", loader.Name(), err)
		writeJSON(w, &models.OptionsResponse{Options: []models.SelectOption{{
			Text:  "Error talking to PagerDuty.",
			Label: "Error talking to PagerDuty.",
			Value: "nothing",
		}}})
		return
	}

	if options == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	writeJSON(w, options)
}

// SlackCommandHandler serves POST /slack_command. The handler may answer
// synchronously (returned body) or through the response_url; its choice.
func (d *Dispatcher) SlackCommandHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("SlackCommandHandler: failed to parse form: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	cmd, err := models.DecodeSlashCommand(r.Form)
	if err != nil {
		log.Errorf("SlackCommandHandler: %v", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	team, user := d.lookup(cmd.TeamID, cmd.UserID)
	if team == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	if user.NeedsRelink() {
		w.WriteHeader(http.StatusOK)
		d.inviteViaResponseURL(cmd.ResponseURL, cmd.TeamID, cmd.UserID)
		return
	}

	handler, found := d.Registry.MatchSlash(cmd.CommandName())
	if !found {
		w.WriteHeader(http.StatusOK)
		return
	}

	response, err := handler.SlackCommand(r.Context(), team, user, cmd)
	if err != nil {
		log.Errorf("SlackCommandHandler: %s failed: %v", handler.Name(), err)
		writeJSON(w, &models.SlackResponse{
			ResponseType: models.ResponseTypeEphemeral,
			Text:         "Something went wrong talking to PagerDuty. Please try again.",
		})
		return
	}

	if response == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	writeJSON(w, response)
}

func (d *Dispatcher) inviteToLink(team *models.Team, slackTeamID, slackUserID, channel string) {
	attachments := d.linkInvitation(slackTeamID, slackUserID)
	task := func() error {
		return d.Notifier.PostEphemeral(context.Background(), team.SlackBotToken, channel, slackUserID, "", attachments)
	}

	d.submit("link-invitation", task)
}

func (d *Dispatcher) inviteViaResponseURL(responseURL, slackTeamID, slackUserID string) {
	response := &models.SlackResponse{
		ResponseType: models.ResponseTypeEphemeral,
		Text:         "",
		Attachments:  d.linkInvitation(slackTeamID, slackUserID),
	}

	d.submit("link-invitation", func() error {
		return d.Notifier.Respond(context.Background(), responseURL, response)
	})
}

func (d *Dispatcher) submit(name string, task func() error) {
	err := d.Runner.Submit(func() {
		if err := task(); err != nil {
			log.Errorf("dispatcher: %s: %v", name, err)
		}
	})
	if err != nil {
		log.Errorf("dispatcher: could not schedule %s: %v", name, err)
	}
}

func decodeInteractionPayload(w http.ResponseWriter, r *http.Request) (*models.InteractionPayload, bool) {
	if err := r.ParseForm(); err != nil {
		log.Errorf("dispatcher: failed to parse form: %v", err)
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	raw := r.FormValue("payload")
	if raw == "" {
		log.Error("dispatcher: missing payload field")
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	payload := new(models.InteractionPayload)
	if err := json.Unmarshal([]byte(raw), payload); err != nil {
		log.Errorf("dispatcher: failed to decode payload: %v", err)
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	if err := payload.Validate(); err != nil {
		log.Errorf("dispatcher: %v", err)
		w.WriteHeader(http.StatusOK)
		return nil, false
	}

	return payload, true
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("dispatcher: failed to encode response: %v", err)
	}
}
