package dispatcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martindstone/martbot/src/models"
)

type eventOnly struct {
	PatternSet
}

func (c *eventOnly) SlackEvent(ctx context.Context, team *models.Team, user *models.LinkedUser, req *models.SlackEventRequest) error {
	return nil
}

type actionOnly struct {
	PatternSet
}

func (c *actionOnly) SlackAction(ctx context.Context, team *models.Team, user *models.LinkedUser, payload *models.InteractionPayload) error {
	return nil
}

func TestPatternSetStripsMentionPrefix(t *testing.T) {
	p := NewPatternSet("incidents", `^incidents`)

	assert.True(t, p.Matches("incidents"))
	assert.True(t, p.Matches("<@U0BOT> incidents"))
	assert.False(t, p.Matches("open incidents"))
}

func TestPatternSetMatchesAnyPattern(t *testing.T) {
	p := NewPatternSet("whoami", `^whoami`, `who am i`)

	assert.True(t, p.Matches("whoami"))
	assert.True(t, p.Matches("hey, who am i?"))
	assert.False(t, p.Matches("who is on call"))
}

func TestRegistryMatchesInRegistrationOrder(t *testing.T) {
	first := &eventOnly{PatternSet: NewPatternSet("first", `^inc`)}
	second := &eventOnly{PatternSet: NewPatternSet("second", `^incidents`)}

	r := NewRegistry()
	r.Register(first)
	r.Register(second)

	handler, found := r.MatchEvent("incidents")
	require.True(t, found)
	assert.Equal(t, "first", handler.Name())
}

func TestRegistrySkipsCommandsWithoutCapability(t *testing.T) {
	buttons := &actionOnly{PatternSet: NewPatternSet("buttons", `^incidents`)}
	messages := &eventOnly{PatternSet: NewPatternSet("messages", `^incidents`)}

	r := NewRegistry()
	r.Register(buttons)
	r.Register(messages)

	handler, found := r.MatchEvent("incidents")
	require.True(t, found)
	assert.Equal(t, "messages", handler.Name())

	action, found := r.MatchAction("incidents")
	require.True(t, found)
	assert.Equal(t, "buttons", action.Name())
}

func TestRegistryNoMatch(t *testing.T) {
	r := NewRegistry()
	r.Register(&eventOnly{PatternSet: NewPatternSet("incidents", `^incidents`)})

	_, found := r.MatchEvent("the weather today")
	assert.False(t, found)

	_, found = r.MatchSlash("incidents")
	assert.False(t, found)
}
