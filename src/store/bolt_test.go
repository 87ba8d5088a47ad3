package store

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martindstone/martbot/src/models"
)

func newTestStore(t *testing.T) *Bolt {
	t.Helper()

	b, err := NewBolt(filepath.Join(t.TempDir(), "martbot.bolt"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = b.Close()
	})

	return b
}

func testTeam() *models.Team {
	return &models.Team{
		SlackTeamID:    "T0001",
		SlackAppToken:  "xoxp-app",
		SlackBotToken:  "xoxb-bot",
		SlackBotUserID: "U0BOT",
	}
}

func testUser() *models.LinkedUser {
	return &models.LinkedUser{
		SlackUserID: "U0001",
		PDUserID:    "PDU01",
		PDToken:     "pd-token-1",
		PDSubdomain: "acme",
	}
}

func TestFindTeamAbsent(t *testing.T) {
	b := newTestStore(t)

	team, err := b.FindTeam("T9999")
	assert.NoError(t, err)
	assert.Nil(t, team)
}

func TestUpsertTeamRejectsMissingBotCredentials(t *testing.T) {
	b := newTestStore(t)

	team := testTeam()
	team.SlackBotToken = ""

	err := b.UpsertTeam(team)
	assert.Error(t, err)

	found, err := b.FindTeam(team.SlackTeamID)
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestUpsertTeamRoundTrip(t *testing.T) {
	b := newTestStore(t)

	team := testTeam()
	require.NoError(t, b.UpsertTeam(team))

	found, err := b.FindTeam(team.SlackTeamID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, team, found)
}

func TestUpsertUserRequiresTeam(t *testing.T) {
	b := newTestStore(t)

	err := b.UpsertUser("T0001", testUser())
	assert.Error(t, err)
}

func TestUpsertUserReplacesExistingMapping(t *testing.T) {
	b := newTestStore(t)

	require.NoError(t, b.UpsertTeam(testTeam()))
	require.NoError(t, b.UpsertUser("T0001", testUser()))

	relinked := testUser()
	relinked.PDToken = "pd-token-2"
	relinked.PDSubdomain = "globex"
	require.NoError(t, b.UpsertUser("T0001", relinked))

	found, err := b.FindUser("T0001", "U0001")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "pd-token-2", found.PDToken)
	assert.Equal(t, "globex", found.PDSubdomain)
}

func TestFindUserScopedToTeam(t *testing.T) {
	b := newTestStore(t)

	require.NoError(t, b.UpsertTeam(testTeam()))
	require.NoError(t, b.UpsertUser("T0001", testUser()))

	found, err := b.FindUser("T0002", "U0001")
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestLinkWritesTeamAndUserTogether(t *testing.T) {
	b := newTestStore(t)

	require.NoError(t, b.Link(testTeam(), testUser()))

	team, err := b.FindTeam("T0001")
	require.NoError(t, err)
	require.NotNil(t, team)

	user, err := b.FindUser("T0001", "U0001")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "acme", user.PDSubdomain)
}

func TestLinkRejectsIncompleteUser(t *testing.T) {
	b := newTestStore(t)

	user := testUser()
	user.PDToken = ""

	err := b.Link(testTeam(), user)
	assert.Error(t, err)

	team, err := b.FindTeam("T0001")
	assert.NoError(t, err)
	assert.Nil(t, team)
}

func TestConcurrentUpsertsProduceSingleRecord(t *testing.T) {
	b := newTestStore(t)
	require.NoError(t, b.UpsertTeam(testTeam()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := testUser()
			_ = b.UpsertUser("T0001", user)
		}()
	}
	wg.Wait()

	found, err := b.FindUser("T0001", "U0001")
	require.NoError(t, err)
	require.NotNil(t, found)
}
