package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/martindstone/martbot/src/models"
)

const (
	bucketTeams = "teams" // key: slack team id -> Team JSON
	bucketUsers = "users" // nested bucket per team id; key: slack user id -> LinkedUser JSON
)

// Store is the credential mapping shared by the dispatcher and the linker.
// Finds return (nil, nil) when no record exists; upserts are atomic per key.
type Store interface {
	FindTeam(slackTeamID string) (*models.Team, error)
	FindUser(slackTeamID, slackUserID string) (*models.LinkedUser, error)
	UpsertTeam(team *models.Team) error
	UpsertUser(slackTeamID string, user *models.LinkedUser) error

	// Link writes a team and its linking user in a single transaction; used
	// when an install flow completes so a team can never be observed without
	// its first user.
	Link(team *models.Team, user *models.LinkedUser) error

	Close() error
}

// Bolt is the bbolt-backed Store.
type Bolt struct {
	storage *bbolt.DB
}

// NewBolt opens (or creates) a bolt database at path.
func NewBolt(path string) (*Bolt, error) {
	instance, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("NewBolt: failed to open %s: %w", path, err)
	}

	if err := instance.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketTeams)); err != nil {
			return err
		}

		if _, err := tx.CreateBucketIfNotExists([]byte(bucketUsers)); err != nil {
			return err
		}

		return nil
	}); err != nil {
		_ = instance.Close()

		return nil, fmt.Errorf("NewBolt: failed to create buckets: %w", err)
	}

	return &Bolt{storage: instance}, nil
}

func (b *Bolt) Close() error {
	return b.storage.Close()
}

func (b *Bolt) FindTeam(slackTeamID string) (*models.Team, error) {
	var team *models.Team

	err := b.storage.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket([]byte(bucketTeams)).Get([]byte(slackTeamID))
		if raw == nil {
			return nil
		}

		team = new(models.Team)
		return json.Unmarshal(raw, team)
	})
	if err != nil {
		return nil, fmt.Errorf("FindTeam: %w", err)
	}

	return team, nil
}

func (b *Bolt) FindUser(slackTeamID, slackUserID string) (*models.LinkedUser, error) {
	var user *models.LinkedUser

	err := b.storage.View(func(tx *bbolt.Tx) error {
		teamBucket := tx.Bucket([]byte(bucketUsers)).Bucket([]byte(slackTeamID))
		if teamBucket == nil {
			return nil
		}

		raw := teamBucket.Get([]byte(slackUserID))
		if raw == nil {
			return nil
		}

		user = new(models.LinkedUser)
		return json.Unmarshal(raw, user)
	})
	if err != nil {
		return nil, fmt.Errorf("FindUser: %w", err)
	}

	return user, nil
}

func (b *Bolt) UpsertTeam(team *models.Team) error {
	if err := team.Validate(); err != nil {
		return fmt.Errorf("UpsertTeam: %w", err)
	}

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		return putTeam(tx, team)
	})
	if err != nil {
		return fmt.Errorf("UpsertTeam: %w", err)
	}

	return nil
}

// UpsertUser replaces the user mapping for user.SlackUserID within the team,
// or inserts it if absent. The team must already exist. Storage is keyed by
// slack user id, so the whole find-and-replace happens under one write
// transaction and concurrent link attempts cannot produce duplicates.
func (b *Bolt) UpsertUser(slackTeamID string, user *models.LinkedUser) error {
	if err := user.Validate(); err != nil {
		return fmt.Errorf("UpsertUser: %w", err)
	}

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(bucketTeams)).Get([]byte(slackTeamID)) == nil {
			return fmt.Errorf("team %s not found", slackTeamID)
		}

		return putUser(tx, slackTeamID, user)
	})
	if err != nil {
		return fmt.Errorf("UpsertUser: %w", err)
	}

	return nil
}

func (b *Bolt) Link(team *models.Team, user *models.LinkedUser) error {
	if err := team.Validate(); err != nil {
		return fmt.Errorf("Link: %w", err)
	}

	if err := user.Validate(); err != nil {
		return fmt.Errorf("Link: %w", err)
	}

	err := b.storage.Update(func(tx *bbolt.Tx) error {
		if err := putTeam(tx, team); err != nil {
			return err
		}

		return putUser(tx, team.SlackTeamID, user)
	})
	if err != nil {
		return fmt.Errorf("Link: %w", err)
	}

	return nil
}

func putTeam(tx *bbolt.Tx, team *models.Team) error {
	raw, err := json.Marshal(team)
	if err != nil {
		return err
	}

	return tx.Bucket([]byte(bucketTeams)).Put([]byte(team.SlackTeamID), raw)
}

func putUser(tx *bbolt.Tx, slackTeamID string, user *models.LinkedUser) error {
	teamBucket, err := tx.Bucket([]byte(bucketUsers)).CreateBucketIfNotExists([]byte(slackTeamID))
	if err != nil {
		return err
	}

	// Fail closed if a record for this slack user somehow exists under a
	// different key. Guessing which record to replace would corrupt the
	// mapping further.
	key := []byte(user.SlackUserID)
	cursor := teamBucket.Cursor()
	for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
		if bytes.Equal(k, key) {
			continue
		}

		var existing models.LinkedUser
		if err := json.Unmarshal(v, &existing); err != nil {
			return fmt.Errorf("corrupt user record %q in team %s: %w", k, slackTeamID, err)
		}

		if existing.SlackUserID == user.SlackUserID {
			return fmt.Errorf("multiple records for slack user %s in team %s", user.SlackUserID, slackTeamID)
		}
	}

	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}

	return teamBucket.Put(key, raw)
}
