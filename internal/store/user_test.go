package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserStore_CreateAndResolve(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()

	user, err := users.Create("discord-123", "Jess")
	assert.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.True(t, user.CheckinsEnabled)

	byDiscord, err := users.ByDiscordID("discord-123")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, byDiscord.ID)

	byID, err := users.ByID(user.ID)
	assert.NoError(t, err)
	assert.Equal(t, "discord-123", byID.DiscordID)

	_, err = users.ByDiscordID("missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserStore_MarkWelcomedIdempotent(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()

	user, _ := users.Create("discord-123", "Jess")
	assert.NoError(t, users.MarkWelcomed(user.ID))

	first, _ := users.ByID(user.ID)
	assert.NotNil(t, first.WelcomedAt)

	// Second call must not move the timestamp.
	assert.NoError(t, users.MarkWelcomed(user.ID))
	second, _ := users.ByID(user.ID)
	assert.Equal(t, first.WelcomedAt.Unix(), second.WelcomedAt.Unix())
}

func TestUserStore_UpdateDiscordID(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()

	user, _ := users.Create("discord-123", "Jess")
	assert.NoError(t, users.UpdateDiscordID(user.ID, "discord-456"))

	updated, _ := users.ByID(user.ID)
	assert.Equal(t, "discord-456", updated.DiscordID)

	assert.ErrorIs(t, users.UpdateDiscordID("missing", "x"), ErrUserNotFound)
}

func TestUserStore_Preferences(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()

	user, _ := users.Create("discord-123", "Jess")

	assert.NoError(t, users.SetPreference(user.ID, "reminder_time", "09:00"))
	assert.NoError(t, users.SetPreference(user.ID, "schedule.morning.start", "08:00"))

	value, err := users.Preference(user.ID, "reminder_time")
	assert.NoError(t, err)
	assert.Equal(t, "09:00", value.String())

	nested, err := users.Preference(user.ID, "schedule.morning.start")
	assert.NoError(t, err)
	assert.Equal(t, "08:00", nested.String())

	missing, err := users.Preference(user.ID, "nope")
	assert.NoError(t, err)
	assert.False(t, missing.Exists())
}

func TestUserStore_EnabledQuestions(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()

	user, _ := users.Create("discord-123", "Jess")

	// No explicit selection: nil means catalog defaults.
	keys, err := users.EnabledQuestions(user.ID)
	assert.NoError(t, err)
	assert.Nil(t, keys)

	assert.NoError(t, users.SetPreference(user.ID, "enabled_questions", []string{"mood", "energy", "daily_reflection"}))

	keys, err = users.EnabledQuestions(user.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"mood", "energy", "daily_reflection"}, keys)
}

func TestUserStore_SetCheckinsEnabled(t *testing.T) {
	s := newTestStore(t)
	users := s.Users()

	user, _ := users.Create("discord-123", "Jess")
	assert.NoError(t, users.SetCheckinsEnabled(user.ID, false))

	updated, _ := users.ByID(user.ID)
	assert.False(t, updated.CheckinsEnabled)
}
