package handlers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacfogel/MHM-sub009/internal/command"
)

func TestLoadPeriods(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		periods, err := LoadPeriods(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Len(t, periods, 3)
		assert.Equal(t, "morning", periods[0].Name)
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "periods.yaml")
		content := "- name: dawn\n  start: \"05:00\"\n  end: \"08:00\"\n  categories: [messages]\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		periods, err := LoadPeriods(path)
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, "dawn", periods[0].Name)
		assert.Equal(t, []string{"messages"}, periods[0].Categories)
	})

	t.Run("json file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "periods.json")
		content := `[{"name":"night","start":"21:00","end":"23:00","categories":["messages"]}]`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		periods, err := LoadPeriods(path)
		require.NoError(t, err)
		require.Len(t, periods, 1)
		assert.Equal(t, "night", periods[0].Name)
	})

	t.Run("malformed yaml errors", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "periods.yaml")
		require.NoError(t, os.WriteFile(path, []byte(": not yaml ["), 0o644))
		_, err := LoadPeriods(path)
		assert.Error(t, err)
	})
}

func TestScheduleHandler_Show(t *testing.T) {
	st, userID := newStoreFixture(t)
	h := NewScheduleHandler(st.Users(), nil)

	resp := h.Handle(userID, cmdWith(command.IntentShowSchedule, nil))
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "morning")
	assert.Contains(t, resp.Message, "check-ins")
	require.NotNil(t, resp.Rich)
	assert.Len(t, resp.Rich.Fields, 3)
}

func TestScheduleHandler_EditToggles(t *testing.T) {
	st, userID := newStoreFixture(t)
	h := NewScheduleHandler(st.Users(), nil)

	// Morning tasks default on; first edit turns them off.
	resp := h.Handle(userID, cmdWith(command.IntentEditSchedule, map[string]any{
		"period_name": "morning",
		"category":    "tasks",
	}))
	assert.Contains(t, resp.Message, "off")

	pref, err := st.Users().Preference(userID, "schedule.morning.tasks")
	require.NoError(t, err)
	assert.False(t, pref.Bool())

	// Second edit flips back on.
	resp = h.Handle(userID, cmdWith(command.IntentEditSchedule, map[string]any{
		"period_name": "morning",
		"category":    "tasks",
	}))
	assert.Contains(t, resp.Message, "on")
}

func TestScheduleHandler_EditRejectsUnknowns(t *testing.T) {
	st, userID := newStoreFixture(t)
	h := NewScheduleHandler(st.Users(), nil)

	resp := h.Handle(userID, cmdWith(command.IntentEditSchedule, map[string]any{
		"period_name": "midnight",
		"category":    "tasks",
	}))
	assert.Contains(t, resp.Message, "don't know a period")

	resp = h.Handle(userID, cmdWith(command.IntentEditSchedule, map[string]any{
		"period_name": "morning",
		"category":    "parties",
	}))
	assert.Contains(t, resp.Message, "isn't a schedule category")
}

func TestScheduleHandler_Status(t *testing.T) {
	st, userID := newStoreFixture(t)
	h := NewScheduleHandler(st.Users(), nil)
	h.now = func() time.Time {
		return time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	}

	resp := h.Handle(userID, cmdWith(command.IntentScheduleStatus, nil))
	assert.Contains(t, resp.Message, "morning period")

	h.now = func() time.Time {
		return time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	}
	resp = h.Handle(userID, cmdWith(command.IntentScheduleStatus, nil))
	assert.Contains(t, resp.Message, "outside your scheduled periods")
}
