package handlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
)

func newFullRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	st, userID := newStoreFixture(t)

	reg := NewRegistry(
		NewTaskHandler(st.Tasks(), nil),
		NewProfileHandler(st.Users(), st.Tasks(), st.Checkins()),
		NewScheduleHandler(st.Users(), nil),
		NewAnalyticsHandler(st.Checkins(), st.Tasks()),
		NewMessagesHandler(st.Messages()),
		NewStatusHandler(nil),
	)
	reg.Register(NewHelpHandler(reg))
	return reg, userID
}

func TestRegistry_RoutesEveryParserIntent(t *testing.T) {
	reg, _ := newFullRegistry(t)

	intents := []string{
		command.IntentStart, command.IntentCreateTask, command.IntentListTasks,
		command.IntentCompleteTask, command.IntentDeleteTask, command.IntentUpdateTask,
		command.IntentTaskStats, command.IntentCheckinHistory, command.IntentCheckinStatus,
		command.IntentShowProfile, command.IntentUpdateProfile, command.IntentProfileStats,
		command.IntentShowSchedule, command.IntentScheduleStatus, command.IntentEditSchedule,
		command.IntentShowAnalytics, command.IntentMoodTrends, command.IntentHabitAnalysis,
		command.IntentSleepAnalysis, command.IntentWellnessScore, command.IntentShowMessages,
		command.IntentHelp, command.IntentCommands, command.IntentExamples, command.IntentStatus,
	}
	for _, intent := range intents {
		if _, ok := reg.For(intent); !ok {
			t.Errorf("no handler claims intent %q", intent)
		}
	}
}

func TestRegistry_DispatchUnknownIntent(t *testing.T) {
	reg, userID := newFullRegistry(t)
	resp := reg.Dispatch(userID, cmdWith("teleport", nil))
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "help")
}

func TestHelpHandler_Help(t *testing.T) {
	reg, userID := newFullRegistry(t)
	resp := reg.Dispatch(userID, cmdWith(command.IntentHelp, nil))
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "/checkin")
	assert.Contains(t, resp.Message, "tasks")
}

func TestHelpHandler_Commands(t *testing.T) {
	reg, userID := newFullRegistry(t)
	resp := reg.Dispatch(userID, cmdWith(command.IntentCommands, nil))
	for _, def := range command.Definitions() {
		assert.Contains(t, resp.Message, "/"+def.Name)
	}
}

func TestHelpHandler_Examples(t *testing.T) {
	reg, userID := newFullRegistry(t)
	resp := reg.Dispatch(userID, cmdWith(command.IntentExamples, nil))
	assert.Contains(t, resp.Message, "complete task 1")
	assert.Contains(t, resp.Message, "show profile")
}

func TestHelpHandler_StartGreeting(t *testing.T) {
	reg, userID := newFullRegistry(t)
	resp := reg.Dispatch(userID, cmdWith(command.IntentStart, nil))
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "wellness companion")
	assert.GreaterOrEqual(t, len(resp.Suggestions), 2)
	assert.LessOrEqual(t, len(resp.Suggestions), 5)
}

func TestStatusHandler_WithSnapshot(t *testing.T) {
	snap := core.ConnectionSnapshot{
		Status:          core.StatusConnected,
		OnReadyFired:    true,
		LastHealthCheck: time.Now(),
	}
	h := NewStatusHandler(staticStatus{snap})

	resp := h.Handle("user-1", cmdWith(command.IntentStatus, nil))
	assert.Contains(t, resp.Message, "healthy")
	require.NotNil(t, resp.Rich)
	assert.Equal(t, core.RichTypeSuccess, resp.Rich.Type)
}

func TestStatusHandler_NilSource(t *testing.T) {
	h := NewStatusHandler(nil)
	resp := h.Handle("user-1", cmdWith(command.IntentStatus, nil))
	assert.Contains(t, resp.Message, "starting up")
}

type staticStatus struct {
	snap core.ConnectionSnapshot
}

func (s staticStatus) Snapshot() core.ConnectionSnapshot { return s.snap }
