package conversation

import (
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Jacfogel/MHM-sub009/internal/checkin"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

type fixture struct {
	store  *store.Store
	states *StateStore
	mgr    *Manager
	userID string
	path   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	user, err := st.Users().Create("discord-1", "Test User")
	require.NoError(t, err)

	engine, err := checkin.LoadEngine("", rand.New(rand.NewSource(7)))
	require.NoError(t, err)

	path := filepath.Join(dir, "conversation_states.json")
	states := NewStateStore(path)
	mgr := NewManager(states, engine, st.Users(), st.Checkins(), st.Tasks(), 30*time.Minute, rand.New(rand.NewSource(7)))

	return &fixture{store: st, states: states, mgr: mgr, userID: user.ID, path: path}
}

func (f *fixture) enableOnly(t *testing.T, keys ...string) {
	t.Helper()
	require.NoError(t, f.store.Users().SetPreference(f.userID, "enabled_questions", keys))
}

func (f *fixture) currentQuestion(t *testing.T) string {
	t.Helper()
	st, ok := f.states.Get(f.userID)
	require.True(t, ok, "no active flow")
	return st.QuestionOrder[st.CurrentQuestionIndex]
}

func TestStartCheckin(t *testing.T) {
	f := newFixture(t)

	resp := f.mgr.StartCheckin(f.userID)
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "Let's do your check-in")

	st, ok := f.states.Get(f.userID)
	require.True(t, ok)
	assert.Equal(t, FlowCheckin, st.Flow)
	assert.NotEmpty(t, st.QuestionOrder)
	// The intro carries the first question.
	assert.Contains(t, resp.Message, f.mgr.engine.Text(st.QuestionOrder[0]))
}

func TestStartCheckin_DuplicateDoesNotReset(t *testing.T) {
	f := newFixture(t)
	f.enableOnly(t, "mood", "energy")

	f.mgr.StartCheckin(f.userID)
	f.mgr.HandleInbound(f.userID, "4")
	before, _ := f.states.Get(f.userID)
	require.Equal(t, 1, before.CurrentQuestionIndex)

	resp := f.mgr.StartCheckin(f.userID)
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "already have a check-in in progress")

	after, _ := f.states.Get(f.userID)
	assert.Equal(t, 1, after.CurrentQuestionIndex)
}

func TestStartCheckin_DisabledDropsStaleState(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Users().SetCheckinsEnabled(f.userID, false))
	f.states.Set(f.userID, &FlowState{Flow: FlowCheckin, Data: map[string]any{}, LastActivity: time.Now()})

	resp := f.mgr.StartCheckin(f.userID)
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "not enabled")
	assert.False(t, f.mgr.HasActiveFlow(f.userID))
}

func TestCheckin_FullCycleWithSkip(t *testing.T) {
	f := newFixture(t)
	f.enableOnly(t, "mood", "energy", "daily_reflection")

	resp := f.mgr.StartCheckin(f.userID)
	require.False(t, resp.Completed)

	answers := map[string]string{
		"mood":             "4",
		"energy":           "skip",
		"daily_reflection": "Feeling okay today",
	}

	var last core.InteractionResponse
	for i := 0; i < 3; i++ {
		key := f.currentQuestion(t)
		last = f.mgr.HandleInbound(f.userID, answers[key])
		if i < 2 {
			assert.False(t, last.Completed, "answer %d should continue the flow", i+1)
		}
	}

	assert.True(t, last.Completed)
	assert.Contains(t, last.Message, "Check-in complete")
	assert.False(t, f.mgr.HasActiveFlow(f.userID))

	records, err := f.store.Checkins().Recent(f.userID, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)

	payload := records[0].Payload
	assert.Equal(t, int64(4), gjson.Get(payload, "mood").Int())
	assert.Equal(t, "SKIPPED", gjson.Get(payload, "energy").String())
	assert.Equal(t, "Feeling okay today", gjson.Get(payload, "daily_reflection").String())
	assert.Len(t, gjson.Get(payload, "questions_asked").Array(), 3)
}

func TestCheckin_ValidationFailureKeepsState(t *testing.T) {
	f := newFixture(t)
	f.enableOnly(t, "mood", "energy")
	f.mgr.StartCheckin(f.userID)

	key := f.currentQuestion(t)
	resp := f.mgr.HandleInbound(f.userID, "banana")
	assert.False(t, resp.Completed)
	assert.NotEmpty(t, resp.Message)

	st, _ := f.states.Get(f.userID)
	assert.Equal(t, 0, st.CurrentQuestionIndex)
	assert.Equal(t, key, st.QuestionOrder[0])
	assert.Empty(t, st.Data)
}

func TestCheckin_WrittenNumberAnswer(t *testing.T) {
	f := newFixture(t)
	f.enableOnly(t, "mood", "sleep_hours")
	f.mgr.StartCheckin(f.userID)

	answers := map[string]string{
		"mood":        "four",
		"sleep_hours": "seven and a half",
	}
	f.mgr.HandleInbound(f.userID, answers[f.currentQuestion(t)])
	last := f.mgr.HandleInbound(f.userID, answers[f.currentQuestion(t)])
	assert.True(t, last.Completed)

	records, err := f.store.Checkins().Recent(f.userID, 1)
	require.NoError(t, err)
	payload := records[0].Payload
	assert.Equal(t, int64(4), gjson.Get(payload, "mood").Int())
	assert.Equal(t, 7.5, gjson.Get(payload, "sleep_hours").Float())
}

func TestCancel_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.mgr.StartCheckin(f.userID)

	resp := f.mgr.Cancel(f.userID)
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "cancelled the check-in")

	for i := 0; i < 2; i++ {
		resp = f.mgr.Cancel(f.userID)
		assert.True(t, resp.Completed)
		assert.Contains(t, resp.Message, "Nothing to cancel")
	}
}

func TestClearFlows(t *testing.T) {
	f := newFixture(t)

	resp := f.mgr.ClearFlows(f.userID)
	assert.Contains(t, resp.Message, "No active flows")

	f.mgr.StartCheckin(f.userID)
	resp = f.mgr.ClearFlows(f.userID)
	assert.Contains(t, resp.Message, "Cleared")
	assert.False(t, f.mgr.HasActiveFlow(f.userID))

	// Starting again after a clear lands on the first question with no
	// residue from the abandoned flow.
	resp = f.mgr.StartCheckin(f.userID)
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "Let's do your check-in")
	st, ok := f.states.Get(f.userID)
	require.True(t, ok)
	assert.Equal(t, 0, st.CurrentQuestionIndex)
	assert.Empty(t, st.Data)
}

func TestRestartCheckin(t *testing.T) {
	f := newFixture(t)
	f.enableOnly(t, "mood", "energy")

	f.mgr.StartCheckin(f.userID)
	f.mgr.HandleInbound(f.userID, "3")
	mid, _ := f.states.Get(f.userID)
	require.Equal(t, 1, mid.CurrentQuestionIndex)

	resp := f.mgr.RestartCheckin(f.userID)
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "Let's do your check-in")

	fresh, _ := f.states.Get(f.userID)
	assert.Equal(t, 0, fresh.CurrentQuestionIndex)
	assert.Empty(t, fresh.Data)
}

func TestIdleExpiry(t *testing.T) {
	f := newFixture(t)
	f.mgr.StartCheckin(f.userID)

	base := time.Now()
	f.mgr.now = func() time.Time { return base.Add(31 * time.Minute) }

	resp := f.mgr.HandleInbound(f.userID, "4")
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "expired due to inactivity")
	assert.False(t, f.mgr.HasActiveFlow(f.userID))
}

func TestExpireCheckinDueToUnrelatedOutbound(t *testing.T) {
	f := newFixture(t)

	// No-op with nothing active.
	f.mgr.ExpireCheckinDueToUnrelatedOutbound(f.userID)

	f.mgr.StartCheckin(f.userID)
	f.mgr.ExpireCheckinDueToUnrelatedOutbound(f.userID)
	assert.False(t, f.mgr.HasActiveFlow(f.userID))
}

func TestExpire_LeavesReminderFlowAlone(t *testing.T) {
	f := newFixture(t)
	task, err := f.store.Tasks().Create(f.userID, "stretch", "", "")
	require.NoError(t, err)

	require.NotNil(t, f.mgr.StartTaskReminder(f.userID, task.ID))
	f.mgr.ExpireCheckinDueToUnrelatedOutbound(f.userID)
	assert.True(t, f.mgr.HasActiveFlow(f.userID))
}

func TestTaskReminder_Affirmative(t *testing.T) {
	f := newFixture(t)
	task, err := f.store.Tasks().Create(f.userID, "stretch", "", "")
	require.NoError(t, err)

	prompt := f.mgr.StartTaskReminder(f.userID, task.ID)
	require.NotNil(t, prompt)
	assert.Contains(t, prompt.Message, "Want reminders")

	resp := f.mgr.HandleInbound(f.userID, "yes")
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "morning")

	updated, err := f.store.Tasks().Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning", updated.ReminderPeriods)
}

func TestTaskReminder_NamedPeriods(t *testing.T) {
	f := newFixture(t)
	task, err := f.store.Tasks().Create(f.userID, "stretch", "", "")
	require.NoError(t, err)

	require.NotNil(t, f.mgr.StartTaskReminder(f.userID, task.ID))
	resp := f.mgr.HandleInbound(f.userID, "morning and evening please")
	assert.True(t, resp.Completed)

	updated, err := f.store.Tasks().Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "morning,evening", updated.ReminderPeriods)
}

func TestTaskReminder_Negative(t *testing.T) {
	f := newFixture(t)
	task, err := f.store.Tasks().Create(f.userID, "stretch", "", "")
	require.NoError(t, err)

	require.NotNil(t, f.mgr.StartTaskReminder(f.userID, task.ID))
	resp := f.mgr.HandleInbound(f.userID, "no")
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "no reminders")

	updated, err := f.store.Tasks().Get(task.ID)
	require.NoError(t, err)
	assert.Empty(t, updated.ReminderPeriods)
}

func TestTaskReminder_RepromptOnGibberish(t *testing.T) {
	f := newFixture(t)
	task, err := f.store.Tasks().Create(f.userID, "stretch", "", "")
	require.NoError(t, err)

	require.NotNil(t, f.mgr.StartTaskReminder(f.userID, task.ID))
	resp := f.mgr.HandleInbound(f.userID, "purple monkey dishwasher")
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "yes or no")
	assert.True(t, f.mgr.HasActiveFlow(f.userID))
}

func TestTaskReminder_BlockedByActiveFlow(t *testing.T) {
	f := newFixture(t)
	f.mgr.StartCheckin(f.userID)
	assert.Nil(t, f.mgr.StartTaskReminder(f.userID, "task-1"))
}

func TestInFlowWhitelistedCommand(t *testing.T) {
	f := newFixture(t)
	f.mgr.SetCommandRunner(func(userID, message string) core.InteractionResponse {
		return core.NewResponse("YOUR TASKS HERE", true)
	})
	f.mgr.StartCheckin(f.userID)

	resp := f.mgr.HandleInbound(f.userID, "/tasks")
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "YOUR TASKS HERE")
	assert.Contains(t, resp.Message, "check-in is still active")
	assert.True(t, f.mgr.HasActiveFlow(f.userID))
}

func TestInFlowUnknownCommand(t *testing.T) {
	f := newFixture(t)
	f.mgr.StartCheckin(f.userID)

	resp := f.mgr.HandleInbound(f.userID, "/frobnicate")
	assert.False(t, resp.Completed)
	assert.Contains(t, resp.Message, "Unknown command")
	assert.True(t, f.mgr.HasActiveFlow(f.userID))
}

func TestInFlowCancelCommand(t *testing.T) {
	f := newFixture(t)
	f.mgr.StartCheckin(f.userID)

	resp := f.mgr.HandleInbound(f.userID, "/cancel")
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "cancelled the check-in")
	assert.False(t, f.mgr.HasActiveFlow(f.userID))
}

func TestHandleInbound_NoFlow(t *testing.T) {
	f := newFixture(t)
	resp := f.mgr.HandleInbound(f.userID, "hello")
	assert.True(t, resp.Completed)
	assert.Contains(t, resp.Message, "not in the middle of anything")
}

func TestCheckin_ResumesAcrossRestart(t *testing.T) {
	f := newFixture(t)
	f.enableOnly(t, "mood", "energy")

	f.mgr.StartCheckin(f.userID)
	answers := map[string]string{"mood": "4", "energy": "2"}
	f.mgr.HandleInbound(f.userID, answers[f.currentQuestion(t)])

	// Simulate a process restart: reload state from disk into a new manager.
	engine, err := checkin.LoadEngine("", rand.New(rand.NewSource(9)))
	require.NoError(t, err)
	states2 := NewStateStore(f.path)
	mgr2 := NewManager(states2, engine, f.store.Users(), f.store.Checkins(), f.store.Tasks(), 30*time.Minute, rand.New(rand.NewSource(9)))

	st, ok := states2.Get(f.userID)
	require.True(t, ok)
	key := st.QuestionOrder[st.CurrentQuestionIndex]
	last := mgr2.HandleInbound(f.userID, answers[key])
	assert.True(t, last.Completed)
	assert.Contains(t, last.Message, "Check-in complete")

	records, err := f.store.Checkins().Recent(f.userID, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(4), gjson.Get(records[0].Payload, "mood").Int())
	assert.Equal(t, int64(2), gjson.Get(records[0].Payload, "energy").Int())
}
