package conversation

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/checkin"
	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// CommandRunner executes a single-turn command on the user's behalf while a
// flow stays active. The interaction layer provides it at wiring time, which
// keeps this package free of a dependency cycle.
type CommandRunner func(userID, message string) core.InteractionResponse

// Commands usable mid-flow without leaving it.
var inFlowWhitelist = map[string]bool{
	"help": true, "tasks": true, "profile": true, "status": true,
	"analytics": true, "schedule": true, "messages": true,
}

// Reminder period names recognized in free-text replies.
var reminderPeriods = []string{"morning", "afternoon", "evening"}

// Manager owns all flow state transitions. Entry points are serialized by a
// single mutex; persistence follows every mutation.
type Manager struct {
	states   *StateStore
	engine   *checkin.Engine
	users    *store.UserStore
	checkins *store.CheckinStore
	tasks    *store.TaskStore

	inactivity time.Duration
	runner     CommandRunner
	now        func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewManager builds the flow manager. rng drives question selection and must
// be non-nil.
func NewManager(states *StateStore, engine *checkin.Engine, users *store.UserStore, checkins *store.CheckinStore, tasks *store.TaskStore, inactivity time.Duration, rng *rand.Rand) *Manager {
	return &Manager{
		states:     states,
		engine:     engine,
		users:      users,
		checkins:   checkins,
		tasks:      tasks,
		inactivity: inactivity,
		now:        time.Now,
		rng:        rng,
	}
}

// SetCommandRunner installs the mid-flow command executor.
func (m *Manager) SetCommandRunner(r CommandRunner) {
	m.runner = r
}

// HasActiveFlow reports whether the user is mid-flow.
func (m *Manager) HasActiveFlow(userID string) bool {
	_, ok := m.states.Get(userID)
	return ok
}

// StartCheckin begins a check-in, or reports why it cannot.
func (m *Manager) StartCheckin(userID string) core.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCheckinLocked(userID)
}

func (m *Manager) startCheckinLocked(userID string) core.InteractionResponse {
	user, err := m.users.ByID(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("checkin start: user lookup failed")
		return core.NewResponse("I couldn't look up your account just now. Please try again.", true)
	}
	if !user.CheckinsEnabled {
		m.states.Delete(userID)
		return core.NewResponse("Check-ins are not enabled for your account. You can turn them on with `update profile checkins on`.", true)
	}

	if st, ok := m.states.Get(userID); ok && st.Flow == FlowCheckin {
		return core.NewResponse("You already have a check-in in progress. Just answer the last question, or /cancel to stop.", false)
	}

	enabled, err := m.users.EnabledQuestions(userID)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("checkin start: preference load failed")
		return core.NewResponse("I couldn't load your check-in settings just now. Please try again.", true)
	}
	if enabled == nil {
		enabled = m.engine.DefaultEnabledKeys()
	}
	known := enabled[:0]
	for _, key := range enabled {
		if _, ok := m.engine.Question(key); ok {
			known = append(known, key)
		}
	}
	if len(known) == 0 {
		return core.NewResponse("You don't have any check-in questions enabled. Adjust your profile and try again.", true)
	}

	recent, err := m.checkins.Recent(userID, 5)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("checkin start: history load failed")
		recent = nil
	}
	order := SelectQuestions(m.rng, known, m.engine.Categories(), recent)
	if len(order) == 0 {
		return core.NewResponse("I couldn't put a check-in together just now. Please try again.", true)
	}

	m.states.Set(userID, &FlowState{
		Flow:          FlowCheckin,
		State:         StateCheckinStart,
		Data:          make(map[string]any),
		QuestionOrder: order,
		LastActivity:  m.now(),
	})

	intro := fmt.Sprintf(
		"🌤️ Let's do your check-in! Answer each question, type 'skip' to pass, or /cancel to stop.\n\n%s",
		m.engine.Text(order[0]),
	)
	return core.NewResponse(intro, false)
}

// RestartCheckin drops any active flow and starts fresh.
func (m *Manager) RestartCheckin(userID string) core.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states.Delete(userID)
	return m.startCheckinLocked(userID)
}

// ClearFlows removes any active flow for the user.
func (m *Manager) ClearFlows(userID string) core.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states.Delete(userID) {
		return core.NewResponse("🧹 Cleared your active flow. Fresh start!", true)
	}
	return core.NewResponse("No active flows to clear. You're all set.", true)
}

// Cancel ends the current flow. Idempotent: with nothing active it reports so.
func (m *Manager) Cancel(userID string) core.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states.Get(userID)
	if !ok {
		return core.NewResponse("Nothing to cancel. You're all set.", true)
	}
	m.states.Delete(userID)
	if st.Flow == FlowTaskReminder {
		return core.NewResponse("Okay, no reminders for that one.", true)
	}
	return core.NewResponse("No problem, I've cancelled the check-in. We can pick it up anytime.", true)
}

// Abandon silently drops whatever flow is active. Used when an explicit
// command interrupts a flow; the command's own reply covers the user.
func (m *Manager) Abandon(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states.Delete(userID)
}

// ExpireCheckinDueToUnrelatedOutbound silently drops an active check-in when
// an unrelated message is about to go out. No-op otherwise.
func (m *Manager) ExpireCheckinDueToUnrelatedOutbound(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states.Get(userID)
	if !ok || st.Flow != FlowCheckin {
		return
	}
	m.states.Delete(userID)
	logrus.WithField("user_id", userID).Debug("checkin expired by unrelated outbound")
}

// StartTaskReminder begins the one-question reminder follow-up for a new
// task. Returns nil when a flow is already active for the user.
func (m *Manager) StartTaskReminder(userID, taskID string) *core.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.states.Get(userID); ok {
		return nil
	}
	m.states.Set(userID, &FlowState{
		Flow:         FlowTaskReminder,
		State:        StateReminderConfirm,
		Data:         make(map[string]any),
		TaskID:       taskID,
		LastActivity: m.now(),
	})
	resp := core.NewResponse("Want reminders for this task? (yes/no, or name periods like 'morning and evening')", false)
	return &resp
}

// HandleInbound processes a message while a flow is active.
func (m *Manager) HandleInbound(userID, message string) core.InteractionResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states.Get(userID)
	if !ok {
		return core.NewResponse("We're not in the middle of anything. Say `start checkin` to begin one.", true)
	}

	if m.now().Sub(st.LastActivity) > m.inactivity {
		m.states.Delete(userID)
		if st.Flow == FlowTaskReminder {
			return core.NewResponse("That reminder question timed out, but your task is saved. Say `show my tasks` anytime.", true)
		}
		return core.NewResponse("Your check-in expired due to inactivity. Say `start checkin` to begin a fresh one.", true)
	}

	trimmed := strings.TrimSpace(message)
	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "!") {
		return m.prefixedDuringFlow(userID, st, trimmed)
	}

	if st.Flow == FlowTaskReminder {
		return m.reminderAnswer(userID, st, trimmed)
	}
	return m.checkinAnswer(userID, st, message)
}

// prefixedDuringFlow handles slash and bang commands without leaving the
// flow, except for the commands whose purpose is leaving it.
func (m *Manager) prefixedDuringFlow(userID string, st *FlowState, trimmed string) core.InteractionResponse {
	token := strings.ToLower(strings.TrimLeft(strings.Fields(trimmed)[0], "/!"))

	switch token {
	case "cancel":
		m.states.Delete(userID)
		if st.Flow == FlowTaskReminder {
			return core.NewResponse("Okay, no reminders for that one.", true)
		}
		return core.NewResponse("No problem, I've cancelled the check-in. We can pick it up anytime.", true)
	case "clear":
		m.states.Delete(userID)
		return core.NewResponse("🧹 Cleared your active flow. Fresh start!", true)
	case "checkin":
		return m.startCheckinLocked(userID)
	case "restart":
		m.states.Delete(userID)
		return m.startCheckinLocked(userID)
	}

	if inFlowWhitelist[token] {
		if def, ok := command.ByName(token); ok && m.runner != nil {
			resp := m.runner(userID, def.MappedMessage)
			resp.Completed = false
			resp.Message += "\n\n(Your check-in is still active. Answer the last question whenever you're ready.)"
			return resp
		}
	}

	return core.NewResponse(fmt.Sprintf("Unknown command: %s. Your check-in is still active. Answer the question, use /help, or /cancel to stop.", trimmed), false)
}

func (m *Manager) checkinAnswer(userID string, st *FlowState, message string) core.InteractionResponse {
	if st.CurrentQuestionIndex >= len(st.QuestionOrder) {
		// Should have finalized already; recover by closing out.
		m.states.Delete(userID)
		return core.NewResponse("That check-in already wrapped up. Say `start checkin` for a new one.", true)
	}

	key := st.QuestionOrder[st.CurrentQuestionIndex]
	ok, value, errMsg := m.engine.Validate(key, message)
	if !ok {
		return core.NewResponse(errMsg, false)
	}

	st.Data[key] = value
	st.CurrentQuestionIndex++
	st.State = StateCheckinQuestion
	st.LastActivity = m.now()

	if st.CurrentQuestionIndex < len(st.QuestionOrder) {
		m.states.Set(userID, st)
		prev, _ := m.engine.Question(key)
		next, _ := m.engine.Question(st.QuestionOrder[st.CurrentQuestionIndex])
		return core.NewResponse(m.engine.BuildNext(next, prev, value), false)
	}
	return m.finalizeCheckin(userID, st)
}

func (m *Manager) finalizeCheckin(userID string, st *FlowState) core.InteractionResponse {
	payload := make(map[string]any, len(st.Data)+1)
	for k, v := range st.Data {
		payload[k] = v
	}
	payload["questions_asked"] = st.QuestionOrder

	if data, err := json.Marshal(payload); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("checkin payload marshal failed")
	} else if err := m.checkins.Append(userID, string(data)); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Error("checkin payload store failed")
	}

	m.states.Delete(userID)
	return core.NewResponse(completionMessage(st.Data), true)
}

// completionMessage personalizes the wrap-up line from the day's answers.
// Answers are ints live but come back as float64 after a state reload, so
// thresholds go through numericAnswer.
func completionMessage(data map[string]any) string {
	lines := []string{"✅ Check-in complete! Thanks for sharing."}

	if mood, ok := numericAnswer(data["mood"]); ok {
		switch {
		case mood >= 4:
			lines = append(lines, "You're in a good headspace today, keep riding that wave!")
		case mood <= 2:
			lines = append(lines, "Sounds like a heavy day. Be gentle with yourself.")
		}
	}
	if energy, ok := numericAnswer(data["energy"]); ok && energy <= 2 {
		lines = append(lines, "Energy's low, so a short break or a stretch might help.")
	}
	if hours, ok := numericAnswer(data["sleep_hours"]); ok && hours < 6 {
		lines = append(lines, "Try to catch a little more sleep tonight if you can.")
	}

	return strings.Join(lines, " ")
}

func numericAnswer(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func (m *Manager) reminderAnswer(userID string, st *FlowState, trimmed string) core.InteractionResponse {
	periods := extractPeriods(trimmed)
	value, known := checkin.ParseYesNo(trimmed)

	switch {
	case known && !value:
		m.states.Delete(userID)
		return core.NewResponse("Okay, no reminders for this one. You can always ask later.", true)
	case known || len(periods) > 0:
		if len(periods) == 0 {
			periods = []string{"morning"}
		}
		if err := m.tasks.Update(st.TaskID, map[string]any{"reminder_periods": strings.Join(periods, ",")}); err != nil {
			logrus.WithError(err).WithField("task_id", st.TaskID).Warn("reminder periods save failed")
			m.states.Delete(userID)
			return core.NewResponse("I couldn't save the reminder settings, but your task is safe.", true)
		}
		m.states.Delete(userID)
		return core.NewResponse(fmt.Sprintf("🔔 I'll remind you in the %s. You've got this!", strings.Join(periods, " and ")), true)
	default:
		return core.NewResponse("Just a quick yes or no: want reminders for this task?", false)
	}
}

func extractPeriods(message string) []string {
	lowered := strings.ToLower(message)
	var out []string
	for _, p := range reminderPeriods {
		if strings.Contains(lowered, p) {
			out = append(out, p)
		}
	}
	return out
}

// SweepStale silently drops flows idle beyond the inactivity threshold and
// returns how many were removed.
func (m *Manager) SweepStale() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, userID := range m.states.Users() {
		st, ok := m.states.Get(userID)
		if !ok {
			continue
		}
		if m.now().Sub(st.LastActivity) > m.inactivity {
			m.states.Delete(userID)
			removed++
		}
	}
	if removed > 0 {
		logrus.WithField("count", removed).Info("swept stale conversation flows")
	}
	return removed
}
