// Package conversation manages multi-turn flows: check-ins and the
// task-reminder follow-up. Flow state is held in memory and mirrored to a
// JSON file after every mutation.
package conversation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// FlowType names a multi-turn flow.
type FlowType string

const (
	FlowCheckin      FlowType = "CHECKIN"
	FlowTaskReminder FlowType = "TASK_REMINDER"
)

// Flow states.
const (
	StateCheckinStart    = "CHECKIN_START"
	StateCheckinQuestion = "CHECKIN_QUESTION"
	StateReminderConfirm = "REMINDER_CONFIRM"
)

// FlowState is one user's position inside a flow.
type FlowState struct {
	Flow                 FlowType       `json:"flow"`
	State                string         `json:"state"`
	Data                 map[string]any `json:"data"`
	QuestionOrder        []string       `json:"question_order,omitempty"`
	CurrentQuestionIndex int            `json:"current_question_index"`
	LastActivity         time.Time      `json:"last_activity"`
	TaskID               string         `json:"task_id,omitempty"`
}

// StateStore keeps the user id to flow state map and rewrites the backing
// file atomically after every mutation. A corrupt or missing file loads as
// empty, never as an error.
type StateStore struct {
	path string

	mu     sync.Mutex
	states map[string]*FlowState
}

// NewStateStore loads the state file at path, treating load failures as an
// empty map.
func NewStateStore(path string) *StateStore {
	s := &StateStore{
		path:   path,
		states: make(map[string]*FlowState),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).WithField("path", path).Warn("conversation state load failed, starting empty")
		}
		return s
	}
	if err := json.Unmarshal(data, &s.states); err != nil {
		logrus.WithError(err).WithField("path", path).Warn("conversation state corrupt, starting empty")
		s.states = make(map[string]*FlowState)
	}
	return s
}

// Get returns the user's flow state.
func (s *StateStore) Get(userID string) (*FlowState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[userID]
	return st, ok
}

// Set stores the user's flow state and persists.
func (s *StateStore) Set(userID string, st *FlowState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = st
	s.persistLocked()
}

// Delete removes the user's flow state and persists. Reports whether a state
// existed.
func (s *StateStore) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[userID]; !ok {
		return false
	}
	delete(s.states, userID)
	s.persistLocked()
	return true
}

// Persist rewrites the backing file from the current in-memory map.
func (s *StateStore) Persist() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistLocked()
}

// Snapshot returns a deep copy of the state map.
func (s *StateStore) Snapshot() map[string]FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]FlowState, len(s.states))
	for id, st := range s.states {
		out[id] = *st
	}
	return out
}

// Users returns the ids that currently hold a flow state.
func (s *StateStore) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.states))
	for id := range s.states {
		out = append(out, id)
	}
	return out
}

// persistLocked writes the map to a temp file in the target directory and
// renames it over the real file. A failure logs and keeps the in-memory map
// authoritative.
func (s *StateStore) persistLocked() {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		logrus.WithError(err).WithField("path", s.path).Warn("conversation state dir create failed")
		return
	}

	data, err := json.MarshalIndent(s.states, "", "  ")
	if err != nil {
		logrus.WithError(err).Warn("conversation state marshal failed")
		return
	}

	tmp, err := os.CreateTemp(dir, ".conversation_states-*.json")
	if err != nil {
		logrus.WithError(err).WithField("path", s.path).Warn("conversation state temp create failed")
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		logrus.WithError(err).WithField("path", s.path).Warn("conversation state write failed")
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		logrus.WithError(err).WithField("path", s.path).Warn("conversation state close failed")
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		logrus.WithError(err).WithField("path", s.path).Warn("conversation state rename failed")
	}
}
