package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeUserState struct {
	activeTasks     bool
	checkinsEnabled bool
	checkinHistory  bool
}

func (f fakeUserState) HasActiveTasks(string) bool   { return f.activeTasks }
func (f fakeUserState) CheckinsEnabled(string) bool  { return f.checkinsEnabled }
func (f fakeUserState) HasCheckinHistory(string) bool { return f.checkinHistory }

func TestSuggestions_CapsAtFive(t *testing.T) {
	p := NewParser(nil)
	got := p.Suggestions("anything at all", "user-1")
	assert.Len(t, got, MaxSuggestions)
}

func TestSuggestions_RanksByCloseness(t *testing.T) {
	p := NewParser(nil)
	got := p.Suggestions("show tasks", "user-1")
	assert.Equal(t, "show my tasks", got[0])
}

func TestSuggestions_StateBoosts(t *testing.T) {
	p := NewParser(fakeUserState{checkinsEnabled: true})
	got := p.Suggestions("zzz", "user-1")
	assert.Equal(t, "start checkin", got[0])

	p = NewParser(fakeUserState{activeTasks: true})
	got = p.Suggestions("zzz", "user-1")
	assert.Equal(t, "show my tasks", got[0])
}

func TestSuggestions_NilStateFallsBackToPoolOrder(t *testing.T) {
	p := NewParser(nil)
	got := p.Suggestions("zzz", "")
	assert.Equal(t, []string{
		"help",
		"show my tasks",
		"create task <title>",
		"complete task <number>",
		"start checkin",
	}, got)
}
