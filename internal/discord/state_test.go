package discord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

func TestConnState_StartsUninitialized(t *testing.T) {
	state := NewConnState()
	assert.Equal(t, core.StatusUninitialized, state.Status())
	assert.Equal(t, 0, state.Attempts())
}

func TestConnState_TransitionsAndTerminal(t *testing.T) {
	state := NewConnState()

	state.Set(core.StatusInitializing)
	state.Set(core.StatusConnected)
	assert.Equal(t, core.StatusConnected, state.Status())

	state.Set(core.StatusStopped)
	assert.Equal(t, core.StatusStopped, state.Status())

	state.Set(core.StatusConnected)
	assert.Equal(t, core.StatusStopped, state.Status(), "stopped is terminal")
}

func TestConnState_SelfTransitionKeepsStatus(t *testing.T) {
	state := NewConnState()
	state.Set(core.StatusConnected)
	state.Set(core.StatusConnected)
	assert.Equal(t, core.StatusConnected, state.Status())
}

func TestConnState_SnapshotCarriesMilestones(t *testing.T) {
	state := NewConnState()

	snap := state.Snapshot()
	assert.False(t, snap.EventsRegistered)
	assert.False(t, snap.CommandsRegistered)
	assert.False(t, snap.OnReadyFired)
	assert.True(t, snap.LastHealthCheck.IsZero())
	assert.False(t, snap.Healthy())

	state.MarkEventsRegistered()
	state.MarkCommandsRegistered()
	state.MarkReady()
	state.StampHealthCheck()
	state.Set(core.StatusConnected)

	snap = state.Snapshot()
	assert.True(t, snap.EventsRegistered)
	assert.True(t, snap.CommandsRegistered)
	assert.True(t, snap.OnReadyFired)
	assert.False(t, snap.LastHealthCheck.IsZero())
	assert.True(t, snap.Healthy())
}

func TestShouldReconnect_FreshStateAllows(t *testing.T) {
	state := NewConnState()
	assert.True(t, state.ShouldReconnect(nil))
}

func TestShouldReconnect_CooldownGates(t *testing.T) {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	now := base
	state := NewConnState()
	state.now = func() time.Time { return now }

	state.Set(core.StatusDisconnected)
	assert.False(t, state.ShouldReconnect(nil), "transition stamps the reconnect clock")

	now = base.Add(59 * time.Second)
	assert.False(t, state.ShouldReconnect(nil))

	now = base.Add(61 * time.Second)
	assert.True(t, state.ShouldReconnect(nil))
}

func TestShouldReconnect_BudgetGates(t *testing.T) {
	base := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	now := base
	state := NewConnState()
	state.now = func() time.Time { return now }

	for i := 0; i < defaultMaxReconnects; i++ {
		state.RecordAttempt()
		now = now.Add(2 * time.Minute)
	}
	assert.Equal(t, defaultMaxReconnects, state.Attempts())
	assert.False(t, state.ShouldReconnect(nil))
}

func TestShouldReconnect_RequiresFreshHealthPass(t *testing.T) {
	state := NewConnState()
	assert.False(t, state.ShouldReconnect(func() bool { return false }))
	assert.True(t, state.ShouldReconnect(func() bool { return true }))
}

func TestShouldReconnect_TerminalDenies(t *testing.T) {
	state := NewConnState()
	state.Set(core.StatusStopped)
	assert.False(t, state.ShouldReconnect(nil))
}

func TestSnapshot_DiagnosticsAreACopy(t *testing.T) {
	state := NewConnState()
	state.SetDiagnostic("resolved_with", "8.8.8.8")

	diag := state.Snapshot().Diagnostics
	diag["resolved_with"] = "tampered"

	assert.Equal(t, "8.8.8.8", state.Snapshot().Diagnostics["resolved_with"])
}
