package discord

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

const (
	defaultMaxReconnects     = 10
	defaultReconnectCooldown = 60 * time.Second
)

// ConnState tracks the connection lifecycle, reconnect budget, registration
// milestones, and a small diagnostics map surfaced through the status
// endpoint.
type ConnState struct {
	mu            sync.Mutex
	status        core.ConnectionStatus
	attempts      int
	maxAttempts   int
	cooldown      time.Duration
	lastReconnect time.Time

	eventsRegistered   bool
	commandsRegistered bool
	onReadyFired       bool
	lastHealthCheck    time.Time

	diagnostics map[string]any

	now func() time.Time
}

// NewConnState starts in UNINITIALIZED with the default reconnect budget.
func NewConnState() *ConnState {
	return &ConnState{
		status:      core.StatusUninitialized,
		maxAttempts: defaultMaxReconnects,
		cooldown:    defaultReconnectCooldown,
		diagnostics: make(map[string]any),
		now:         time.Now,
	}
}

// Set moves to the given status. Every transition stamps the reconnect clock;
// the status change itself is logged exactly once (self-transitions stay
// silent, which keeps the periodic health confirmations out of the log).
func (c *ConnState) Set(status core.ConnectionStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.IsTerminal() && status != c.status {
		return
	}
	c.lastReconnect = c.now()
	if status == c.status {
		return
	}
	logrus.WithFields(logrus.Fields{
		"from": string(c.status),
		"to":   string(status),
	}).Info("connection status changed")
	c.status = status
}

// Status returns the current state.
func (c *ConnState) Status() core.ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// MarkEventsRegistered notes that the gateway event handlers are attached.
func (c *ConnState) MarkEventsRegistered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventsRegistered = true
}

// MarkCommandsRegistered notes that the slash commands were pushed.
func (c *ConnState) MarkCommandsRegistered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commandsRegistered = true
}

// MarkReady notes that the gateway ready event arrived at least once.
func (c *ConnState) MarkReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onReadyFired = true
}

// StampHealthCheck records when the last full health probe ran.
func (c *ConnState) StampHealthCheck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastHealthCheck = c.now()
}

// SetDiagnostic records one key in the diagnostics map.
func (c *ConnState) SetDiagnostic(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.diagnostics[key] = value
}

// Diagnostics returns a copy of the diagnostics map.
func (c *ConnState) Diagnostics() map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]any, len(c.diagnostics))
	for k, v := range c.diagnostics {
		out[k] = v
	}
	return out
}

// Snapshot returns a point-in-time copy of the whole connection state.
func (c *ConnState) Snapshot() core.ConnectionSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	diags := make(map[string]any, len(c.diagnostics))
	for k, v := range c.diagnostics {
		diags[k] = v
	}
	return core.ConnectionSnapshot{
		Status:             c.status,
		ReconnectAttempts:  c.attempts,
		LastReconnectTime:  c.lastReconnect,
		LastHealthCheck:    c.lastHealthCheck,
		EventsRegistered:   c.eventsRegistered,
		CommandsRegistered: c.commandsRegistered,
		OnReadyFired:       c.onReadyFired,
		Diagnostics:        diags,
	}
}

// RecordAttempt counts one manual reconnect against the budget.
func (c *ConnState) RecordAttempt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	c.lastReconnect = c.now()
}

// Attempts returns how many manual reconnects have been spent.
func (c *ConnState) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// ShouldReconnect gates manual reconnection: budget left, cooldown elapsed,
// and a fresh network health pass. The health probe runs last so a denied
// attempt costs nothing.
func (c *ConnState) ShouldReconnect(healthy func() bool) bool {
	c.mu.Lock()
	if c.status.IsTerminal() {
		c.mu.Unlock()
		return false
	}
	if c.attempts >= c.maxAttempts {
		c.mu.Unlock()
		return false
	}
	if !c.lastReconnect.IsZero() && c.now().Sub(c.lastReconnect) < c.cooldown {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	return healthy == nil || healthy()
}
