package handlers

import (
	"fmt"
	"time"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
)

// StatusSource provides the current connection snapshot. The channel adapter
// implements it; handlers never touch adapter internals directly.
type StatusSource interface {
	Snapshot() core.ConnectionSnapshot
}

// StatusHandler reports bot health: connection state, uptime, reconnects.
type StatusHandler struct {
	source    StatusSource
	startedAt time.Time
}

func NewStatusHandler(source StatusSource) *StatusHandler {
	return &StatusHandler{source: source, startedAt: time.Now()}
}

func (h *StatusHandler) CanHandle(intent string) bool {
	return intent == command.IntentStatus
}

func (h *StatusHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	if h.source == nil {
		return core.NewResponse("I'm still starting up. Give me a moment and try again.", true)
	}

	snap := h.source.Snapshot()
	uptime := time.Since(h.startedAt).Round(time.Second)

	health := "⚠️ degraded"
	richType := core.RichTypeWarning
	if snap.Healthy() {
		health = "✅ healthy"
		richType = core.RichTypeSuccess
	}

	msg := fmt.Sprintf("Bot status: %s (%s), up %s.", health, snap.Status, uptime)
	rich := &core.RichPayload{
		Title: "Bot Status",
		Type:  richType,
		Fields: []core.RichField{
			{Name: "Connection", Value: string(snap.Status), Inline: true},
			{Name: "Uptime", Value: uptime.String(), Inline: true},
			{Name: "Reconnect attempts", Value: fmt.Sprintf("%d", snap.ReconnectAttempts), Inline: true},
			{Name: "Ready", Value: fmt.Sprintf("%t", snap.OnReadyFired), Inline: true},
		},
	}
	if !snap.LastHealthCheck.IsZero() {
		rich.Fields = append(rich.Fields, core.RichField{
			Name:   "Last health check",
			Value:  snap.LastHealthCheck.Format("15:04:05"),
			Inline: true,
		})
	}
	return core.NewResponse(msg, true).WithRich(rich)
}

func (h *StatusHandler) Help() string {
	return "Check whether the bot is connected and healthy."
}

func (h *StatusHandler) Examples() []string {
	return []string{"status"}
}
