package core

import "time"

// ConnectionStatus is the channel adapter's connection lifecycle state.
type ConnectionStatus string

const (
	StatusUninitialized  ConnectionStatus = "UNINITIALIZED"
	StatusInitializing   ConnectionStatus = "INITIALIZING"
	StatusConnected      ConnectionStatus = "CONNECTED"
	StatusDisconnected   ConnectionStatus = "DISCONNECTED"
	StatusDNSFailure     ConnectionStatus = "DNS_FAILURE"
	StatusNetworkFailure ConnectionStatus = "NETWORK_FAILURE"
	StatusAuthFailure    ConnectionStatus = "AUTH_FAILURE"
	StatusRateLimited    ConnectionStatus = "RATE_LIMITED"
	StatusGatewayError   ConnectionStatus = "GATEWAY_ERROR"
	StatusUnknownError   ConnectionStatus = "UNKNOWN_ERROR"
	StatusStopped        ConnectionStatus = "STOPPED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ConnectionStatus) IsTerminal() bool {
	return s == StatusStopped
}

// ConnectionSnapshot is a point-in-time copy of the adapter's connection state,
// safe to serialize for status endpoints.
type ConnectionSnapshot struct {
	Status             ConnectionStatus `json:"status"`
	ReconnectAttempts  int              `json:"reconnect_attempts"`
	LastReconnectTime  time.Time        `json:"last_reconnect_time"`
	LastHealthCheck    time.Time        `json:"last_health_check"`
	EventsRegistered   bool             `json:"events_registered"`
	CommandsRegistered bool             `json:"commands_registered"`
	OnReadyFired       bool             `json:"on_ready_fired"`
	Diagnostics        map[string]any   `json:"diagnostics,omitempty"`
}

// Healthy reports whether the snapshot describes a usable connection.
func (s ConnectionSnapshot) Healthy() bool {
	return s.Status == StatusConnected && s.OnReadyFired
}
