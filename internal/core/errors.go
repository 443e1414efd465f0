package core

import "fmt"

// ErrorCode represents error codes
type ErrorCode string

const (
	ErrAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrDNSFailed          ErrorCode = "DNS_FAILED"
	ErrNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrNotConnected       ErrorCode = "NOT_CONNECTED"
	ErrSendFailed         ErrorCode = "SEND_FAILED"
	ErrInvalidTarget      ErrorCode = "INVALID_TARGET"
	ErrInvalidConfig      ErrorCode = "INVALID_CONFIG"
	ErrUnknown            ErrorCode = "UNKNOWN"
)

// BotError represents a channel error with additional context
type BotError struct {
	Code        ErrorCode
	Message     string
	Channel     ChannelKind
	Recoverable bool
	Cause       error
	Context     map[string]any
}

// Error returns the error message
func (e *BotError) Error() string {
	if e.Channel != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Channel, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *BotError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to a bot error
func (e *BotError) WithContext(key string, value any) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// WithCause sets the cause of the error
func (e *BotError) WithCause(cause error) *BotError {
	e.Cause = cause
	return e
}

// NewBotError creates a new bot error
func NewBotError(code ErrorCode, message string, recoverable bool) *BotError {
	return &BotError{
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
	}
}

// NewAuthFailedError creates a new authentication failed error
func NewAuthFailedError(channel ChannelKind, message string, cause error) *BotError {
	return &BotError{
		Code:        ErrAuthFailed,
		Message:     message,
		Channel:     channel,
		Recoverable: false,
		Cause:       cause,
	}
}

// NewConnectionFailedError creates a new connection failed error
func NewConnectionFailedError(channel ChannelKind, message string, recoverable bool) *BotError {
	return &BotError{
		Code:        ErrConnectionFailed,
		Message:     message,
		Channel:     channel,
		Recoverable: recoverable,
	}
}

// NewDNSFailedError creates a new DNS resolution error
func NewDNSFailedError(channel ChannelKind, hostname string, cause error) *BotError {
	return &BotError{
		Code:        ErrDNSFailed,
		Message:     fmt.Sprintf("DNS resolution failed for %s", hostname),
		Channel:     channel,
		Recoverable: true,
		Cause:       cause,
		Context:     map[string]any{"hostname": hostname},
	}
}

// NewNetworkUnreachableError creates a new network unreachable error
func NewNetworkUnreachableError(channel ChannelKind, endpoint string, cause error) *BotError {
	return &BotError{
		Code:        ErrNetworkUnreachable,
		Message:     fmt.Sprintf("Network unreachable: %s", endpoint),
		Channel:     channel,
		Recoverable: true,
		Cause:       cause,
		Context:     map[string]any{"endpoint": endpoint},
	}
}

// NewRateLimitedError creates a new rate limited error
func NewRateLimitedError(channel ChannelKind, retryAfter int) *BotError {
	msg := fmt.Sprintf("Rate limit exceeded for channel: %s", channel)
	if retryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %ds)", retryAfter)
	}
	return &BotError{
		Code:        ErrRateLimited,
		Message:     msg,
		Channel:     channel,
		Recoverable: true,
		Context:     map[string]any{"retryAfter": retryAfter},
	}
}

// NewTimeoutError creates a new timeout error
func NewTimeoutError(channel ChannelKind, operation string, timeoutMs int) *BotError {
	return &BotError{
		Code:        ErrTimeout,
		Message:     fmt.Sprintf("Timeout during %s for channel %s (%dms)", operation, channel, timeoutMs),
		Channel:     channel,
		Recoverable: true,
		Context:     map[string]any{"operation": operation, "timeoutMs": timeoutMs},
	}
}

// NewSendFailedError creates a new send failed error
func NewSendFailedError(channel ChannelKind, target string, cause error) *BotError {
	return &BotError{
		Code:        ErrSendFailed,
		Message:     fmt.Sprintf("Failed to send message to %s", target),
		Channel:     channel,
		Recoverable: true,
		Cause:       cause,
		Context:     map[string]any{"target": target},
	}
}

// NewInvalidTargetError creates a new invalid target error
func NewInvalidTargetError(channel ChannelKind, target, reason string) *BotError {
	msg := fmt.Sprintf("Invalid target for channel %s: %s", channel, target)
	if reason != "" {
		msg += fmt.Sprintf(" (%s)", reason)
	}
	return &BotError{
		Code:        ErrInvalidTarget,
		Message:     msg,
		Channel:     channel,
		Recoverable: false,
		Context:     map[string]any{"target": target, "reason": reason},
	}
}

// IsBotError checks if an error is a BotError
func IsBotError(err error) bool {
	_, ok := err.(*BotError)
	return ok
}

// IsRecoverable checks if an error is recoverable
func IsRecoverable(err error) bool {
	if botErr, ok := err.(*BotError); ok {
		return botErr.Recoverable
	}
	return false
}

// GetErrorCode returns the error code from an error
func GetErrorCode(err error) ErrorCode {
	if botErr, ok := err.(*BotError); ok {
		return botErr.Code
	}
	return ErrUnknown
}

// WrapError wraps an error as a BotError if it isn't already
func WrapError(err error, channel ChannelKind, fallbackCode ErrorCode) *BotError {
	if botErr, ok := err.(*BotError); ok {
		return botErr
	}
	if err == nil {
		return nil
	}
	return &BotError{
		Code:        fallbackCode,
		Message:     err.Error(),
		Channel:     channel,
		Recoverable: false,
		Cause:       err,
	}
}
