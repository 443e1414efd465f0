package core

import "time"

// ChannelKind identifies the chat surface a message arrived on or leaves through.
type ChannelKind string

const (
	ChannelDiscord ChannelKind = "discord"
	ChannelEmail   ChannelKind = "email"
	ChannelWebhook ChannelKind = "webhook"
)

// InteractionResponse is the unified reply produced by the interaction pipeline.
// Completed=false means the user is mid-flow or the message is a targeted prompt
// expecting their next reply; Completed=true ends the turn.
type InteractionResponse struct {
	Message     string       `json:"message"`
	Completed   bool         `json:"completed"`
	Rich        *RichPayload `json:"rich_data,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
}

// NewResponse creates an InteractionResponse with just a message.
func NewResponse(message string, completed bool) InteractionResponse {
	return InteractionResponse{Message: message, Completed: completed}
}

// WithRich attaches a rich payload to the response.
func (r InteractionResponse) WithRich(rich *RichPayload) InteractionResponse {
	r.Rich = rich
	return r
}

// WithSuggestions attaches follow-up suggestions to the response.
func (r InteractionResponse) WithSuggestions(suggestions ...string) InteractionResponse {
	r.Suggestions = suggestions
	return r
}

// RichPayload is the channel-agnostic shape of an embed-style reply. The channel
// adapter translates it to provider-specific fields.
type RichPayload struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	Type        string      `json:"type,omitempty"`
	Fields      []RichField `json:"fields,omitempty"`
	Footer      string      `json:"footer,omitempty"`
	Timestamp   *time.Time  `json:"timestamp,omitempty"`
}

// RichField is a single name/value pair inside a RichPayload.
type RichField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Rich payload types understood by the renderer's color map.
const (
	RichTypeSuccess   = "success"
	RichTypeError     = "error"
	RichTypeWarning   = "warning"
	RichTypeInfo      = "info"
	RichTypeTask      = "task"
	RichTypeProfile   = "profile"
	RichTypeSchedule  = "schedule"
	RichTypeAnalytics = "analytics"
)
