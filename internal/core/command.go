package core

// ParseMethod records how a parsed command was produced.
type ParseMethod string

const (
	ParseRuleBased          ParseMethod = "rule_based"
	ParseAICommand          ParseMethod = "ai_command"
	ParseAICommandClarified ParseMethod = "ai_command_clarified"
)

// IntentUnknown is returned when no rule matches an utterance.
const IntentUnknown = "unknown"

// ParsedCommand is a classified user utterance.
type ParsedCommand struct {
	Intent          string         `json:"intent"`
	Entities        map[string]any `json:"entities"`
	Confidence      float64        `json:"confidence"`
	OriginalMessage string         `json:"original_message"`
}

// NewParsedCommand creates a ParsedCommand with a non-nil entity map.
func NewParsedCommand(intent string, entities map[string]any, confidence float64, original string) ParsedCommand {
	if entities == nil {
		entities = make(map[string]any)
	}
	return ParsedCommand{
		Intent:          intent,
		Entities:        entities,
		Confidence:      confidence,
		OriginalMessage: original,
	}
}

// StringEntity returns the named entity as a string, or "" when it is absent
// or not a string.
func (c ParsedCommand) StringEntity(key string) string {
	if v, ok := c.Entities[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ParsingResult couples a parsed command with the method that produced it.
type ParsingResult struct {
	Command    ParsedCommand `json:"parsed_command"`
	Confidence float64       `json:"confidence"`
	Method     ParseMethod   `json:"method"`
}
