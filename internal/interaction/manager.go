// Package interaction fuses the command parser, intent handlers, conversation
// flows, and the AI chatbot into the single reply pipeline behind every
// inbound message.
package interaction

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/handlers"
	"github.com/Jacfogel/MHM-sub009/internal/obs/otel"
)

// Defaults for the tunable knobs.
const (
	DefaultMinConfidence = 0.3
	DefaultMaxAILength   = 1500
)

// maxCommandDepth bounds mapped-message recursion through the command table.
const maxCommandDepth = 4

const (
	emptyMessageReply = "I didn't receive a message. How can I help you today?"
	genericErrorReply = "I'm having trouble processing your request right now. Please try again in a moment."
)

// Chatbot is the slice of the AI client this pipeline consumes. A nil Chatbot
// disables both the low-confidence fallback and response enhancement.
type Chatbot interface {
	GenerateResponse(ctx context.Context, userID, message string) (string, error)
	EnhanceResponse(ctx context.Context, message string) (string, error)
}

// FlowManager is the slice of the conversation flow manager this pipeline
// consumes.
type FlowManager interface {
	HasActiveFlow(userID string) bool
	HandleInbound(userID, message string) core.InteractionResponse
	Cancel(userID string) core.InteractionResponse
	Abandon(userID string)
}

// TaskDeletes is the task handler's two-step deletion surface.
type TaskDeletes interface {
	ConfirmDelete(userID string) core.InteractionResponse
	CancelDelete(userID string)
}

// FlowStarter launches a named flow for a user.
type FlowStarter func(userID string) core.InteractionResponse

// Options tunes the pipeline. Zero values select the defaults.
type Options struct {
	MinConfidence float64
	MaxAILength   int
}

// Explicit command phrasings that interrupt an active flow. Cancellation is
// handled separately so the user still gets a cancellation reply.
var flowBreakPrefixes = []string{
	"update task", "complete task", "delete task", "show tasks", "list tasks",
	"create task", "add task", "new task",
}

var reScheduleShortcut = regexp.MustCompile(`(?i)^edit\s+schedule\s+(?:period\s+)?(\S+)\s+(tasks|check-?ins|messages)\s*$`)

// Intents whose replies may be reworded by the AI. Report-style intents keep
// their exact formatting.
var enhanceableIntents = map[string]bool{
	command.IntentStart:        true,
	command.IntentCreateTask:   true,
	command.IntentCompleteTask: true,
	command.IntentDeleteTask:   true,
	command.IntentUpdateTask:   true,
}

// Manager routes each inbound message: prefix commands, active flows, literal
// shortcuts, rule-based parsing behind a confidence gate, then an optional AI
// fallback, with suggestion augmentation and AI enhancement on the way out.
type Manager struct {
	parser   *command.Parser
	registry *handlers.Registry
	flows    FlowManager

	ai       Chatbot
	deletes  TaskDeletes
	starters map[string]FlowStarter
	tracker  *otel.MessageTracker

	minConfidence float64
	maxAILength   int
}

// NewManager wires the pipeline skeleton. flows must be non-nil; the chatbot,
// task deletes, and flow starters attach afterwards.
func NewManager(parser *command.Parser, registry *handlers.Registry, flows FlowManager, opts Options) *Manager {
	minConf := opts.MinConfidence
	if minConf <= 0 {
		minConf = DefaultMinConfidence
	}
	maxLen := opts.MaxAILength
	if maxLen <= 0 {
		maxLen = DefaultMaxAILength
	}
	return &Manager{
		parser:        parser,
		registry:      registry,
		flows:         flows,
		starters:      make(map[string]FlowStarter),
		minConfidence: minConf,
		maxAILength:   maxLen,
	}
}

// SetChatbot enables the AI fallback and enhancement paths.
func (m *Manager) SetChatbot(ai Chatbot) { m.ai = ai }

// SetTaskDeletes wires the confirm/cancel deletion shortcuts.
func (m *Manager) SetTaskDeletes(d TaskDeletes) { m.deletes = d }

// RegisterStarter binds a flow name from the command table to its starter.
func (m *Manager) RegisterStarter(name string, starter FlowStarter) {
	m.starters[name] = starter
}

// SetTracker wires parse metrics. A nil tracker records nothing.
func (m *Manager) SetTracker(tracker *otel.MessageTracker) { m.tracker = tracker }

// Handle processes one inbound message and always produces a reply; panics
// anywhere below degrade to a generic apology.
func (m *Manager) Handle(userID, message string, channel core.ChannelKind) (resp core.InteractionResponse) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"channel": channel,
				"panic":   r,
			}).Error("interaction pipeline panicked")
			resp = core.NewResponse(genericErrorReply, true)
		}
	}()
	return m.handle(userID, message, channel, 0)
}

// RunCommand executes a single-turn command directly, skipping prefix and
// flow routing. The conversation manager calls it for whitelisted commands
// issued mid-flow, while it still holds the flow lock.
func (m *Manager) RunCommand(userID, message string) core.InteractionResponse {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return core.NewResponse(emptyMessageReply, true)
	}
	result := m.parse(userID, trimmed)
	resp, intent := m.dispatch(userID, result)
	return m.augment(resp, intent)
}

func (m *Manager) handle(userID, message string, channel core.ChannelKind, depth int) core.InteractionResponse {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return core.NewResponse(emptyMessageReply, true)
	}

	if strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, "!") {
		if resp, handled := m.prefixed(userID, trimmed, channel, depth); handled {
			return resp
		}
		// Unknown prefixed token: drop the prefix and parse the remainder.
		trimmed = strings.TrimSpace(trimmed[1:])
		if trimmed == "" {
			return core.NewResponse(emptyMessageReply, true)
		}
	}

	if m.flows.HasActiveFlow(userID) {
		if resp, handled := m.duringFlow(userID, trimmed); handled {
			return resp
		}
		// A command phrase broke the flow; continue to parsing.
	}

	if resp, handled := m.shortcut(userID, trimmed); handled {
		return resp
	}

	result := m.parse(userID, trimmed)
	resp, intent := m.dispatch(userID, result)
	resp = m.augment(resp, intent)
	return m.enhance(userID, intent, resp)
}

// prefixed resolves slash and bang commands. handled=false means the token is
// unknown and the caller should parse the unprefixed remainder.
func (m *Manager) prefixed(userID, trimmed string, channel core.ChannelKind, depth int) (core.InteractionResponse, bool) {
	token := strings.ToLower(strings.TrimLeft(strings.Fields(trimmed)[0], "/!"))
	if token == "" {
		return core.InteractionResponse{}, false
	}

	// Mid-flow the flow manager owns prefixed commands (whitelist, unknown
	// command replies), except cancellation.
	if m.flows.HasActiveFlow(userID) {
		if token == "cancel" {
			return m.cancelEverything(userID), true
		}
		return m.flows.HandleInbound(userID, trimmed), true
	}

	if token == "cancel" {
		return m.cancelEverything(userID), true
	}

	def, known := command.ByName(token)
	if !known {
		return core.InteractionResponse{}, false
	}
	if def.IsFlow {
		return m.startFlow(def.Name, userID), true
	}
	if depth >= maxCommandDepth {
		logrus.WithField("command", def.Name).Error("command table recursion exceeded depth cap")
		return core.NewResponse(genericErrorReply, true), true
	}
	return m.handle(userID, def.MappedMessage, channel, depth+1), true
}

// duringFlow decides whether a plain message belongs to the active flow or
// breaks out of it. handled=false means the flow was abandoned and the
// message should continue through the pipeline.
func (m *Manager) duringFlow(userID, trimmed string) (core.InteractionResponse, bool) {
	lowered := strings.ToLower(trimmed)
	if strings.HasPrefix(lowered, "cancel") {
		return m.cancelEverything(userID), true
	}
	for _, prefix := range flowBreakPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			m.flows.Abandon(userID)
			return core.InteractionResponse{}, false
		}
	}
	return m.flows.HandleInbound(userID, trimmed), true
}

// shortcut handles the few literal phrases that bypass the parser.
func (m *Manager) shortcut(userID, trimmed string) (core.InteractionResponse, bool) {
	lowered := strings.ToLower(trimmed)
	switch lowered {
	case "confirm delete":
		if m.deletes != nil {
			return m.deletes.ConfirmDelete(userID), true
		}
	case "complete task":
		cmd := core.NewParsedCommand(command.IntentCompleteTask, nil, 1, trimmed)
		resp := m.registry.Dispatch(userID, cmd)
		return m.augment(resp, command.IntentCompleteTask), true
	}

	if sub := reScheduleShortcut.FindStringSubmatch(trimmed); sub != nil {
		category := strings.ToLower(sub[2])
		if strings.HasPrefix(category, "check") {
			category = "check-ins"
		}
		entities := map[string]any{
			"period_name": strings.ToLower(sub[1]),
			"category":    category,
		}
		cmd := core.NewParsedCommand(command.IntentEditSchedule, entities, 0.9, trimmed)
		return m.registry.Dispatch(userID, cmd), true
	}
	return core.InteractionResponse{}, false
}

// parse classifies the message, coercing near-miss update-task phrasings the
// rule tiers cannot express.
func (m *Manager) parse(userID, trimmed string) core.ParsingResult {
	result := m.parser.Parse(trimmed, userID)
	lowered := strings.ToLower(trimmed)

	if result.Command.Intent == core.IntentUnknown && strings.HasPrefix(lowered, "update task") {
		entities := command.ExtractUpdateTaskEntities(trimmed)
		cmd := core.NewParsedCommand(command.IntentUpdateTask, entities, 0.9, trimmed)
		result = core.ParsingResult{Command: cmd, Confidence: 0.9, Method: core.ParseRuleBased}
	}

	if result.Command.Intent == command.IntentUpdateTask && updateEntitiesIncomplete(result.Command) {
		for k, v := range command.ExtractUpdateTaskEntities(result.Command.OriginalMessage) {
			if _, ok := result.Command.Entities[k]; !ok {
				result.Command.Entities[k] = v
			}
		}
	}

	m.tracker.RecordParsed(context.Background(), result.Command.Intent, string(result.Method))
	return result
}

func updateEntitiesIncomplete(cmd core.ParsedCommand) bool {
	if cmd.StringEntity("task_identifier") == "" {
		return true
	}
	return cmd.StringEntity("priority") == "" &&
		cmd.StringEntity("title") == "" &&
		cmd.StringEntity("due_date") == ""
}

// dispatch applies the confidence gate and returns the reply together with
// the intent that produced it.
func (m *Manager) dispatch(userID string, result core.ParsingResult) (core.InteractionResponse, string) {
	cmd := result.Command
	if result.Confidence >= m.minConfidence {
		switch cmd.Intent {
		case command.IntentStartCheckin:
			return m.startFlow("checkin", userID), cmd.Intent
		case command.IntentCancel:
			return m.cancelEverything(userID), cmd.Intent
		}
		return m.registry.Dispatch(userID, cmd), cmd.Intent
	}

	if m.ai != nil {
		if reply, ok := m.fallback(userID, cmd.OriginalMessage); ok {
			return reply, cmd.Intent
		}
	}
	return m.helpResponse(userID, cmd.OriginalMessage), command.IntentHelp
}

func (m *Manager) startFlow(name, userID string) core.InteractionResponse {
	starter, ok := m.starters[name]
	if !ok {
		return core.NewResponse(fmt.Sprintf("Flow '%s' is not available yet.", name), true)
	}
	return starter(userID)
}

// cancelEverything drops any pending deletion, then lets the flow manager
// report what was cancelled.
func (m *Manager) cancelEverything(userID string) core.InteractionResponse {
	if m.deletes != nil {
		m.deletes.CancelDelete(userID)
	}
	return m.flows.Cancel(userID)
}

func (m *Manager) fallback(userID, message string) (core.InteractionResponse, bool) {
	text, err := m.ai.GenerateResponse(context.Background(), userID, message)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Debug("ai fallback failed")
		return core.InteractionResponse{}, false
	}
	clean, ok := SanitizeFallback(text, m.maxAILength)
	if !ok || clean == "" {
		return core.InteractionResponse{}, false
	}
	return core.NewResponse(clean, true), true
}

func (m *Manager) helpResponse(userID, original string) core.InteractionResponse {
	return m.registry.Dispatch(userID, core.NewParsedCommand(command.IntentHelp, nil, 1, original))
}

// augment attaches a contextual suggestion pair to open-ended prompts.
func (m *Manager) augment(resp core.InteractionResponse, intent string) core.InteractionResponse {
	if resp.Completed || len(resp.Suggestions) > 0 {
		return resp
	}
	if intent == command.IntentStartCheckin || intent == command.IntentUpdateTask {
		return resp
	}
	switch {
	case strings.Contains(resp.Message, "multiple matching tasks"):
		resp.Suggestions = []string{"list tasks", "cancel"}
	case strings.Contains(resp.Message, "confirm delete"):
		resp.Suggestions = []string{"confirm delete", "cancel"}
	case strings.Contains(resp.Message, "Which task"):
		resp.Suggestions = []string{"show my tasks", "cancel"}
	}
	return resp
}

// enhance optionally rewords a conversational reply. Any rejection keeps the
// original message.
func (m *Manager) enhance(userID, intent string, resp core.InteractionResponse) core.InteractionResponse {
	if m.ai == nil || !enhanceableIntents[intent] || !resp.Completed || resp.Rich != nil {
		return resp
	}
	enhanced, err := m.ai.EnhanceResponse(context.Background(), resp.Message)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Debug("response enhancement skipped")
		return resp
	}
	if polished, ok := PolishEnhanced(enhanced, m.maxAILength); ok {
		resp.Message = polished
	}
	return resp
}
