package command

import (
	"regexp"
	"strings"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

// Intents produced by the parser.
const (
	IntentStart          = "start"
	IntentCreateTask     = "create_task"
	IntentListTasks      = "list_tasks"
	IntentCompleteTask   = "complete_task"
	IntentDeleteTask     = "delete_task"
	IntentUpdateTask     = "update_task"
	IntentTaskStats      = "task_stats"
	IntentStartCheckin   = "start_checkin"
	IntentCheckinHistory = "checkin_history"
	IntentCheckinStatus  = "checkin_status"
	IntentShowProfile    = "show_profile"
	IntentUpdateProfile  = "update_profile"
	IntentProfileStats   = "profile_stats"
	IntentShowSchedule   = "show_schedule"
	IntentScheduleStatus = "schedule_status"
	IntentEditSchedule   = "edit_schedule_period"
	IntentShowAnalytics  = "show_analytics"
	IntentMoodTrends     = "mood_trends"
	IntentHabitAnalysis  = "habit_analysis"
	IntentSleepAnalysis  = "sleep_analysis"
	IntentWellnessScore  = "wellness_score"
	IntentShowMessages   = "show_messages"
	IntentHelp           = "help"
	IntentCommands       = "commands"
	IntentExamples       = "examples"
	IntentStatus         = "status"
	IntentCancel         = "cancel"
)

// Confidence tiers. Exact phrases and entity-bearing regex matches sit at or
// above 0.9, bare keyword containment at 0.6.
const (
	confExact   = 0.95
	confEntity  = 0.9
	confKeyword = 0.6
)

var (
	reUpdatePriority = regexp.MustCompile(`(?i)^update\s+task\s+(\S+)\s+priority\s+(high|medium|low|urgent|critical)\s*$`)
	reUpdateDue      = regexp.MustCompile(`(?i)^update\s+task\s+(\S+)\s+due(?:\s+date)?\s+(.+)$`)
	reUpdateTitle    = regexp.MustCompile(`(?i)^update\s+task\s+(\S+)\s+title\s+"([^"]+)"\s*$`)
	reRenameTask     = regexp.MustCompile(`(?i)^rename\s+task\s+(\S+)\s+to\s+(.+)$`)
	reEditSchedule   = regexp.MustCompile(`(?i)^edit\s+schedule\s+period\s+(\S+)\s+(tasks|check-ins|messages)\s*$`)
)

// exactPhrases maps whole utterances to intents.
var exactPhrases = map[string]string{
	"start": IntentStart,

	"show my tasks":    IntentListTasks,
	"show tasks":       IntentListTasks,
	"show me my tasks": IntentListTasks,
	"list tasks":       IntentListTasks,
	"my tasks":         IntentListTasks,

	"task stats":      IntentTaskStats,
	"task statistics": IntentTaskStats,

	"start checkin":  IntentStartCheckin,
	"start check-in": IntentStartCheckin,
	"checkin":        IntentStartCheckin,
	"check-in":       IntentStartCheckin,
	"check in":       IntentStartCheckin,
	"daily checkin":  IntentStartCheckin,

	"checkin history":  IntentCheckinHistory,
	"check-in history": IntentCheckinHistory,
	"show checkins":    IntentCheckinHistory,
	"past checkins":    IntentCheckinHistory,

	"checkin status":  IntentCheckinStatus,
	"check-in status": IntentCheckinStatus,

	"show profile": IntentShowProfile,
	"my profile":   IntentShowProfile,
	"profile":      IntentShowProfile,

	"profile stats": IntentProfileStats,

	"show schedule": IntentShowSchedule,
	"my schedule":   IntentShowSchedule,
	"schedule":      IntentShowSchedule,

	"schedule status": IntentScheduleStatus,

	"show analytics":    IntentShowAnalytics,
	"show my analytics": IntentShowAnalytics,
	"analytics":         IntentShowAnalytics,

	"mood trends":  IntentMoodTrends,
	"mood history": IntentMoodTrends,

	"habit analysis": IntentHabitAnalysis,
	"habit stats":    IntentHabitAnalysis,
	"habits":         IntentHabitAnalysis,

	"sleep analysis":   IntentSleepAnalysis,
	"sleep stats":      IntentSleepAnalysis,
	"how is my sleep":  IntentSleepAnalysis,
	"how was my sleep": IntentSleepAnalysis,

	"wellness score": IntentWellnessScore,
	"how am i doing": IntentWellnessScore,

	"show messages":   IntentShowMessages,
	"my messages":     IntentShowMessages,
	"recent messages": IntentShowMessages,

	"help":     IntentHelp,
	"commands": IntentCommands,
	"examples": IntentExamples,

	"status":     IntentStatus,
	"bot status": IntentStatus,

	"cancel":     IntentCancel,
	"nevermind":  IntentCancel,
	"never mind": IntentCancel,
}

// prefixRule captures the remainder after a leading phrase as one entity.
type prefixRule struct {
	prefix string
	intent string
	entity string
}

// Order matters: more specific prefixes come first.
var prefixRules = []prefixRule{
	{prefix: "create task ", intent: IntentCreateTask, entity: "title"},
	{prefix: "add task ", intent: IntentCreateTask, entity: "title"},
	{prefix: "new task ", intent: IntentCreateTask, entity: "title"},
	{prefix: "complete task ", intent: IntentCompleteTask, entity: "task_identifier"},
	{prefix: "finish task ", intent: IntentCompleteTask, entity: "task_identifier"},
	{prefix: "complete ", intent: IntentCompleteTask, entity: "task_identifier"},
	{prefix: "delete task ", intent: IntentDeleteTask, entity: "task_identifier"},
	{prefix: "remove task ", intent: IntentDeleteTask, entity: "task_identifier"},
}

// keywordRule fires on containment when nothing more specific matched.
type keywordRule struct {
	keyword string
	intent  string
}

var keywordRules = []keywordRule{
	{keyword: "tasks", intent: IntentListTasks},
	{keyword: "checkin", intent: IntentStartCheckin},
	{keyword: "check-in", intent: IntentStartCheckin},
	{keyword: "profile", intent: IntentShowProfile},
	{keyword: "schedule", intent: IntentShowSchedule},
	{keyword: "analytics", intent: IntentShowAnalytics},
	{keyword: "mood", intent: IntentMoodTrends},
	{keyword: "sleep", intent: IntentSleepAnalysis},
	{keyword: "help", intent: IntentHelp},
}

// Parser classifies utterances with ordered rule tiers: entity regexes, exact
// phrases, entity-capturing prefixes, then keyword containment.
type Parser struct {
	state UserState
}

// UserState exposes the account facts suggestion scoring needs. A nil state
// disables state-aware scoring.
type UserState interface {
	HasActiveTasks(userID string) bool
	CheckinsEnabled(userID string) bool
	HasCheckinHistory(userID string) bool
}

// NewParser creates a parser. state may be nil.
func NewParser(state UserState) *Parser {
	return &Parser{state: state}
}

// Parse classifies a single utterance.
func (p *Parser) Parse(message, userID string) core.ParsingResult {
	trimmed := strings.TrimSpace(message)
	normalized := strings.ToLower(trimmed)
	if normalized == "" {
		return ruleResult(core.NewParsedCommand(core.IntentUnknown, nil, 0, message))
	}

	if cmd, ok := matchEntityRegex(normalized, trimmed, message); ok {
		return ruleResult(cmd)
	}

	if intent, ok := exactPhrases[normalized]; ok {
		return ruleResult(core.NewParsedCommand(intent, nil, confExact, message))
	}

	for _, rule := range prefixRules {
		if !strings.HasPrefix(normalized, rule.prefix) {
			continue
		}
		remainder := strings.TrimSpace(normalized[len(rule.prefix):])
		if remainder == "" {
			continue
		}
		entities := map[string]any{rule.entity: remainder}
		return ruleResult(core.NewParsedCommand(rule.intent, entities, confEntity, message))
	}

	if strings.HasPrefix(normalized, "update profile ") {
		if entities, ok := extractProfileUpdate(trimmed); ok {
			return ruleResult(core.NewParsedCommand(IntentUpdateProfile, entities, confEntity, message))
		}
	}

	for _, rule := range keywordRules {
		if strings.Contains(normalized, rule.keyword) {
			return ruleResult(core.NewParsedCommand(rule.intent, nil, confKeyword, message))
		}
	}

	return ruleResult(core.NewParsedCommand(core.IntentUnknown, nil, 0, message))
}

func ruleResult(cmd core.ParsedCommand) core.ParsingResult {
	return core.ParsingResult{
		Command:    cmd,
		Confidence: cmd.Confidence,
		Method:     core.ParseRuleBased,
	}
}

func matchEntityRegex(normalized, trimmed, original string) (core.ParsedCommand, bool) {
	if m := reUpdatePriority.FindStringSubmatch(normalized); m != nil {
		entities := map[string]any{
			"task_identifier": m[1],
			"priority":        strings.ToLower(m[2]),
		}
		return core.NewParsedCommand(IntentUpdateTask, entities, confEntity, original), true
	}
	if m := reUpdateTitle.FindStringSubmatch(trimmed); m != nil {
		entities := map[string]any{
			"task_identifier": strings.ToLower(m[1]),
			"title":           m[2],
		}
		return core.NewParsedCommand(IntentUpdateTask, entities, confEntity, original), true
	}
	if m := reUpdateDue.FindStringSubmatch(trimmed); m != nil {
		entities := map[string]any{
			"task_identifier": strings.ToLower(m[1]),
			"due_date":        strings.TrimSpace(m[2]),
		}
		return core.NewParsedCommand(IntentUpdateTask, entities, confEntity, original), true
	}
	if m := reRenameTask.FindStringSubmatch(trimmed); m != nil {
		entities := map[string]any{
			"task_identifier": strings.ToLower(m[1]),
			"title":           strings.TrimSpace(m[2]),
		}
		return core.NewParsedCommand(IntentUpdateTask, entities, confEntity, original), true
	}
	if m := reEditSchedule.FindStringSubmatch(normalized); m != nil {
		entities := map[string]any{
			"period_name": m[1],
			"category":    m[2],
		}
		return core.NewParsedCommand(IntentEditSchedule, entities, confEntity, original), true
	}
	return core.ParsedCommand{}, false
}

// ExtractUpdateTaskEntities re-runs the update-task extraction regexes on a
// raw message, best effort. Used to fill entity gaps after parsing.
func ExtractUpdateTaskEntities(message string) map[string]any {
	entities := make(map[string]any)
	trimmed := strings.TrimSpace(message)
	normalized := strings.ToLower(trimmed)

	if m := reUpdatePriority.FindStringSubmatch(normalized); m != nil {
		entities["task_identifier"] = m[1]
		entities["priority"] = strings.ToLower(m[2])
		return entities
	}
	if m := reUpdateTitle.FindStringSubmatch(trimmed); m != nil {
		entities["task_identifier"] = strings.ToLower(m[1])
		entities["title"] = m[2]
		return entities
	}
	if m := reUpdateDue.FindStringSubmatch(trimmed); m != nil {
		entities["task_identifier"] = strings.ToLower(m[1])
		entities["due_date"] = strings.TrimSpace(m[2])
		return entities
	}
	if m := reRenameTask.FindStringSubmatch(trimmed); m != nil {
		entities["task_identifier"] = strings.ToLower(m[1])
		entities["title"] = strings.TrimSpace(m[2])
		return entities
	}

	// Bare "update task <id> ..." with an unrecognized tail: keep the id.
	fields := strings.Fields(normalized)
	if len(fields) >= 3 && fields[0] == "update" && fields[1] == "task" {
		entities["task_identifier"] = fields[2]
	}
	return entities
}

// extractProfileUpdate splits "update profile <field> [to] <value>", keeping
// the value's original case.
func extractProfileUpdate(trimmed string) (map[string]any, bool) {
	rest := strings.TrimSpace(trimmed[len("update profile "):])
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, false
	}
	field := strings.ToLower(fields[0])
	value := strings.Join(fields[1:], " ")
	if lower := strings.ToLower(value); strings.HasPrefix(lower, "to ") {
		value = strings.TrimSpace(value[len("to "):])
	}
	if value == "" {
		return nil, false
	}
	return map[string]any{"field": field, "value": value}, true
}
