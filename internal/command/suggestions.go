package command

import (
	"sort"
	"strings"
)

// MaxSuggestions caps how many command suggestions a single reply may carry.
const MaxSuggestions = 5

type suggestionCandidate struct {
	text   string
	intent string
}

// Pool order doubles as the tie-break ranking, most generally useful first.
var suggestionPool = []suggestionCandidate{
	{text: "help", intent: IntentHelp},
	{text: "show my tasks", intent: IntentListTasks},
	{text: "create task <title>", intent: IntentCreateTask},
	{text: "complete task <number>", intent: IntentCompleteTask},
	{text: "start checkin", intent: IntentStartCheckin},
	{text: "checkin history", intent: IntentCheckinHistory},
	{text: "show profile", intent: IntentShowProfile},
	{text: "show schedule", intent: IntentShowSchedule},
	{text: "show analytics", intent: IntentShowAnalytics},
	{text: "mood trends", intent: IntentMoodTrends},
	{text: "task stats", intent: IntentTaskStats},
	{text: "examples", intent: IntentExamples},
}

// Suggestions ranks candidate commands by closeness to the input and the
// user's state, returning at most MaxSuggestions entries.
func (p *Parser) Suggestions(message, userID string) []string {
	inputTokens := tokenize(strings.ToLower(strings.TrimSpace(message)))

	type scored struct {
		text  string
		score float64
	}
	ranked := make([]scored, 0, len(suggestionPool))
	for _, cand := range suggestionPool {
		score := tokenOverlap(inputTokens, tokenize(cand.text))
		score += p.stateBoost(cand.intent, userID)
		ranked = append(ranked, scored{text: cand.text, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	out := make([]string, 0, MaxSuggestions)
	for _, r := range ranked {
		if len(out) == MaxSuggestions {
			break
		}
		out = append(out, r.text)
	}
	return out
}

func (p *Parser) stateBoost(intent, userID string) float64 {
	if p.state == nil || userID == "" {
		return 0
	}
	switch intent {
	case IntentListTasks, IntentCompleteTask, IntentTaskStats:
		if p.state.HasActiveTasks(userID) {
			return 0.25
		}
	case IntentStartCheckin:
		if p.state.CheckinsEnabled(userID) {
			return 0.25
		}
	case IntentCheckinHistory, IntentShowAnalytics, IntentMoodTrends:
		if p.state.HasCheckinHistory(userID) {
			return 0.25
		}
	}
	return 0
}

func tokenize(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		// Placeholder tokens like <title> never count toward overlap.
		if strings.HasPrefix(f, "<") {
			continue
		}
		out = append(out, f)
	}
	return out
}

func tokenOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	shared := 0
	for _, t := range b {
		if _, ok := set[t]; ok {
			shared++
		}
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return float64(shared) / float64(longest)
}
