package interaction

import (
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// Enhancement acceptance bounds.
const (
	minEnhancedRunes = 11
	smartCutRatio    = 0.6
)

// leakageMarkers reject enhanced text that echoes prompt scaffolding back at
// the user. Matched case-insensitively.
var leakageMarkers = []string{
	"system response:",
	"you are a chatbot",
	"you are an ai",
	"system prompt",
	"```",
	"<|",
}

// enhanceFilter is one step of the acceptance pipeline. Predicates return
// ok=false to reject the text outright; transforms rewrite it.
type enhanceFilter func(text string, budget int) (string, bool)

var enhanceFilters = []enhanceFilter{
	stripWrapping,
	rejectShort,
	rejectLeakage,
	rejectRawJSON,
	truncateToBudget,
}

// PolishEnhanced runs AI-enhanced text through the acceptance pipeline.
// ok=false means the caller should keep its original message.
func PolishEnhanced(text string, budget int) (string, bool) {
	out := text
	for _, filter := range enhanceFilters {
		var ok bool
		if out, ok = filter(out, budget); !ok {
			return "", false
		}
	}
	return out, true
}

// SanitizeFallback applies the leakage and budget rules to a full AI fallback
// reply. Unlike enhancement there is no minimum length.
func SanitizeFallback(text string, budget int) (string, bool) {
	out, _ := stripWrapping(text, budget)
	if out == "" {
		return "", false
	}
	if _, ok := rejectLeakage(out, budget); !ok {
		return "", false
	}
	if _, ok := rejectRawJSON(out, budget); !ok {
		return "", false
	}
	return truncateToBudget(out, budget)
}

func stripWrapping(text string, _ int) (string, bool) {
	out := strings.TrimSpace(text)
	if len(out) >= 2 && out[0] == '"' && out[len(out)-1] == '"' {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return out, true
}

func rejectShort(text string, _ int) (string, bool) {
	if utf8.RuneCountInString(text) < minEnhancedRunes {
		return "", false
	}
	return text, true
}

func rejectLeakage(text string, _ int) (string, bool) {
	lowered := strings.ToLower(text)
	for _, marker := range leakageMarkers {
		if strings.Contains(lowered, marker) {
			return "", false
		}
	}
	return text, true
}

func rejectRawJSON(text string, _ int) (string, bool) {
	if strings.HasPrefix(text, "{") || strings.HasPrefix(text, "[") {
		if gjson.Valid(text) {
			return "", false
		}
	}
	return text, true
}

// truncateToBudget cuts overlong text at the latest sentence boundary inside
// the budget when that boundary sits at or past smartCutRatio of it;
// otherwise it cuts hard and appends an ellipsis.
func truncateToBudget(text string, budget int) (string, bool) {
	if budget <= 0 {
		return text, true
	}
	runes := []rune(text)
	if len(runes) <= budget {
		return text, true
	}
	window := runes[:budget]
	if cut := lastSentenceEnd(window); cut >= int(smartCutRatio*float64(budget)) {
		return strings.TrimSpace(string(window[:cut])), true
	}
	return strings.TrimSpace(string(window)) + "...", true
}

// lastSentenceEnd returns the index just past the final sentence-ending
// punctuation in window, or 0 when there is none.
func lastSentenceEnd(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		switch window[i] {
		case '.', '!', '?':
			if i == len(window)-1 || window[i+1] == ' ' || window[i+1] == '\n' {
				return i + 1
			}
		}
	}
	return 0
}
