package checkin

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

// Skipped is the sentinel stored when a user skips a question. It is stored
// verbatim in the flow data and the check-in payload.
const Skipped = "SKIPPED"

// NoReflection is stored when an optional text answer is left empty.
const NoReflection = "No reflection provided"

var positiveAnswers = []string{
	"yes", "y", "yeah", "yep", "true", "1", "absolutely", "definitely",
	"sure", "of course", "i did", "i have", "100", "100%", "correct",
	"affirmative", "indeed", "certainly", "positively",
}

var negativeAnswers = []string{
	"no", "n", "nah", "nope", "false", "0", "absolutely not",
	"definitely not", "not really", "of course not", "i did not",
	"i didn't", "i have not", "i haven't", "0%", "incorrect", "negative",
	"certainly not", "never",
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

var (
	positiveSet = toSet(positiveAnswers)
	negativeSet = toSet(negativeAnswers)
)

// ParseYesNo interprets a free-text answer using the same synonym sets the
// yes/no questions use. ok=false means the text is neither.
func ParseYesNo(raw string) (value, ok bool) {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	if _, pos := positiveSet[lowered]; pos {
		return true, true
	}
	if _, neg := negativeSet[lowered]; neg {
		return false, true
	}
	return false, false
}

// Engine answers questions about the check-in catalog: prompt text, answer
// validation, and randomized acknowledgement phrases. It is safe for
// concurrent use; the injected rng is guarded by a mutex.
type Engine struct {
	questions map[string]Question
	order     []string
	bank      ResponseBank

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine builds an engine over an already-loaded catalog. The rng drives
// phrase selection and must not be shared unsynchronized with other users.
func NewEngine(catalog QuestionCatalog, bank ResponseBank, rng *rand.Rand) *Engine {
	e := &Engine{
		questions: make(map[string]Question, len(catalog.Questions)),
		order:     make([]string, 0, len(catalog.Questions)),
		bank:      bank,
		rng:       rng,
	}
	for _, q := range catalog.Questions {
		e.questions[q.Key] = q
		e.order = append(e.order, q.Key)
	}
	return e
}

// LoadEngine loads the catalog from dir (embedded defaults when files are
// absent) and builds an engine over it.
func LoadEngine(dir string, rng *rand.Rand) (*Engine, error) {
	catalog, bank, err := LoadCatalog(dir)
	if err != nil {
		return nil, err
	}
	return NewEngine(catalog, bank, rng), nil
}

// Question returns the catalog entry for key.
func (e *Engine) Question(key string) (Question, bool) {
	q, ok := e.questions[key]
	return q, ok
}

// Text returns the prompt text for key, or an empty string when unknown.
func (e *Engine) Text(key string) string {
	return e.questions[key].Text
}

// Keys returns all question keys in catalog order.
func (e *Engine) Keys() []string {
	out := make([]string, len(e.order))
	copy(out, e.order)
	return out
}

// DefaultEnabledKeys returns the keys enabled by default, in catalog order.
func (e *Engine) DefaultEnabledKeys() []string {
	var out []string
	for _, key := range e.order {
		if e.questions[key].EnabledByDefault {
			out = append(out, key)
		}
	}
	return out
}

// Categories returns the question key to category mapping.
func (e *Engine) Categories() map[string]string {
	out := make(map[string]string, len(e.questions))
	for key, q := range e.questions {
		out[key] = q.Category
	}
	return out
}

// Validate checks a raw answer against the question's type. On success the
// returned value is an int (scale), float64 (number), bool (yes/no), or string
// (optional text / the Skipped sentinel). On failure errMsg carries the
// user-visible rejection text.
func (e *Engine) Validate(key, raw string) (ok bool, value any, errMsg string) {
	q, found := e.questions[key]
	if !found {
		return false, nil, fmt.Sprintf("I don't have a question called '%s'.", key)
	}

	trimmed := strings.TrimSpace(raw)
	if strings.EqualFold(trimmed, "skip") {
		return true, Skipped, ""
	}

	switch q.Type {
	case TypeScale1To5:
		f, parsed := ParseNumberPhrase(trimmed)
		if !parsed {
			return false, nil, q.errorMessage("Please answer with a number from 1 to 5 (or type 'skip').")
		}
		n := int(f)
		if n < 1 || n > 5 {
			return false, nil, q.errorMessage("Please answer with a number from 1 to 5 (or type 'skip').")
		}
		return true, n, ""

	case TypeNumber:
		f, parsed := ParseNumberPhrase(trimmed)
		if !parsed {
			return false, nil, q.errorMessage("Please answer with a number (or type 'skip').")
		}
		min, max := q.bounds(0, 24)
		if f < min || f > max {
			return false, nil, q.errorMessage(fmt.Sprintf("Please give a number between %g and %g (or type 'skip').", min, max))
		}
		return true, f, ""

	case TypeYesNo:
		if v, known := ParseYesNo(trimmed); known {
			return true, v, ""
		}
		return false, nil, q.errorMessage("Please answer yes or no (or type 'skip').")

	case TypeOptionalText:
		if trimmed == "" {
			return true, NoReflection, ""
		}
		return true, trimmed, ""

	default:
		return false, nil, fmt.Sprintf("Question '%s' has an unsupported type.", key)
	}
}

func (q Question) errorMessage(fallback string) string {
	if q.Validation.ErrorMessage != "" {
		return q.Validation.ErrorMessage
	}
	return fallback
}

func (q Question) bounds(defMin, defMax float64) (float64, float64) {
	min, max := defMin, defMax
	if q.Validation.Min != nil {
		min = *q.Validation.Min
	}
	if q.Validation.Max != nil {
		max = *q.Validation.Max
	}
	return min, max
}

// AnswerKey converts a stored answer value into the response-bank lookup key.
// Booleans map to "true"/"false", numbers to their shortest decimal form.
func AnswerKey(value any) string {
	switch v := value.(type) {
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ResponseStatement picks a random acknowledgement phrase for the given
// question and answer. ok=false means the bank has no entry for that pair.
func (e *Engine) ResponseStatement(key string, value any) (string, bool) {
	phrases := e.bank.Responses[key][AnswerKey(value)]
	if len(phrases) == 0 {
		return "", false
	}
	return phrases[e.intn(len(phrases))], true
}

// TransitionPhrase picks a random connector phrase.
func (e *Engine) TransitionPhrase() string {
	if len(e.bank.TransitionPhrases) == 0 {
		return ""
	}
	return e.bank.TransitionPhrases[e.intn(len(e.bank.TransitionPhrases))]
}

// BuildNext composes the message introducing the next question. When the bank
// has an acknowledgement for the previous answer it is prepended together with
// a transition phrase; otherwise the next question stands alone.
func (e *Engine) BuildNext(next, prev Question, prevValue any) string {
	statement, ok := e.ResponseStatement(prev.Key, prevValue)
	if !ok {
		return next.Text
	}
	return statement + "\n\n" + e.TransitionPhrase() + " " + next.Text
}

func (e *Engine) intn(n int) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Intn(n)
}
