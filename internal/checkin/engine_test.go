package checkin

import (
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := LoadEngine("", rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("failed to load embedded catalog: %v", err)
	}
	return engine
}

func TestValidate_Scale(t *testing.T) {
	engine := newTestEngine(t)

	ok, value, errMsg := engine.Validate("mood", "4")
	assert.True(t, ok)
	assert.Equal(t, 4, value)
	assert.Empty(t, errMsg)

	ok, value, _ = engine.Validate("mood", "four")
	assert.True(t, ok)
	assert.Equal(t, 4, value)

	// Half values truncate before the range check.
	ok, value, _ = engine.Validate("mood", "four and a half")
	assert.True(t, ok)
	assert.Equal(t, 4, value)

	ok, _, errMsg = engine.Validate("mood", "six")
	assert.False(t, ok)
	assert.NotEmpty(t, errMsg)

	ok, _, _ = engine.Validate("mood", "0")
	assert.False(t, ok)

	ok, _, _ = engine.Validate("mood", "definitely")
	assert.False(t, ok)
}

func TestValidate_Number(t *testing.T) {
	engine := newTestEngine(t)

	ok, value, _ := engine.Validate("sleep_hours", "7.5")
	assert.True(t, ok)
	assert.Equal(t, 7.5, value)

	ok, value, _ = engine.Validate("sleep_hours", "seven and a half")
	assert.True(t, ok)
	assert.Equal(t, 7.5, value)

	ok, _, errMsg := engine.Validate("sleep_hours", "25")
	assert.False(t, ok)
	assert.Contains(t, errMsg, "between")

	ok, value, _ = engine.Validate("sleep_hours", "0")
	assert.True(t, ok)
	assert.Equal(t, 0.0, value)
}

func TestValidate_YesNo(t *testing.T) {
	engine := newTestEngine(t)

	for _, answer := range []string{"yes", "Yeah", "of course", "i did", "100%", "Absolutely"} {
		ok, value, _ := engine.Validate("ate_breakfast", answer)
		assert.True(t, ok, "answer %q should parse", answer)
		assert.Equal(t, true, value, "answer %q should be positive", answer)
	}

	for _, answer := range []string{"no", "Nope", "i haven't", "definitely not", "0"} {
		ok, value, _ := engine.Validate("ate_breakfast", answer)
		assert.True(t, ok, "answer %q should parse", answer)
		assert.Equal(t, false, value, "answer %q should be negative", answer)
	}

	ok, _, errMsg := engine.Validate("ate_breakfast", "maybe")
	assert.False(t, ok)
	assert.NotEmpty(t, errMsg)
}

func TestValidate_OptionalText(t *testing.T) {
	engine := newTestEngine(t)

	ok, value, _ := engine.Validate("daily_reflection", "Feeling okay today")
	assert.True(t, ok)
	assert.Equal(t, "Feeling okay today", value)

	ok, value, _ = engine.Validate("daily_reflection", "")
	assert.True(t, ok)
	assert.Equal(t, NoReflection, value)
}

func TestValidate_SkipWorksForEveryType(t *testing.T) {
	engine := newTestEngine(t)

	for _, key := range []string{"mood", "sleep_hours", "ate_breakfast", "daily_reflection"} {
		for _, raw := range []string{"skip", "SKIP", "Skip", "  skip  "} {
			ok, value, errMsg := engine.Validate(key, raw)
			assert.True(t, ok, "skip should validate for %s", key)
			assert.Equal(t, Skipped, value, "skip should yield sentinel for %s", key)
			assert.Empty(t, errMsg)
		}
	}
}

func TestValidate_UnknownQuestion(t *testing.T) {
	engine := newTestEngine(t)

	ok, _, errMsg := engine.Validate("no_such_question", "4")
	assert.False(t, ok)
	assert.Contains(t, errMsg, "no_such_question")
}

func TestResponseStatement(t *testing.T) {
	engine := newTestEngine(t)

	statement, ok := engine.ResponseStatement("mood", 5)
	assert.True(t, ok)
	assert.NotEmpty(t, statement)

	statement, ok = engine.ResponseStatement("ate_breakfast", true)
	assert.True(t, ok)
	assert.NotEmpty(t, statement)

	// Numeric answers without bank entries have no statement.
	_, ok = engine.ResponseStatement("sleep_hours", 7.5)
	assert.False(t, ok)

	_, ok = engine.ResponseStatement("mood", Skipped)
	assert.False(t, ok)
}

func TestAnswerKey(t *testing.T) {
	assert.Equal(t, "true", AnswerKey(true))
	assert.Equal(t, "false", AnswerKey(false))
	assert.Equal(t, "4", AnswerKey(4))
	assert.Equal(t, "7.5", AnswerKey(7.5))
	assert.Equal(t, "SKIPPED", AnswerKey(Skipped))
}

func TestBuildNext(t *testing.T) {
	engine := newTestEngine(t)

	prev, _ := engine.Question("mood")
	next, _ := engine.Question("energy")

	composed := engine.BuildNext(next, prev, 4)
	assert.Contains(t, composed, "\n\n")
	assert.True(t, strings.HasSuffix(composed, next.Text))

	// No bank entry for the previous answer: next question stands alone.
	prevSleep, _ := engine.Question("sleep_hours")
	composed = engine.BuildNext(next, prevSleep, 7.5)
	assert.Equal(t, next.Text, composed)
}

func TestDefaultEnabledKeys(t *testing.T) {
	engine := newTestEngine(t)

	keys := engine.DefaultEnabledKeys()
	assert.Equal(t, []string{
		"mood", "energy", "ate_breakfast", "exercise",
		"sleep_hours", "sleep_quality", "social_interaction", "daily_reflection",
	}, keys)
}

func TestLoadCatalog_DiskOverride(t *testing.T) {
	dir := t.TempDir()
	questions := `{"questions":[{"key":"mood","type":"scale_1_5","text":"Mood?","enabled_by_default":true,"category":"mood","validation":{},"ui_display_name":"Mood"}]}`
	err := os.WriteFile(filepath.Join(dir, "questions.json"), []byte(questions), 0644)
	assert.NoError(t, err)

	// responses.json absent: embedded defaults fill in.
	engine, err := LoadEngine(dir, rand.New(rand.NewSource(1)))
	assert.NoError(t, err)
	assert.Equal(t, []string{"mood"}, engine.Keys())
	assert.NotEmpty(t, engine.TransitionPhrase())
}

func TestLoadCatalog_Malformed(t *testing.T) {
	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "questions.json"), []byte("{not json"), 0644)
	assert.NoError(t, err)

	_, err = LoadEngine(dir, rand.New(rand.NewSource(1)))
	assert.Error(t, err)
}
