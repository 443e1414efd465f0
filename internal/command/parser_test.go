package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

func TestParse_ConfidenceTiers(t *testing.T) {
	p := NewParser(nil)

	tests := []struct {
		name       string
		message    string
		intent     string
		confidence float64
	}{
		{"exact phrase", "show my tasks", IntentListTasks, 0.95},
		{"exact phrase mixed case", "Show My Tasks", IntentListTasks, 0.95},
		{"exact checkin", "start checkin", IntentStartCheckin, 0.95},
		{"exact cancel", "nevermind", IntentCancel, 0.95},
		{"prefix with entity", "create task buy milk", IntentCreateTask, 0.9},
		{"bare complete", "complete per davey", IntentCompleteTask, 0.9},
		{"update task regex", "update task 1 priority high", IntentUpdateTask, 0.9},
		{"keyword only", "i want to see my tasks", IntentListTasks, 0.6},
		{"keyword sleep", "tell me about my sleep lately", IntentSleepAnalysis, 0.6},
		{"unknown", "blorp", core.IntentUnknown, 0},
		{"empty", "", core.IntentUnknown, 0},
		{"whitespace only", "   ", core.IntentUnknown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := p.Parse(tt.message, "user-1")
			if result.Command.Intent != tt.intent {
				t.Errorf("intent = %q, want %q", result.Command.Intent, tt.intent)
			}
			if result.Confidence != tt.confidence {
				t.Errorf("confidence = %v, want %v", result.Confidence, tt.confidence)
			}
			if result.Method != core.ParseRuleBased {
				t.Errorf("method = %q, want %q", result.Method, core.ParseRuleBased)
			}
		})
	}
}

func TestParse_PreservesOriginalMessage(t *testing.T) {
	p := NewParser(nil)
	result := p.Parse("  Create Task Buy Milk  ", "user-1")
	assert.Equal(t, "  Create Task Buy Milk  ", result.Command.OriginalMessage)
	assert.Equal(t, "buy milk", result.Command.StringEntity("title"))
}

func TestParse_UpdateTaskEntities(t *testing.T) {
	p := NewParser(nil)

	t.Run("priority", func(t *testing.T) {
		result := p.Parse("update task 1 priority HIGH", "user-1")
		assert.Equal(t, IntentUpdateTask, result.Command.Intent)
		assert.Equal(t, "1", result.Command.StringEntity("task_identifier"))
		assert.Equal(t, "high", result.Command.StringEntity("priority"))
	})

	t.Run("due date", func(t *testing.T) {
		result := p.Parse("update task 2 due tomorrow morning", "user-1")
		assert.Equal(t, IntentUpdateTask, result.Command.Intent)
		assert.Equal(t, "2", result.Command.StringEntity("task_identifier"))
		assert.Equal(t, "tomorrow morning", result.Command.StringEntity("due_date"))
	})

	t.Run("quoted title keeps case", func(t *testing.T) {
		result := p.Parse(`update task 3 title "Call Mom"`, "user-1")
		assert.Equal(t, IntentUpdateTask, result.Command.Intent)
		assert.Equal(t, "Call Mom", result.Command.StringEntity("title"))
	})

	t.Run("rename", func(t *testing.T) {
		result := p.Parse("rename task 1 to Walk the dog", "user-1")
		assert.Equal(t, IntentUpdateTask, result.Command.Intent)
		assert.Equal(t, "1", result.Command.StringEntity("task_identifier"))
		assert.Equal(t, "Walk the dog", result.Command.StringEntity("title"))
	})
}

func TestParse_EditSchedulePeriod(t *testing.T) {
	p := NewParser(nil)
	result := p.Parse("edit schedule period morning tasks", "user-1")
	assert.Equal(t, IntentEditSchedule, result.Command.Intent)
	assert.Equal(t, "morning", result.Command.StringEntity("period_name"))
	assert.Equal(t, "tasks", result.Command.StringEntity("category"))
}

func TestParse_UpdateProfile(t *testing.T) {
	p := NewParser(nil)

	result := p.Parse("update profile timezone to US/Eastern", "user-1")
	assert.Equal(t, IntentUpdateProfile, result.Command.Intent)
	assert.Equal(t, "timezone", result.Command.StringEntity("field"))
	assert.Equal(t, "US/Eastern", result.Command.StringEntity("value"))

	result = p.Parse("update profile name Jess", "user-1")
	assert.Equal(t, IntentUpdateProfile, result.Command.Intent)
	assert.Equal(t, "name", result.Command.StringEntity("field"))
	assert.Equal(t, "Jess", result.Command.StringEntity("value"))
}

func TestExtractUpdateTaskEntities(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    map[string]any
	}{
		{
			name:    "priority",
			message: "update task 1 priority high",
			want:    map[string]any{"task_identifier": "1", "priority": "high"},
		},
		{
			name:    "due",
			message: "update task groceries due friday",
			want:    map[string]any{"task_identifier": "groceries", "due_date": "friday"},
		},
		{
			name:    "unrecognized tail keeps identifier",
			message: "update task 4 something odd",
			want:    map[string]any{"task_identifier": "4"},
		},
		{
			name:    "not an update",
			message: "hello there",
			want:    map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractUpdateTaskEntities(tt.message))
		})
	}
}
