package discord

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jacfogel/MHM-sub009/internal/core"
)

func TestSplitRecipient(t *testing.T) {
	tests := []struct {
		recipient string
		kind      recipientKind
		id        string
	}{
		{"123456789", recipientChannel, "123456789"},
		{"user:abc-def", recipientUser, "abc-def"},
		{"direct:998877", recipientDirect, "998877"},
		{"", recipientChannel, ""},
	}
	for _, tt := range tests {
		kind, id := splitRecipient(tt.recipient)
		assert.Equal(t, tt.kind, kind, tt.recipient)
		assert.Equal(t, tt.id, id, tt.recipient)
	}
}

func TestBuildEmbed_NilPayload(t *testing.T) {
	assert.Nil(t, buildEmbed(nil))
}

func TestBuildEmbed_ColorsByType(t *testing.T) {
	tests := []struct {
		richType string
		color    int
	}{
		{core.RichTypeSuccess, 0x2ECC71},
		{core.RichTypeError, 0xE74C3C},
		{core.RichTypeWarning, 0xF1C40F},
		{core.RichTypeTask, 0x9B59B6},
		{core.RichTypeProfile, 0xE67E22},
		{core.RichTypeSchedule, 0x3498DB},
		{core.RichTypeAnalytics, 0x2ECC71},
		{"something-new", defaultEmbedColor},
		{"", defaultEmbedColor},
	}
	for _, tt := range tests {
		embed := buildEmbed(&core.RichPayload{Type: tt.richType})
		require.NotNil(t, embed)
		assert.Equal(t, tt.color, embed.Color, tt.richType)
	}
}

func TestBuildEmbed_FullPayload(t *testing.T) {
	ts := time.Date(2026, 2, 14, 8, 30, 0, 0, time.UTC)
	embed := buildEmbed(&core.RichPayload{
		Title:       "📋 Your Tasks",
		Description: "2 active tasks",
		Type:        core.RichTypeTask,
		Fields: []core.RichField{
			{Name: "1. Brush your teeth", Value: "priority: high", Inline: true},
			{Name: "2. Pet Davey", Value: "priority: medium", Inline: false},
		},
		Footer:    "Reply with a task number",
		Timestamp: &ts,
	})

	require.NotNil(t, embed)
	assert.Equal(t, "📋 Your Tasks", embed.Title)
	assert.Equal(t, "2 active tasks", embed.Description)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "1. Brush your teeth", embed.Fields[0].Name)
	assert.True(t, embed.Fields[0].Inline)
	assert.False(t, embed.Fields[1].Inline)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Reply with a task number", embed.Footer.Text)
	assert.Equal(t, "2026-02-14T08:30:00Z", embed.Timestamp)
}

func TestBuildSuggestionRow_Empty(t *testing.T) {
	assert.Nil(t, buildSuggestionRow(nil))
}

func TestBuildSuggestionRow_CapsAtFive(t *testing.T) {
	components := buildSuggestionRow([]string{"a", "b", "c", "d", "e", "f", "g"})
	require.Len(t, components, 1)
	row, ok := components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	assert.Len(t, row.Components, maxRowButtons)
}

func TestBuildSuggestionRow_TruncatesLongLabels(t *testing.T) {
	long := strings.Repeat("x", 120)
	components := buildSuggestionRow([]string{long})
	row := components[0].(discordgo.ActionsRow)
	button := row.Components[0].(discordgo.Button)
	assert.Len(t, button.Label, maxButtonLabel)
}

func TestBuildSuggestionRow_CustomIDFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^suggestion_\d+_\d{1,4}$`)
	components := buildSuggestionRow([]string{"show my tasks", "cancel"})
	row := components[0].(discordgo.ActionsRow)
	for _, c := range row.Components {
		button := c.(discordgo.Button)
		assert.Regexp(t, pattern, button.CustomID)
	}

	// Same text yields the same id on every render.
	again := buildSuggestionRow([]string{"show my tasks", "cancel"})
	assert.Equal(t, components, again)
}

func TestBuildMessage_ViewOverridesSuggestions(t *testing.T) {
	msg := buildMessage("hello", nil, []string{"ignored"}, welcomeRow())
	require.Len(t, msg.Components, 1)
	row := msg.Components[0].(discordgo.ActionsRow)
	require.Len(t, row.Components, 2)
	assert.Equal(t, "welcome_create_account", row.Components[0].(discordgo.Button).CustomID)
	assert.Equal(t, "welcome_link_account", row.Components[1].(discordgo.Button).CustomID)
}

func TestBuildMessage_SuggestionsWhenNoView(t *testing.T) {
	msg := buildMessage("pick one", nil, []string{"confirm delete", "cancel"}, nil)
	require.Len(t, msg.Components, 1)
	row := msg.Components[0].(discordgo.ActionsRow)
	assert.Equal(t, "confirm delete", row.Components[0].(discordgo.Button).Label)
	assert.Equal(t, "cancel", row.Components[1].(discordgo.Button).Label)
}

func TestSuggestionLabel_RecoversClickedText(t *testing.T) {
	id := "suggestion_0_1234"
	msg := &discordgo.Message{
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					&discordgo.Button{Label: "show my tasks", CustomID: id},
					&discordgo.Button{Label: "cancel", CustomID: "suggestion_1_99"},
				},
			},
		},
	}

	label, ok := suggestionLabel(msg, id)
	require.True(t, ok)
	assert.Equal(t, "show my tasks", label)

	_, ok = suggestionLabel(msg, "suggestion_9_0")
	assert.False(t, ok)

	_, ok = suggestionLabel(nil, id)
	assert.False(t, ok)
}
