// Package command implements the rule-based utterance parser and the command
// table the slash and bang surfaces derive from.
package command

// CommandDefinition describes one top-level command. The table below is the
// single source of truth: both the slash map and the bang map derive from it.
type CommandDefinition struct {
	Name          string `json:"name"`
	MappedMessage string `json:"mapped_message"`
	Description   string `json:"description"`
	IsFlow        bool   `json:"is_flow"`
}

// Definitions returns the canonical ordered command list.
func Definitions() []CommandDefinition {
	return []CommandDefinition{
		{Name: "start", MappedMessage: "start", Description: "Introduce the bot and link your account", IsFlow: false},
		{Name: "tasks", MappedMessage: "show my tasks", Description: "List your active tasks", IsFlow: false},
		{Name: "profile", MappedMessage: "show profile", Description: "Show your profile and preferences", IsFlow: false},
		{Name: "schedule", MappedMessage: "show schedule", Description: "Show your schedule periods", IsFlow: false},
		{Name: "messages", MappedMessage: "show messages", Description: "Show recent messages from the bot", IsFlow: false},
		{Name: "analytics", MappedMessage: "show analytics", Description: "Show your wellness analytics", IsFlow: false},
		{Name: "status", MappedMessage: "status", Description: "Show bot status", IsFlow: false},
		{Name: "help", MappedMessage: "help", Description: "Show available commands", IsFlow: false},
		{Name: "checkin", MappedMessage: "start checkin", Description: "Start a wellness check-in", IsFlow: true},
		{Name: "restart", MappedMessage: "restart checkin", Description: "Restart your check-in from scratch", IsFlow: true},
		{Name: "clear", MappedMessage: "clear flows", Description: "Clear any stuck conversation flows", IsFlow: true},
		{Name: "cancel", MappedMessage: "/cancel", Description: "Cancel the current flow", IsFlow: false},
	}
}

// ByName looks a command up in the canonical table.
func ByName(name string) (CommandDefinition, bool) {
	for _, def := range Definitions() {
		if def.Name == name {
			return def, true
		}
	}
	return CommandDefinition{}, false
}

// SlashMap returns the slash-command surface derived from the table.
func SlashMap() map[string]CommandDefinition {
	return surfaceMap()
}

// BangMap returns the bang-command surface derived from the table. It covers
// exactly the same names as SlashMap.
func BangMap() map[string]CommandDefinition {
	return surfaceMap()
}

func surfaceMap() map[string]CommandDefinition {
	defs := Definitions()
	m := make(map[string]CommandDefinition, len(defs))
	for _, def := range defs {
		m[def.Name] = def
	}
	return m
}
