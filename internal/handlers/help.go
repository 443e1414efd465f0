package handlers

import (
	"fmt"
	"strings"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
)

// HelpHandler answers help, commands, examples, and the start greeting. It
// introspects the registry for its siblings' help lines and examples.
type HelpHandler struct {
	registry *Registry
}

func NewHelpHandler(registry *Registry) *HelpHandler {
	return &HelpHandler{registry: registry}
}

func (h *HelpHandler) CanHandle(intent string) bool {
	switch intent {
	case command.IntentHelp, command.IntentCommands, command.IntentExamples, command.IntentStart:
		return true
	}
	return false
}

func (h *HelpHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	switch cmd.Intent {
	case command.IntentStart:
		return h.start()
	case command.IntentCommands:
		return h.commands()
	case command.IntentExamples:
		return h.examples()
	}
	return h.help()
}

func (h *HelpHandler) Help() string {
	return "Show what the bot can do, the command list, and usage examples."
}

func (h *HelpHandler) Examples() []string {
	return []string{"help", "commands", "examples"}
}

func (h *HelpHandler) start() core.InteractionResponse {
	msg := "👋 Hi! I'm your wellness companion. I can track your tasks, run daily check-ins, " +
		"and show you trends over time.\n\n" +
		"Try `start checkin` for a quick check-in, `create task <title>` to add a task, " +
		"or `help` to see everything I can do."
	return core.NewResponse(msg, true).
		WithSuggestions("start checkin", "create task <title>", "show my tasks", "help")
}

func (h *HelpHandler) help() core.InteractionResponse {
	var b strings.Builder
	b.WriteString("🤖 Here's what I can do:\n\n")
	for _, handler := range h.registry.Handlers() {
		if handler == h {
			continue
		}
		b.WriteString("• " + handler.Help() + "\n")
	}
	b.WriteString("\nSlash commands work too: ")
	names := make([]string, 0, len(command.Definitions()))
	for _, def := range command.Definitions() {
		names = append(names, "/"+def.Name)
	}
	b.WriteString(strings.Join(names, ", "))
	b.WriteString("\n\nSay `examples` for sample phrasings, or just tell me what you need.")
	return core.NewResponse(b.String(), true)
}

func (h *HelpHandler) commands() core.InteractionResponse {
	var b strings.Builder
	b.WriteString("Available commands (use `/name` or `!name`):\n")
	for _, def := range command.Definitions() {
		b.WriteString(fmt.Sprintf("/%s - %s\n", def.Name, def.Description))
	}
	return core.NewResponse(strings.TrimRight(b.String(), "\n"), true)
}

func (h *HelpHandler) examples() core.InteractionResponse {
	var b strings.Builder
	b.WriteString("Here are some things you can say:\n")
	for _, handler := range h.registry.Handlers() {
		if handler == h {
			continue
		}
		for _, ex := range handler.Examples() {
			b.WriteString("• " + ex + "\n")
		}
	}
	return core.NewResponse(strings.TrimRight(b.String(), "\n"), true)
}
