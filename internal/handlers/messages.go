package handlers

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Jacfogel/MHM-sub009/internal/command"
	"github.com/Jacfogel/MHM-sub009/internal/core"
	"github.com/Jacfogel/MHM-sub009/internal/store"
)

// MessagesHandler shows the user's recent outbound message history.
type MessagesHandler struct {
	messages *store.MessageStore
}

func NewMessagesHandler(messages *store.MessageStore) *MessagesHandler {
	return &MessagesHandler{messages: messages}
}

func (h *MessagesHandler) CanHandle(intent string) bool {
	return intent == command.IntentShowMessages
}

func (h *MessagesHandler) Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	records, err := h.messages.Recent(userID, 10)
	if err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("message history load failed")
		return core.NewResponse("I couldn't load your message history just now. Please try again.", true)
	}
	if len(records) == 0 {
		return core.NewResponse("I haven't sent you any messages yet.", true)
	}

	var b strings.Builder
	b.WriteString("💬 Recent messages I've sent you:\n")
	for _, r := range records {
		content := r.Content
		if len(content) > 60 {
			content = content[:57] + "..."
		}
		b.WriteString(fmt.Sprintf("%s [%s] %s\n", r.CreatedAt.Format("Jan 2 15:04"), r.Kind, content))
	}
	return core.NewResponse(strings.TrimRight(b.String(), "\n"), true)
}

func (h *MessagesHandler) Help() string {
	return "Review the recent reminders and replies the bot has sent you."
}

func (h *MessagesHandler) Examples() []string {
	return []string{"show messages"}
}
