// Package handlers implements single-turn intent handling. Each handler owns
// a family of intents, reads and writes the backing stores, and reports
// domain failures as user-visible reply text rather than errors.
package handlers

import (
	"github.com/Jacfogel/MHM-sub009/internal/core"
)

// Handler is the contract every intent handler satisfies. Handle must not
// panic; domain errors become reply text.
type Handler interface {
	CanHandle(intent string) bool
	Handle(userID string, cmd core.ParsedCommand) core.InteractionResponse
	Help() string
	Examples() []string
}

// Registry holds the handler set and routes intents to the first handler
// claiming them.
type Registry struct {
	handlers []Handler
}

func NewRegistry(hs ...Handler) *Registry {
	return &Registry{handlers: hs}
}

// Register appends a handler. Used for handlers constructed after the
// registry, like help, which introspects its siblings.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
}

// For returns the handler claiming the intent.
func (r *Registry) For(intent string) (Handler, bool) {
	for _, h := range r.handlers {
		if h.CanHandle(intent) {
			return h, true
		}
	}
	return nil, false
}

// Handlers returns the registered handlers in registration order.
func (r *Registry) Handlers() []Handler {
	return r.handlers
}

// Dispatch routes to the claiming handler. Unclaimed intents get a gentle
// redirect to help.
func (r *Registry) Dispatch(userID string, cmd core.ParsedCommand) core.InteractionResponse {
	h, ok := r.For(cmd.Intent)
	if !ok {
		return core.NewResponse("I'm not sure how to help with that yet. Try `help` to see what I can do.", true)
	}
	return h.Handle(userID, cmd)
}
