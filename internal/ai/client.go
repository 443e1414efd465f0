// Package ai wraps the OpenAI chat API behind the small surface the
// interaction pipeline consumes.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Per-call deadlines. Enhancement sits on the hot reply path and gets the
// tightest budget.
const (
	fallbackTimeout   = 8 * time.Second
	enhanceTimeout    = 3 * time.Second
	contextualTimeout = 10 * time.Second
)

// DefaultModel is used when the config names none.
const DefaultModel = "gpt-4o-mini"

// System prompts. All of them forbid markup because replies go straight to
// chat surfaces that render plain text.
const (
	fallbackSystemPrompt   = "You are a gentle wellness companion inside a chat bot. Reply in one or two short sentences, plain text only: no markdown, no code fences, no JSON, no roleplay preamble."
	enhanceSystemPrompt    = "Rewrite the given bot reply so it sounds a little warmer and more human. Keep the meaning and any numbers, names, or instructions exactly as they are. Plain text only, no markdown or JSON, at most three sentences."
	contextualSystemPrompt = "You are a gentle wellness companion. Ground your reply in the recent check-in summary you are given. One to three short sentences, plain text only: no markdown, no code fences, no JSON."
)

// ContextProvider supplies a short plain-text summary of the user's recent
// check-ins, or "" when there is nothing useful to add.
type ContextProvider func(userID string) string

// Config for the chatbot client.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

// Client calls the chat-completions API with per-operation deadlines.
type Client struct {
	client  openai.Client
	model   shared.ChatModel
	context ContextProvider
}

// NewClient builds the chatbot client. An empty API key is an error so the
// caller can run without AI features instead.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai: api key not configured")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: openai.NewClient(opts...),
		model:  shared.ChatModel(model),
	}, nil
}

// SetContextProvider enables check-in-aware replies for GenerateResponse.
func (c *Client) SetContextProvider(p ContextProvider) { c.context = p }

// GenerateResponse produces a free-form reply to an unclassified message.
// When the context provider has material for the user, the contextual
// variant with its larger deadline takes over.
func (c *Client) GenerateResponse(ctx context.Context, userID, message string) (string, error) {
	if c.context != nil {
		if summary := c.context(userID); summary != "" {
			return c.ContextualResponse(ctx, userID, message, summary)
		}
	}
	ctx, cancel := context.WithTimeout(ctx, fallbackTimeout)
	defer cancel()
	return c.complete(ctx, fallbackSystemPrompt, message, 220)
}

// EnhanceResponse rewords a reply more warmly. Callers treat any error as
// "keep the original".
func (c *Client) EnhanceResponse(ctx context.Context, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, enhanceTimeout)
	defer cancel()
	return c.complete(ctx, enhanceSystemPrompt, message, 180)
}

// ContextualResponse answers with the user's recent check-in summary folded
// into the prompt.
func (c *Client) ContextualResponse(ctx context.Context, _ string, message, summary string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, contextualTimeout)
	defer cancel()
	prompt := fmt.Sprintf("Recent check-ins:\n%s\n\nUser message:\n%s", summary, message)
	return c.complete(ctx, contextualSystemPrompt, prompt, 260)
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxCompletionTokens: openai.Int(maxTokens),
		Temperature:         openai.Float(0.7),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	text := strings.TrimSpace(completion.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion: empty reply")
	}
	return text, nil
}
