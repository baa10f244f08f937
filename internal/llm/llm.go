// Package llm wraps the hosted language models behind a small completion API.
package llm

import (
	"context"
	"errors"
	"fmt"

	"vocalsilence/internal/config"
)

var (
	// ErrDisabled is returned when no provider credentials are configured.
	ErrDisabled = errors.New("llm: provider not configured")
	// ErrEmptyResponse is returned when the provider answers without content.
	ErrEmptyResponse = errors.New("llm: empty response")
)

// Roles accepted in Message.Role
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one prior turn given to the model
type Message struct {
	Role    string
	Content string
}

// Request is a single completion call
type Request struct {
	Model     string
	System    string
	Messages  []Message
	JSON      bool // ask for a JSON object response
	MaxTokens int
}

// Completer produces a completion for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// NewCompleter builds the backend selected by cfg.Provider.
func NewCompleter(ctx context.Context, cfg *config.AIConfig) (Completer, error) {
	if !cfg.IsEnabled() {
		return nil, ErrDisabled
	}
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.GeminiKey, "")
	case config.ProviderOpenAI, "":
		return NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}

// Disabled is a Completer that always fails, so callers take their fallbacks.
type Disabled struct{}

func (Disabled) Complete(context.Context, Request) (string, error) {
	return "", ErrDisabled
}
