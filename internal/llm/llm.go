// Package llm provides the completion backends used by chat and summarization.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/matheuskafuri/newsintel/internal/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrMissingCredential is returned at construction when the remote
	// backend has no API key.
	ErrMissingCredential = errors.New("llm: remote backend requires an API key (set OPENAI_API_KEY)")
	// ErrMalformedResponse means the backend answered 2xx but with no usable content.
	ErrMalformedResponse = errors.New("llm: malformed response")
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend turns an ordered message list into one assistant message.
type Backend interface {
	Create(ctx context.Context, messages []Message) (Message, error)
}

// TransportError reports a network failure or a non-2xx reply.
type TransportError struct {
	Backend string
	Status  int // 0 when the request never got a response
	Body    string
	Err     error
}

func (e *TransportError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s request failed: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("%s request failed (%d): %s", e.Backend, e.Status, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

// New builds the backend selected by cfg.Mode. The choice is made once per process.
func New(cfg config.LLMConfig, timeout time.Duration) (Backend, error) {
	client := &http.Client{Timeout: timeout}

	switch cfg.Mode {
	case config.ModeLocal:
		return NewLocal(cfg.Local.BaseURL, cfg.Local.Model, client), nil
	case config.ModeRemote, "":
		return NewRemote(cfg.Remote.APIKey, cfg.Remote.BaseURL, cfg.Remote.Model, client)
	default:
		return nil, fmt.Errorf("unknown llm mode: %q (valid: remote, local)", cfg.Mode)
	}
}
