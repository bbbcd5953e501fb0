package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/llm"
	"github.com/matheuskafuri/newsintel/internal/logging"
	"github.com/matheuskafuri/newsintel/internal/store"
)

// FallbackReply is returned when the backend answers without usable content.
const FallbackReply = "No response generated."

const instruction = `You are an analytical assistant helping users explore and reason about a news dataset.
Base your answers strictly on the provided context.
If information is missing or unclear, say so explicitly.`

var ErrEmptyQuestion = errors.New("chat: question is empty")

type Store interface {
	QueryByScope(ctx context.Context, scope store.Scope) ([]store.Article, error)
}

type Chat struct {
	store   Store
	backend llm.Backend
	shaper  Shaper
	logger  *zap.Logger
}

func New(st Store, backend llm.Backend, shaper Shaper, logger *zap.Logger) *Chat {
	return &Chat{store: st, backend: backend, shaper: shaper, logger: logging.OrNop(logger)}
}

// Messages builds the three-message conversation for a question over entries.
func Messages(question string, entries []Entry) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: instruction},
		{Role: llm.RoleSystem, Content: Render(entries)},
		{Role: llm.RoleUser, Content: question},
	}
}

// Answer asks the backend question over the articles visible through scope.
// Storage and transport errors are returned, never papered over.
func (c *Chat) Answer(ctx context.Context, question string, scope store.Scope) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	query := scope
	query.Limit = c.shaper.limit(scope)
	articles, err := c.store.QueryByScope(ctx, query)
	if err != nil {
		return "", fmt.Errorf("loading context: %w", err)
	}

	entries := c.shaper.Shape(scope, articles)
	c.logger.Debug("answering question", zap.Int("articles", len(entries)), zap.Bool("bodies", scope.IncludeBodies))

	reply, err := c.backend.Create(ctx, Messages(question, entries))
	if errors.Is(err, llm.ErrMalformedResponse) {
		c.logger.Warn("backend returned no usable content", zap.Error(err))
		return FallbackReply, nil
	}
	if err != nil {
		return "", err
	}
	if reply.Content == "" {
		return FallbackReply, nil
	}
	return reply.Content, nil
}
