package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/llm"
	"github.com/matheuskafuri/newsintel/internal/logging"
	"github.com/matheuskafuri/newsintel/internal/queue"
	"github.com/matheuskafuri/newsintel/internal/store"
)

// Popper yields article ids to summarize. It returns queue.ErrEmpty when
// nothing is waiting.
type Popper interface {
	Pop(ctx context.Context) (string, error)
}

// Bounds of the pause between failed queue reads in Watch.
const (
	minPopBackoff = time.Second
	maxPopBackoff = 30 * time.Second
)

// ArticleSummarizer fills in the Summary field of stored articles.
type ArticleSummarizer struct {
	store      ArticleStore
	backend    llm.Backend
	logger     *zap.Logger
	popBackoff time.Duration
}

func NewArticleSummarizer(st ArticleStore, backend llm.Backend, logger *zap.Logger) *ArticleSummarizer {
	return &ArticleSummarizer{store: st, backend: backend, logger: logging.OrNop(logger), popBackoff: minPopBackoff}
}

// Run summarizes up to limit articles that have none yet.
func (s *ArticleSummarizer) Run(ctx context.Context, limit int) (Result, error) {
	var res Result
	if limit < 1 {
		limit = DefaultBatchSize
	}

	pending, err := s.store.PendingSummaries(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("loading pending articles: %w", err)
	}
	for _, a := range pending {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		s.tally(&res, a.ID, s.summarize(ctx, a))
	}
	return res, nil
}

// Watch summarizes ids popped from q until ctx is cancelled. Queue errors
// are logged and retried with backoff.
func (s *ArticleSummarizer) Watch(ctx context.Context, q Popper) error {
	s.logger.Info("watching summary queue")
	var res Result
	backoff := s.popBackoff
	for {
		id, err := q.Pop(ctx)
		switch {
		case ctx.Err() != nil:
			s.logger.Info("summary watcher stopped",
				zap.Int("created", res.Created), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
			return nil
		case errors.Is(err, queue.ErrEmpty):
			continue
		case err != nil:
			s.logger.Warn("queue read failed", zap.Duration("retry_in", backoff), zap.Error(err))
			select {
			case <-ctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxPopBackoff)
			continue
		}
		backoff = s.popBackoff

		a, err := s.store.FindByID(ctx, id)
		if err != nil {
			s.tally(&res, id, err)
			continue
		}
		if a.Summary != nil {
			res.Skipped++
			continue
		}
		s.tally(&res, id, s.summarize(ctx, *a))
	}
}

func (s *ArticleSummarizer) tally(res *Result, id string, err error) {
	switch {
	case err == nil:
		res.Created++
	case errors.Is(err, store.ErrDuplicate):
		res.Skipped++
	default:
		res.Failed++
		s.logger.Warn("article summary failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *ArticleSummarizer) summarize(ctx context.Context, a store.Article) error {
	text, err := complete(ctx, s.backend, articleSystemPrompt, a.Title+"\n\n"+a.Body)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptySummary
	}
	if err := s.store.UpdateSummary(ctx, a.ID, text); err != nil {
		return err
	}
	s.logger.Debug("article summarized", zap.String("id", a.ID))
	return nil
}
