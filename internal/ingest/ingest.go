// Package ingest pulls new articles from a feed, enriches them and stores them.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/enrich"
	"github.com/matheuskafuri/newsintel/internal/feed"
	"github.com/matheuskafuri/newsintel/internal/logging"
	"github.com/matheuskafuri/newsintel/internal/stage"
	"github.com/matheuskafuri/newsintel/internal/store"
)

// Store is the slice of the article store ingestion needs.
type Store interface {
	MostRecentPublishedAt(ctx context.Context) (time.Time, bool, error)
	FindByTitleSource(ctx context.Context, title, source string) (*store.Article, error)
	Insert(ctx context.Context, a store.Article) (store.Article, error)
}

type Enricher interface {
	Enrich(ctx context.Context, title, body string) (enrich.Enrichment, error)
}

// Notifier is told about every newly stored article.
type Notifier interface {
	Push(ctx context.Context, articleID string) error
}

// Stats counts what happened to each candidate in a run.
type Stats struct {
	Pages     int `json:"pages"`
	Fetched   int `json:"fetched"`
	Stored    int `json:"stored"`
	Invalid   int `json:"invalid"`
	Duplicate int `json:"duplicate"`
	Failed    int `json:"failed"`
}

type Pipeline struct {
	source   feed.Source
	store    Store
	enricher Enricher
	notifier Notifier
	retry    stage.Policy
	logger   *zap.Logger
	now      func() time.Time
}

func New(source feed.Source, st Store, enricher Enricher, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		source:   source,
		store:    st,
		enricher: enricher,
		retry:    stage.Policy{MaxAttempts: 1},
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// WithNotifier enables post-insert notification.
func (p *Pipeline) WithNotifier(n Notifier) *Pipeline {
	p.notifier = n
	return p
}

// WithRetry wraps enrichment in the given retry policy.
func (p *Pipeline) WithRetry(policy stage.Policy) *Pipeline {
	p.retry = policy
	return p
}

func (p *Pipeline) enrichStage() stage.Stage[store.Article, store.Article] {
	transform := func(ctx context.Context, a store.Article) (store.Article, error) {
		e, err := p.enricher.Enrich(ctx, a.Title, a.Body)
		if err != nil {
			return store.Article{}, err
		}
		a.Embedding = e.Embedding
		a.Keywords = e.Keywords
		return a, nil
	}
	return stage.Stage[store.Article, store.Article]{
		Transform: stage.Retry(p.retry, transform),
		Sink: func(ctx context.Context, a store.Article) error {
			_, err := p.store.Insert(ctx, a)
			return err
		},
	}
}

// Run ingests at most maxResults new articles, newest first, stopping at the
// first dated item that is not newer than the most recent stored article.
func (p *Pipeline) Run(ctx context.Context, pageSize, maxResults int) (Stats, error) {
	var stats Stats
	if pageSize < 1 || maxResults < 1 {
		return stats, fmt.Errorf("page size and max results must be positive (got %d, %d)", pageSize, maxResults)
	}

	mark, ok, err := p.store.MostRecentPublishedAt(ctx)
	if err != nil {
		return stats, err
	}
	if !ok {
		mark = time.Unix(0, 0).UTC()
	}
	p.logger.Info("ingest starting", zap.Time("since", mark), zap.Int("page_size", pageSize), zap.Int("max_results", maxResults))

	st := p.enrichStage()

	for page := 1; stats.Stored < maxResults; page++ {
		items, err := p.source.Fetch(ctx, page, pageSize)
		if err != nil {
			return stats, fmt.Errorf("fetching page %d: %w", page, err)
		}
		stats.Pages++
		if len(items) == 0 {
			break
		}
		stats.Fetched += len(items)

		caughtUp := false
		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			if stats.Stored >= maxResults {
				break
			}

			a, valid := p.candidate(item)
			if !valid {
				stats.Invalid++
				continue
			}
			if !a.PublishedAtEstimated && !a.PublishedAt.After(mark) {
				caughtUp = true
				break
			}

			existing, err := p.store.FindByTitleSource(ctx, a.Title, a.Source)
			if err != nil {
				stats.Failed++
				p.logger.Warn("dedupe lookup failed", zap.String("title", a.Title), zap.Error(err))
				continue
			}
			if existing != nil {
				stats.Duplicate++
				continue
			}

			stored, err := st.Process(ctx, a)
			switch {
			case errors.Is(err, store.ErrDuplicate):
				stats.Duplicate++
			case err != nil:
				stats.Failed++
				p.logger.Warn("article skipped", zap.String("title", a.Title), zap.String("source", a.Source), zap.Error(err))
			default:
				stats.Stored++
				p.logger.Debug("article stored", zap.String("id", stored.ID), zap.String("title", stored.Title))
				p.notify(ctx, stored.ID)
			}
		}

		if caughtUp || len(items) < pageSize {
			break
		}
	}

	p.logger.Info("ingest finished",
		zap.Int("stored", stats.Stored),
		zap.Int("invalid", stats.Invalid),
		zap.Int("duplicate", stats.Duplicate),
		zap.Int("failed", stats.Failed),
		zap.Int("pages", stats.Pages))
	return stats, nil
}

// candidate trims an item into an article. It reports false when a required
// field is empty.
func (p *Pipeline) candidate(item feed.Item) (store.Article, bool) {
	a := store.Article{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(item.Title),
		Body:        strings.TrimSpace(item.Body),
		Source:      strings.TrimSpace(item.Source),
		PublishedAt: item.PublishedAt,
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = p.now()
		a.PublishedAtEstimated = true
	}
	return a, a.Title != "" && a.Body != "" && a.Source != ""
}

func (p *Pipeline) notify(ctx context.Context, id string) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Push(ctx, id); err != nil {
		p.logger.Warn("queue notify failed", zap.String("id", id), zap.Error(err))
	}
}
