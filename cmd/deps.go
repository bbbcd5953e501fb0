package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/config"
	"github.com/matheuskafuri/newsintel/internal/enrich"
	"github.com/matheuskafuri/newsintel/internal/feed"
	"github.com/matheuskafuri/newsintel/internal/ingest"
	"github.com/matheuskafuri/newsintel/internal/llm"
	"github.com/matheuskafuri/newsintel/internal/queue"
	"github.com/matheuskafuri/newsintel/internal/stage"
	"github.com/matheuskafuri/newsintel/internal/store"
)

func openStore() (*store.Store, error) {
	if cfg.Store.Driver == "postgres" {
		st, err := store.OpenPostgres(cfg.Store.DSN)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		return st, nil
	}
	st, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}

func newBackend() (llm.Backend, error) {
	backend, err := llm.New(cfg.LLM, cfg.LLMTimeout())
	if err != nil {
		return nil, fmt.Errorf("configuring %s llm: %w", cfg.LLM.Mode, err)
	}
	return backend, nil
}

// openQueue returns nil when no redis address is configured.
func openQueue(ctx context.Context) (*queue.Redis, error) {
	if !cfg.QueueEnabled() {
		return nil, nil
	}
	q := queue.NewRedis(cfg.Queue.RedisAddr, cfg.Queue.Key)
	if err := q.Ping(ctx); err != nil {
		q.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Queue.RedisAddr, err)
	}
	return q, nil
}

func retryPolicy(c *config.Config) stage.Policy {
	return stage.Policy{
		MaxAttempts:       c.Ingest.Retry.MaxAttempts,
		InitialDelay:      c.RetryInitialDelay(),
		BackoffMultiplier: c.Ingest.Retry.BackoffMultiplier,
	}
}

// newPipeline wires feed, enricher and store into an ingest pipeline. The
// returned queue, if any, is owned by the caller.
func newPipeline(ctx context.Context, st *store.Store, log *zap.Logger) (*ingest.Pipeline, *queue.Redis, error) {
	source, err := feed.New(cfg.Feed, cfg.FeedTimeout(), log)
	if err != nil {
		return nil, nil, fmt.Errorf("configuring feed: %w", err)
	}
	embedder, err := enrich.NewEmbedder(ctx, cfg.Embedder, cfg.EmbedderTimeout())
	if err != nil {
		return nil, nil, fmt.Errorf("configuring embedder: %w", err)
	}

	p := ingest.New(source, st, enrich.New(embedder), log).WithRetry(retryPolicy(cfg))

	q, err := openQueue(ctx)
	if err != nil {
		return nil, nil, err
	}
	if q != nil {
		p = p.WithNotifier(q)
	}
	return p, q, nil
}
