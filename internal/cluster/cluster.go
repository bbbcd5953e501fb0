// Package cluster groups stored articles into topical clusters with k-means
// over their embeddings.
package cluster

import (
	"context"
	"fmt"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/logging"
	"github.com/matheuskafuri/newsintel/internal/store"
)

// DefaultMaxK is the cluster count ceiling when none is configured.
const DefaultMaxK = 5

type Store interface {
	AllWithEmbedding(ctx context.Context) ([]store.Article, error)
	ApplyClusters(ctx context.Context, assignments []store.ClusterAssignment) error
	DeleteClusterSummariesExcept(ctx context.Context, keep []string) (int64, error)
}

type Engine struct {
	store  Store
	maxK   int
	prune  bool
	logger *zap.Logger
}

func New(st Store, maxK int, logger *zap.Logger) *Engine {
	if maxK < 1 {
		maxK = DefaultMaxK
	}
	return &Engine{store: st, maxK: maxK, logger: logging.OrNop(logger)}
}

// WithPruning makes Run drop cached summaries for ids it did not produce.
func (e *Engine) WithPruning(prune bool) *Engine {
	e.prune = prune
	return e
}

// Label is the cluster id for partition index i.
func Label(i int) string {
	return fmt.Sprintf("cluster_%d", i)
}

// point is an embedding that remembers which article it came from.
type point struct {
	articleID string
	coords    clusters.Coordinates
}

func (p point) Coordinates() clusters.Coordinates { return p.coords }

func (p point) Distance(c clusters.Coordinates) float64 { return p.coords.Distance(c) }

// Run recomputes every article's cluster from scratch and returns how many
// non-empty clusters were produced.
func (e *Engine) Run(ctx context.Context) (int, error) {
	articles, err := e.store.AllWithEmbedding(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading embeddings: %w", err)
	}
	if len(articles) == 0 {
		e.logger.Info("no embedded articles to cluster")
		return 0, nil
	}

	dims := len(articles[0].Embedding)
	var data clusters.Observations
	for _, a := range articles {
		if len(a.Embedding) != dims {
			e.logger.Warn("skipping article with mismatched embedding",
				zap.String("id", a.ID), zap.Int("dims", len(a.Embedding)), zap.Int("want", dims))
			continue
		}
		data = append(data, point{articleID: a.ID, coords: clusters.Coordinates(a.Embedding)})
	}

	k := min(e.maxK, len(data))
	partitions, err := kmeans.New().Partition(data, k)
	if err != nil {
		return 0, fmt.Errorf("partitioning %d articles into %d clusters: %w", len(data), k, err)
	}

	var (
		assignments []store.ClusterAssignment
		labels      []string
	)
	for i, c := range partitions {
		if len(c.Observations) == 0 {
			continue
		}
		label := Label(i)
		labels = append(labels, label)
		for _, o := range c.Observations {
			p, ok := o.(point)
			if !ok {
				return 0, fmt.Errorf("unexpected observation type %T", o)
			}
			assignments = append(assignments, store.ClusterAssignment{ArticleID: p.articleID, Clusters: []string{label}})
		}
	}

	if err := e.store.ApplyClusters(ctx, assignments); err != nil {
		return 0, fmt.Errorf("writing cluster labels: %w", err)
	}

	if e.prune {
		n, err := e.store.DeleteClusterSummariesExcept(ctx, labels)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			e.logger.Info("pruned stale cluster summaries", zap.Int64("count", n))
		}
	}

	e.logger.Info("clustering finished",
		zap.Int("articles", len(assignments)), zap.Int("k", k), zap.Int("clusters", len(labels)))
	return len(labels), nil
}
