package summary

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

// ErrEmptySummary is returned when the backend replies with no text.
var ErrEmptySummary = errors.New("backend returned an empty summary")

// ClusterSummarizer writes one description per cluster id, once.
type ClusterSummarizer struct {
	store   ClusterStore
	backend llm.Backend
	logger  *zap.Logger
}

func NewClusterSummarizer(st ClusterStore, backend llm.Backend, logger *zap.Logger) *ClusterSummarizer {
	return &ClusterSummarizer{store: st, backend: backend, logger: logging.OrNop(logger)}
}

type group struct {
	id      string
	members []store.Article
}

// groupByCluster keeps cluster ids in order of first appearance.
func groupByCluster(articles []store.Article) []*group {
	index := map[string]*group{}
	var groups []*group
	for _, a := range articles {
		for _, id := range a.Clusters {
			g, ok := index[id]
			if !ok {
				g = &group{id: id}
				index[id] = g
				groups = append(groups, g)
			}
			g.members = append(g.members, a)
		}
	}
	return groups
}

// fragments renders up to maxClusterMembers numbered "title: summary" lines.
func fragments(members []store.Article) string {
	if len(members) > maxClusterMembers {
		members = members[:maxClusterMembers]
	}
	lines := make([]string, len(members))
	for i, a := range members {
		line := fmt.Sprintf("%d. %s", i+1, a.Title)
		if a.Summary != nil && *a.Summary != "" {
			line += ": " + *a.Summary
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

// Run describes every cluster that has no cached summary. A failure on one
// cluster is logged and counted; the rest are still attempted.
func (s *ClusterSummarizer) Run(ctx context.Context) (Result, error) {
	var res Result

	articles, err := s.store.AllClustered(ctx)
	if err != nil {
		return res, fmt.Errorf("loading clustered articles: %w", err)
	}

	for _, g := range groupByCluster(articles) {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		existing, err := s.store.FindClusterSummary(ctx, g.id)
		if err != nil {
			res.Failed++
			s.logger.Warn("cluster summary lookup failed", zap.String("cluster", g.id), zap.Error(err))
			continue
		}
		if existing != nil {
			res.Skipped++
			s.logger.Debug("cluster already summarized", zap.String("cluster", g.id))
			continue
		}

		if err := s.describe(ctx, g); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				res.Skipped++
				continue
			}
			res.Failed++
			s.logger.Warn("cluster summary failed", zap.String("cluster", g.id), zap.Error(err))
			continue
		}
		res.Created++
	}

	s.logger.Info("cluster summaries finished",
		zap.Int("created", res.Created), zap.Int("skipped", res.Skipped), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *ClusterSummarizer) describe(ctx context.Context, g *group) error {
	text, err := complete(ctx, s.backend, clusterSystemPrompt, clusterUserPrompt+fragments(g.members))
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptySummary
	}
	if _, err := s.store.CreateClusterSummary(ctx, g.id, text); err != nil {
		return err
	}
	s.logger.Info("cluster summarized", zap.String("cluster", g.id), zap.Int("members", len(g.members)))
	return nil
}
