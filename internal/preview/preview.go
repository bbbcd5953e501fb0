// Package preview serves scoped article listings with cluster ids resolved
// to their cached descriptions.
package preview

import (
	"context"
	"fmt"
	"time"

	"github.com/matheuskafuri/newsintel/internal/store"
)

// DefaultLimit applies when neither the scope nor the service sets one.
const DefaultLimit = 20

// ClusterRef is a cluster id with its summary, nil while the description is pending.
type ClusterRef struct {
	ID      string  `json:"id"`
	Summary *string `json:"summary"`
}

// ArticlePreview is the outward view of an article. It has no embedding field.
type ArticlePreview struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Body             string       `json:"body"`
	Source           string       `json:"source"`
	PublishedAt      time.Time    `json:"publishedAt"`
	CreatedAt        time.Time    `json:"createdAt"`
	Keywords         []string     `json:"keywords"`
	Clusters         []ClusterRef `json:"clusters"`
	Summary          *string      `json:"summary"`
	BiasRating       *string      `json:"biasRating"`
	CredibilityScore *float64     `json:"credibilityScore"`
}

type Store interface {
	QueryByScope(ctx context.Context, scope store.Scope) ([]store.Article, error)
	ClusterSummaries(ctx context.Context, ids []string) (map[string]string, error)
}

type Service struct {
	store        Store
	defaultLimit int
}

func New(st Store, defaultLimit int) *Service {
	if defaultLimit < 1 {
		defaultLimit = DefaultLimit
	}
	return &Service{store: st, defaultLimit: defaultLimit}
}

// Fetch returns the scoped articles newest first.
func (s *Service) Fetch(ctx context.Context, scope store.Scope) ([]ArticlePreview, error) {
	if scope.Limit < 1 {
		scope.Limit = s.defaultLimit
	}

	articles, err := s.store.QueryByScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("querying articles: %w", err)
	}

	seen := map[string]bool{}
	var ids []string
	for _, a := range articles {
		for _, id := range a.Clusters {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	summaries, err := s.store.ClusterSummaries(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving cluster summaries: %w", err)
	}

	out := make([]ArticlePreview, len(articles))
	for i, a := range articles {
		refs := make([]ClusterRef, len(a.Clusters))
		for j, id := range a.Clusters {
			refs[j] = ClusterRef{ID: id}
			if text, ok := summaries[id]; ok {
				refs[j].Summary = &text
			}
		}
		out[i] = ArticlePreview{
			ID:               a.ID,
			Title:            a.Title,
			Body:             a.Body,
			Source:           a.Source,
			PublishedAt:      a.PublishedAt,
			CreatedAt:        a.CreatedAt,
			Keywords:         a.Keywords,
			Clusters:         refs,
			Summary:          a.Summary,
			BiasRating:       a.BiasRating,
			CredibilityScore: a.CredibilityScore,
		}
	}
	return out, nil
}
