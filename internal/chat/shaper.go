// Package chat answers questions over a scoped slice of the article corpus.
package chat

import (
	"slices"
	"time"

	"github.com/matheuskafuri/newsintel/internal/store"
)

// DefaultMaxArticles bounds the context when neither scope nor config sets a limit.
const DefaultMaxArticles = 15

// Entry is one article as presented to the completion backend.
type Entry struct {
	Index       int
	Title       string
	Source      string
	PublishedAt time.Time
	Summary     string
	Body        string
}

// Shaper selects and truncates articles into prompt context.
type Shaper struct {
	DefaultLimit int
}

func (s Shaper) limit(scope store.Scope) int {
	switch {
	case scope.Limit > 0:
		return scope.Limit
	case s.DefaultLimit > 0:
		return s.DefaultLimit
	default:
		return DefaultMaxArticles
	}
}

// Shape filters articles by scope, keeps their order, truncates to the scope
// limit and numbers the survivors from 1. It has no side effects.
func (s Shaper) Shape(scope store.Scope, articles []store.Article) []Entry {
	limit := s.limit(scope)
	entries := make([]Entry, 0, min(limit, len(articles)))

	for _, a := range articles {
		if len(entries) == limit {
			break
		}
		if !matches(scope, a) {
			continue
		}
		e := Entry{
			Index:       len(entries) + 1,
			Title:       a.Title,
			Source:      a.Source,
			PublishedAt: a.PublishedAt,
		}
		if a.Summary != nil {
			e.Summary = *a.Summary
		}
		if scope.IncludeBodies {
			e.Body = a.Body
		}
		entries = append(entries, e)
	}
	return entries
}

func matches(scope store.Scope, a store.Article) bool {
	if len(scope.ArticleIDs) > 0 && !slices.Contains(scope.ArticleIDs, a.ID) {
		return false
	}
	if len(scope.Sources) > 0 && !slices.Contains(scope.Sources, a.Source) {
		return false
	}
	if len(scope.ClusterIDs) > 0 && !slices.ContainsFunc(scope.ClusterIDs, a.HasCluster) {
		return false
	}
	if !scope.FromDate.IsZero() && a.PublishedAt.Before(scope.FromDate) {
		return false
	}
	if !scope.ToDate.IsZero() && a.PublishedAt.After(scope.ToDate) {
		return false
	}
	return true
}
