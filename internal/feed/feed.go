// Package feed fetches candidate articles from external news sources.
package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/config"
)

// Item is one raw candidate as returned by a source. Fields are untrimmed and
// may be empty; PublishedAt is zero when the source did not provide one.
type Item struct {
	Title       string
	Body        string
	Source      string
	PublishedAt time.Time
}

// Source returns pages of candidates, newest first. Pages start at 1. An empty
// page means the source is exhausted.
type Source interface {
	Fetch(ctx context.Context, page, pageSize int) ([]Item, error)
}

// New builds the source selected by cfg.Type.
func New(cfg config.FeedConfig, timeout time.Duration, logger *zap.Logger) (Source, error) {
	switch cfg.Type {
	case "newsapi", "":
		return NewNewsAPI(cfg.NewsAPI.APIKey, cfg.NewsAPI.BaseURL, cfg.NewsAPI.Country, &http.Client{Timeout: timeout})
	case "rss":
		var sources []config.Source
		for _, s := range cfg.Sources {
			if s.Enabled {
				sources = append(sources, s)
			}
		}
		return NewRSS(sources, timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown feed type: %q (valid: newsapi, rss)", cfg.Type)
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

func stripHTML(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
