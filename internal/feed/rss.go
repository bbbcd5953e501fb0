package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/matheuskafuri/newsintel/internal/config"
)

// maxBodyRunes caps RSS bodies, which sometimes carry whole articles as HTML.
const maxBodyRunes = 4000

// RSS merges several RSS/Atom feeds into one newest-first sequence. Page 1
// refetches every source; later pages slice the snapshot taken by page 1.
type RSS struct {
	sources []config.Source
	timeout time.Duration
	logger  *zap.Logger

	mu       sync.Mutex
	snapshot []Item
}

func NewRSS(sources []config.Source, timeout time.Duration, logger *zap.Logger) *RSS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RSS{sources: sources, timeout: timeout, logger: logger}
}

func (r *RSS) Fetch(ctx context.Context, page, pageSize int) ([]Item, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid page %d/%d", page, pageSize)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if page == 1 || r.snapshot == nil {
		items, err := r.fetchAll(ctx)
		if err != nil {
			return nil, err
		}
		r.snapshot = items
	}

	start := (page - 1) * pageSize
	if start >= len(r.snapshot) {
		return nil, nil
	}
	end := min(start+pageSize, len(r.snapshot))
	return r.snapshot[start:end], nil
}

// fetchAll fails only when every source fails.
func (r *RSS) fetchAll(ctx context.Context) ([]Item, error) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items []Item
		errs  []error
	)

	for _, src := range r.sources {
		wg.Add(1)
		go func(s config.Source) {
			defer wg.Done()
			got, err := r.fetchSource(ctx, s)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("feed fetch failed", zap.String("source", s.Name), zap.Error(err))
				errs = append(errs, err)
				return
			}
			items = append(items, got...)
		}(src)
	}
	wg.Wait()

	if len(errs) > 0 && len(errs) == len(r.sources) {
		return nil, fmt.Errorf("all %d feeds failed: %w", len(errs), errs[0])
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	return items, nil
}

func (r *RSS) fetchSource(ctx context.Context, source config.Source) ([]Item, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	parsed, err := gofeed.NewParser().ParseURLWithContext(source.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		var pub time.Time
		if it.PublishedParsed != nil {
			pub = *it.PublishedParsed
		} else if it.UpdatedParsed != nil {
			pub = *it.UpdatedParsed
		}

		body := it.Content
		if body == "" {
			body = it.Description
		}

		items = append(items, Item{
			Title:       stripHTML(it.Title),
			Body:        truncate(stripHTML(body), maxBodyRunes),
			Source:      source.Name,
			PublishedAt: pub,
		})
	}
	return items, nil
}
