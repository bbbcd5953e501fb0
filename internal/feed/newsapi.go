package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAPIKey is returned at construction when NewsAPI has no key.
var ErrMissingAPIKey = errors.New("feed: newsapi requires an API key (set NEWS_API_KEY)")

// NewsAPI pages through the top-headlines endpoint of newsapi.org.
type NewsAPI struct {
	apiKey  string
	baseURL string
	country string
	client  *http.Client
}

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func NewNewsAPI(apiKey, baseURL, country string, client *http.Client) (*NewsAPI, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if baseURL == "" {
		baseURL = "https://newsapi.org/v2"
	}
	if country == "" {
		country = "us"
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &NewsAPI{apiKey: apiKey, baseURL: strings.TrimRight(baseURL, "/"), country: country, client: client}, nil
}

func (n *NewsAPI) Fetch(ctx context.Context, page, pageSize int) ([]Item, error) {
	q := url.Values{}
	q.Set("country", n.country)
	q.Set("page", strconv.Itoa(page))
	q.Set("pageSize", strconv.Itoa(pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/top-headlines?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("newsapi %d: %s", resp.StatusCode, string(b))
	}

	var nr newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
		return nil, fmt.Errorf("decoding newsapi response: %w", err)
	}
	if nr.Status == "error" {
		return nil, fmt.Errorf("newsapi: %s", nr.Message)
	}

	items := make([]Item, 0, len(nr.Articles))
	for _, a := range nr.Articles {
		item := Item{Title: a.Title, Body: a.Content, Source: a.Source.Name}
		if t, err := time.Parse(time.RFC3339, a.PublishedAt); err == nil {
			item.PublishedAt = t
		}
		items = append(items, item)
	}
	return items, nil
}
