package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/matheuskafuri/newsintel/internal/config"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"markets fall sharply", 10, "markets..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestTruncateUTF8(t *testing.T) {
	// Japanese characters are multi-byte but should truncate by rune
	input := "こんにちは世界です"
	got := truncate(input, 5)
	want := "こん..."
	if got != want {
		t.Errorf("truncate(%q, 5) = %q, want %q", input, got, want)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"<p>Hello</p>", "Hello"},
		{"<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"No tags here", "No tags here"},
		{"<div>  Multiple   spaces  </div>", "Multiple spaces"},
		{"", ""},
		{"<a href=\"url\">Link</a> text", "Link text"},
	}
	for _, tt := range tests {
		got := stripHTML(tt.input)
		if got != tt.want {
			t.Errorf("stripHTML(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestNewsAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/top-headlines" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "key" {
			t.Errorf("expected api key header, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("country") != "us" || q.Get("page") != "2" || q.Get("pageSize") != "25" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `{"status":"ok","articles":[
			{"title":"Rates hold","content":"The bank held rates.","publishedAt":"2024-05-01T10:00:00Z","source":{"name":"Reuters"}},
			{"title":"No date","content":"x","source":{"name":"AP"}}
		]}`)
	}))
	defer srv.Close()

	n, err := NewNewsAPI("key", srv.URL, "", srv.Client())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	items, err := n.Fetch(context.Background(), 2, 25)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	want := Item{Title: "Rates hold", Body: "The bank held rates.", Source: "Reuters",
		PublishedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)}
	if items[0] != want {
		t.Errorf("got %+v, want %+v", items[0], want)
	}
	if !items[1].PublishedAt.IsZero() {
		t.Errorf("missing date should stay zero, got %v", items[1].PublishedAt)
	}
}

func TestNewsAPIErrors(t *testing.T) {
	if _, err := NewNewsAPI("", "", "", nil); err != ErrMissingAPIKey {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"status":"error","message":"bad key"}`)
	}))
	defer srv.Close()

	n, _ := NewNewsAPI("key", srv.URL, "", srv.Client())
	if _, err := n.Fetch(context.Background(), 1, 10); err == nil {
		t.Error("expected error on 401")
	}
}

const rssTemplate = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>%s</title>
<item><title>%s older</title><description>&lt;p&gt;Older story&lt;/p&gt;</description><pubDate>Mon, 01 Jan 2024 08:00:00 GMT</pubDate></item>
<item><title>%s newer</title><description>Newer story</description><pubDate>Mon, 01 Jan 2024 12:00:00 GMT</pubDate></item>
</channel></rss>`

func TestRSSFetchPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		name := r.URL.Path[1:]
		fmt.Fprintf(w, rssTemplate, name, name, name)
	}))
	defer srv.Close()

	rss := NewRSS([]config.Source{
		{Name: "One", Type: "rss", URL: srv.URL + "/one"},
		{Name: "Two", Type: "rss", URL: srv.URL + "/two"},
	}, 5*time.Second, zaptest.NewLogger(t))

	ctx := context.Background()
	first, err := rss.Fetch(ctx, 1, 3)
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("expected 3 items, got %d", len(first))
	}
	for i := 1; i < len(first); i++ {
		if first[i].PublishedAt.After(first[i-1].PublishedAt) {
			t.Errorf("items not newest first: %v", first)
		}
	}
	if first[len(first)-1].Body != "Older story" {
		t.Errorf("expected stripped body, got %q", first[len(first)-1].Body)
	}

	second, err := rss.Fetch(ctx, 2, 3)
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(second) != 1 {
		t.Errorf("expected 1 item on page 2, got %d", len(second))
	}
	third, _ := rss.Fetch(ctx, 3, 3)
	if len(third) != 0 {
		t.Errorf("expected exhausted source, got %d", len(third))
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("later pages should reuse the snapshot, got %d requests", n)
	}
}

func TestRSSAllSourcesFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	rss := NewRSS([]config.Source{{Name: "Down", Type: "rss", URL: srv.URL}}, time.Second, nil)
	if _, err := rss.Fetch(context.Background(), 1, 10); err == nil {
		t.Error("expected error when every source fails")
	}
}

func TestNewSelectsSource(t *testing.T) {
	if _, err := New(config.FeedConfig{Type: "newsapi"}, time.Second, nil); err != ErrMissingAPIKey {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
	src, err := New(config.FeedConfig{Type: "rss", Sources: []config.Source{{Name: "A", Enabled: true}, {Name: "B"}}}, time.Second, nil)
	if err != nil {
		t.Fatalf("rss: %v", err)
	}
	if got := len(src.(*RSS).sources); got != 1 {
		t.Errorf("expected only enabled sources, got %d", got)
	}
	if _, err := New(config.FeedConfig{Type: "gopher"}, time.Second, nil); err == nil {
		t.Error("expected error for unknown type")
	}
}
