package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
	"github.com/muesli/termenv"

	"github.com/matheuskafuri/newsintel/internal/store"
)

func TestAskScope(t *testing.T) {
	t.Cleanup(func() {
		flagAskLimit, flagAskCluster, flagAskSource, flagAskSince, flagAskBodies = 0, nil, nil, "", false
	})
	flagAskLimit = 4
	flagAskCluster = []string{"cluster_2"}
	flagAskSource = []string{"BBC"}
	flagAskSince = "2d"
	flagAskBodies = true

	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := askScope(now)
	if err != nil {
		t.Fatalf("askScope: %v", err)
	}
	want := store.Scope{
		Limit:         4,
		ClusterIDs:    []string{"cluster_2"},
		Sources:       []string{"BBC"},
		FromDate:      time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC),
		IncludeBodies: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("askScope mismatch (-want +got):\n%s", diff)
	}

	flagAskSince = "soon"
	if _, err := askScope(now); err == nil {
		t.Error("expected error for invalid --since")
	}
}

func TestCollectClusters(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	articles := []store.Article{
		{ID: "a", Title: "old", PublishedAt: base, Clusters: []string{"cluster_1"}},
		{ID: "b", Title: "new", PublishedAt: base.Add(time.Hour), Clusters: []string{"cluster_1", "cluster_0"}},
		{ID: "c", Title: "other", PublishedAt: base, Clusters: []string{"cluster_0"}},
	}

	views := collectClusters(articles)
	if len(views) != 2 {
		t.Fatalf("got %d clusters, want 2", len(views))
	}
	if views[0].ID != "cluster_0" || views[1].ID != "cluster_1" {
		t.Errorf("clusters not ordered by id: %s, %s", views[0].ID, views[1].ID)
	}
	var titles []string
	for _, a := range views[1].Members {
		titles = append(titles, a.Title)
	}
	if diff := cmp.Diff([]string{"new", "old"}, titles); diff != "" {
		t.Errorf("members not newest first (-want +got):\n%s", diff)
	}
}

func TestRenderClusters(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	views := []clusterView{
		{ID: "cluster_0", Summary: "Elections dominate the week.", Members: []store.Article{
			{Title: "Polls open", Source: "BBC", PublishedAt: time.Now()},
			{Title: "Turnout high", Source: "CNN", PublishedAt: time.Now()},
		}},
		{ID: "cluster_1"},
	}
	out := renderClusters(views, 1)

	for _, want := range []string{"2 cluster(s)", "cluster_0", "2 article(s)", "Elections dominate the week.", "Polls open", "no summary yet"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Turnout high") {
		t.Error("titles beyond the limit should be hidden")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{3 << 20, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatStats(t *testing.T) {
	got := formatStats(store.Stats{Articles: 5, Embedded: 4, Clustered: 3, Summarized: 2, ClusterSummaries: 1})
	want := "Articles: 5\nEmbedded: 4\nClustered: 3\nSummarized: 2\nCluster summaries: 1\n"
	if got != want {
		t.Errorf("formatStats = %q, want %q", got, want)
	}
}

func TestTruncateStr(t *testing.T) {
	tests := []struct {
		input string
		n     int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"abc", 3, "abc"},
		{"abcd", 3, "abc"},
		{"", 5, ""},
		{"test", 0, ""},
		{"日本語テスト", 5, "日本..."},
	}
	for _, tt := range tests {
		got := truncateStr(tt.input, tt.n)
		if got != tt.want {
			t.Errorf("truncateStr(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		t    time.Time
		want string
	}{
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-2 * 24 * time.Hour), "2d"},
		{time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), "Jun 15"},
	}
	for _, tt := range tests {
		got := relativeTime(tt.t)
		if got != tt.want {
			t.Errorf("relativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestIngestMaxResultsUsage(t *testing.T) {
	f := ingestCmd.Flags().Lookup("max-results")
	if f == nil {
		t.Fatal("max-results flag not registered")
	}
	if !strings.Contains(f.Usage, "stored articles") {
		t.Errorf("usage %q should describe the stored-article cap", f.Usage)
	}
}
