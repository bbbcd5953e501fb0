package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/matheuskafuri/newsintel/internal/llm"
	"github.com/matheuskafuri/newsintel/internal/store"
)

var base = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func corpus() []store.Article {
	return []store.Article{
		{ID: "a1", Title: "Flood warning", Source: "AP", PublishedAt: base, Body: "Rivers rise.", Clusters: []string{"cluster_0"}, Summary: strPtr("Rivers are rising.")},
		{ID: "a2", Title: "Budget passes", Source: "Reuters", PublishedAt: base.Add(-time.Hour), Body: "Council votes.", Clusters: []string{"cluster_1"}},
		{ID: "a3", Title: "Levee repairs", Source: "AP", PublishedAt: base.Add(-2 * time.Hour), Body: "Crews work.", Clusters: []string{"cluster_0"}},
		{ID: "a4", Title: "Transit fares", Source: "BBC", PublishedAt: base.Add(-3 * time.Hour), Body: "Fares rise.", Clusters: []string{"cluster_2"}},
	}
}

func titles(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Title)
	}
	return out
}

func TestShape(t *testing.T) {
	tests := []struct {
		name  string
		scope store.Scope
		want  []string
	}{
		{"no filters keeps order", store.Scope{}, []string{"Flood warning", "Budget passes", "Levee repairs", "Transit fares"}},
		{"limit", store.Scope{Limit: 2}, []string{"Flood warning", "Budget passes"}},
		{"cluster", store.Scope{ClusterIDs: []string{"cluster_0"}}, []string{"Flood warning", "Levee repairs"}},
		{"article ids", store.Scope{ArticleIDs: []string{"a4", "a2"}}, []string{"Budget passes", "Transit fares"}},
		{"source", store.Scope{Sources: []string{"BBC"}}, []string{"Transit fares"}},
		{"date range inclusive", store.Scope{FromDate: base.Add(-2 * time.Hour), ToDate: base.Add(-time.Hour)}, []string{"Budget passes", "Levee repairs"}},
		{"filters then limit", store.Scope{Sources: []string{"AP"}, Limit: 1}, []string{"Flood warning"}},
		{"nothing matches", store.Scope{ClusterIDs: []string{"cluster_9"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Shaper{DefaultLimit: 15}.Shape(tt.scope, corpus())
			assert.Equal(t, tt.want, titles(got))
			for i, e := range got {
				assert.Equal(t, i+1, e.Index)
			}
		})
	}
}

func TestShapeDefaultLimit(t *testing.T) {
	var many []store.Article
	for i := 0; i < 30; i++ {
		many = append(many, store.Article{ID: fmt.Sprint(i), Title: fmt.Sprint(i)})
	}
	assert.Len(t, Shaper{DefaultLimit: 15}.Shape(store.Scope{}, many), 15)
	assert.Len(t, Shaper{}.Shape(store.Scope{}, many), DefaultMaxArticles)
	assert.Len(t, Shaper{DefaultLimit: 15}.Shape(store.Scope{Limit: 20}, many), 20)
}

func TestShapeBodyDisclosure(t *testing.T) {
	for _, include := range []bool{false, true} {
		entries := Shaper{}.Shape(store.Scope{IncludeBodies: include}, corpus())
		for _, e := range entries {
			assert.Equal(t, include, e.Body != "", "includeBodies=%v entry %d", include, e.Index)
		}
	}
}

func TestShapeDoesNotMutateInput(t *testing.T) {
	in := corpus()
	_ = Shaper{}.Shape(store.Scope{Limit: 1, IncludeBodies: true}, in)
	assert.Equal(t, corpus(), in)
}

func TestRender(t *testing.T) {
	entries := []Entry{
		{Index: 1, Title: "Flood warning", Source: "AP", PublishedAt: base, Summary: "Rivers are rising."},
		{Index: 2, Title: "Budget passes", Source: "Reuters", PublishedAt: base, Body: "Council votes."},
	}
	want := "Article 1:\nTitle: Flood warning\nSource: AP\nPublished: 2024-03-10T09:00:00Z\nSummary: Rivers are rising." +
		"\n\n" +
		"Article 2:\nTitle: Budget passes\nSource: Reuters\nPublished: 2024-03-10T09:00:00Z\nSummary: (none)\nFull text:\nCouncil votes."
	assert.Equal(t, want, Render(entries))
	assert.Empty(t, Render(nil))
}

type fakeBackend struct {
	got   []llm.Message
	reply llm.Message
	err   error
}

func (f *fakeBackend) Create(_ context.Context, msgs []llm.Message) (llm.Message, error) {
	f.got = msgs
	return f.reply, f.err
}

type fakeStore struct {
	articles []store.Article
	err      error
	scope    store.Scope
}

func (f *fakeStore) QueryByScope(_ context.Context, scope store.Scope) ([]store.Article, error) {
	f.scope = scope
	return f.articles, f.err
}

var articleHeader = regexp.MustCompile(`(?m)^Article (\d+):$`)

func TestAnswerLimitsContext(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer st.Close()
	for i := 0; i < 5; i++ {
		_, err := st.Insert(context.Background(), store.Article{
			Title: fmt.Sprintf("Story %d", i), Body: "text", Source: "Wire",
			PublishedAt: base.Add(time.Duration(i) * time.Minute),
			Keywords:    []string{"text"}, Embedding: []float64{1},
		})
		require.NoError(t, err)
	}

	backend := &fakeBackend{reply: llm.Message{Role: llm.RoleAssistant, Content: "Two stories."}}
	reply, err := New(st, backend, Shaper{DefaultLimit: 15}, zaptest.NewLogger(t)).
		Answer(context.Background(), "What happened?", store.Scope{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, "Two stories.", reply)

	require.Len(t, backend.got, 3)
	assert.Equal(t, llm.RoleSystem, backend.got[0].Role)
	assert.Equal(t, llm.RoleSystem, backend.got[1].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "What happened?"}, backend.got[2])

	matches := articleHeader.FindAllStringSubmatch(backend.got[1].Content, -1)
	require.Len(t, matches, 2)
	assert.Equal(t, "1", matches[0][1])
	assert.Equal(t, "2", matches[1][1])
	assert.Contains(t, backend.got[1].Content, "Story 4", "newest article comes first")
	assert.NotContains(t, backend.got[1].Content, "Full text:")
}

func TestAnswerEmptyQuestion(t *testing.T) {
	backend := &fakeBackend{}
	_, err := New(&fakeStore{}, backend, Shaper{}, nil).Answer(context.Background(), "   ", store.Scope{})
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Nil(t, backend.got)
}

func TestAnswerFallback(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
	}{
		{"malformed", &fakeBackend{err: fmt.Errorf("%w: no choices", llm.ErrMalformedResponse)}},
		{"empty content", &fakeBackend{reply: llm.Message{Role: llm.RoleAssistant}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := New(&fakeStore{articles: corpus()}, tt.backend, Shaper{}, nil).
				Answer(context.Background(), "q", store.Scope{})
			require.NoError(t, err)
			assert.Equal(t, FallbackReply, reply)
		})
	}
}

func TestAnswerPropagatesErrors(t *testing.T) {
	transport := &llm.TransportError{Backend: "local", Status: 503, Body: "busy"}
	_, err := New(&fakeStore{articles: corpus()}, &fakeBackend{err: transport}, Shaper{}, nil).
		Answer(context.Background(), "q", store.Scope{})
	var te *llm.TransportError
	assert.True(t, errors.As(err, &te))

	dbErr := errors.New("db locked")
	_, err = New(&fakeStore{err: dbErr}, &fakeBackend{}, Shaper{}, nil).
		Answer(context.Background(), "q", store.Scope{})
	assert.ErrorIs(t, err, dbErr)
}

func TestAnswerPassesScopeToStore(t *testing.T) {
	fs := &fakeStore{articles: corpus()}
	backend := &fakeBackend{reply: llm.Message{Content: "ok"}}
	_, err := New(fs, backend, Shaper{DefaultLimit: 7}, nil).
		Answer(context.Background(), "q", store.Scope{Sources: []string{"AP"}, IncludeBodies: true})
	require.NoError(t, err)

	assert.Equal(t, 7, fs.scope.Limit)
	assert.Equal(t, []string{"AP"}, fs.scope.Sources)
	assert.True(t, strings.Contains(backend.got[1].Content, "Full text:\nRivers rise."))
}
