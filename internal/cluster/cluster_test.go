package cluster

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/matheuskafuri/newsintel/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func insert(t *testing.T, st *store.Store, title string, vec []float64) store.Article {
	t.Helper()
	a, err := st.Insert(context.Background(), store.Article{
		Title:       title,
		Body:        "body " + title,
		Source:      "Wire",
		PublishedAt: time.Now(),
		Keywords:    []string{"body"},
		Embedding:   vec,
	})
	require.NoError(t, err)
	return a
}

func TestRunCoversEveryArticle(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		// Three well separated groups.
		g := float64(i % 3)
		insert(t, st, fmt.Sprintf("story %d", i), []float64{g * 10, g*10 + float64(i)*0.01, 1})
	}

	n, err := New(st, 5, zaptest.NewLogger(t)).Run(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 5)
	assert.GreaterOrEqual(t, n, 1)

	clustered, err := st.AllClustered(ctx)
	require.NoError(t, err)
	require.Len(t, clustered, 12)

	labels := map[string]bool{}
	for _, a := range clustered {
		require.Len(t, a.Clusters, 1, "article %s", a.Title)
		labels[a.Clusters[0]] = true
	}
	assert.LessOrEqual(t, len(labels), 5)
	assert.Equal(t, n, len(labels))
}

func TestRunFewerArticlesThanK(t *testing.T) {
	st := testStore(t)
	insert(t, st, "a", []float64{0, 1})
	insert(t, st, "b", []float64{5, 1})

	n, err := New(st, 5, nil).Run(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 2)

	clustered, _ := st.AllClustered(context.Background())
	assert.Len(t, clustered, 2)
}

func TestRunEmptyStore(t *testing.T) {
	n, err := New(testStore(t), 5, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunSkipsMismatchedDimensions(t *testing.T) {
	st := testStore(t)
	insert(t, st, "first", []float64{0, 1, 2})
	insert(t, st, "second", []float64{1, 1, 2})
	odd := insert(t, st, "odd", []float64{1, 2})

	_, err := New(st, 5, zaptest.NewLogger(t)).Run(context.Background())
	require.NoError(t, err)

	got, err := st.FindByID(context.Background(), odd.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Clusters)
}

func TestRunOverwritesPreviousLabels(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	a := insert(t, st, "a", []float64{0, 1})
	require.NoError(t, st.UpdateClusters(ctx, a.ID, []string{"cluster_7", "cluster_8"}))

	_, err := New(st, 1, nil).Run(ctx)
	require.NoError(t, err)

	got, _ := st.FindByID(ctx, a.ID)
	assert.Equal(t, []string{"cluster_0"}, got.Clusters)
}

func TestRunPrunesStaleSummaries(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insert(t, st, "a", []float64{0, 1})
	_, err := st.CreateClusterSummary(ctx, "cluster_0", "kept")
	require.NoError(t, err)
	_, err = st.CreateClusterSummary(ctx, "cluster_4", "stale")
	require.NoError(t, err)

	_, err = New(st, 1, nil).WithPruning(true).Run(ctx)
	require.NoError(t, err)

	all, err := st.ListClusterSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "cluster_0", all[0].ID)
}

func TestRunKeepsSummariesWithoutPruning(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	insert(t, st, "a", []float64{0, 1})
	_, _ = st.CreateClusterSummary(ctx, "cluster_4", "from an earlier run")

	_, err := New(st, 1, nil).Run(ctx)
	require.NoError(t, err)

	all, _ := st.ListClusterSummaries(ctx)
	assert.Len(t, all, 1)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "cluster_3", Label(3))
}
