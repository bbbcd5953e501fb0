package preview

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheuskafuri/newsintel/internal/store"
)

func seeded(t *testing.T, n int) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	for i := 0; i < n; i++ {
		a, err := st.Insert(ctx, store.Article{
			Title:       fmt.Sprintf("Story %d", i),
			Body:        "text",
			Source:      "Wire",
			PublishedAt: time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC),
			Keywords:    []string{"text"},
			Embedding:   []float64{0.5, 0.5},
		})
		require.NoError(t, err)
		require.NoError(t, st.UpdateClusters(ctx, a.ID, []string{fmt.Sprintf("cluster_%d", i%2)}))
	}
	_, err = st.CreateClusterSummary(ctx, "cluster_0", "Even stories.")
	require.NoError(t, err)
	return st
}

func TestFetchResolvesClusters(t *testing.T) {
	svc := New(seeded(t, 4), 0)

	got, err := svc.Fetch(context.Background(), store.Scope{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, "Story 3", got[0].Title, "newest first")
	require.Len(t, got[0].Clusters, 1)
	assert.Equal(t, "cluster_1", got[0].Clusters[0].ID)
	assert.Nil(t, got[0].Clusters[0].Summary, "pending description")

	require.NotNil(t, got[1].Clusters[0].Summary)
	assert.Equal(t, "Even stories.", *got[1].Clusters[0].Summary)
}

func TestFetchDefaultLimit(t *testing.T) {
	got, err := New(seeded(t, 25), 0).Fetch(context.Background(), store.Scope{})
	require.NoError(t, err)
	assert.Len(t, got, DefaultLimit)

	got, err = New(seeded(t, 5), 3).Fetch(context.Background(), store.Scope{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestFetchClusterFilter(t *testing.T) {
	got, err := New(seeded(t, 6), 0).Fetch(context.Background(), store.Scope{ClusterIDs: []string{"cluster_0"}})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPreviewJSONHasNoEmbedding(t *testing.T) {
	got, err := New(seeded(t, 2), 0).Fetch(context.Background(), store.Scope{})
	require.NoError(t, err)

	data, err := json.Marshal(got)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "embedding")

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded[0], "publishedAt")
	assert.Contains(t, decoded[0], "clusters")
}
