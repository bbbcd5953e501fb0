// Package summary generates cached natural-language descriptions of clusters
// and of individual articles.
package summary

import (
	"context"

	"github.com/matheuskafuri/newsintel/internal/llm"
	"github.com/matheuskafuri/newsintel/internal/store"
)

const (
	clusterSystemPrompt = "You are a journalist summarizing groups of news stories for a civic dashboard. " +
		"Describe the shared theme of the stories rather than listing them one by one."
	clusterUserPrompt   = "Summarize the following cluster of news stories in 1–2 sentences:\n\n"
	articleSystemPrompt = "Summarize this article concisely in 2-3 sentences."

	// maxClusterMembers bounds the prompt size per cluster.
	maxClusterMembers = 10
	// DefaultBatchSize is how many articles one ArticleSummarizer run handles.
	DefaultBatchSize = 5
)

// Result counts the outcome of a summarization run.
type Result struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ClusterStore is what ClusterSummarizer needs from the article store.
type ClusterStore interface {
	AllClustered(ctx context.Context) ([]store.Article, error)
	FindClusterSummary(ctx context.Context, id string) (*store.ClusterSummary, error)
	CreateClusterSummary(ctx context.Context, id, summary string) (store.ClusterSummary, error)
}

// ArticleStore is what ArticleSummarizer needs from the article store.
type ArticleStore interface {
	PendingSummaries(ctx context.Context, limit int) ([]store.Article, error)
	FindByID(ctx context.Context, id string) (*store.Article, error)
	UpdateSummary(ctx context.Context, id, summary string) error
}

func complete(ctx context.Context, backend llm.Backend, system, user string) (string, error) {
	reply, err := backend.Create(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: system},
		{Role: llm.RoleUser, Content: user},
	})
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
