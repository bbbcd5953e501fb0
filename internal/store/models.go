package store

import "time"

// Article is one ingested news item with its derived enrichment fields.
// Embedding never leaves the store except through AllWithEmbedding.
// PublishedAtEstimated marks a PublishedAt that holds the ingestion time
// because the feed gave no date.
type Article struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Body                 string    `json:"body"`
	Source               string    `json:"source"`
	PublishedAt          time.Time `json:"publishedAt"`
	PublishedAtEstimated bool      `json:"publishedAtEstimated"`
	CreatedAt            time.Time `json:"createdAt"`
	Keywords             []string  `json:"keywords"`
	Embedding            []float64 `json:"-"`
	Clusters             []string  `json:"clusters"`
	Summary              *string   `json:"summary"`
	BiasRating           *string   `json:"biasRating"`
	CredibilityScore     *float64  `json:"credibilityScore"`
}

// HasCluster reports whether the article carries the given cluster label.
func (a Article) HasCluster(id string) bool {
	for _, c := range a.Clusters {
		if c == id {
			return true
		}
	}
	return false
}

// ClusterSummary is the cached description of one cluster id. Write-once.
type ClusterSummary struct {
	ID        string    `json:"id"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"createdAt"`
}

// ClusterAssignment replaces the cluster set of one article.
type ClusterAssignment struct {
	ArticleID string
	Clusters  []string
}

// Scope is a caller-supplied filter and limit set. Empty fields do not filter.
type Scope struct {
	Limit         int       `json:"limit,omitempty"`
	ClusterIDs    []string  `json:"clusterIds,omitempty"`
	ArticleIDs    []string  `json:"articleIds,omitempty"`
	Sources       []string  `json:"sources,omitempty"`
	FromDate      time.Time `json:"fromDate,omitempty"`
	ToDate        time.Time `json:"toDate,omitempty"`
	IncludeBodies bool      `json:"includeBodies,omitempty"`
}

// Stats summarizes the stored corpus.
type Stats struct {
	Articles         int
	Embedded         int
	Clustered        int
	Summarized       int
	ClusterSummaries int
}
