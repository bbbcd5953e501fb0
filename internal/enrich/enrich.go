// Package enrich derives embeddings and keywords for articles before they are stored.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/matheuskafuri/newsintel/internal/config"
)

var (
	// ErrMissingAPIKey is returned at construction when a cloud embedder has no key.
	ErrMissingAPIKey  = errors.New("enrich: embedder requires an API key (set GENAI_API_KEY)")
	ErrEmptyEmbedding = errors.New("enrich: embedder returned an empty vector")
	ErrNoKeywords     = errors.New("enrich: no keywords could be extracted")
)

// Embedder maps text to a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Enrichment is the derived data persisted alongside an article.
type Enrichment struct {
	Embedding []float64
	Keywords  []string
}

// Enricher pairs an embedder with in-process keyword ranking.
type Enricher struct {
	embedder    Embedder
	maxKeywords int
}

func New(e Embedder) *Enricher {
	return &Enricher{embedder: e, maxKeywords: DefaultKeywords}
}

// Enrich embeds title and body together and ranks keywords over the body alone.
// Any failure means nothing should be persisted for the article.
func (e *Enricher) Enrich(ctx context.Context, title, body string) (Enrichment, error) {
	vec, err := e.embedder.Embed(ctx, title+"\n\n"+body)
	if err != nil {
		return Enrichment{}, fmt.Errorf("embedding: %w", err)
	}
	if len(vec) == 0 {
		return Enrichment{}, ErrEmptyEmbedding
	}

	keywords := Keywords(body, e.maxKeywords)
	if len(keywords) == 0 {
		return Enrichment{}, ErrNoKeywords
	}
	return Enrichment{Embedding: vec, Keywords: keywords}, nil
}

// NewEmbedder builds the embedder selected by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg config.EmbedderConfig, timeout time.Duration) (Embedder, error) {
	switch cfg.Provider {
	case "hash", "":
		return NewHashEmbedder(cfg.Dimensions), nil
	case "ollama":
		return NewOllamaEmbedder(cfg.Ollama.BaseURL, cfg.Ollama.Model, &http.Client{Timeout: timeout}), nil
	case "genai":
		return NewGenAIEmbedder(ctx, cfg.GenAI.APIKey, cfg.GenAI.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedder: %q (valid: hash, ollama, genai)", cfg.Provider)
	}
}
