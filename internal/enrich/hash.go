package enrich

import (
	"context"
	"math"

	"github.com/cespare/xxhash/v2"
)

const defaultDimensions = 384

// HashEmbedder projects token counts into a fixed number of buckets with
// signed feature hashing. It is deterministic and needs no network.
type HashEmbedder struct {
	dims int
}

func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = defaultDimensions
	}
	return &HashEmbedder{dims: dims}
}

// Embed returns an L2-normalized vector, or nil when text has no tokens.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	vec := make([]float64, h.dims)
	for _, tok := range tokens {
		sum := xxhash.Sum64String(tok)
		idx := sum % uint64(h.dims)
		if sum>>63 == 1 {
			vec[idx]--
		} else {
			vec[idx]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		// Every token cancelled out; keep the vector non-degenerate.
		vec[xxhash.Sum64String(tokens[0])%uint64(h.dims)] = 1
		return vec, nil
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec, nil
}
