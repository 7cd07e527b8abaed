// Package embedding produces text embeddings via an external HTTP provider,
// with an LRU cache in front.
package embedding

import (
	"context"
	"errors"
)

// ErrUnavailable indicates the embedding provider could not be reached or
// returned an unusable response. Searches must surface this error rather
// than degrade into an empty result set.
var ErrUnavailable = errors.New("embedding provider unavailable")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
