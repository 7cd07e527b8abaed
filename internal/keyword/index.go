// Package keyword provides a Bleve-backed keyword index used as the
// fallback search path when semantic search is unavailable.
package keyword

import "context"

// Result is one keyword search hit. ID is the record key ("task:42").
type Result struct {
	ID    string
	Score float64
}

// Index is the keyword index over record text.
type Index interface {
	Index(ctx context.Context, id string, entityType, text string) error
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}
