// Package storage persists vector records, index descriptors, and search
// logs in SQLite.
package storage

import (
	"context"
	"errors"

	"github.com/taskmesh/semdex/internal/models"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyText indicates a record with empty or whitespace-only text.
	ErrEmptyText = errors.New("record text is empty")

	// ErrInvalidMetadata indicates a metadata value that is not a scalar.
	ErrInvalidMetadata = errors.New("metadata values must be scalar")
)

// Store is the persistence interface for vector records.
type Store interface {
	// Upsert inserts or replaces the record for (EntityType, EntityID) and
	// returns its row id. CreatedAt is preserved on replacement.
	Upsert(ctx context.Context, rec *models.VectorRecord) (int64, error)

	// Get returns the record for the given entity, or ErrNotFound.
	Get(ctx context.Context, entityType string, entityID int64) (*models.VectorRecord, error)

	// Delete removes the record for the given entity. Returns false when no
	// such record existed.
	Delete(ctx context.Context, entityType string, entityID int64) (bool, error)

	// ForEach calls fn for every stored record in insertion order. Iteration
	// stops at the first error fn returns.
	ForEach(ctx context.Context, fn func(*models.VectorRecord) error) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	// GetDescriptor returns the named index descriptor, or ErrNotFound.
	GetDescriptor(ctx context.Context, name string) (*models.IndexDescriptor, error)

	// PutDescriptor inserts or replaces an index descriptor.
	PutDescriptor(ctx context.Context, desc *models.IndexDescriptor) error

	// TouchDescriptor sets the named descriptor's last-updated time to now.
	TouchDescriptor(ctx context.Context, name string) error

	// LogSearch records one search execution. A missing ID is generated.
	LogSearch(ctx context.Context, log *models.SearchLog) error

	// RecentSearches returns the most recent search logs, newest first.
	RecentSearches(ctx context.Context, limit int) ([]*models.SearchLog, error)

	Close() error
}
