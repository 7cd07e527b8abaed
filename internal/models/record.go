// Package models defines core data structures for vector records, search
// queries, and search results.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// VectorRecord is a stored embedding for one business entity. The pair
// (EntityType, EntityID) is the natural key; ID is the storage surrogate.
type VectorRecord struct {
	ID         int64                  `json:"id"`
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	Text       string                 `json:"text"`
	Embedding  []float32              `json:"-"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// Key returns the record key used in the vector and keyword indices,
// e.g. "task:42".
func (r *VectorRecord) Key() string {
	return RecordKey(r.EntityType, r.EntityID)
}

// RecordKey builds the index key for an entity.
func RecordKey(entityType string, entityID int64) string {
	return entityType + ":" + strconv.FormatInt(entityID, 10)
}

// ParseRecordKey splits an index key back into entity type and id.
func ParseRecordKey(key string) (entityType string, entityID int64, err error) {
	i := strings.LastIndexByte(key, ':')
	if i <= 0 {
		return "", 0, fmt.Errorf("malformed record key %q", key)
	}
	id, err := strconv.ParseInt(key[i+1:], 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed record key %q: %w", key, err)
	}
	return key[:i], id, nil
}

// IndexDescriptor describes a named vector index: its dimension and metric.
// Dimension is immutable while vectors exist; changing it requires a full
// rebuild from the record store.
type IndexDescriptor struct {
	Name        string    `json:"name"`
	Dimension   int       `json:"dimension"`
	Metric      string    `json:"metric"`
	IsActive    bool      `json:"is_active"`
	LastUpdated time.Time `json:"last_updated"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetricCosine is the only supported metric: inner product over
// unit-normalized vectors.
const MetricCosine = "cosine"

// SearchLog records one search call, success or failure.
type SearchLog struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	ResultsCount int       `json:"results_count"`
	DurationMs   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}
