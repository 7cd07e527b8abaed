package models

import "fmt"

// SearchQuery represents a semantic search request with optional filters.
type SearchQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// EntityTypes restricts results to the listed types (OR semantics).
	// Empty means all types.
	EntityTypes []string `json:"entity_types,omitempty"`
	// Metadata is a conjunction of exact-value equality checks. A record
	// missing a filtered key is excluded.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	// MinScore drops hits below this cosine similarity. Zero means no floor.
	MinScore float64 `json:"min_score,omitempty"`
}

// Validate ensures the query has valid fields and normalizes the limit.
// Returns an error if the query text is empty.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// UpsertInput is the write-path input for indexing one entity.
type UpsertInput struct {
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Validate checks the identity fields. Text and metadata are validated at
// the store boundary.
func (in *UpsertInput) Validate() error {
	if in.EntityType == "" {
		return fmt.Errorf("entity_type cannot be empty")
	}
	if in.EntityID <= 0 {
		return fmt.Errorf("entity_id must be positive")
	}
	return nil
}
