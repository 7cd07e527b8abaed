package models

// SearchHit is a single ranked search result.
type SearchHit struct {
	Score      float64                `json:"score"`
	EntityType string                 `json:"entity_type"`
	EntityID   int64                  `json:"entity_id"`
	Text       string                 `json:"text"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	// Entity carries the enriched source-of-truth record when an entity
	// lookup is configured; nil otherwise.
	Entity map[string]interface{} `json:"entity,omitempty"`
}

// SearchResponse is the response for a search request, with hits grouped
// by entity type.
type SearchResponse struct {
	Query        string                  `json:"query"`
	TotalResults int                     `json:"total_results"`
	DurationMs   int64                   `json:"duration_ms"`
	Results      map[string][]*SearchHit `json:"results"`
}
