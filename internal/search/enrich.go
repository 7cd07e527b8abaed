package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/taskmesh/semdex/internal/models"
)

// EntityLookup fetches source-of-truth entity data for enrichment. One call
// is made per entity type present in the results.
type EntityLookup interface {
	Lookup(ctx context.Context, entityType string, ids []int64) (map[int64]map[string]interface{}, error)
}

// enrich attaches entity data to hits, one lookup per type. A failed or
// partial lookup leaves the affected hits unenriched; the search result
// itself is not degraded.
func (s *Service) enrich(ctx context.Context, grouped map[string][]*models.SearchHit) {
	if s.lookup == nil {
		return
	}
	for entityType, hits := range grouped {
		ids := make([]int64, len(hits))
		for i, hit := range hits {
			ids[i] = hit.EntityID
		}
		entities, err := s.lookup.Lookup(ctx, entityType, ids)
		if err != nil {
			s.logger.Warn("entity lookup failed",
				zap.String("entity_type", entityType),
				zap.Error(err))
			continue
		}
		for _, hit := range hits {
			if entity, ok := entities[hit.EntityID]; ok {
				hit.Entity = entity
			}
		}
	}
}
