// Package search runs semantic queries against the vector index and joins
// the hits back to stored records.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/taskmesh/semdex/internal/config"
	"github.com/taskmesh/semdex/internal/embedding"
	"github.com/taskmesh/semdex/internal/keyword"
	"github.com/taskmesh/semdex/internal/models"
	"github.com/taskmesh/semdex/internal/storage"
	"github.com/taskmesh/semdex/internal/vector"
	"github.com/taskmesh/semdex/pkg/utils"
)

// Service orchestrates semantic and keyword search.
type Service struct {
	store        storage.Store
	embedder     embedding.Embedder
	vectorIndex  *vector.FlatIndex
	keywordIndex keyword.Index
	lookup       EntityLookup
	cfg          *config.SearchConfig
	logger       *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for search events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEntityLookup enables result enrichment from a source-of-truth backend.
func WithEntityLookup(lookup EntityLookup) Option {
	return func(s *Service) { s.lookup = lookup }
}

// NewService creates a search service.
func NewService(
	store storage.Store,
	embedder embedding.Embedder,
	vectorIndex *vector.FlatIndex,
	keywordIndex keyword.Index,
	cfg *config.SearchConfig,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		cfg:          cfg,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search embeds the query, takes the top candidates from the vector index
// with overfetch headroom, applies filters, and returns up to Limit hits
// grouped by entity type. Every call is logged, including failures.
func (s *Service) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(s.cfg.DefaultLimit, s.cfg.MaxLimit); err != nil {
		return nil, err
	}

	emb, err := s.embedder.Embed(ctx, query.Query)
	if err != nil {
		s.logSearch(ctx, query.Query, 0, start)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	k := query.Limit * s.cfg.OverfetchFactor
	candidates, err := s.vectorIndex.Search(emb, k)
	if err != nil {
		s.logSearch(ctx, query.Query, 0, start)
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	minScore := query.MinScore
	if minScore == 0 {
		minScore = s.cfg.MinScore
	}

	var hits []*models.SearchHit
	for _, c := range candidates {
		if len(hits) >= query.Limit {
			break
		}
		if minScore > 0 && c.Score < minScore {
			// Candidates are sorted by score, nothing below passes either.
			break
		}
		hit, ok := s.resolveHit(ctx, c, query)
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}

	grouped := make(map[string][]*models.SearchHit)
	for _, hit := range hits {
		grouped[hit.EntityType] = append(grouped[hit.EntityType], hit)
	}
	s.enrich(ctx, grouped)

	s.logSearch(ctx, query.Query, len(hits), start)
	return &models.SearchResponse{
		Query:        query.Query,
		TotalResults: len(hits),
		DurationMs:   time.Since(start).Milliseconds(),
		Results:      grouped,
	}, nil
}

// resolveHit joins one index candidate to its stored record and applies the
// query filters. Keys no longer backed by a record are skipped.
func (s *Service) resolveHit(ctx context.Context, c vector.Result, query *models.SearchQuery) (*models.SearchHit, bool) {
	entityType, entityID, err := models.ParseRecordKey(c.Key)
	if err != nil {
		s.logger.Warn("malformed key in vector index", zap.String("key", c.Key))
		return nil, false
	}
	rec, err := s.store.Get(ctx, entityType, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("stale key in vector index", zap.String("key", c.Key))
		} else {
			s.logger.Error("failed to load record", zap.String("key", c.Key), zap.Error(err))
		}
		return nil, false
	}
	if !matchesEntityTypes(query.EntityTypes, rec) {
		return nil, false
	}
	if !matchesMetadata(query.Metadata, rec.Metadata) {
		return nil, false
	}
	return &models.SearchHit{
		Score:      c.Score,
		EntityType: rec.EntityType,
		EntityID:   rec.EntityID,
		Text:       utils.Truncate(rec.Text, s.cfg.TextPreviewChars),
		Metadata:   rec.Metadata,
	}, true
}

// SearchKeywords is the fallback path when embeddings are unavailable: a
// plain keyword match over record text, with Bleve's relevance scores.
func (s *Service) SearchKeywords(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	if err := query.Validate(s.cfg.DefaultLimit, s.cfg.MaxLimit); err != nil {
		return nil, err
	}

	k := query.Limit * s.cfg.OverfetchFactor
	matches, err := s.keywordIndex.Search(ctx, query.Query, k)
	if err != nil {
		s.logSearch(ctx, query.Query, 0, start)
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	var hits []*models.SearchHit
	for _, m := range matches {
		if len(hits) >= query.Limit {
			break
		}
		hit, ok := s.resolveHit(ctx, vector.Result{Key: m.ID, Score: m.Score}, query)
		if !ok {
			continue
		}
		hits = append(hits, hit)
	}

	grouped := make(map[string][]*models.SearchHit)
	for _, hit := range hits {
		grouped[hit.EntityType] = append(grouped[hit.EntityType], hit)
	}
	s.enrich(ctx, grouped)

	s.logSearch(ctx, query.Query, len(hits), start)
	return &models.SearchResponse{
		Query:        query.Query,
		TotalResults: len(hits),
		DurationMs:   time.Since(start).Milliseconds(),
		Results:      grouped,
	}, nil
}

func (s *Service) logSearch(ctx context.Context, query string, results int, start time.Time) {
	log := &models.SearchLog{
		Query:        query,
		ResultsCount: results,
		DurationMs:   time.Since(start).Milliseconds(),
	}
	// The log must outlive the request that produced it: a search killed by
	// its own deadline still gets a row.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.LogSearch(logCtx, log); err != nil {
		s.logger.Error("failed to write search log", zap.Error(err))
	}
}
