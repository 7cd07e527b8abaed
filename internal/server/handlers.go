package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/taskmesh/semdex/internal/embedding"
	"github.com/taskmesh/semdex/internal/models"
	"github.com/taskmesh/semdex/internal/storage"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit))
	response, err := s.service.Search(r.Context(), &query)
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSearchKeywords(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	response, err := s.service.SearchKeywords(r.Context(), &query)
	if err != nil {
		s.respondSearchError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) respondSearchError(w http.ResponseWriter, err error) {
	s.logger.Error("search failed", zap.Error(err))
	switch {
	case errors.Is(err, embedding.ErrUnavailable):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleUpsertRecord(w http.ResponseWriter, r *http.Request) {
	var input models.UpsertInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := s.indexer.Upsert(r.Context(), &input)
	if err != nil {
		s.logger.Error("upsert failed", zap.Error(err))
		switch {
		case errors.Is(err, storage.ErrEmptyText), errors.Is(err, storage.ErrInvalidMetadata):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, embedding.ErrUnavailable):
			s.respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) recordParams(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	entityType := chi.URLParam(r, "type")
	entityID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || entityID <= 0 || entityType == "" {
		s.respondError(w, http.StatusBadRequest, "invalid entity type or id")
		return "", 0, false
	}
	return entityType, entityID, true
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := s.recordParams(w, r)
	if !ok {
		return
	}
	rec, err := s.store.Get(r.Context(), entityType, entityID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "record not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := s.recordParams(w, r)
	if !ok {
		return
	}
	s.logger.Debug("delete record request",
		zap.String("entity_type", entityType),
		zap.Int64("entity_id", entityID))
	existed, err := s.indexer.Delete(r.Context(), entityType, entityID)
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": existed})
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	n, err := s.indexer.RebuildAll(r.Context())
	if err != nil {
		s.logger.Error("rebuild failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"records": n, "status": "rebuilt"})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordCount, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"records":           recordCount,
		"vector_index_size": s.vectorIndex.Size(),
		"config": map[string]interface{}{
			"index_name":           s.config.Index.Name,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"metric":               models.MetricCosine,
			"database_path":        s.config.Storage.DatabasePath,
			"vector_index_path":    s.config.Storage.VectorIndexPath,
			"keyword_index_path":   s.config.Storage.KeywordIndexPath,
		},
	}

	if desc, err := s.store.GetDescriptor(ctx, s.config.Index.Name); err == nil {
		resp["index_last_updated"] = desc.LastUpdated
	}
	diskBytes, err := storage.DiskUsageBytes(
		s.config.Storage.DatabasePath,
		s.config.Storage.VectorIndexPath,
		s.config.Storage.KeywordIndexPath,
	)
	if err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	if logs, err := s.store.RecentSearches(ctx, 5); err == nil {
		resp["recent_searches"] = logs
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
