// Package indexer coordinates writes across the record store, the vector
// index, and the keyword index.
package indexer

import (
	"context"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/taskmesh/semdex/internal/config"
	"github.com/taskmesh/semdex/internal/embedding"
	"github.com/taskmesh/semdex/internal/extract"
	"github.com/taskmesh/semdex/internal/keyword"
	"github.com/taskmesh/semdex/internal/models"
	"github.com/taskmesh/semdex/internal/storage"
	"github.com/taskmesh/semdex/internal/vector"
)

// Indexer applies entity writes to the store and both indices. Removals from
// the vector index are collected and applied with one rebuild per batch
// window; a window of zero rebuilds immediately.
type Indexer struct {
	store        storage.Store
	embedder     embedding.Embedder
	vectorIndex  *vector.FlatIndex
	keywordIndex keyword.Index
	extractor    *extract.Extractor
	indexName    string
	indexPath    string
	batchWindow  time.Duration
	logger       *zap.Logger

	mu             sync.Mutex
	pendingRemoves int

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets a logger for write-path events.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil; IngestFile then treats every file as plain text.
func NewIndexer(
	store storage.Store,
	embedder embedding.Embedder,
	vectorIndex *vector.FlatIndex,
	keywordIndex keyword.Index,
	cfg *config.Config,
	extractor *extract.Extractor,
	opts ...Option,
) *Indexer {
	idx := &Indexer{
		store:        store,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		extractor:    extractor,
		indexName:    cfg.Index.Name,
		indexPath:    cfg.Storage.VectorIndexPath,
		batchWindow:  cfg.Index.BatchWindow(),
		logger:       zap.NewNop(),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Upsert embeds the input text and writes the record to the store and both
// indices. Re-upserting an existing entity replaces its vector in place.
func (idx *Indexer) Upsert(ctx context.Context, input *models.UpsertInput) (*models.VectorRecord, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	emb, err := idx.embedder.Embed(ctx, input.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", models.RecordKey(input.EntityType, input.EntityID), err)
	}
	// Reject a mis-sized embedding before any write so a failed upsert
	// leaves no stored record the index cannot hold.
	if len(emb) != idx.vectorIndex.Dimensions() {
		return nil, fmt.Errorf("embedding for %s: %w: got %d, index wants %d",
			models.RecordKey(input.EntityType, input.EntityID),
			vector.ErrDimensionMismatch, len(emb), idx.vectorIndex.Dimensions())
	}

	rec := &models.VectorRecord{
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Text:       input.Text,
		Embedding:  emb,
		Metadata:   input.Metadata,
	}
	if _, err := idx.store.Upsert(ctx, rec); err != nil {
		return nil, err
	}

	key := rec.Key()
	if idx.vectorIndex.Contains(key) {
		idx.vectorIndex.Remove(key)
	}
	if err := idx.vectorIndex.Add(key, emb); err != nil {
		return nil, fmt.Errorf("failed to index vector for %s: %w", key, err)
	}
	if err := idx.keywordIndex.Index(ctx, key, rec.EntityType, rec.Text); err != nil {
		return nil, fmt.Errorf("failed to index keywords for %s: %w", key, err)
	}

	if err := idx.saveIndex(ctx); err != nil {
		return nil, err
	}
	idx.logger.Debug("record upserted",
		zap.String("key", key),
		zap.Int("index_size", idx.vectorIndex.Size()))
	return rec, nil
}

// Delete removes the entity from the store and both indices. Returns false
// when the entity was not stored. A key absent from the vector index is a
// no-op there and never triggers a rebuild.
func (idx *Indexer) Delete(ctx context.Context, entityType string, entityID int64) (bool, error) {
	existed, err := idx.store.Delete(ctx, entityType, entityID)
	if err != nil {
		return false, err
	}

	key := models.RecordKey(entityType, entityID)
	if err := idx.keywordIndex.Delete(ctx, key); err != nil {
		return existed, fmt.Errorf("failed to delete %s from keyword index: %w", key, err)
	}

	if !idx.vectorIndex.Contains(key) {
		return existed, nil
	}

	if idx.batchWindow <= 0 {
		if _, err := idx.RebuildAll(ctx); err != nil {
			return existed, err
		}
		return existed, nil
	}

	idx.mu.Lock()
	idx.pendingRemoves++
	idx.mu.Unlock()
	idx.logger.Debug("removal queued", zap.String("key", key))
	return existed, nil
}

// RebuildAll reloads every stored record into a fresh vector index and saves
// it. Records whose embedding does not match the index dimension are skipped
// with a warning. Returns the number of indexed records.
func (idx *Indexer) RebuildAll(ctx context.Context) (int, error) {
	dims := idx.vectorIndex.Dimensions()
	var entries []vector.Entry
	err := idx.store.ForEach(ctx, func(rec *models.VectorRecord) error {
		if len(rec.Embedding) != dims {
			idx.logger.Warn("skipping record with mismatched embedding",
				zap.String("key", rec.Key()),
				zap.Int("got", len(rec.Embedding)),
				zap.Int("want", dims))
			return nil
		}
		entries = append(entries, vector.Entry{Key: rec.Key(), Embedding: rec.Embedding})
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to read records for rebuild: %w", err)
	}

	if err := idx.vectorIndex.Rebuild(entries); err != nil {
		return 0, fmt.Errorf("failed to rebuild vector index: %w", err)
	}
	if err := idx.saveIndex(ctx); err != nil {
		return 0, err
	}

	idx.mu.Lock()
	idx.pendingRemoves = 0
	idx.mu.Unlock()

	idx.logger.Info("vector index rebuilt", zap.Int("records", len(entries)))
	return len(entries), nil
}

// Flush applies queued removals now instead of waiting for the batch window.
func (idx *Indexer) Flush(ctx context.Context) error {
	idx.mu.Lock()
	pending := idx.pendingRemoves
	idx.mu.Unlock()
	if pending == 0 {
		return nil
	}
	_, err := idx.RebuildAll(ctx)
	return err
}

// Start launches the background loop that applies queued removals once per
// batch window. It is a no-op when the window is zero.
func (idx *Indexer) Start(ctx context.Context) {
	if idx.batchWindow <= 0 {
		close(idx.done)
		return
	}
	go func() {
		defer close(idx.done)
		ticker := time.NewTicker(idx.batchWindow)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := idx.Flush(ctx); err != nil {
					idx.logger.Error("failed to apply queued removals", zap.Error(err))
				}
			case <-idx.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the background loop and applies any queued removals.
func (idx *Indexer) Stop(ctx context.Context) error {
	idx.stopOnce.Do(func() { close(idx.stop) })
	<-idx.done
	return idx.Flush(ctx)
}

func (idx *Indexer) saveIndex(ctx context.Context) error {
	if err := idx.vectorIndex.Save(idx.indexPath); err != nil {
		return fmt.Errorf("failed to save vector index: %w", err)
	}
	if err := idx.store.TouchDescriptor(ctx, idx.indexName); err != nil {
		return fmt.Errorf("failed to update index descriptor: %w", err)
	}
	return nil
}

// IngestFile extracts text from the file at path and upserts it as a
// document record keyed by a hash of the absolute path, so re-ingesting the
// same file updates one record.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*models.VectorRecord, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	text, err := idx.extractText(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", absPath, err)
	}

	return idx.Upsert(ctx, &models.UpsertInput{
		EntityType: "document",
		EntityID:   fileEntityID(absPath),
		Text:       text,
		Metadata: map[string]interface{}{
			"source_path": absPath,
			"source_ext":  strings.ToLower(filepath.Ext(absPath)),
		},
	})
}

func (idx *Indexer) extractText(path string) (string, error) {
	if idx.extractor != nil {
		return idx.extractor.Extract(path)
	}
	e := extract.NewExtractor()
	return e.Extract(path)
}

// fileEntityID derives a stable positive id from the absolute file path.
func fileEntityID(absPath string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(absPath))
	id := int64(h.Sum64() & (1<<62 - 1))
	if id == 0 {
		id = 1
	}
	return id
}
