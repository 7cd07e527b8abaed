package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/taskmesh/semdex/internal/models"
	"github.com/taskmesh/semdex/internal/vector"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS vector_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (entity_type, entity_id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_entity_type ON vector_records(entity_type);

	CREATE TABLE IF NOT EXISTS vector_indices (
		name TEXT PRIMARY KEY,
		dimension INTEGER NOT NULL,
		metric TEXT NOT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		last_updated TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS search_logs (
		id TEXT PRIMARY KEY,
		query TEXT NOT NULL,
		results_count INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_search_logs_created_at ON search_logs(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// validateMetadata rejects non-scalar metadata values. Values arriving from
// JSON decoding are string, bool, or float64; int variants are accepted for
// callers constructing records directly.
func validateMetadata(metadata map[string]interface{}) error {
	for key, value := range metadata {
		switch value.(type) {
		case string, bool, float64, float32, int, int32, int64:
		default:
			return fmt.Errorf("%w: key %q has type %T", ErrInvalidMetadata, key, value)
		}
	}
	return nil
}

// Upsert inserts or replaces the record for (EntityType, EntityID).
// The record's ID, CreatedAt, and UpdatedAt are filled from the stored row.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *models.VectorRecord) (int64, error) {
	if strings.TrimSpace(rec.Text) == "" {
		return 0, fmt.Errorf("%w: %s", ErrEmptyText, models.RecordKey(rec.EntityType, rec.EntityID))
	}
	if err := validateMetadata(rec.Metadata); err != nil {
		return 0, err
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if rec.Metadata == nil {
		metadataJSON = []byte("{}")
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO vector_records (entity_type, entity_id, text, embedding, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			text = excluded.text,
			embedding = excluded.embedding,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		rec.EntityType, rec.EntityID, rec.Text, vector.EncodeFloat32s(rec.Embedding),
		string(metadataJSON), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert record: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM vector_records WHERE entity_type = ? AND entity_id = ?`,
		rec.EntityType, rec.EntityID,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to read back record id: %w", err)
	}
	return rec.ID, nil
}

// Get returns the record for the given entity, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, entityType string, entityID int64) (*models.VectorRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_type, entity_id, text, embedding, metadata, created_at, updated_at
		 FROM vector_records WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, models.RecordKey(entityType, entityID))
	}
	return rec, err
}

// Delete removes the record for the given entity.
// Returns false when no such record existed.
func (s *SQLiteStore) Delete(ctx context.Context, entityType string, entityID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM vector_records WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ForEach calls fn for every stored record in insertion order.
func (s *SQLiteStore) ForEach(ctx context.Context, fn func(*models.VectorRecord) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_type, entity_id, text, embedding, metadata, created_at, updated_at
		 FROM vector_records ORDER BY id`,
	)
	if err != nil {
		return fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_records`).Scan(&n)
	return n, err
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scannable) (*models.VectorRecord, error) {
	var rec models.VectorRecord
	var blob []byte
	var metadataJSON string

	err := row.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Text,
		&blob, &metadataJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.Embedding, err = vector.DecodeFloat32s(blob)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", rec.Key(), err)
	}
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("record %s: failed to unmarshal metadata: %w", rec.Key(), err)
		}
	}
	return &rec, nil
}

// GetDescriptor returns the named index descriptor, or ErrNotFound.
func (s *SQLiteStore) GetDescriptor(ctx context.Context, name string) (*models.IndexDescriptor, error) {
	var desc models.IndexDescriptor
	err := s.db.QueryRowContext(ctx,
		`SELECT name, dimension, metric, is_active, last_updated, created_at
		 FROM vector_indices WHERE name = ?`, name,
	).Scan(&desc.Name, &desc.Dimension, &desc.Metric, &desc.IsActive, &desc.LastUpdated, &desc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: index %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

// PutDescriptor inserts or replaces an index descriptor.
func (s *SQLiteStore) PutDescriptor(ctx context.Context, desc *models.IndexDescriptor) error {
	now := time.Now().UTC()
	if desc.CreatedAt.IsZero() {
		desc.CreatedAt = now
	}
	if desc.LastUpdated.IsZero() {
		desc.LastUpdated = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vector_indices (name, dimension, metric, is_active, last_updated, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET
			dimension = excluded.dimension,
			metric = excluded.metric,
			is_active = excluded.is_active,
			last_updated = excluded.last_updated`,
		desc.Name, desc.Dimension, desc.Metric, desc.IsActive, desc.LastUpdated, desc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert index descriptor: %w", err)
	}
	return nil
}

// TouchDescriptor sets the named descriptor's last-updated time to now.
func (s *SQLiteStore) TouchDescriptor(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE vector_indices SET last_updated = ? WHERE name = ?`,
		time.Now().UTC(), name,
	)
	return err
}

// LogSearch records one search execution. A missing ID is generated.
func (s *SQLiteStore) LogSearch(ctx context.Context, log *models.SearchLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_logs (id, query, results_count, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		log.ID, log.Query, log.ResultsCount, log.DurationMs, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert search log: %w", err)
	}
	return nil
}

// RecentSearches returns the most recent search logs, newest first.
func (s *SQLiteStore) RecentSearches(ctx context.Context, limit int) ([]*models.SearchLog, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, query, results_count, duration_ms, created_at
		 FROM search_logs ORDER BY created_at DESC, id LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query search logs: %w", err)
	}
	defer rows.Close()

	var logs []*models.SearchLog
	for rows.Next() {
		var log models.SearchLog
		if err := rows.Scan(&log.ID, &log.Query, &log.ResultsCount, &log.DurationMs, &log.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
