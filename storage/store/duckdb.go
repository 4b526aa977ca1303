package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
	"tdp/internal/models"
)

// DuckDBStore implements TenantStore on an embedded DuckDB database
type DuckDBStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewDuckDBStore opens or creates the database at path.
// An empty path opens an in-memory database.
func NewDuckDBStore(ctx context.Context, path string, logger *log.Logger) (*DuckDBStore, error) {
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}
	if _, err := db.ExecContext(ctx, duckdbSchemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure processed_logs table: %w", err)
	}

	if path == "" {
		path = "(in-memory)"
	}
	logger.Printf("DuckDB store opened at %s", path)
	return &DuckDBStore{db: db, logger: logger}, nil
}

// Upsert implements TenantStore
func (s *DuckDBStore) Upsert(ctx context.Context, tenantID, logID string, rec *models.ProcessedRecord) error {
	if err := checkKey("upsert", tenantID, logID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, upsertProcessedLogSQL,
		sqlText(tenantID), sqlText(logID), string(rec.Source), sqlText(rec.OriginalText), sqlText(rec.ModifiedData),
		rec.IngestedAt.UTC(), rec.ProcessedAt.UTC(), rec.CharacterCount, rec.ProcessingTimeSeconds, rec.DeliveryAttempt)
	return wrapErr("upsert", tenantID, logID, err)
}

// Get implements TenantStore
func (s *DuckDBStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	if err := checkKey("get", tenantID, logID); err != nil {
		return nil, err
	}
	var (
		rec    models.ProcessedRecord
		source string
	)
	err := s.db.QueryRowContext(ctx, selectProcessedLogSQL, sqlText(tenantID), sqlText(logID)).Scan(
		&source, &rec.OriginalText, &rec.ModifiedData, &rec.IngestedAt, &rec.ProcessedAt,
		&rec.CharacterCount, &rec.ProcessingTimeSeconds, &rec.DeliveryAttempt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrapErr("get", tenantID, logID, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get", tenantID, logID, err)
	}
	rec.Source = models.Source(source)
	rec.IngestedAt = rec.IngestedAt.UTC()
	rec.ProcessedAt = rec.ProcessedAt.UTC()
	return &rec, nil
}

// Close implements TenantStore
func (s *DuckDBStore) Close() error {
	s.logger.Println("Closing DuckDB store...")
	return s.db.Close()
}

var _ TenantStore = (*DuckDBStore)(nil)
