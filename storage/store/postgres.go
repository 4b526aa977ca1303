package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"tdp/config"
	"tdp/internal/models"
)

// PostgresStore implements TenantStore on a pgx connection pool
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewPostgresStore connects, verifies the connection and ensures the schema
func NewPostgresStore(ctx context.Context, cfg config.StoreConfig, logger *log.Logger) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConnections)
	poolCfg.MinConns = int32(cfg.MinConnections)
	poolCfg.MaxConnIdleTime = cfg.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.MaxLifetime

	pool, err := pgxpool.ConnectConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ensure processed_logs table: %w", err)
	}

	logger.Printf("PostgreSQL store connected (max_conns=%d, min_conns=%d)", poolCfg.MaxConns, poolCfg.MinConns)
	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Upsert implements TenantStore
func (s *PostgresStore) Upsert(ctx context.Context, tenantID, logID string, rec *models.ProcessedRecord) error {
	if err := checkKey("upsert", tenantID, logID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, upsertProcessedLogSQL,
		sqlText(tenantID), sqlText(logID), string(rec.Source), sqlText(rec.OriginalText), sqlText(rec.ModifiedData),
		rec.IngestedAt, rec.ProcessedAt, rec.CharacterCount, rec.ProcessingTimeSeconds, rec.DeliveryAttempt)
	return wrapErr("upsert", tenantID, logID, err)
}

// Get implements TenantStore
func (s *PostgresStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	if err := checkKey("get", tenantID, logID); err != nil {
		return nil, err
	}
	var (
		rec    models.ProcessedRecord
		source string
	)
	err := s.pool.QueryRow(ctx, selectProcessedLogSQL, sqlText(tenantID), sqlText(logID)).Scan(
		&source, &rec.OriginalText, &rec.ModifiedData, &rec.IngestedAt, &rec.ProcessedAt,
		&rec.CharacterCount, &rec.ProcessingTimeSeconds, &rec.DeliveryAttempt)
	if errors.Is(err, pgx.ErrNoRows) {
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
func (s *PostgresStore) Close() error {
	s.logger.Println("Closing PostgreSQL store...")
	s.pool.Close()
	return nil
}

var _ TenantStore = (*PostgresStore)(nil)
