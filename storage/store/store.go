// Package store persists processed records under a tenant namespace.
package store

import (
	"context"
	"errors"
	"fmt"

	"tdp/internal/models"
)

var (
	// ErrNotFound is returned by Get when no record exists for the key
	ErrNotFound = errors.New("record not found")
	// ErrInvalidKey is returned when the tenant or log id is empty
	ErrInvalidKey = errors.New("tenant_id and log_id are required")
)

// TenantStore writes one document per (tenant_id, log_id). Every path takes
// the tenant explicitly, so no call can address another tenant's records.
type TenantStore interface {
	// Upsert creates or overwrites the record; last writer wins
	Upsert(ctx context.Context, tenantID, logID string, rec *models.ProcessedRecord) error

	// Get returns the record or ErrNotFound
	Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error)

	// Close releases the backend
	Close() error
}

// StorageError wraps a backend failure with the key it concerned
type StorageError struct {
	Op       string
	TenantID string
	LogID    string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s tenants/%s/processed_logs/%s: %v", e.Op, e.TenantID, e.LogID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func wrapErr(op, tenantID, logID string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, TenantID: tenantID, LogID: logID, Err: err}
}

func checkKey(op, tenantID, logID string) error {
	if tenantID == "" || logID == "" {
		return wrapErr(op, tenantID, logID, ErrInvalidKey)
	}
	return nil
}
