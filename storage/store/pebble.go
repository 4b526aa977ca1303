package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/cockroachdb/pebble"
	"tdp/internal/models"
)

// PebbleStore implements TenantStore on an embedded Pebble key-value store.
// Records live under tenants/<tenant>/processed_logs/<log_id> with both
// segments path-escaped, so an id containing '/' stays inside its tenant.
type PebbleStore struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
	logger    *log.Logger
}

// NewPebbleStore opens the store in dir. opts may be nil.
func NewPebbleStore(dir string, syncWrites bool, opts *pebble.Options, logger *log.Logger) (*PebbleStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", dir, err)
	}
	writeOpts := pebble.NoSync
	if syncWrites {
		writeOpts = pebble.Sync
	}
	logger.Printf("Pebble store opened at %s (sync=%v)", dir, syncWrites)
	return &PebbleStore{db: db, writeOpts: writeOpts, logger: logger}, nil
}

// recordKey builds tenants/<tenant>/processed_logs/<log_id>
func recordKey(tenantID, logID string) []byte {
	return []byte("tenants/" + url.PathEscape(tenantID) + "/processed_logs/" + url.PathEscape(logID))
}

// Upsert implements TenantStore
func (s *PebbleStore) Upsert(ctx context.Context, tenantID, logID string, rec *models.ProcessedRecord) error {
	if err := checkKey("upsert", tenantID, logID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrapErr("upsert", tenantID, logID, err)
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return wrapErr("upsert", tenantID, logID, err)
	}
	return wrapErr("upsert", tenantID, logID, s.db.Set(recordKey(tenantID, logID), value, s.writeOpts))
}

// Get implements TenantStore
func (s *PebbleStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	if err := checkKey("get", tenantID, logID); err != nil {
		return nil, err
	}
	value, closer, err := s.db.Get(recordKey(tenantID, logID))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, wrapErr("get", tenantID, logID, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get", tenantID, logID, err)
	}
	defer closer.Close()

	var rec models.ProcessedRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return nil, wrapErr("get", tenantID, logID, err)
	}
	return &rec, nil
}

// Close implements TenantStore
func (s *PebbleStore) Close() error {
	s.logger.Println("Closing Pebble store...")
	return s.db.Close()
}

var _ TenantStore = (*PebbleStore)(nil)
