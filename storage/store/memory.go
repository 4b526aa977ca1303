package store

import (
	"context"
	"sync"

	"tdp/internal/models"
)

// MemoryStore keeps records in process memory, keyed by tenant then log id
type MemoryStore struct {
	mu      sync.RWMutex
	tenants map[string]map[string]models.ProcessedRecord
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tenants: make(map[string]map[string]models.ProcessedRecord)}
}

// Upsert implements TenantStore
func (s *MemoryStore) Upsert(ctx context.Context, tenantID, logID string, rec *models.ProcessedRecord) error {
	if err := checkKey("upsert", tenantID, logID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return wrapErr("upsert", tenantID, logID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	logs, ok := s.tenants[tenantID]
	if !ok {
		logs = make(map[string]models.ProcessedRecord)
		s.tenants[tenantID] = logs
	}
	logs[logID] = *rec
	return nil
}

// Get implements TenantStore
func (s *MemoryStore) Get(ctx context.Context, tenantID, logID string) (*models.ProcessedRecord, error) {
	if err := checkKey("get", tenantID, logID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tenants[tenantID][logID]
	if !ok {
		return nil, wrapErr("get", tenantID, logID, ErrNotFound)
	}
	return &rec, nil
}

// Count returns how many records a tenant has
func (s *MemoryStore) Count(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tenants[tenantID])
}

// Close implements TenantStore
func (s *MemoryStore) Close() error { return nil }

var _ TenantStore = (*MemoryStore)(nil)
