package store

import (
	"context"
	"fmt"
	"log"

	"tdp/config"
)

// NewStore creates the TenantStore selected by cfg.Driver
func NewStore(ctx context.Context, cfg config.StoreConfig, logger *log.Logger) (TenantStore, error) {
	switch cfg.Driver {
	case config.StoreDriverMemory, "":
		logger.Println("Using in-memory tenant store (records are lost on exit)")
		return NewMemoryStore(), nil
	case config.StoreDriverPostgres:
		return NewPostgresStore(ctx, cfg, logger)
	case config.StoreDriverDuckDB:
		return NewDuckDBStore(ctx, cfg.Path, logger)
	case config.StoreDriverPebble:
		return NewPebbleStore(cfg.Path, cfg.Sync, nil, logger)
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
