package config

import (
	"fmt"
	"time"
)

// Store drivers
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverDuckDB   = "duckdb"
	StoreDriverPebble   = "pebble"
)

// StoreConfig defines the tenant store backend used by the worker
type StoreConfig struct {
	Driver string `yaml:"driver"` // memory, postgres, duckdb or pebble

	// postgres
	DSN            string        `yaml:"dsn"`             // PostgreSQL connection string
	MaxConnections int           `yaml:"max_connections"` // Maximum number of connections
	MinConnections int           `yaml:"min_connections"` // Minimum number of connections
	MaxIdleTime    time.Duration `yaml:"max_idle_time"`   // Maximum time a connection can be idle
	MaxLifetime    time.Duration `yaml:"max_lifetime"`    // Maximum lifetime of a connection

	// duckdb and pebble
	Path string `yaml:"path"` // Database file (duckdb) or directory (pebble); empty means in-memory
	Sync bool   `yaml:"sync"` // pebble: fsync every write

	Timeout time.Duration `yaml:"timeout"` // Per-upsert timeout
}

// SetDefaults sets sensible default values for the store configuration
func (c *StoreConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = StoreDriverMemory
		fmt.Printf("Warning: store.driver not set, defaulting to %s\n", c.Driver)
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Driver != StoreDriverPostgres {
		return
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 50
		fmt.Printf("Warning: store.max_connections not set or invalid, defaulting to %d\n", c.MaxConnections)
	}
	if c.MinConnections <= 0 {
		c.MinConnections = 10
		fmt.Printf("Warning: store.min_connections not set or invalid, defaulting to %d\n", c.MinConnections)
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = time.Hour
		fmt.Printf("Warning: store.max_idle_time not set, defaulting to %s\n", c.MaxIdleTime)
	}
	if c.MaxLifetime <= 0 {
		c.MaxLifetime = 24 * time.Hour
		fmt.Printf("Warning: store.max_lifetime not set, defaulting to %s\n", c.MaxLifetime)
	}
}

// Validate validates the store configuration
func (c *StoreConfig) Validate() error {
	switch c.Driver {
	case StoreDriverMemory, StoreDriverDuckDB:
		return nil
	case StoreDriverPebble:
		if c.Path == "" {
			return fmt.Errorf("store path is required for the pebble driver")
		}
		return nil
	case StoreDriverPostgres:
	default:
		return fmt.Errorf("unsupported store driver %q", c.Driver)
	}

	if c.DSN == "" {
		return fmt.Errorf("store DSN is required for the postgres driver")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("store max_connections must be positive")
	}
	if c.MinConnections < 0 {
		return fmt.Errorf("store min_connections cannot be negative")
	}
	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("store min_connections (%d) cannot be greater than max_connections (%d)",
			c.MinConnections, c.MaxConnections)
	}
	return nil
}

// LogConfiguration logs the store configuration (excluding sensitive DSN)
func (c *StoreConfig) LogConfiguration() {
	fmt.Printf("Store Configuration:\n")
	fmt.Printf("  Driver: %s\n", c.Driver)
	switch c.Driver {
	case StoreDriverPostgres:
		fmt.Printf("  Max Connections: %d\n", c.MaxConnections)
		fmt.Printf("  Min Connections: %d\n", c.MinConnections)
		fmt.Printf("  Max Idle Time: %s\n", c.MaxIdleTime)
		fmt.Printf("  Max Lifetime: %s\n", c.MaxLifetime)
		fmt.Printf("  DSN: [configured]\n") // Don't log the actual DSN for security
	case StoreDriverDuckDB, StoreDriverPebble:
		path := c.Path
		if path == "" {
			path = "(in-memory)"
		}
		fmt.Printf("  Path: %s\n", path)
	}
}
