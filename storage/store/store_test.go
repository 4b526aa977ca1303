package store

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"tdp/config"
	"tdp/internal/models"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func sampleRecord(text string, attempt int) *models.ProcessedRecord {
	ingested := time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)
	return &models.ProcessedRecord{
		Source:                models.SourceJSONUpload,
		OriginalText:          text,
		ModifiedData:          text + " (redacted)",
		IngestedAt:            ingested,
		ProcessedAt:           ingested.Add(2 * time.Second),
		CharacterCount:        len(text),
		ProcessingTimeSeconds: float64(len(text)) * 0.05,
		DeliveryAttempt:       attempt,
	}
}

func assertRecord(t *testing.T, got, want *models.ProcessedRecord) {
	t.Helper()
	if got.Source != want.Source || got.OriginalText != want.OriginalText || got.ModifiedData != want.ModifiedData {
		t.Errorf("text fields = %+v, want %+v", got, want)
	}
	if !got.IngestedAt.Equal(want.IngestedAt) || !got.ProcessedAt.Equal(want.ProcessedAt) {
		t.Errorf("timestamps = (%v, %v), want (%v, %v)", got.IngestedAt, got.ProcessedAt, want.IngestedAt, want.ProcessedAt)
	}
	if got.CharacterCount != want.CharacterCount || got.ProcessingTimeSeconds != want.ProcessingTimeSeconds || got.DeliveryAttempt != want.DeliveryAttempt {
		t.Errorf("counters = %+v, want %+v", got, want)
	}
}

// backends returns every TenantStore that runs without external services
func backends(t *testing.T) map[string]TenantStore {
	t.Helper()
	ctx := context.Background()

	pebbleStore, err := NewPebbleStore("mem", false, &pebble.Options{FS: vfs.NewMem()}, testLogger())
	if err != nil {
		t.Fatalf("NewPebbleStore: %v", err)
	}
	duckStore, err := NewDuckDBStore(ctx, "", testLogger())
	if err != nil {
		t.Fatalf("NewDuckDBStore: %v", err)
	}

	stores := map[string]TenantStore{
		"memory": NewMemoryStore(),
		"pebble": pebbleStore,
		"duckdb": duckStore,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestUpsertAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := sampleRecord("call 555-123-4567", 1)
			if err := s.Upsert(ctx, "acme", "log-1", want); err != nil {
				t.Fatalf("Upsert: %v", err)
			}
			got, err := s.Get(ctx, "acme", "log-1")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			assertRecord(t, got, want)
		})
	}
}

func TestUpsertOverwrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Upsert(ctx, "acme", "log-1", sampleRecord("first", 1)); err != nil {
				t.Fatal(err)
			}
			second := sampleRecord("second", 2)
			if err := s.Upsert(ctx, "acme", "log-1", second); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, "acme", "log-1")
			if err != nil {
				t.Fatal(err)
			}
			assertRecord(t, got, second)
		})
	}
}

func TestTenantIsolation(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a := sampleRecord("tenant a data", 1)
			b := sampleRecord("tenant b data", 1)
			if err := s.Upsert(ctx, "tenant-a", "shared-id", a); err != nil {
				t.Fatal(err)
			}
			if err := s.Upsert(ctx, "tenant-b", "shared-id", b); err != nil {
				t.Fatal(err)
			}

			gotA, err := s.Get(ctx, "tenant-a", "shared-id")
			if err != nil {
				t.Fatal(err)
			}
			assertRecord(t, gotA, a)
			gotB, err := s.Get(ctx, "tenant-b", "shared-id")
			if err != nil {
				t.Fatal(err)
			}
			assertRecord(t, gotB, b)

			if _, err := s.Get(ctx, "tenant-c", "shared-id"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get for unknown tenant err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSlashesCannotEscapeTenant(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			if err := s.Upsert(ctx, "a", "x/processed_logs/y", sampleRecord("nested", 1)); err != nil {
				t.Fatal(err)
			}
			if _, err := s.Get(ctx, "a/processed_logs/x", "y"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("crafted ids reached another key: err = %v", err)
			}
		})
	}
}

func TestInvalidKeyAndNotFound(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Upsert(ctx, "", "log-1", sampleRecord("x", 1))
			if !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("Upsert with empty tenant err = %v", err)
			}
			var se *StorageError
			if !errors.As(err, &se) || se.Op != "upsert" {
				t.Fatalf("expected *StorageError with op upsert, got %#v", err)
			}
			if _, err := s.Get(ctx, "acme", ""); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("Get with empty log id err = %v", err)
			}
			if _, err := s.Get(ctx, "acme", "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Get missing err = %v", err)
			}
		})
	}
}

func TestConcurrentUpsertsKeepOneRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()
			if err := s.Upsert(ctx, "acme", "log-1", sampleRecord("dup", attempt)); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	if n := s.Count("acme"); n != 1 {
		t.Fatalf("Count = %d, want 1", n)
	}
}

func TestPebbleSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewPebbleStore(dir, true, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	want := sampleRecord("durable", 1)
	if err := s.Upsert(ctx, "acme", "log-1", want); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewPebbleStore(dir, true, nil, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.Get(ctx, "acme", "log-1")
	if err != nil {
		t.Fatal(err)
	}
	assertRecord(t, got, want)
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		cfg     config.StoreConfig
		wantErr bool
	}{
		{"memory", config.StoreConfig{Driver: config.StoreDriverMemory}, false},
		{"duckdb file", config.StoreConfig{Driver: config.StoreDriverDuckDB, Path: filepath.Join(t.TempDir(), "db", "tdp.duckdb")}, false},
		{"pebble dir", config.StoreConfig{Driver: config.StoreDriverPebble, Path: t.TempDir()}, false},
		{"unknown", config.StoreConfig{Driver: "mongo"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStore(ctx, tt.cfg, testLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore err = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}

func TestSQLTextReplacesNUL(t *testing.T) {
	if got := sqlText("a\x00b\x00"); got != "a\uFFFDb\uFFFD" {
		t.Fatalf("sqlText = %q", got)
	}
	if got := sqlText("plain"); got != "plain" {
		t.Fatalf("sqlText = %q", got)
	}
}

func TestDuckDBStoresTextWithNUL(t *testing.T) {
	ctx := context.Background()
	s, err := NewDuckDBStore(ctx, "", testLogger())
	if err != nil {
		t.Fatalf("NewDuckDBStore: %v", err)
	}
	defer s.Close()

	rec := sampleRecord("before\x00after", 1)
	if err := s.Upsert(ctx, "acme\x00", "log-1", rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := s.Get(ctx, "acme\x00", "log-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OriginalText != "before\uFFFDafter" {
		t.Fatalf("OriginalText = %q", got.OriginalText)
	}
}
