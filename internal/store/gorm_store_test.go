package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	dbutil "github.com/keyshield/keyshield/internal/db"
	"github.com/keyshield/keyshield/internal/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, errOpen := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return conn
}

func TestGormStoreContract(t *testing.T) {
	runStoreContract(t, NewGormStore(openTestDB(t)))
}

func TestGormStoreAllowsManyLegacyRowsWithoutProxyID(t *testing.T) {
	s := NewGormStore(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"legacy-1", "legacy-2"} {
		if err := s.Create(ctx, newEndpoint(id, "", id, now)); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	updated, err := s.Update(ctx, "legacy-1", func(endpoint *models.Endpoint) error {
		endpoint.ProxyID = "BBBBBBBBBBB1"
		return nil
	})
	if err != nil {
		t.Fatalf("assign proxy id: %v", err)
	}
	if updated.ProxyID != "BBBBBBBBBBB1" {
		t.Fatalf("expected proxy id assigned, got %q", updated.ProxyID)
	}
}

func TestGormStoreMapsUniqueViolationToConflict(t *testing.T) {
	conn, errOpen := dbutil.Open("file:" + filepath.Join(t.TempDir(), "store.db"))
	if errOpen != nil {
		t.Fatalf("open: %v", errOpen)
	}
	t.Cleanup(func() { _ = dbutil.Close(conn) })
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	s := NewGormStore(conn)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.Create(ctx, newEndpoint("dup-id", "CCCCCCCCCCC1", "first", now)); err != nil {
		t.Fatalf("create: %v", err)
	}
	// The proxy id pre-check passes; only the primary key index rejects the row.
	if err := s.Create(ctx, newEndpoint("dup-id", "CCCCCCCCCCC2", "second", now)); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict from the unique index, got %v", err)
	}
}
