package db

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateSQLiteCreatesEndpointColumns(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	if errMigrate := Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	for _, column := range []string{"api_type", "target_url", "api_key_sealed", "allowed_origins", "status", "last_tested_at", "proxy_id"} {
		if !conn.Migrator().HasColumn("endpoints", column) {
			t.Fatalf("endpoints missing column %s", column)
		}
	}
	if !conn.Migrator().HasTable("invocations") {
		t.Fatalf("invocations table missing")
	}
	if !conn.Migrator().HasTable("settings") {
		t.Fatalf("settings table missing")
	}
}

func TestMigrateSQLiteIsIdempotent(t *testing.T) {
	conn, errOpen := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if errOpen != nil {
		t.Fatalf("open sqlite: %v", errOpen)
	}

	for i := 0; i < 2; i++ {
		if errMigrate := Migrate(conn); errMigrate != nil {
			t.Fatalf("migrate run %d: %v", i+1, errMigrate)
		}
	}
}

func TestMigrateRejectsNilConnection(t *testing.T) {
	if errMigrate := Migrate(nil); errMigrate == nil {
		t.Fatalf("expected error for nil connection")
	}
}
