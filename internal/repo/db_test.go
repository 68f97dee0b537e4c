package repo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/animai-studio/internal/config"
	"github.com/tbourn/animai-studio/internal/domain"
)

func TestOpenSQLite_ErrorOnBadPath(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "does-not-exist", "app.db")

	db, err := OpenSQLite(bad)
	if err == nil || db != nil {
		t.Fatalf("expected error opening %q, got db=%v err=%v", bad, db, err)
	}
	lower := strings.ToLower(err.Error())
	if !(os.IsNotExist(err) ||
		strings.Contains(lower, "unable to open database file") ||
		strings.Contains(lower, "no such file or directory")) {
		t.Fatalf("unexpected error opening %q: %v", bad, err)
	}
}

func TestOpenSQLite_SetsPragmasAndPool(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	var journalMode string
	if err := db.Raw("PRAGMA journal_mode;").Row().Scan(&journalMode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Fatalf("expected journal_mode=wal, got %q", journalMode)
	}
	var fkOn, busyMS int
	if err := db.Raw("PRAGMA foreign_keys;").Row().Scan(&fkOn); err != nil || fkOn != 1 {
		t.Fatalf("expected foreign_keys=1, got %d (err=%v)", fkOn, err)
	}
	if err := db.Raw("PRAGMA busy_timeout;").Row().Scan(&busyMS); err != nil || busyMS != 5000 {
		t.Fatalf("expected busy_timeout=5000, got %d (err=%v)", busyMS, err)
	}
	if stats := sqlDB.Stats(); stats.MaxOpenConnections != 10 {
		t.Fatalf("expected MaxOpenConnections=10, got %d", stats.MaxOpenConnections)
	}
}

func TestOpen_SQLite_MigratesAllTables(t *testing.T) {
	cfg := config.Config{DBDriver: "sqlite", DBPath: filepath.Join(t.TempDir(), "studio.db")}

	db, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { _ = sqlDB.Close() })
	}

	m := db.Migrator()
	for _, tbl := range []any{&domain.Chat{}, &domain.Message{}, &domain.PromptCache{}, &domain.Profile{}, &domain.Idempotency{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}

	now := time.Now().UTC()
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "t", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert chat: %v", err)
	}
	if err := db.Create(&domain.Message{ID: "m1", ChatID: "c1", Text: "hi", CreatedAt: now, UpdatedAt: now}).Error; err != nil {
		t.Fatalf("insert message: %v", err)
	}
	// Foreign keys are on: a message for a missing chat is rejected.
	if err := db.Create(&domain.Message{ID: "m2", ChatID: "nope", Text: "x", CreatedAt: now, UpdatedAt: now}).Error; err == nil {
		t.Fatalf("expected FK violation for orphan message")
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open(config.Config{DBDriver: "oracle"}); err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}

// Compile-time guards to ensure signature stability.
var (
	_ func(string) (*gorm.DB, error)        = OpenSQLite
	_ func(string) (*gorm.DB, error)        = OpenPostgres
	_ func(config.Config) (*gorm.DB, error) = Open
)
