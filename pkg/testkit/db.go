package testkit

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	_ "github.com/carepath-academy/carepath/database/migrations"
	"github.com/carepath-academy/carepath/pkg/database"
	"github.com/carepath-academy/carepath/pkg/migration"
)

// NewDB opens a SQLite database in t.TempDir with every migration applied.
// A file (not :memory:) keeps the schema visible to the pool's connection
// across goroutines.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "carepath_test.db")
	db, err := database.Open("sqlite", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		t.Fatalf("testkit: open database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	if _, err := migration.New(db, io.Discard).Run(context.Background()); err != nil {
		t.Fatalf("testkit: migrate: %v", err)
	}
	return db
}
