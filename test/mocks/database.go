package mocks

import (
	"testing"

	gormlogger "gorm.io/gorm/logger"

	"github.com/aimd54/task-coach/internal/repository"
)

// NewTestDB opens a migrated in-memory SQLite database that lives for the duration of t.
func NewTestDB(t testing.TB) *repository.DB {
	t.Helper()

	db, err := repository.OpenSQLite(":memory:", gormlogger.Silent)
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	if err := db.AutoMigrate(); err != nil {
		t.Fatalf("Failed to auto-migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}
