package db

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied.
// Each call gets its own database; one connection serializes concurrent callers.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("getting sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(gdb); err != nil {
		sqlDB.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { sqlDB.Close() })

	return gdb
}
