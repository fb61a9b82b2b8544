// Package testdb provides a database for use in tests.
package testdb

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/chirpnet/chirp/internal/db"
)

// RunWhile runs a database while the provided test is executing.
// It returns an empty in-memory database with all migrations applied.
func RunWhile(t *testing.T) *sql.DB {
	t.Helper()

	sqlDB, err := db.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Errorf("failed to close database: %v", err)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, sqlDB); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return sqlDB
}
