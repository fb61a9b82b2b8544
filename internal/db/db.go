// Package db opens and migrates the SQLite database.
package db

import (
	"context"
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/chirpnet/chirp/migrations"
)

// We need to configure a few options to make sure SQLite works well
// with our app:
// - WAL mode so that reads and writes don't block each other.
// - A busy timeout, specifying the duration a connection waits for a lock.
// - Foreign keys are enforced (needed for the cascade on user deletion).
const options = "?_foreign_keys=on&_journal_mode=wal&_busy_timeout=5000&_txlock=immediate"

// OpenSQLite opens a pool of SQLite3 connections. SQLite only ever
// allows a single writer, so the pool is limited to one connection to
// prevent lock contention.
//
// See https://github.com/mattn/go-sqlite3/issues/1179#issuecomment-1638083995
func OpenSQLite(dbFile string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbFile+options)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	return db, nil
}

// Migrate brings the database schema up to date using the embedded
// migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}
