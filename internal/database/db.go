package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Open returns a sqlite handle with foreign keys enforced and a busy
// timeout so concurrent access backs off instead of erroring. The pool
// is pinned to one connection: sqlite allows a single writer, and the
// import pipeline interleaves reads and writes on the same handle.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	return db, nil
}

// WithTx runs fn inside a transaction, rolling back on error.
func WithTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Now returns the current UTC time at second precision, matching what
// sqlite's CURRENT_TIMESTAMP columns store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
