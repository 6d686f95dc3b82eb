package db

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
)

// NewTestDB creates a fresh in-memory SQLite database with the schema applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}

	if err := EnsureSchema(db); err != nil {
		db.Close()
		t.Fatalf("creating test database schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}

// NewTestOwner inserts a bare user row and returns its id, for use as the
// owner partition in store tests.
func NewTestOwner(t *testing.T, db *sql.DB, username string) uuid.UUID {
	t.Helper()

	id := uuid.New()
	_, err := db.Exec(
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES (?, ?, '', 'manager', ?)`,
		id, username, time.Now().UTC(),
	)
	if err != nil {
		t.Fatalf("creating test owner: %v", err)
	}
	return id
}
