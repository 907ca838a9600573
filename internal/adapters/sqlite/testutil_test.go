// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"database/sql"
	"testing"

	"github.com/example/tradeflow/internal/db"
)

// setupTestDB creates an in-memory database with the authoritative schema.
// The pool is pinned to one connection, so the in-memory database survives
// for the whole test and transactions behave as in production.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := db.Open(db.Options{Driver: db.DriverCGO, Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedRequest inserts a test request and returns its ID.
func seedRequest(t *testing.T, db *sql.DB, id, requesterID, status string) string {
	t.Helper()
	if id == "" {
		id = "REQ-001"
	}
	if requesterID == "" {
		requesterID = "cust-1"
	}
	if status == "" {
		status = "new"
	}
	_, err := db.Exec(
		`INSERT INTO requests (id, requester_id, title, preferred_time, status, created_at, updated_at)
		VALUES (?, ?, 'Leak', '["Morning"]', ?, '2026-01-01T00:00:00.000000Z', '2026-01-01T00:00:00.000000Z')`,
		id, requesterID, status,
	)
	if err != nil {
		t.Fatalf("failed to seed request: %v", err)
	}
	return id
}

// seedEngagement inserts a test engagement and returns its ID.
func seedEngagement(t *testing.T, db *sql.DB, id, requestID, providerID, status string) string {
	t.Helper()
	if id == "" {
		id = "ENG-001"
	}
	if requestID == "" {
		requestID = "REQ-001"
	}
	if providerID == "" {
		providerID = "pro-1"
	}
	if status == "" {
		status = "pending_quote"
	}
	_, err := db.Exec(
		`INSERT INTO engagements (id, request_id, provider_id, requester_id, status, created_at, updated_at)
		VALUES (?, ?, ?, 'cust-1', ?, '2026-01-01T00:00:00.000000Z', '2026-01-01T00:00:00.000000Z')`,
		id, requestID, providerID, status,
	)
	if err != nil {
		t.Fatalf("failed to seed engagement: %v", err)
	}
	return id
}
