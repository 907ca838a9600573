package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// # Schema Drift Protection
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. All tests use
// this schema via GetSchemaSQL(). If repository code references a column that
// doesn't exist here, tests fail immediately with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `make test` to verify alignment
//
// Timestamps are TEXT in a fixed-width UTC layout written by the repositories,
// so both drivers scan them the same way and they sort lexically.
const SchemaSQL = `
-- Requests (a requester's job posting)
CREATE TABLE IF NOT EXISTS requests (
	id TEXT PRIMARY KEY,
	requester_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	region TEXT NOT NULL DEFAULT '',
	preferred_date TEXT,
	preferred_time TEXT NOT NULL DEFAULT '[]',
	image_refs TEXT NOT NULL DEFAULT '[]',
	advisory_transcript TEXT,
	status TEXT NOT NULL CHECK(status IN ('new', 'accepted', 'in_progress', 'completed', 'cancelled')) DEFAULT 'new',
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id);
CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status);

-- Engagements (one provider's claim on one request)
CREATE TABLE IF NOT EXISTS engagements (
	id TEXT PRIMARY KEY,
	request_id TEXT NOT NULL,
	provider_id TEXT NOT NULL,
	requester_id TEXT NOT NULL,
	status TEXT NOT NULL CHECK(status IN ('pending_quote', 'quoted', 'declined', 'accepted', 'in_progress', 'completed', 'cancelled')) DEFAULT 'pending_quote',
	quote_amount TEXT,
	scheduled_date TEXT,
	scheduled_time TEXT,
	requester_confirmed INTEGER NOT NULL DEFAULT 0,
	provider_confirmed INTEGER NOT NULL DEFAULT 0,
	cancel_reason TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	FOREIGN KEY (request_id) REFERENCES requests(id) ON DELETE CASCADE
);

-- At most one live engagement per (request, provider)
CREATE UNIQUE INDEX IF NOT EXISTS idx_engagements_active_pair ON engagements(request_id, provider_id) WHERE status <> 'cancelled';
-- At most one live engagement per request
CREATE UNIQUE INDEX IF NOT EXISTS idx_engagements_active_claim ON engagements(request_id) WHERE status <> 'cancelled';
CREATE INDEX IF NOT EXISTS idx_engagements_provider ON engagements(provider_id);
CREATE INDEX IF NOT EXISTS idx_engagements_requester ON engagements(requester_id);

-- Engagement messages (chat between requester and provider)
CREATE TABLE IF NOT EXISTS engagement_messages (
	id TEXT PRIMARY KEY,
	engagement_id TEXT NOT NULL,
	sender_id TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	body TEXT NOT NULL,
	read INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	FOREIGN KEY (engagement_id) REFERENCES engagements(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_engagement_messages_engagement ON engagement_messages(engagement_id);
CREATE INDEX IF NOT EXISTS idx_engagement_messages_unread ON engagement_messages(recipient_id, read);

-- Activity log (audit trail of creates and status changes)
CREATE TABLE IF NOT EXISTS activity_log (
	id TEXT PRIMARY KEY,
	actor_id TEXT,
	entity_type TEXT NOT NULL CHECK(entity_type IN ('request', 'engagement')),
	entity_id TEXT NOT NULL,
	action TEXT NOT NULL CHECK(action IN ('create', 'update')),
	field_name TEXT,
	old_value TEXT,
	new_value TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_log_entity ON activity_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_activity_log_created ON activity_log(created_at);
`

// InitSchema creates the schema on a fresh database and migrates an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(db)
	}

	var oldTableCount int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = 'requests'").Scan(&oldTableCount)
	if err != nil {
		return err
	}
	if oldTableCount > 0 {
		// Tables from before versioning: let the migrations bring them up to date
		return RunMigrations(db)
	}

	// Completely fresh install - create modern schema directly
	if _, err := db.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	// Mark all migrations as applied for fresh installs
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
