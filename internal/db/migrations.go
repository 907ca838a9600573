package db

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_requests_and_engagements",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_engagement_messages",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_activity_log",
		Up:      migrationV3,
	},
	{
		Version: 4,
		Name:    "add_exclusive_claim_index",
		Up:      migrationV4,
	},
}

// LatestVersion returns the version a fully migrated database reports.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations
func RunMigrations(db *sql.DB) error {
	if err := createVersionTable(db); err != nil {
		return err
	}

	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func execAll(tx *sql.Tx, statements ...string) error {
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// migrationV1 creates the request and engagement tables with the per-pair constraint
func migrationV1(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS requests (
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
		)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id)`,
		`CREATE INDEX IF NOT EXISTS idx_requests_status ON requests(status)`,
		`CREATE TABLE IF NOT EXISTS engagements (
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
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_engagements_active_pair ON engagements(request_id, provider_id) WHERE status <> 'cancelled'`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_provider ON engagements(provider_id)`,
		`CREATE INDEX IF NOT EXISTS idx_engagements_requester ON engagements(requester_id)`,
	)
}

// migrationV2 adds the engagement chat table
func migrationV2(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS engagement_messages (
			id TEXT PRIMARY KEY,
			engagement_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			recipient_id TEXT NOT NULL,
			body TEXT NOT NULL,
			read INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			FOREIGN KEY (engagement_id) REFERENCES engagements(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_engagement_messages_engagement ON engagement_messages(engagement_id)`,
		`CREATE INDEX IF NOT EXISTS idx_engagement_messages_unread ON engagement_messages(recipient_id, read)`,
	)
}

// migrationV3 adds the activity log
func migrationV3(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id TEXT PRIMARY KEY,
			actor_id TEXT,
			entity_type TEXT NOT NULL CHECK(entity_type IN ('request', 'engagement')),
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL CHECK(action IN ('create', 'update')),
			field_name TEXT,
			old_value TEXT,
			new_value TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_entity ON activity_log(entity_type, entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_log_created ON activity_log(created_at)`,
	)
}

// migrationV4 makes a request claimable by one provider at a time. Live
// duplicates from before the index are cancelled, keeping the oldest claim.
func migrationV4(tx *sql.Tx) error {
	return execAll(tx,
		`UPDATE engagements SET status = 'cancelled', cancel_reason = 'superseded by an earlier claim'
		WHERE status <> 'cancelled' AND id NOT IN (
			SELECT MIN(id) FROM engagements WHERE status <> 'cancelled' GROUP BY request_id
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_engagements_active_claim ON engagements(request_id) WHERE status <> 'cancelled'`,
	)
}
