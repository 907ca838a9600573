package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// ActivityLogRepository implements secondary.ActivityLogRepository with SQLite.
type ActivityLogRepository struct {
	db *sql.DB
}

// NewActivityLogRepository creates a new SQLite activity log repository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

const activityColumns = `id, actor_id, entity_type, entity_id, action, field_name, old_value, new_value, created_at`

// Create persists a new log entry.
func (r *ActivityLogRepository) Create(ctx context.Context, log *secondary.ActivityLogRecord) error {
	ts := now()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO activity_log (`+activityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		nullString(log.ActorID),
		log.EntityType,
		log.EntityID,
		log.Action,
		nullString(log.FieldName),
		nullString(log.OldValue),
		nullString(log.NewValue),
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity log: %w", classify(err))
	}

	log.CreatedAt = ts
	return nil
}

// GetByID retrieves a log entry by its ID.
func (r *ActivityLogRepository) GetByID(ctx context.Context, id string) (*secondary.ActivityLogRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activity_log WHERE id = ?`, id)
	record, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("activity log", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity log: %w", classify(err))
	}
	return record, nil
}

// List retrieves log entries matching the given filters.
func (r *ActivityLogRepository) List(ctx context.Context, filters secondary.ActivityLogFilters) ([]*secondary.ActivityLogRecord, error) {
	query := `SELECT ` + activityColumns + ` FROM activity_log WHERE 1=1`
	args := []any{}

	if filters.EntityType != "" {
		query += " AND entity_type = ?"
		args = append(args, filters.EntityType)
	}

	if filters.EntityID != "" {
		query += " AND entity_id = ?"
		args = append(args, filters.EntityID)
	}

	if filters.ActorID != "" {
		query += " AND actor_id = ?"
		args = append(args, filters.ActorID)
	}

	if filters.Action != "" {
		query += " AND action = ?"
		args = append(args, filters.Action)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity log: %w", classify(err))
	}
	defer rows.Close()

	var logs []*secondary.ActivityLogRecord
	for rows.Next() {
		record, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		logs = append(logs, record)
	}

	return logs, rows.Err()
}

// PruneOlderThan deletes entries older than the given number of days.
func (r *ActivityLogRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days).Format(timeLayout)
	result, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM activity_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity log: %w", classify(err))
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// GetNextID returns the next available log ID.
func (r *ActivityLogRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("AL-") + 1
	err := conn(ctx, r.db).QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM activity_log", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next activity log ID: %w", classify(err))
	}

	return fmt.Sprintf("AL-%04d", maxID+1), nil
}

func scanActivity(row rowScanner) (*secondary.ActivityLogRecord, error) {
	var actorID, fieldName, oldValue, newValue sql.NullString

	record := &secondary.ActivityLogRecord{}
	err := row.Scan(&record.ID,
		&actorID,
		&record.EntityType,
		&record.EntityID,
		&record.Action,
		&fieldName,
		&oldValue,
		&newValue,
		&record.CreatedAt)
	if err != nil {
		return nil, err
	}
	record.ActorID = actorID.String
	record.FieldName = fieldName.String
	record.OldValue = oldValue.String
	record.NewValue = newValue.String
	return record, nil
}

// Ensure ActivityLogRepository implements the interface
var _ secondary.ActivityLogRepository = (*ActivityLogRepository)(nil)
