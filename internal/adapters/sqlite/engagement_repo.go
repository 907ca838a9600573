package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// EngagementRepository implements secondary.EngagementRepository with SQLite.
// The partial unique indexes on engagements are the accept-once lock.
type EngagementRepository struct {
	db *sql.DB
}

// NewEngagementRepository creates a new SQLite engagement repository.
func NewEngagementRepository(db *sql.DB) *EngagementRepository {
	return &EngagementRepository{db: db}
}

const engagementColumns = `id, request_id, provider_id, requester_id, status, quote_amount, scheduled_date, scheduled_time, requester_confirmed, provider_confirmed, cancel_reason, created_at, updated_at`

// Create persists a new engagement. CreatedAt and UpdatedAt are set on the record.
func (r *EngagementRepository) Create(ctx context.Context, engagement *secondary.EngagementRecord) error {
	ts := now()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO engagements (`+engagementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		engagement.ID,
		engagement.RequestID,
		engagement.ProviderID,
		engagement.RequesterID,
		engagement.Status,
		engagement.QuoteAmount,
		nullString(engagement.ScheduledDate),
		nullString(engagement.ScheduledTime),
		boolToInt(engagement.RequesterConfirmed),
		boolToInt(engagement.ProviderConfirmed),
		nullString(engagement.CancelReason),
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create engagement: %w", classify(err))
	}

	engagement.CreatedAt = ts
	engagement.UpdatedAt = ts
	return nil
}

// GetByID retrieves an engagement by its ID.
func (r *EngagementRepository) GetByID(ctx context.Context, id string) (*secondary.EngagementRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+engagementColumns+` FROM engagements WHERE id = ?`, id)
	record, err := scanEngagement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("engagement", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get engagement: %w", classify(err))
	}
	return record, nil
}

// Update writes every mutable field of an engagement and bumps updated_at.
func (r *EngagementRepository) Update(ctx context.Context, engagement *secondary.EngagementRecord) error {
	ts := now()
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE engagements SET
			status = ?,
			quote_amount = ?,
			scheduled_date = ?,
			scheduled_time = ?,
			requester_confirmed = ?,
			provider_confirmed = ?,
			cancel_reason = ?,
			updated_at = ?
		WHERE id = ?`,
		engagement.Status,
		engagement.QuoteAmount,
		nullString(engagement.ScheduledDate),
		nullString(engagement.ScheduledTime),
		boolToInt(engagement.RequesterConfirmed),
		boolToInt(engagement.ProviderConfirmed),
		nullString(engagement.CancelReason),
		ts,
		engagement.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update engagement: %w", classify(err))
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return notFound("engagement", engagement.ID)
	}

	engagement.UpdatedAt = ts
	return nil
}

// List retrieves engagements matching the given filters, newest first.
func (r *EngagementRepository) List(ctx context.Context, filters secondary.EngagementFilters) ([]*secondary.EngagementRecord, error) {
	query := `SELECT ` + engagementColumns + ` FROM engagements WHERE 1=1`
	args := []any{}

	if filters.RequestID != "" {
		query += " AND request_id = ?"
		args = append(args, filters.RequestID)
	}

	if filters.ProviderID != "" {
		query += " AND provider_id = ?"
		args = append(args, filters.ProviderID)
	}

	if filters.RequesterID != "" {
		query += " AND requester_id = ?"
		args = append(args, filters.RequesterID)
	}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	if filters.ActiveOnly {
		query += " AND status <> 'cancelled'"
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list engagements: %w", classify(err))
	}
	defer rows.Close()

	var engagements []*secondary.EngagementRecord
	for rows.Next() {
		record, err := scanEngagement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan engagement: %w", err)
		}
		engagements = append(engagements, record)
	}

	return engagements, rows.Err()
}

// FindActive returns the non-cancelled engagement for a request/provider pair.
func (r *EngagementRepository) FindActive(ctx context.Context, requestID, providerID string) (*secondary.EngagementRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+engagementColumns+` FROM engagements WHERE request_id = ? AND provider_id = ? AND status <> 'cancelled'`,
		requestID, providerID,
	)
	record, err := scanEngagement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("active engagement for request", requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active engagement: %w", classify(err))
	}
	return record, nil
}

// CountActiveForRequest counts non-cancelled engagements for a request, ignoring excludeID.
func (r *EngagementRepository) CountActiveForRequest(ctx context.Context, requestID, excludeID string) (int, error) {
	var count int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM engagements WHERE request_id = ? AND id <> ? AND status <> 'cancelled'",
		requestID, excludeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active engagements: %w", classify(err))
	}
	return count, nil
}

// GetNextID returns the next available engagement ID.
func (r *EngagementRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("ENG-") + 1
	err := conn(ctx, r.db).QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM engagements", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next engagement ID: %w", classify(err))
	}

	return fmt.Sprintf("ENG-%03d", maxID+1), nil
}

func scanEngagement(row rowScanner) (*secondary.EngagementRecord, error) {
	var (
		scheduledDate sql.NullString
		scheduledTime sql.NullString
		cancelReason  sql.NullString
		reqConfirmed  int
		provConfirmed int
	)

	record := &secondary.EngagementRecord{}
	err := row.Scan(
		&record.ID,
		&record.RequestID,
		&record.ProviderID,
		&record.RequesterID,
		&record.Status,
		&record.QuoteAmount,
		&scheduledDate,
		&scheduledTime,
		&reqConfirmed,
		&provConfirmed,
		&cancelReason,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ScheduledDate = scheduledDate.String
	record.ScheduledTime = scheduledTime.String
	record.CancelReason = cancelReason.String
	record.RequesterConfirmed = reqConfirmed == 1
	record.ProviderConfirmed = provConfirmed == 1
	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure EngagementRepository implements the interface
var _ secondary.EngagementRepository = (*EngagementRepository)(nil)
