package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// RequestRepository implements secondary.RequestRepository with SQLite.
type RequestRepository struct {
	db *sql.DB
}

// NewRequestRepository creates a new SQLite request repository.
func NewRequestRepository(db *sql.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, requester_id, title, description, region, preferred_date, preferred_time, image_refs, advisory_transcript, status, created_at, updated_at`

// Create persists a new request. CreatedAt and UpdatedAt are set on the record.
func (r *RequestRepository) Create(ctx context.Context, request *secondary.RequestRecord) error {
	slots, err := encodeList(request.PreferredTime)
	if err != nil {
		return fmt.Errorf("failed to encode preferred times: %w", err)
	}
	images, err := encodeList(request.ImageRefs)
	if err != nil {
		return fmt.Errorf("failed to encode image refs: %w", err)
	}

	ts := now()
	_, err = conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO requests (`+requestColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID,
		request.RequesterID,
		request.Title,
		request.Description,
		request.Region,
		nullString(request.PreferredDate),
		slots,
		images,
		nullString(request.AdvisoryTranscript),
		request.Status,
		ts,
		ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", classify(err))
	}

	request.CreatedAt = ts
	request.UpdatedAt = ts
	return nil
}

// GetByID retrieves a request by its ID.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*secondary.RequestRecord, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	record, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("request", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", classify(err))
	}
	return record, nil
}

// List retrieves requests matching the given filters, newest first.
func (r *RequestRepository) List(ctx context.Context, filters secondary.RequestFilters) ([]*secondary.RequestRecord, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	args := []any{}

	if filters.RequesterID != "" {
		query += " AND requester_id = ?"
		args = append(args, filters.RequesterID)
	}

	if filters.Status != "" {
		query += " AND status = ?"
		args = append(args, filters.Status)
	}

	if filters.Region != "" {
		query += " AND region = ? COLLATE NOCASE"
		args = append(args, filters.Region)
	}

	if filters.ExcludeRequester != "" {
		query += " AND requester_id <> ?"
		args = append(args, filters.ExcludeRequester)
	}

	query += " ORDER BY created_at DESC, id DESC"

	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", classify(err))
	}
	defer rows.Close()

	var requests []*secondary.RequestRecord
	for rows.Next() {
		record, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, record)
	}

	return requests, rows.Err()
}

// UpdateStatus sets the status and bumps updated_at.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE requests SET status = ?, updated_at = ? WHERE id = ?",
		status, now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", classify(err))
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return notFound("request", id)
	}

	return nil
}

// GetNextID returns the next available request ID.
func (r *RequestRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("REQ-") + 1
	err := conn(ctx, r.db).QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM requests", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next request ID: %w", classify(err))
	}

	return fmt.Sprintf("REQ-%03d", maxID+1), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*secondary.RequestRecord, error) {
	var (
		preferredDate sql.NullString
		transcript    sql.NullString
		slots         string
		images        string
	)

	record := &secondary.RequestRecord{}
	err := row.Scan(
		&record.ID,
		&record.RequesterID,
		&record.Title,
		&record.Description,
		&record.Region,
		&preferredDate,
		&slots,
		&images,
		&transcript,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.PreferredDate = preferredDate.String
	record.AdvisoryTranscript = transcript.String
	if record.PreferredTime, err = decodeList(slots); err != nil {
		return nil, fmt.Errorf("request %s has malformed preferred times: %w", record.ID, err)
	}
	if record.ImageRefs, err = decodeList(images); err != nil {
		return nil, fmt.Errorf("request %s has malformed image refs: %w", record.ID, err)
	}
	return record, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, err
	}
	return values, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Ensure RequestRepository implements the interface
var _ secondary.RequestRepository = (*RequestRepository)(nil)
