package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/tradeflow/internal/ports/secondary"
)

// MessageRepository implements secondary.MessageRepository with SQLite.
type MessageRepository struct {
	db *sql.DB
}

// NewMessageRepository creates a new SQLite message repository.
func NewMessageRepository(db *sql.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a new message. CreatedAt is set on the record.
func (r *MessageRepository) Create(ctx context.Context, message *secondary.MessageRecord) error {
	ts := now()
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO engagement_messages (id, engagement_id, sender_id, recipient_id, body, read, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		message.ID, message.EngagementID, message.SenderID, message.RecipientID, message.Body, 0, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", classify(err))
	}

	message.CreatedAt = ts
	return nil
}

// ListByEngagement retrieves an engagement's messages, oldest first.
func (r *MessageRepository) ListByEngagement(ctx context.Context, engagementID string) ([]*secondary.MessageRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT id, engagement_id, sender_id, recipient_id, body, read, created_at FROM engagement_messages WHERE engagement_id = ? ORDER BY created_at ASC, id ASC",
		engagementID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", classify(err))
	}
	defer rows.Close()

	var messages []*secondary.MessageRecord
	for rows.Next() {
		var readInt int

		record := &secondary.MessageRecord{}
		err := rows.Scan(&record.ID, &record.EngagementID, &record.SenderID, &record.RecipientID, &record.Body, &readInt, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		record.Read = readInt == 1

		messages = append(messages, record)
	}

	return messages, rows.Err()
}

// MarkRead marks messages addressed to the reader as read.
func (r *MessageRepository) MarkRead(ctx context.Context, engagementID, readerID string) (int, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"UPDATE engagement_messages SET read = 1 WHERE engagement_id = ? AND recipient_id = ? AND read = 0",
		engagementID, readerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages as read: %w", classify(err))
	}

	rowsAffected, _ := result.RowsAffected()
	return int(rowsAffected), nil
}

// UnreadCounts returns unread counts per engagement for a recipient.
func (r *MessageRepository) UnreadCounts(ctx context.Context, recipientID string) (map[string]int, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		"SELECT engagement_id, COUNT(*) FROM engagement_messages WHERE recipient_id = ? AND read = 0 GROUP BY engagement_id",
		recipientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get unread counts: %w", classify(err))
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			engagementID string
			count        int
		)
		if err := rows.Scan(&engagementID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan unread count: %w", err)
		}
		counts[engagementID] = count
	}

	return counts, rows.Err()
}

// GetNextID returns the next available message ID.
func (r *MessageRepository) GetNextID(ctx context.Context) (string, error) {
	var maxID int
	prefixLen := len("MSG-") + 1
	err := conn(ctx, r.db).QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(CAST(SUBSTR(id, %d) AS INTEGER)), 0) FROM engagement_messages", prefixLen),
	).Scan(&maxID)
	if err != nil {
		return "", fmt.Errorf("failed to get next message ID: %w", classify(err))
	}

	return fmt.Sprintf("MSG-%03d", maxID+1), nil
}

// Ensure MessageRepository implements the interface.
var _ secondary.MessageRepository = (*MessageRepository)(nil)
