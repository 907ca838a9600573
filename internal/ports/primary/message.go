package primary

import "context"

// MessageService defines the primary port for engagement chat.
type MessageService interface {
	// Send posts a message from one participant to the other.
	Send(ctx context.Context, req SendMessageRequest) (*Message, error)

	// List returns an engagement's messages, oldest first.
	List(ctx context.Context, engagementID string) ([]*Message, error)

	// MarkRead marks every message addressed to the reader as read.
	// Returns the number of messages changed.
	MarkRead(ctx context.Context, engagementID, readerID string) (int, error)

	// UnreadCounts returns unread message counts per engagement for a user.
	UnreadCounts(ctx context.Context, userID string) (map[string]int, error)
}

// SendMessageRequest contains parameters for sending a message.
type SendMessageRequest struct {
	EngagementID string
	SenderID     string
	Body         string
}

// Message represents a message entity at the port boundary.
type Message struct {
	ID           string
	EngagementID string
	SenderID     string
	RecipientID  string
	Body         string
	Read         bool
	CreatedAt    string
}
