// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Storage-level errors. Adapters wrap driver errors in these so the
// application layer never inspects driver types.
var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrUniqueViolation  = errors.New("unique constraint violated")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Transactor runs a function inside one storage transaction. Repositories
// called with the context passed to fn take part in the transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// RequestRepository defines the secondary port for request persistence.
type RequestRepository interface {
	// Create persists a new request.
	Create(ctx context.Context, request *RequestRecord) error

	// GetByID retrieves a request by its ID.
	GetByID(ctx context.Context, id string) (*RequestRecord, error)

	// List retrieves requests matching the given filters, newest first.
	List(ctx context.Context, filters RequestFilters) ([]*RequestRecord, error)

	// UpdateStatus sets the status and bumps updated_at.
	UpdateStatus(ctx context.Context, id, status string) error

	// GetNextID returns the next available request ID.
	GetNextID(ctx context.Context) (string, error)
}

// RequestRecord represents a request as stored in persistence.
type RequestRecord struct {
	ID                 string
	RequesterID        string
	Title              string
	Description        string
	Region             string
	PreferredDate      string // Empty string means null
	PreferredTime      []string
	ImageRefs          []string
	AdvisoryTranscript string // Empty string means null
	Status             string
	CreatedAt          string
	UpdatedAt          string
}

// RequestFilters contains filter options for querying requests.
type RequestFilters struct {
	RequesterID      string
	Status           string
	Region           string
	ExcludeRequester string
	Limit            int
}

// EngagementRepository defines the secondary port for engagement persistence.
type EngagementRepository interface {
	// Create persists a new engagement. A second live engagement for the same
	// request fails with ErrUniqueViolation.
	Create(ctx context.Context, engagement *EngagementRecord) error

	// GetByID retrieves an engagement by its ID.
	GetByID(ctx context.Context, id string) (*EngagementRecord, error)

	// Update writes every mutable field of an engagement.
	Update(ctx context.Context, engagement *EngagementRecord) error

	// List retrieves engagements matching the given filters, newest first.
	List(ctx context.Context, filters EngagementFilters) ([]*EngagementRecord, error)

	// FindActive returns the non-cancelled engagement for a request/provider pair.
	FindActive(ctx context.Context, requestID, providerID string) (*EngagementRecord, error)

	// CountActiveForRequest counts non-cancelled engagements for a request,
	// ignoring excludeID.
	CountActiveForRequest(ctx context.Context, requestID, excludeID string) (int, error)

	// GetNextID returns the next available engagement ID.
	GetNextID(ctx context.Context) (string, error)
}

// EngagementRecord represents an engagement as stored in persistence.
type EngagementRecord struct {
	ID                 string
	RequestID          string
	ProviderID         string
	RequesterID        string
	Status             string
	QuoteAmount        decimal.NullDecimal
	ScheduledDate      string // Empty string means null
	ScheduledTime      string // Empty string means null
	RequesterConfirmed bool
	ProviderConfirmed  bool
	CancelReason       string // Empty string means null
	CreatedAt          string
	UpdatedAt          string
}

// EngagementFilters contains filter options for querying engagements.
type EngagementFilters struct {
	RequestID   string
	ProviderID  string
	RequesterID string
	Status      string
	ActiveOnly  bool // exclude cancelled
}

// MessageRepository defines the secondary port for engagement chat persistence.
type MessageRepository interface {
	// Create persists a new message.
	Create(ctx context.Context, message *MessageRecord) error

	// ListByEngagement retrieves an engagement's messages, oldest first.
	ListByEngagement(ctx context.Context, engagementID string) ([]*MessageRecord, error)

	// MarkRead marks messages addressed to the reader as read and returns how many changed.
	MarkRead(ctx context.Context, engagementID, readerID string) (int, error)

	// UnreadCounts returns unread counts per engagement for a recipient.
	UnreadCounts(ctx context.Context, recipientID string) (map[string]int, error)

	// GetNextID returns the next available message ID.
	GetNextID(ctx context.Context) (string, error)
}

// MessageRecord represents a message as stored in persistence.
type MessageRecord struct {
	ID           string
	EngagementID string
	SenderID     string
	RecipientID  string
	Body         string
	Read         bool
	CreatedAt    string
}

// ActivityLogRepository defines the secondary port for activity log persistence.
type ActivityLogRepository interface {
	// Create persists a new log entry.
	Create(ctx context.Context, record *ActivityLogRecord) error

	// GetByID retrieves a log entry by its ID.
	GetByID(ctx context.Context, id string) (*ActivityLogRecord, error)

	// List retrieves log entries matching the given filters, newest first.
	List(ctx context.Context, filters ActivityLogFilters) ([]*ActivityLogRecord, error)

	// PruneOlderThan deletes entries older than the given number of days.
	PruneOlderThan(ctx context.Context, days int) (int, error)

	// GetNextID returns the next available log entry ID.
	GetNextID(ctx context.Context) (string, error)
}

// ActivityLogRecord represents an activity log entry as stored in persistence.
type ActivityLogRecord struct {
	ID         string
	ActorID    string // Empty string means null
	EntityType string
	EntityID   string
	Action     string
	FieldName  string // Empty string means null
	OldValue   string // Empty string means null
	NewValue   string // Empty string means null
	CreatedAt  string
}

// ActivityLogFilters contains filter options for querying the activity log.
type ActivityLogFilters struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	Limit      int
}
