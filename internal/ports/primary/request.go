package primary

import "context"

// RequestService defines the primary port for the request store.
type RequestService interface {
	// CreateRequest stores a new request in status new.
	CreateRequest(ctx context.Context, req CreateRequestRequest) (*Request, error)

	// GetRequest retrieves a request by ID.
	GetRequest(ctx context.Context, requestID string) (*Request, error)

	// ListByRequester lists a requester's own requests, newest first.
	ListByRequester(ctx context.Context, requesterID string) ([]*Request, error)

	// ListOpen lists requests no provider has claimed yet.
	ListOpen(ctx context.Context, filters OpenRequestFilters) ([]*Request, error)

	// SetStatus moves a request to a new status. Only the lifecycle engine may
	// call it; outside a lifecycle scope it fails with ErrInvalidTransition.
	SetStatus(ctx context.Context, requestID, status string) error
}

// CreateRequestRequest contains parameters for creating a request.
type CreateRequestRequest struct {
	RequesterID        string
	Title              string
	Description        string
	Region             string
	PreferredDate      string   // YYYY-MM-DD, optional
	PreferredTime      []string // slot labels, may include "Flexible"
	ImageRefs          []string
	AdvisoryTranscript string // opaque JSON, optional
}

// OpenRequestFilters contains filter options for browsing open requests.
type OpenRequestFilters struct {
	Region           string
	ExcludeRequester string // hide the caller's own requests
	Limit            int
}

// Request represents a request entity at the port boundary.
type Request struct {
	ID                 string
	RequesterID        string
	Title              string
	Description        string
	Region             string
	PreferredDate      string
	PreferredTime      []string
	ImageRefs          []string
	AdvisoryTranscript string
	Status             string
	CreatedAt          string
	UpdatedAt          string
}
