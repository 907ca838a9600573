package primary

import (
	"context"

	"github.com/shopspring/decimal"
)

// LifecycleService defines the primary port for the lifecycle engine.
// Every mutation runs in one store transaction; rejected mutations return
// a *StateError carrying the current status.
type LifecycleService interface {
	// Accept claims a request for a provider and creates a pending_quote engagement.
	Accept(ctx context.Context, requestID, providerID string) (*Engagement, error)

	// SubmitQuote sets or replaces the provider's quote.
	SubmitQuote(ctx context.Context, req SubmitQuoteRequest) (*Engagement, error)

	// AcceptQuote accepts the open quote; work starts immediately.
	AcceptQuote(ctx context.Context, engagementID string) (*Engagement, error)

	// DeclineQuote declines the open quote. The amount stays for display.
	DeclineQuote(ctx context.Context, engagementID string) (*Engagement, error)

	// ConfirmDone sets the role's completion flag. Both flags complete the work.
	ConfirmDone(ctx context.Context, engagementID, role string) (*Engagement, error)

	// Cancel cancels a non-terminal engagement.
	Cancel(ctx context.Context, engagementID, reason string) (*Engagement, error)

	// CancelRequest withdraws a request and cancels its live engagements.
	CancelRequest(ctx context.Context, requestID, reason string) (*Request, error)

	// GetEngagement returns an engagement with the projection for one role.
	GetEngagement(ctx context.Context, engagementID, role string) (*EngagementView, error)

	// ListEngagements lists engagements matching the filters.
	ListEngagements(ctx context.Context, filters EngagementFilters) ([]*Engagement, error)
}

// SubmitQuoteRequest contains parameters for submitting a quote.
type SubmitQuoteRequest struct {
	EngagementID  string
	Amount        decimal.Decimal
	ScheduledTime string // one of the preferred slots, or free text when flexible
}

// EngagementFilters contains filter options for listing engagements.
type EngagementFilters struct {
	RequestID   string
	ProviderID  string
	RequesterID string
	Status      string
}

// Engagement represents an engagement entity at the port boundary.
type Engagement struct {
	ID                 string
	RequestID          string
	ProviderID         string
	RequesterID        string
	Status             string
	QuoteAmount        decimal.NullDecimal
	ScheduledDate      string
	ScheduledTime      string
	RequesterConfirmed bool
	ProviderConfirmed  bool
	CancelReason       string
	CreatedAt          string
	UpdatedAt          string
}

// EngagementView is an engagement as one role sees it.
type EngagementView struct {
	Engagement        *Engagement
	Request           *Request
	Role              string
	Phase             string
	Actions           []string
	YouConfirmed      bool
	OtherConfirmed    bool
	QuoteIsCurrent    bool
	PreviouslyQuoted  bool
	WaitingOnYou      bool
	WaitingOnOther    bool
	CounterpartyLabel string
}
