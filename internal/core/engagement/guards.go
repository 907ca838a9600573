package engagement

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies which side of the marketplace an actor is on.
type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
)

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleRequester, "customer":
		return RoleRequester, nil
	case RoleProvider, "plumber":
		return RoleProvider, nil
	}
	return "", fmt.Errorf("unknown role %q (want requester or provider)", s)
}

// FlexibleSlot is the preferred-time label that allows free-text proposals.
const FlexibleSlot = "flexible"

// DateLayout is the layout of scheduled and preferred dates.
const DateLayout = "2006-01-02"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

func allowed() GuardResult { return GuardResult{Allowed: true} }

func denied(format string, args ...any) GuardResult {
	return GuardResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// StateContext provides the current status for state-based guards.
type StateContext struct {
	EngagementID string
	Status       Status
}

// AcceptContext provides context for claiming a request.
type AcceptContext struct {
	RequestID     string
	RequestStatus string
	RequesterID   string
	ProviderID    string
}

// CanAccept evaluates whether a provider may claim a request.
// Rules:
// - Provider must be known and must not be the requester
// - Request must not be completed or cancelled
//
// Whether someone else already holds the request is decided by the
// storage constraint, not here.
func CanAccept(ctx AcceptContext) GuardResult {
	if strings.TrimSpace(ctx.ProviderID) == "" {
		return denied("provider is required")
	}
	if ctx.ProviderID == ctx.RequesterID {
		return denied("provider %s cannot accept their own request %s", ctx.ProviderID, ctx.RequestID)
	}
	if ctx.RequestStatus == "completed" || ctx.RequestStatus == "cancelled" {
		return denied("request %s is %s and cannot be accepted", ctx.RequestID, ctx.RequestStatus)
	}
	return allowed()
}

// CanSubmitQuote evaluates whether a quote may be (re)submitted.
// Rule: only from pending_quote or declined.
func CanSubmitQuote(ctx StateContext) GuardResult {
	if _, ok := Transition(ctx.Status, EventSubmitQuote); !ok {
		return denied("cannot quote engagement %s while %s (quotes are accepted when pending_quote or declined)", ctx.EngagementID, ctx.Status)
	}
	return allowed()
}

// CanRespondToQuote evaluates whether the requester may accept or decline.
// Rule: only while quoted.
func CanRespondToQuote(ctx StateContext) GuardResult {
	if ctx.Status != StatusQuoted {
		return denied("engagement %s has no open quote (status: %s)", ctx.EngagementID, ctx.Status)
	}
	return allowed()
}

// CanConfirm evaluates whether a completion flag may be set.
// Rule: only while in_progress.
func CanConfirm(ctx StateContext) GuardResult {
	if ctx.Status != StatusInProgress {
		return denied("engagement %s cannot be confirmed done while %s", ctx.EngagementID, ctx.Status)
	}
	return allowed()
}

// CanCancel evaluates whether an engagement may be cancelled.
// Rule: any non-terminal status.
func CanCancel(ctx StateContext) GuardResult {
	if _, ok := Transition(ctx.Status, EventCancel); !ok {
		return denied("engagement %s is already %s", ctx.EngagementID, ctx.Status)
	}
	return allowed()
}

// ValidateQuoteAmount rejects zero and negative quotes.
func ValidateQuoteAmount(amount decimal.Decimal) GuardResult {
	if !amount.IsPositive() {
		return denied("quote amount must be greater than zero (got %s)", amount.String())
	}
	return allowed()
}

// TimeSlotContext provides context for validating a proposed time.
type TimeSlotContext struct {
	Proposed string
	Slots    []string
}

// ValidateTimeSlot checks a proposed scheduled time against the request's
// preferred slots. An empty proposal is allowed. Free text is only accepted
// when the requester marked themselves flexible.
func ValidateTimeSlot(ctx TimeSlotContext) GuardResult {
	proposed := strings.TrimSpace(ctx.Proposed)
	if proposed == "" {
		return allowed()
	}
	flexible := false
	for _, slot := range ctx.Slots {
		if strings.EqualFold(strings.TrimSpace(slot), FlexibleSlot) {
			flexible = true
			continue
		}
		if strings.EqualFold(strings.TrimSpace(slot), proposed) {
			return allowed()
		}
	}
	if flexible {
		if strings.EqualFold(proposed, FlexibleSlot) {
			return denied("propose a concrete timeframe for a flexible request")
		}
		return allowed()
	}
	if len(ctx.Slots) == 0 {
		return denied("time %q not offered: the request lists no preferred times", proposed)
	}
	return denied("time %q is not one of the preferred times: %s", proposed, strings.Join(ctx.Slots, ", "))
}

// NormalizeTimeSlot returns the canonical spelling of a proposed slot.
func NormalizeTimeSlot(proposed string, slots []string) string {
	proposed = strings.TrimSpace(proposed)
	for _, slot := range slots {
		if strings.EqualFold(strings.TrimSpace(slot), proposed) {
			return slot
		}
	}
	return proposed
}

// ScheduledDate derives the scheduled date for a quote. The requester's
// preferred date wins; without one the quote is scheduled for today.
// The second return value reports whether the fallback was used.
func ScheduledDate(preferredDate string, now time.Time) (string, bool) {
	if d := strings.TrimSpace(preferredDate); d != "" {
		return d, false
	}
	return now.Format(DateLayout), true
}

// ConfirmContext provides context for applying a completion confirmation.
type ConfirmContext struct {
	Actor              Role
	RequesterConfirmed bool
	ProviderConfirmed  bool
}

// ConfirmResult captures the outcome of a confirmation.
type ConfirmResult struct {
	RequesterConfirmed bool
	ProviderConfirmed  bool
	Changed            bool // false when the actor's flag was already set
	Completed          bool // true when both flags are now set
}

// ApplyConfirmation sets the actor's flag and reports whether work is complete.
// Setting an already-set flag is a no-op.
func ApplyConfirmation(ctx ConfirmContext) ConfirmResult {
	result := ConfirmResult{
		RequesterConfirmed: ctx.RequesterConfirmed,
		ProviderConfirmed:  ctx.ProviderConfirmed,
	}
	switch ctx.Actor {
	case RoleRequester:
		result.Changed = !ctx.RequesterConfirmed
		result.RequesterConfirmed = true
	case RoleProvider:
		result.Changed = !ctx.ProviderConfirmed
		result.ProviderConfirmed = true
	}
	result.Completed = result.RequesterConfirmed && result.ProviderConfirmed
	return result
}
