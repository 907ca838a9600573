// Package request contains the pure business logic for service requests.
// This is part of the Functional Core - no I/O, only pure functions.
package request

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle position of a request.
type Status string

const (
	StatusNew        Status = "new"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// rank orders the forward-moving statuses. Cancelled sits outside the order.
var rank = map[Status]int{
	StatusNew:        0,
	StatusAccepted:   1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := rank[st]; ok || st == StatusCancelled {
		return st, nil
	}
	return "", fmt.Errorf("unknown request status %q", s)
}

// IsTerminal reports whether no further status change is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// InitialStatus returns the status every new request starts in.
func InitialStatus() Status {
	return StatusNew
}

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

// AdvanceContext provides context for a request status change.
type AdvanceContext struct {
	RequestID string
	Current   Status
	Target    Status
}

// CanAdvance evaluates whether a request may move from Current to Target.
// Rules:
// - Terminal statuses never change
// - Cancelled is reachable from any non-terminal status
// - Otherwise the status may only move forward (same status is a no-op)
func CanAdvance(ctx AdvanceContext) GuardResult {
	if ctx.Current.IsTerminal() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("request %s is %s and can no longer change", ctx.RequestID, ctx.Current),
		}
	}
	if ctx.Target == StatusCancelled {
		return GuardResult{Allowed: true}
	}
	from, okFrom := rank[ctx.Current]
	to, okTo := rank[ctx.Target]
	if !okFrom || !okTo {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("request %s: unknown status transition %s -> %s", ctx.RequestID, ctx.Current, ctx.Target),
		}
	}
	if to < from {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("request %s cannot move back from %s to %s", ctx.RequestID, ctx.Current, ctx.Target),
		}
	}
	return GuardResult{Allowed: true}
}

// CreateContext provides context for request creation guards.
type CreateContext struct {
	RequesterID string
	Title       string
}

// CanCreate evaluates whether a request can be created.
// Rules:
// - Requester must be known
// - Title must be non-empty
func CanCreate(ctx CreateContext) GuardResult {
	if strings.TrimSpace(ctx.RequesterID) == "" {
		return GuardResult{Allowed: false, Reason: "requester is required"}
	}
	if strings.TrimSpace(ctx.Title) == "" {
		return GuardResult{Allowed: false, Reason: "title is required"}
	}
	return GuardResult{Allowed: true}
}
