// Package engagement contains the pure business logic for engagements
// (one provider's claim on one request).
// This is part of the Functional Core - no I/O, only pure functions.
package engagement

import (
	"fmt"
	"strings"

	corerequest "github.com/example/tradeflow/internal/core/request"
)

// Status represents the possible states of an engagement.
type Status string

const (
	StatusPendingQuote Status = "pending_quote"
	StatusQuoted       Status = "quoted"
	StatusDeclined     Status = "declined"
	StatusAccepted     Status = "accepted"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"
)

// ParseStatus converts a stored string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPendingQuote, StatusQuoted, StatusDeclined, StatusAccepted,
		StatusInProgress, StatusCompleted, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown engagement status %q", s)
}

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Event is a trigger that may move an engagement between statuses.
type Event string

const (
	EventSubmitQuote   Event = "submit_quote"
	EventAcceptQuote   Event = "accept_quote"
	EventDeclineQuote  Event = "decline_quote"
	EventStartWork     Event = "start_work"
	EventBothConfirmed Event = "both_confirmed"
	EventCancel        Event = "cancel"
)

var transitions = map[Status]map[Event]Status{
	StatusPendingQuote: {EventSubmitQuote: StatusQuoted},
	StatusQuoted: {
		EventAcceptQuote:  StatusAccepted,
		EventDeclineQuote: StatusDeclined,
	},
	StatusDeclined:   {EventSubmitQuote: StatusQuoted},
	StatusAccepted:   {EventStartWork: StatusInProgress},
	StatusInProgress: {EventBothConfirmed: StatusCompleted},
}

// Transition is the single transition function of the engagement lifecycle.
// It returns the next status and whether the event is legal from the given status.
func Transition(from Status, ev Event) (Status, bool) {
	if from.IsTerminal() {
		return from, false
	}
	if ev == EventCancel {
		return StatusCancelled, true
	}
	next, ok := transitions[from][ev]
	if !ok {
		return from, false
	}
	return next, true
}

// InitialStatus returns the status an engagement is created with.
func InitialStatus() Status {
	return StatusPendingQuote
}

// RequestStatusFor returns the request status that mirrors an engagement status.
func RequestStatusFor(s Status) corerequest.Status {
	switch s {
	case StatusPendingQuote, StatusQuoted, StatusDeclined:
		return corerequest.StatusAccepted
	case StatusAccepted, StatusInProgress:
		return corerequest.StatusInProgress
	case StatusCompleted:
		return corerequest.StatusCompleted
	default:
		return corerequest.StatusCancelled
	}
}
