package primary

import (
	"errors"
	"fmt"
)

// Error taxonomy surfaced by the primary ports. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrAlreadyEngaged    = errors.New("already engaged")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidTimeSlot   = errors.New("invalid time slot")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
	ErrTransientStore    = errors.New("transient store failure")
)

// StateError is a rejected operation. It carries the entity's current
// status so callers can reconcile their view without a re-fetch.
type StateError struct {
	Kind          error
	Entity        string // "request" or "engagement"
	ID            string
	CurrentStatus string
	Reason        string
}

func (e *StateError) Error() string {
	msg := e.Reason
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.CurrentStatus != "" {
		return fmt.Sprintf("%s (current status: %s)", msg, e.CurrentStatus)
	}
	return msg
}

func (e *StateError) Unwrap() error { return e.Kind }

// NewStateError builds a StateError.
func NewStateError(kind error, entity, id, status, reason string) *StateError {
	return &StateError{Kind: kind, Entity: entity, ID: id, CurrentStatus: status, Reason: reason}
}

// CurrentStatus extracts the status carried by err, if any.
func CurrentStatus(err error) (string, bool) {
	var se *StateError
	if errors.As(err, &se) && se.CurrentStatus != "" {
		return se.CurrentStatus, true
	}
	return "", false
}
