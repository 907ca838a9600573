package primary

import (
	"errors"
	"fmt"
	"testing"
)

func TestStateError(t *testing.T) {
	err := fmt.Errorf("submit quote: %w", NewStateError(ErrInvalidState, "engagement", "ENG-001", "quoted", "engagement ENG-001 already has an open quote"))

	if !errors.Is(err, ErrInvalidState) {
		t.Error("expected errors.Is to match ErrInvalidState")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("unexpected match on ErrNotFound")
	}
	status, ok := CurrentStatus(err)
	if !ok || status != "quoted" {
		t.Errorf("CurrentStatus = (%q, %v), want quoted", status, ok)
	}
	want := "submit quote: engagement ENG-001 already has an open quote (current status: quoted)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStateErrorWithoutReason(t *testing.T) {
	err := NewStateError(ErrNotFound, "request", "REQ-404", "", "")
	if err.Error() != "not found" {
		t.Errorf("Error() = %q", err.Error())
	}
	if _, ok := CurrentStatus(err); ok {
		t.Error("expected no current status")
	}
}
