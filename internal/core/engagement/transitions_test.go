package engagement

import (
	"testing"

	corerequest "github.com/example/tradeflow/internal/core/request"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name   string
		from   Status
		event  Event
		want   Status
		wantOK bool
	}{
		{"quote from pending", StatusPendingQuote, EventSubmitQuote, StatusQuoted, true},
		{"accept quote", StatusQuoted, EventAcceptQuote, StatusAccepted, true},
		{"decline quote", StatusQuoted, EventDeclineQuote, StatusDeclined, true},
		{"requote after decline", StatusDeclined, EventSubmitQuote, StatusQuoted, true},
		{"accepted starts work", StatusAccepted, EventStartWork, StatusInProgress, true},
		{"both confirmed completes", StatusInProgress, EventBothConfirmed, StatusCompleted, true},
		{"cancel pending", StatusPendingQuote, EventCancel, StatusCancelled, true},
		{"cancel in progress", StatusInProgress, EventCancel, StatusCancelled, true},
		{"cancel accepted", StatusAccepted, EventCancel, StatusCancelled, true},
		{"cannot quote twice", StatusQuoted, EventSubmitQuote, StatusQuoted, false},
		{"cannot accept pending", StatusPendingQuote, EventAcceptQuote, StatusPendingQuote, false},
		{"cannot complete quoted", StatusQuoted, EventBothConfirmed, StatusQuoted, false},
		{"completed is terminal", StatusCompleted, EventCancel, StatusCompleted, false},
		{"cancelled is terminal", StatusCancelled, EventSubmitQuote, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Transition(tt.from, tt.event)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("next = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRequestStatusFor(t *testing.T) {
	tests := map[Status]corerequest.Status{
		StatusPendingQuote: corerequest.StatusAccepted,
		StatusQuoted:       corerequest.StatusAccepted,
		StatusDeclined:     corerequest.StatusAccepted,
		StatusAccepted:     corerequest.StatusInProgress,
		StatusInProgress:   corerequest.StatusInProgress,
		StatusCompleted:    corerequest.StatusCompleted,
		StatusCancelled:    corerequest.StatusCancelled,
	}
	for in, want := range tests {
		if got := RequestStatusFor(in); got != want {
			t.Errorf("RequestStatusFor(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if _, err := ParseStatus("pending_quote"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseStatus("pending"); err == nil {
		t.Error("expected error for unknown status")
	}
}
