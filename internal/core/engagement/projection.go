package engagement

// Phase is a role-relative description of where an engagement stands.
type Phase string

const (
	PhaseAwaitingQuote             Phase = "awaiting_quote"
	PhaseAwaitingQuoteResponse     Phase = "awaiting_quote_response"
	PhaseQuoteDeclined             Phase = "quote_declined"
	PhaseWorkInProgress            Phase = "work_in_progress"
	PhaseAwaitingYourConfirmation  Phase = "awaiting_your_confirmation"
	PhaseAwaitingOtherConfirmation Phase = "awaiting_other_confirmation"
	PhaseCompleted                 Phase = "completed"
	PhaseCancelled                 Phase = "cancelled"
)

// Action is something a role can do to an engagement right now.
type Action string

const (
	ActionSubmitQuote  Action = "submit_quote"
	ActionAcceptQuote  Action = "accept_quote"
	ActionDeclineQuote Action = "decline_quote"
	ActionConfirmDone  Action = "confirm_done"
	ActionCancel       Action = "cancel"
	ActionMessage      Action = "message"
)

// Snapshot is the canonical engagement state a projection is computed from.
type Snapshot struct {
	ID                 string
	Status             Status
	HasQuote           bool
	RequesterConfirmed bool
	ProviderConfirmed  bool
}

// View is a read-only, role-specific projection of an engagement.
type View struct {
	Role              Role
	Phase             Phase
	Actions           []Action
	YouConfirmed      bool
	OtherConfirmed    bool
	QuoteIsCurrent    bool // false when the last quote was declined
	PreviouslyQuoted  bool
	WaitingOnYou      bool
	WaitingOnOther    bool
	CounterpartyLabel string
}

// Project computes the view of an engagement for one role. Every action it
// lists comes from the same guards the lifecycle engine enforces.
func Project(s Snapshot, role Role) View {
	v := View{Role: role}
	state := StateContext{EngagementID: s.ID, Status: s.Status}

	if role == RoleRequester {
		v.YouConfirmed, v.OtherConfirmed = s.RequesterConfirmed, s.ProviderConfirmed
		v.CounterpartyLabel = "provider"
	} else {
		v.YouConfirmed, v.OtherConfirmed = s.ProviderConfirmed, s.RequesterConfirmed
		v.CounterpartyLabel = "requester"
	}

	switch s.Status {
	case StatusQuoted, StatusAccepted, StatusInProgress, StatusCompleted:
		v.QuoteIsCurrent = s.HasQuote
	case StatusDeclined:
		v.PreviouslyQuoted = s.HasQuote
	}

	switch s.Status {
	case StatusPendingQuote:
		v.Phase = PhaseAwaitingQuote
	case StatusQuoted:
		v.Phase = PhaseAwaitingQuoteResponse
	case StatusDeclined:
		v.Phase = PhaseQuoteDeclined
	case StatusAccepted, StatusInProgress:
		switch {
		case v.YouConfirmed && !v.OtherConfirmed:
			v.Phase = PhaseAwaitingOtherConfirmation
		case !v.YouConfirmed && v.OtherConfirmed:
			v.Phase = PhaseAwaitingYourConfirmation
		default:
			v.Phase = PhaseWorkInProgress
		}
	case StatusCompleted:
		v.Phase = PhaseCompleted
	default:
		v.Phase = PhaseCancelled
	}

	if role == RoleProvider && CanSubmitQuote(state).Allowed {
		v.Actions = append(v.Actions, ActionSubmitQuote)
	}
	if role == RoleRequester && CanRespondToQuote(state).Allowed {
		v.Actions = append(v.Actions, ActionAcceptQuote, ActionDeclineQuote)
	}
	if CanConfirm(state).Allowed && !v.YouConfirmed {
		v.Actions = append(v.Actions, ActionConfirmDone)
	}
	if CanCancel(state).Allowed {
		v.Actions = append(v.Actions, ActionCancel, ActionMessage)
	}

	for _, a := range v.Actions {
		if a != ActionCancel && a != ActionMessage {
			v.WaitingOnYou = true
		}
	}
	v.WaitingOnOther = !v.WaitingOnYou && !s.Status.IsTerminal()
	return v
}
