package secondary

import (
	"context"

	"github.com/example/tradeflow/internal/core/triage"
)

// Classifier proposes the next triage state for a conversation. Its output
// is untrusted advice; triage.Machine decides what is accepted.
type Classifier interface {
	Classify(ctx context.Context, input ClassifyInput) (triage.Proposal, error)
}

// ClassifyInput is everything the classifier may look at.
type ClassifyInput struct {
	Current triage.Conversation
	Intake  triage.Intake
	Window  []ChatTurn // bounded, oldest first
}

// ChatTurn is one line of the conversation window.
type ChatTurn struct {
	Role    string // "user" or "assistant"
	Content string
}
