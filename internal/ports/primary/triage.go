package primary

import "context"

// TriageService defines the primary port for advisory conversations.
// Conversations are ephemeral: they live until abandoned or converted.
type TriageService interface {
	// Start opens a conversation from the intake form and returns the first reply.
	Start(ctx context.Context, req StartTriageRequest) (*TriageReply, error)

	// Turn sends one user message through the classifier and the state machine.
	Turn(ctx context.Context, conversationID, message string) (*TriageReply, error)

	// Override submits new objective evidence against an escalation lock.
	Override(ctx context.Context, req TriageOverrideRequest) (*TriageReply, error)

	// Get retrieves a conversation.
	Get(ctx context.Context, conversationID string) (*TriageConversation, error)

	// Abandon destroys a conversation.
	Abandon(ctx context.Context, conversationID string) error

	// Convert creates a request carrying the transcript and destroys the conversation.
	Convert(ctx context.Context, req ConvertTriageRequest) (*Request, error)
}

// TriageIntake is the structured form filled in before chatting.
type TriageIntake struct {
	IssueType   string
	WhenStarted string
	Fields      map[string]string
	Photos      []string
}

// StartTriageRequest contains parameters for starting a conversation.
type StartTriageRequest struct {
	UserID string
	Intake TriageIntake
}

// TriageOverrideRequest contains the evidence for relaxing an escalation lock.
type TriageOverrideRequest struct {
	ConversationID string
	Evidence       string
	Cleared        []string // lock factors the evidence rules out
}

// ConvertTriageRequest contains the request fields the conversation does not know.
type ConvertTriageRequest struct {
	ConversationID string
	Title          string // defaults to the issue's problem type
	Description    string // defaults to the intake description
	Region         string
	PreferredDate  string
	PreferredTime  []string
}

// TriageMessage is one line of the transcript.
type TriageMessage struct {
	Role    string // "user" or "assistant"
	Content string
	At      string
}

// TriageConversation represents a conversation at the port boundary.
type TriageConversation struct {
	ID            string
	UserID        string
	Intake        TriageIntake
	State         string
	Category      int
	LockFactors   []string
	Summary       string
	Turns         int
	Transcript    []TriageMessage
	OfferProvider bool // surface the request-a-provider prompt
	SelfFix       bool // repair steps may be shown
	CreatedAt     string
}

// TriageReply is the outcome of one turn.
type TriageReply struct {
	Conversation      *TriageConversation
	Response          string
	FollowUpQuestions []string
	Accepted          bool   // false when the machine refused the proposal
	Reason            string // why the proposal was refused
}
