package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/tradeflow/internal/core/triage"
	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// TriageSettings tunes the advisory conversation.
type TriageSettings struct {
	MinExchangesForCTA int
	WindowSize         int
	SummaryLimit       int
	ConfidenceFloor    float64
}

// Canned replies used when the machine refuses a proposal. The classifier's
// own text may describe steps the current state does not allow.
var refusedReplies = map[triage.State]string{
	triage.StateEmergency: "This still needs urgent attention. If you have not already, " +
		"shut off the supply if it is safe to do so and contact a professional now.",
	triage.StateEscalationLocked: "Based on what you've described, this needs a professional. " +
		"I can't walk you through a repair, but I can help you request a provider.",
	triage.StateDiagnostic: "I need a little more information before suggesting anything. " +
		"Can you describe what you see in more detail?",
	triage.StateCategory1: "Let's stick with the simple fix for now. " +
		"If anything changes or it gets worse, tell me what you see.",
}

// TriageServiceImpl implements the TriageService interface. Conversations
// are held in memory. Turns on one conversation are serialized; turns on
// different conversations run in parallel.
type TriageServiceImpl struct {
	classifier secondary.Classifier
	requests   primary.RequestService
	machine    triage.Machine
	settings   TriageSettings
	logger     *slog.Logger
	now        func() time.Time

	mu    sync.Mutex
	convs map[string]*conversation
}

type conversation struct {
	mu         sync.Mutex
	id         string
	userID     string
	raw        primary.TriageIntake
	intake     triage.Intake
	state      triage.Conversation
	transcript []primary.TriageMessage
	createdAt  time.Time
	closed     bool
}

// NewTriageService creates a new TriageService with injected dependencies.
func NewTriageService(
	classifier secondary.Classifier,
	requests primary.RequestService,
	settings TriageSettings,
	logger *slog.Logger,
) *TriageServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &TriageServiceImpl{
		classifier: classifier,
		requests:   requests,
		machine: triage.Machine{
			ConfidenceFloor: settings.ConfidenceFloor,
			SummaryLimit:    settings.SummaryLimit,
		},
		settings: settings,
		logger:   logger,
		now:      time.Now,
		convs:    map[string]*conversation{},
	}
}

// Start opens a conversation. The intake counts as the user's first message.
func (s *TriageServiceImpl) Start(ctx context.Context, req primary.StartTriageRequest) (*primary.TriageReply, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, invalidInput("user is required")
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != req.UserID {
		return nil, forbidden("%s cannot start a conversation for %s", actor, req.UserID)
	}
	intake := triage.Intake{
		IssueType:   triage.ParseIssueType(req.Intake.IssueType),
		WhenStarted: strings.TrimSpace(req.Intake.WhenStarted),
		Fields:      maps.Clone(req.Intake.Fields),
		Photos:      cleanList(req.Intake.Photos),
	}
	if err := intake.Validate(); err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	c := &conversation{
		id:        uuid.NewString(),
		userID:    req.UserID,
		raw:       req.Intake,
		intake:    intake,
		state:     triage.New(),
		createdAt: s.now().UTC(),
	}
	c.raw.IssueType = string(intake.IssueType)

	c.mu.Lock()
	defer c.mu.Unlock()

	s.mu.Lock()
	s.convs[c.id] = c
	s.mu.Unlock()

	c.append("user", intake.Description(), s.now())
	reply := s.step(ctx, c)
	s.logger.Info("triage started", "conversation_id", c.id, "issue", intake.IssueType, "state", c.state.State)
	return reply, nil
}

// Turn runs one user message through the classifier and the machine.
func (s *TriageServiceImpl) Turn(ctx context.Context, conversationID, message string) (*primary.TriageReply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, invalidInput("message is required")
	}
	c, err := s.acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	c.append("user", message, s.now())
	return s.step(ctx, c), nil
}

// Override submits evidence against an escalation lock. A refused override
// leaves the conversation unchanged.
func (s *TriageServiceImpl) Override(ctx context.Context, req primary.TriageOverrideRequest) (*primary.TriageReply, error) {
	c, err := s.acquire(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	decision := s.machine.ApplyOverride(c.state, triage.Override{
		Evidence: req.Evidence,
		Cleared:  req.Cleared,
	})
	if !decision.Accepted {
		s.logger.Debug("triage override refused", "conversation_id", c.id, "reason", decision.Reason)
		return &primary.TriageReply{
			Conversation: c.view(s.settings.MinExchangesForCTA),
			Response:     decision.Reason,
			Reason:       decision.Reason,
		}, nil
	}

	c.state = decision.Next
	c.append("user", "New information: "+strings.TrimSpace(req.Evidence), s.now())
	response := "Thanks, that rules out what worried me. Let's keep narrowing it down. What do you see now?"
	c.append("assistant", response, s.now())
	s.logger.Info("triage lock overridden", "conversation_id", c.id)

	return &primary.TriageReply{
		Conversation: c.view(s.settings.MinExchangesForCTA),
		Response:     response,
		Accepted:     true,
	}, nil
}

// Get retrieves a conversation.
func (s *TriageServiceImpl) Get(ctx context.Context, conversationID string) (*primary.TriageConversation, error) {
	c, err := s.acquire(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	return c.view(s.settings.MinExchangesForCTA), nil
}

// Abandon destroys a conversation.
func (s *TriageServiceImpl) Abandon(ctx context.Context, conversationID string) error {
	c, err := s.acquire(ctx, conversationID)
	if err != nil {
		return err
	}
	defer c.mu.Unlock()
	s.close(c)
	s.logger.Debug("triage abandoned", "conversation_id", c.id)
	return nil
}

// Convert creates a request carrying the transcript. The conversation is
// destroyed only once the request is stored.
func (s *TriageServiceImpl) Convert(ctx context.Context, req primary.ConvertTriageRequest) (*primary.Request, error) {
	c, err := s.acquire(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()

	transcript, err := encodeTranscript(c.transcript)
	if err != nil {
		return nil, fmt.Errorf("failed to encode transcript: %w", err)
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = c.intake.IssueType.ProblemType()
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = c.intake.Description()
	}

	created, err := s.requests.CreateRequest(ctx, primary.CreateRequestRequest{
		RequesterID:        c.userID,
		Title:              title,
		Description:        description,
		Region:             req.Region,
		PreferredDate:      req.PreferredDate,
		PreferredTime:      req.PreferredTime,
		ImageRefs:          c.intake.Photos,
		AdvisoryTranscript: transcript,
	})
	if err != nil {
		return nil, err
	}

	s.close(c)
	s.logger.Info("triage converted", "conversation_id", c.id, "request_id", created.ID, "state", c.state.State)
	return created, nil
}

// PruneIdle destroys conversations older than maxAge and returns how many
// were removed.
func (s *TriageServiceImpl) PruneIdle(maxAge time.Duration) int {
	cutoff := s.now().UTC().Add(-maxAge)

	s.mu.Lock()
	var stale []*conversation
	for _, c := range s.convs {
		if c.createdAt.Before(cutoff) {
			stale = append(stale, c)
		}
	}
	s.mu.Unlock()

	n := 0
	for _, c := range stale {
		c.mu.Lock()
		if !c.closed {
			s.close(c)
			n++
		}
		c.mu.Unlock()
	}
	return n
}

// step classifies the latest user message, applies the verdict and records
// the assistant reply. Caller holds c.mu.
func (s *TriageServiceImpl) step(ctx context.Context, c *conversation) *primary.TriageReply {
	proposal, err := s.classifier.Classify(ctx, secondary.ClassifyInput{
		Current: c.state,
		Intake:  c.intake,
		Window:  c.window(s.settings.WindowSize),
	})
	if err != nil {
		s.logger.Warn("classifier failed, locking conversation", "conversation_id", c.id, "error", err)
		proposal = triage.Fallback("Sorry, something went wrong. Please try again.")
	}

	prev := c.state
	decision := s.machine.Apply(c.state, proposal)
	c.state = decision.Next
	if decision.Changed(prev) {
		s.logger.Info("triage state changed", "conversation_id", c.id,
			"from", prev.State, "to", c.state.State, "category", c.state.Category)
	}

	response := strings.TrimSpace(proposal.Response)
	followUps := proposal.FollowUpQuestions
	if !decision.Accepted {
		s.logger.Debug("triage proposal refused", "conversation_id", c.id,
			"proposed", proposal.State, "reason", decision.Reason)
		if canned, ok := refusedReplies[c.state.State]; ok {
			response = canned
		}
		followUps = nil
	}
	c.append("assistant", response, s.now())

	return &primary.TriageReply{
		Conversation:      c.view(s.settings.MinExchangesForCTA),
		Response:          response,
		FollowUpQuestions: slices.Clone(followUps),
		Accepted:          decision.Accepted,
		Reason:            decision.Reason,
	}
}

// acquire finds a live conversation the caller may use and returns it locked.
func (s *TriageServiceImpl) acquire(ctx context.Context, id string) (*conversation, error) {
	s.mu.Lock()
	c, ok := s.convs[id]
	s.mu.Unlock()
	if !ok {
		return nil, notFound("conversation", id)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, notFound("conversation", id)
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != c.userID {
		c.mu.Unlock()
		return nil, forbidden("%s does not own conversation %s", actor, id)
	}
	return c, nil
}

// close removes a conversation. Caller holds c.mu.
func (s *TriageServiceImpl) close(c *conversation) {
	c.closed = true
	s.mu.Lock()
	delete(s.convs, c.id)
	s.mu.Unlock()
}

func (c *conversation) append(role, content string, at time.Time) {
	c.transcript = append(c.transcript, primary.TriageMessage{
		Role:    role,
		Content: content,
		At:      at.UTC().Format(time.RFC3339),
	})
}

// window returns the last n transcript lines, oldest first.
func (c *conversation) window(n int) []secondary.ChatTurn {
	lines := c.transcript
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	turns := make([]secondary.ChatTurn, len(lines))
	for i, m := range lines {
		turns[i] = secondary.ChatTurn{Role: m.Role, Content: m.Content}
	}
	return turns
}

func (c *conversation) view(minExchanges int) *primary.TriageConversation {
	return &primary.TriageConversation{
		ID:            c.id,
		UserID:        c.userID,
		Intake:        c.raw,
		State:         string(c.state.State),
		Category:      int(c.state.Category),
		LockFactors:   slices.Clone(c.state.LockFactors),
		Summary:       c.state.Summary,
		Turns:         c.state.Turns,
		Transcript:    slices.Clone(c.transcript),
		OfferProvider: triage.ShouldOfferProvider(c.state, minExchanges),
		SelfFix:       triage.AllowsProcedure(c.state.State),
		CreatedAt:     c.createdAt.Format(time.RFC3339),
	}
}

type transcriptEntry struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func encodeTranscript(lines []primary.TriageMessage) (string, error) {
	entries := make([]transcriptEntry, len(lines))
	for i, m := range lines {
		entries[i] = transcriptEntry{Role: m.Role, Content: m.Content, Timestamp: m.At}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Ensure TriageServiceImpl implements the interface
var _ primary.TriageService = (*TriageServiceImpl)(nil)
