package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/example/tradeflow/internal/core/effects"
	coreengagement "github.com/example/tradeflow/internal/core/engagement"
	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

const previewLimit = 100

// MessageServiceImpl implements the MessageService interface.
type MessageServiceImpl struct {
	tx             secondary.Transactor
	messageRepo    secondary.MessageRepository
	engagementRepo secondary.EngagementRepository
	executor       EffectExecutor
	logger         *slog.Logger
}

// NewMessageService creates a new MessageService with injected dependencies.
func NewMessageService(
	tx secondary.Transactor,
	messageRepo secondary.MessageRepository,
	engagementRepo secondary.EngagementRepository,
	executor EffectExecutor,
	logger *slog.Logger,
) *MessageServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageServiceImpl{
		tx:             tx,
		messageRepo:    messageRepo,
		engagementRepo: engagementRepo,
		executor:       executor,
		logger:         logger,
	}
}

// Send posts a message from one participant to the other. Closed
// engagements keep their history but take no new messages.
func (s *MessageServiceImpl) Send(ctx context.Context, req primary.SendMessageRequest) (*primary.Message, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, invalidInput("message body is required")
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != req.SenderID {
		return nil, forbidden("%s cannot send as %s", actor, req.SenderID)
	}

	var (
		created *secondary.MessageRecord
		eng     *secondary.EngagementRecord
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		eng, err = s.engagementRepo.GetByID(ctx, req.EngagementID)
		if err != nil {
			if errors.Is(err, secondary.ErrRecordNotFound) {
				return notFound("engagement", req.EngagementID)
			}
			return err
		}

		var recipient string
		switch req.SenderID {
		case eng.RequesterID:
			recipient = eng.ProviderID
		case eng.ProviderID:
			recipient = eng.RequesterID
		default:
			return forbidden("%s is not a participant of engagement %s", req.SenderID, eng.ID)
		}
		if coreengagement.Status(eng.Status).IsTerminal() {
			return primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status,
				fmt.Sprintf("engagement %s is %s and takes no new messages", eng.ID, eng.Status))
		}

		nextID, err := s.messageRepo.GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate message ID: %w", err)
		}
		created = &secondary.MessageRecord{
			ID:           nextID,
			EngagementID: eng.ID,
			SenderID:     req.SenderID,
			RecipientID:  recipient,
			Body:         body,
		}
		if err := s.messageRepo.Create(ctx, created); err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	if err := s.executor.Execute(ctx, []effects.Effect{
		effects.InvalidateEffect{
			Reason:       "message_sent",
			EngagementID: eng.ID,
			ProviderID:   eng.ProviderID,
			RequesterID:  eng.RequesterID,
		},
		effects.NotifyEffect{
			Recipient: created.RecipientID,
			Title:     "New message from " + created.SenderID,
			Body:      preview(body),
			Data: map[string]string{
				"engagement_id": eng.ID,
				"message_id":    created.ID,
			},
		},
	}); err != nil {
		s.logger.Error("post-commit effects failed", "error", err)
	}

	return recordToMessage(created), nil
}

// List returns an engagement's messages, oldest first.
func (s *MessageServiceImpl) List(ctx context.Context, engagementID string) ([]*primary.Message, error) {
	eng, err := s.engagementRepo.GetByID(ctx, engagementID)
	if err != nil {
		if errors.Is(err, secondary.ErrRecordNotFound) {
			return nil, notFound("engagement", engagementID)
		}
		return nil, translate(err)
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != eng.RequesterID && actor != eng.ProviderID {
		return nil, forbidden("%s is not a participant of engagement %s", actor, eng.ID)
	}

	records, err := s.messageRepo.ListByEngagement(ctx, engagementID)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list messages: %w", err))
	}
	messages := make([]*primary.Message, len(records))
	for i, r := range records {
		messages[i] = recordToMessage(r)
	}
	return messages, nil
}

// MarkRead marks every message addressed to the reader as read.
func (s *MessageServiceImpl) MarkRead(ctx context.Context, engagementID, readerID string) (int, error) {
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != readerID {
		return 0, forbidden("%s cannot mark messages read for %s", actor, readerID)
	}
	n, err := s.messageRepo.MarkRead(ctx, engagementID, readerID)
	if err != nil {
		return 0, translate(fmt.Errorf("failed to mark messages read: %w", err))
	}
	return n, nil
}

// UnreadCounts returns unread message counts per engagement for a user.
func (s *MessageServiceImpl) UnreadCounts(ctx context.Context, userID string) (map[string]int, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidInput("user is required")
	}
	counts, err := s.messageRepo.UnreadCounts(ctx, userID)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to count unread messages: %w", err))
	}
	return counts, nil
}

// preview trims a body to fit a push notification.
func preview(body string) string {
	if utf8.RuneCountInString(body) <= previewLimit {
		return body
	}
	r := []rune(body)
	return string(r[:previewLimit-3]) + "..."
}

func recordToMessage(r *secondary.MessageRecord) *primary.Message {
	return &primary.Message{
		ID:           r.ID,
		EngagementID: r.EngagementID,
		SenderID:     r.SenderID,
		RecipientID:  r.RecipientID,
		Body:         r.Body,
		Read:         r.Read,
		CreatedAt:    r.CreatedAt,
	}
}

// Ensure MessageServiceImpl implements the interface
var _ primary.MessageService = (*MessageServiceImpl)(nil)
