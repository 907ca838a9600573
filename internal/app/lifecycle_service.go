package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/tradeflow/internal/core/effects"
	coreengagement "github.com/example/tradeflow/internal/core/engagement"
	corerequest "github.com/example/tradeflow/internal/core/request"
	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// LifecycleServiceImpl implements the LifecycleService interface.
// It is the only writer of engagement state and of request status.
type LifecycleServiceImpl struct {
	tx             secondary.Transactor
	requestRepo    secondary.RequestRepository
	engagementRepo secondary.EngagementRepository
	requests       primary.RequestService
	logWriter      secondary.LogWriter
	executor       EffectExecutor
	logger         *slog.Logger
	now            func() time.Time
}

// NewLifecycleService creates a new LifecycleService with injected dependencies.
func NewLifecycleService(
	tx secondary.Transactor,
	requestRepo secondary.RequestRepository,
	engagementRepo secondary.EngagementRepository,
	requests primary.RequestService,
	logWriter secondary.LogWriter,
	executor EffectExecutor,
	logger *slog.Logger,
) *LifecycleServiceImpl {
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleServiceImpl{
		tx:             tx,
		requestRepo:    requestRepo,
		engagementRepo: engagementRepo,
		requests:       requests,
		logWriter:      logWriter,
		executor:       executor,
		logger:         logger,
		now:            time.Now,
	}
}

// Accept claims a request for a provider. The storage constraint on live
// engagements decides races: the loser gets ErrAlreadyEngaged.
func (s *LifecycleServiceImpl) Accept(ctx context.Context, requestID, providerID string) (*primary.Engagement, error) {
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != providerID {
		return nil, forbidden("%s cannot accept on behalf of %s", actor, providerID)
	}

	var (
		created *secondary.EngagementRecord
		req     *secondary.RequestRecord
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ctx = ctxutil.WithLifecycleScope(ctx)

		var err error
		req, err = s.loadRequest(ctx, requestID)
		if err != nil {
			return err
		}

		guard := coreengagement.CanAccept(coreengagement.AcceptContext{
			RequestID:     req.ID,
			RequestStatus: req.Status,
			RequesterID:   req.RequesterID,
			ProviderID:    providerID,
		})
		if !guard.Allowed {
			switch {
			case strings.TrimSpace(providerID) == "":
				return invalidInput("%s", guard.Reason)
			case providerID == req.RequesterID:
				return forbidden("%s", guard.Reason)
			default:
				return primary.NewStateError(primary.ErrInvalidState, "request", req.ID, req.Status, guard.Reason)
			}
		}

		existing, err := s.engagementRepo.FindActive(ctx, requestID, providerID)
		if err != nil && !errors.Is(err, secondary.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing engagement: %w", err)
		}
		if existing != nil {
			return primary.NewStateError(primary.ErrAlreadyEngaged, "engagement", existing.ID, existing.Status,
				fmt.Sprintf("provider %s already holds request %s as %s", providerID, requestID, existing.ID))
		}

		nextID, err := s.engagementRepo.GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate engagement ID: %w", err)
		}
		record := &secondary.EngagementRecord{
			ID:          nextID,
			RequestID:   req.ID,
			ProviderID:  providerID,
			RequesterID: req.RequesterID,
			Status:      string(coreengagement.InitialStatus()),
		}
		if err := s.engagementRepo.Create(ctx, record); err != nil {
			if errors.Is(err, secondary.ErrUniqueViolation) {
				return primary.NewStateError(primary.ErrAlreadyEngaged, "request", req.ID, req.Status,
					fmt.Sprintf("request %s is already engaged", requestID))
			}
			return fmt.Errorf("failed to create engagement: %w", err)
		}
		if err := s.logWriter.LogCreate(ctx, "engagement", nextID); err != nil {
			return fmt.Errorf("failed to log engagement creation: %w", err)
		}

		if err := s.syncRequest(ctx, req, coreengagement.InitialStatus()); err != nil {
			return err
		}

		created, err = s.engagementRepo.GetByID(ctx, nextID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Debug("request accepted", "request_id", requestID, "engagement_id", created.ID, "provider_id", providerID)
	s.execute(ctx, []effects.Effect{
		invalidate("engagement_created", created, true),
		effects.NotifyEffect{
			Recipient: created.RequesterID,
			Title:     "Your request was accepted",
			Body:      fmt.Sprintf("A provider accepted %q. A quote is on its way.", req.Title),
			Data:      notifyData(created),
		},
	})
	return recordToEngagement(created), nil
}

// SubmitQuote sets or replaces the quote while pending_quote or declined.
func (s *LifecycleServiceImpl) SubmitQuote(ctx context.Context, req primary.SubmitQuoteRequest) (*primary.Engagement, error) {
	return s.mutate(ctx, req.EngagementID, func(ctx context.Context, eng *secondary.EngagementRecord, request *secondary.RequestRecord) ([]effects.Effect, error) {
		if err := s.requireParticipant(ctx, eng, coreengagement.RoleProvider); err != nil {
			return nil, err
		}
		if guard := coreengagement.ValidateQuoteAmount(req.Amount); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidAmount, "engagement", eng.ID, eng.Status, guard.Reason)
		}
		status := coreengagement.Status(eng.Status)
		if guard := coreengagement.CanSubmitQuote(coreengagement.StateContext{EngagementID: eng.ID, Status: status}); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status, guard.Reason)
		}
		slot := coreengagement.TimeSlotContext{Proposed: req.ScheduledTime, Slots: request.PreferredTime}
		if guard := coreengagement.ValidateTimeSlot(slot); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidTimeSlot, "engagement", eng.ID, eng.Status, guard.Reason)
		}

		next, _ := coreengagement.Transition(status, coreengagement.EventSubmitQuote)
		date, defaulted := coreengagement.ScheduledDate(request.PreferredDate, s.now())
		if defaulted {
			s.logger.Debug("no preferred date, scheduling for today", "engagement_id", eng.ID, "scheduled_date", date)
		}

		before := *eng
		eng.Status = string(next)
		eng.QuoteAmount.Decimal = req.Amount
		eng.QuoteAmount.Valid = true
		eng.ScheduledDate = date
		eng.ScheduledTime = coreengagement.NormalizeTimeSlot(req.ScheduledTime, request.PreferredTime)
		if err := s.save(ctx, &before, eng); err != nil {
			return nil, err
		}

		verb := "sent you a quote"
		if before.Status == string(coreengagement.StatusDeclined) {
			verb = "sent you a new quote"
		}
		return []effects.Effect{
			invalidate("quote_submitted", eng, false),
			effects.NotifyEffect{
				Recipient: eng.RequesterID,
				Title:     "New quote received",
				Body:      fmt.Sprintf("A provider %s of %s for %q.", verb, formatAmount(eng.QuoteAmount), request.Title),
				Data:      notifyData(eng),
			},
		}, nil
	})
}

// AcceptQuote accepts the open quote. Accepted is transient: work starts
// in the same transaction.
func (s *LifecycleServiceImpl) AcceptQuote(ctx context.Context, engagementID string) (*primary.Engagement, error) {
	return s.mutate(ctx, engagementID, func(ctx context.Context, eng *secondary.EngagementRecord, request *secondary.RequestRecord) ([]effects.Effect, error) {
		if err := s.requireParticipant(ctx, eng, coreengagement.RoleRequester); err != nil {
			return nil, err
		}
		status := coreengagement.Status(eng.Status)
		if guard := coreengagement.CanRespondToQuote(coreengagement.StateContext{EngagementID: eng.ID, Status: status}); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status, guard.Reason)
		}

		for _, ev := range []coreengagement.Event{coreengagement.EventAcceptQuote, coreengagement.EventStartWork} {
			next, ok := coreengagement.Transition(coreengagement.Status(eng.Status), ev)
			if !ok {
				return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status,
					fmt.Sprintf("engagement %s cannot %s while %s", eng.ID, ev, eng.Status))
			}
			before := *eng
			eng.Status = string(next)
			if err := s.save(ctx, &before, eng); err != nil {
				return nil, err
			}
		}
		if err := s.syncRequest(ctx, request, coreengagement.Status(eng.Status)); err != nil {
			return nil, err
		}

		return []effects.Effect{
			invalidate("quote_accepted", eng, false),
			effects.NotifyEffect{
				Recipient: eng.ProviderID,
				Title:     "Quote accepted",
				Body:      fmt.Sprintf("Your quote of %s for %q was accepted. The job is now in progress.", formatAmount(eng.QuoteAmount), request.Title),
				Data:      notifyData(eng),
			},
		}, nil
	})
}

// DeclineQuote declines the open quote. The amount is kept for display
// until the provider quotes again.
func (s *LifecycleServiceImpl) DeclineQuote(ctx context.Context, engagementID string) (*primary.Engagement, error) {
	return s.mutate(ctx, engagementID, func(ctx context.Context, eng *secondary.EngagementRecord, request *secondary.RequestRecord) ([]effects.Effect, error) {
		if err := s.requireParticipant(ctx, eng, coreengagement.RoleRequester); err != nil {
			return nil, err
		}
		status := coreengagement.Status(eng.Status)
		if guard := coreengagement.CanRespondToQuote(coreengagement.StateContext{EngagementID: eng.ID, Status: status}); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status, guard.Reason)
		}

		next, _ := coreengagement.Transition(status, coreengagement.EventDeclineQuote)
		before := *eng
		eng.Status = string(next)
		if err := s.save(ctx, &before, eng); err != nil {
			return nil, err
		}

		return []effects.Effect{
			invalidate("quote_declined", eng, false),
			effects.NotifyEffect{
				Recipient: eng.ProviderID,
				Title:     "Quote declined",
				Body:      fmt.Sprintf("Your quote of %s for %q was declined. You can send a revised quote.", formatAmount(eng.QuoteAmount), request.Title),
				Data:      notifyData(eng),
			},
		}, nil
	})
}

// ConfirmDone sets the role's completion flag. Setting it twice is a no-op.
// When both flags are set the engagement and its request complete together.
func (s *LifecycleServiceImpl) ConfirmDone(ctx context.Context, engagementID, role string) (*primary.Engagement, error) {
	r, err := coreengagement.ParseRole(role)
	if err != nil {
		return nil, invalidInput("%s", err.Error())
	}

	return s.mutate(ctx, engagementID, func(ctx context.Context, eng *secondary.EngagementRecord, request *secondary.RequestRecord) ([]effects.Effect, error) {
		if err := s.requireParticipant(ctx, eng, r); err != nil {
			return nil, err
		}
		status := coreengagement.Status(eng.Status)
		if guard := coreengagement.CanConfirm(coreengagement.StateContext{EngagementID: eng.ID, Status: status}); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status, guard.Reason)
		}

		result := coreengagement.ApplyConfirmation(coreengagement.ConfirmContext{
			Actor:              r,
			RequesterConfirmed: eng.RequesterConfirmed,
			ProviderConfirmed:  eng.ProviderConfirmed,
		})
		if !result.Changed {
			return nil, nil
		}

		before := *eng
		eng.RequesterConfirmed = result.RequesterConfirmed
		eng.ProviderConfirmed = result.ProviderConfirmed
		if result.Completed {
			next, ok := coreengagement.Transition(status, coreengagement.EventBothConfirmed)
			if !ok {
				return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status,
					fmt.Sprintf("engagement %s cannot complete while %s", eng.ID, eng.Status))
			}
			eng.Status = string(next)
		}
		if err := s.save(ctx, &before, eng); err != nil {
			return nil, err
		}
		if err := s.syncRequest(ctx, request, coreengagement.Status(eng.Status)); err != nil {
			return nil, err
		}

		if result.Completed {
			return []effects.Effect{
				invalidate("engagement_completed", eng, false),
				effects.NotifyEffect{
					Recipient: eng.RequesterID,
					Title:     "Job complete",
					Body:      fmt.Sprintf("%q is complete.", request.Title),
					Data:      notifyData(eng),
				},
				effects.NotifyEffect{
					Recipient: eng.ProviderID,
					Title:     "Job complete",
					Body:      fmt.Sprintf("%q is complete.", request.Title),
					Data:      notifyData(eng),
				},
			}, nil
		}

		other, label := eng.ProviderID, "The requester"
		if r == coreengagement.RoleProvider {
			other, label = eng.RequesterID, "Your provider"
		}
		return []effects.Effect{
			invalidate("completion_confirmed", eng, false),
			effects.NotifyEffect{
				Recipient: other,
				Title:     "Confirm the job is done",
				Body:      fmt.Sprintf("%s marked %q as done. Confirm to complete it.", label, request.Title),
				Data:      notifyData(eng),
			},
		}, nil
	})
}

// Cancel cancels a non-terminal engagement. The request is cancelled too
// unless another live engagement still holds it.
func (s *LifecycleServiceImpl) Cancel(ctx context.Context, engagementID, reason string) (*primary.Engagement, error) {
	return s.mutate(ctx, engagementID, func(ctx context.Context, eng *secondary.EngagementRecord, request *secondary.RequestRecord) ([]effects.Effect, error) {
		actor := ctxutil.ActorFromContext(ctx)
		if actor != "" && actor != eng.RequesterID && actor != eng.ProviderID {
			return nil, forbidden("%s is not a participant of engagement %s", actor, eng.ID)
		}
		status := coreengagement.Status(eng.Status)
		if guard := coreengagement.CanCancel(coreengagement.StateContext{EngagementID: eng.ID, Status: status}); !guard.Allowed {
			return nil, primary.NewStateError(primary.ErrInvalidState, "engagement", eng.ID, eng.Status, guard.Reason)
		}

		next, _ := coreengagement.Transition(status, coreengagement.EventCancel)
		before := *eng
		eng.Status = string(next)
		eng.CancelReason = strings.TrimSpace(reason)
		if err := s.save(ctx, &before, eng); err != nil {
			return nil, err
		}

		others, err := s.engagementRepo.CountActiveForRequest(ctx, request.ID, eng.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count live engagements: %w", err)
		}
		if others == 0 {
			if err := s.syncRequest(ctx, request, next); err != nil {
				return nil, err
			}
		}

		body := fmt.Sprintf("The job for %q was cancelled.", request.Title)
		if eng.CancelReason != "" {
			body += " Reason: " + eng.CancelReason
		}
		var effs []effects.Effect
		effs = append(effs, invalidate("engagement_cancelled", eng, false))
		for _, recipient := range []string{eng.RequesterID, eng.ProviderID} {
			if recipient == actor {
				continue
			}
			effs = append(effs, effects.NotifyEffect{
				Recipient: recipient,
				Title:     "Job cancelled",
				Body:      body,
				Data:      notifyData(eng),
			})
		}
		return effs, nil
	})
}

// CancelRequest withdraws a request and cancels every live engagement on it.
func (s *LifecycleServiceImpl) CancelRequest(ctx context.Context, requestID, reason string) (*primary.Request, error) {
	reason = strings.TrimSpace(reason)

	var (
		updated   *secondary.RequestRecord
		cancelled []*secondary.EngagementRecord
		wasOpen   bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ctx = ctxutil.WithLifecycleScope(ctx)

		req, err := s.loadRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != req.RequesterID {
			return forbidden("only the requester can withdraw request %s", requestID)
		}
		current := corerequest.Status(req.Status)
		guard := corerequest.CanAdvance(corerequest.AdvanceContext{RequestID: req.ID, Current: current, Target: corerequest.StatusCancelled})
		if !guard.Allowed {
			return primary.NewStateError(primary.ErrInvalidState, "request", req.ID, req.Status, guard.Reason)
		}
		wasOpen = current == corerequest.StatusNew

		live, err := s.engagementRepo.List(ctx, secondary.EngagementFilters{RequestID: req.ID, ActiveOnly: true})
		if err != nil {
			return fmt.Errorf("failed to list engagements: %w", err)
		}
		for _, eng := range live {
			next, ok := coreengagement.Transition(coreengagement.Status(eng.Status), coreengagement.EventCancel)
			if !ok {
				continue
			}
			before := *eng
			eng.Status = string(next)
			eng.CancelReason = reason
			if err := s.save(ctx, &before, eng); err != nil {
				return err
			}
			cancelled = append(cancelled, eng)
		}

		if err := s.requests.SetStatus(ctx, req.ID, string(corerequest.StatusCancelled)); err != nil {
			return err
		}
		updated, err = s.requestRepo.GetByID(ctx, req.ID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	effs := []effects.Effect{effects.InvalidateEffect{
		Reason:       "request_cancelled",
		RequestID:    updated.ID,
		RequesterID:  updated.RequesterID,
		OpenRequests: wasOpen,
	}}
	for _, eng := range cancelled {
		body := fmt.Sprintf("The requester withdrew %q.", updated.Title)
		if reason != "" {
			body += " Reason: " + reason
		}
		effs = append(effs,
			invalidate("engagement_cancelled", eng, false),
			effects.NotifyEffect{
				Recipient: eng.ProviderID,
				Title:     "Request withdrawn",
				Body:      body,
				Data:      notifyData(eng),
			},
		)
	}
	s.execute(ctx, effs)
	return recordToRequest(updated), nil
}

// GetEngagement returns the canonical engagement and its request together
// with the projection for one role.
func (s *LifecycleServiceImpl) GetEngagement(ctx context.Context, engagementID, role string) (*primary.EngagementView, error) {
	r, err := coreengagement.ParseRole(role)
	if err != nil {
		return nil, invalidInput("%s", err.Error())
	}
	eng, err := s.loadEngagement(ctx, engagementID)
	if err != nil {
		return nil, translate(err)
	}
	if err := s.requireParticipant(ctx, eng, r); err != nil {
		return nil, err
	}
	req, err := s.loadRequest(ctx, eng.RequestID)
	if err != nil {
		return nil, translate(err)
	}

	view := coreengagement.Project(coreengagement.Snapshot{
		ID:                 eng.ID,
		Status:             coreengagement.Status(eng.Status),
		HasQuote:           eng.QuoteAmount.Valid,
		RequesterConfirmed: eng.RequesterConfirmed,
		ProviderConfirmed:  eng.ProviderConfirmed,
	}, r)

	actions := make([]string, len(view.Actions))
	for i, a := range view.Actions {
		actions[i] = string(a)
	}
	return &primary.EngagementView{
		Engagement:        recordToEngagement(eng),
		Request:           recordToRequest(req),
		Role:              string(view.Role),
		Phase:             string(view.Phase),
		Actions:           actions,
		YouConfirmed:      view.YouConfirmed,
		OtherConfirmed:    view.OtherConfirmed,
		QuoteIsCurrent:    view.QuoteIsCurrent,
		PreviouslyQuoted:  view.PreviouslyQuoted,
		WaitingOnYou:      view.WaitingOnYou,
		WaitingOnOther:    view.WaitingOnOther,
		CounterpartyLabel: view.CounterpartyLabel,
	}, nil
}

// ListEngagements lists engagements matching the filters.
func (s *LifecycleServiceImpl) ListEngagements(ctx context.Context, filters primary.EngagementFilters) ([]*primary.Engagement, error) {
	records, err := s.engagementRepo.List(ctx, secondary.EngagementFilters{
		RequestID:   filters.RequestID,
		ProviderID:  filters.ProviderID,
		RequesterID: filters.RequesterID,
		Status:      filters.Status,
	})
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list engagements: %w", err))
	}

	engagements := make([]*primary.Engagement, len(records))
	for i, r := range records {
		engagements[i] = recordToEngagement(r)
	}
	return engagements, nil
}

// mutateFunc changes an engagement inside the transaction and returns the
// effects to run once it has committed.
type mutateFunc func(ctx context.Context, eng *secondary.EngagementRecord, req *secondary.RequestRecord) ([]effects.Effect, error)

func (s *LifecycleServiceImpl) mutate(ctx context.Context, engagementID string, fn mutateFunc) (*primary.Engagement, error) {
	var (
		result *secondary.EngagementRecord
		effs   []effects.Effect
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ctx = ctxutil.WithLifecycleScope(ctx)

		eng, err := s.loadEngagement(ctx, engagementID)
		if err != nil {
			return err
		}
		req, err := s.loadRequest(ctx, eng.RequestID)
		if err != nil {
			return err
		}

		effs, err = fn(ctx, eng, req)
		if err != nil {
			return err
		}

		result, err = s.engagementRepo.GetByID(ctx, engagementID)
		return err
	})
	if err != nil {
		return nil, translate(err)
	}

	s.logger.Debug("engagement updated", "engagement_id", result.ID, "status", result.Status)
	s.execute(ctx, effs)
	return recordToEngagement(result), nil
}

// save writes the engagement and records one log row per changed field.
func (s *LifecycleServiceImpl) save(ctx context.Context, before, after *secondary.EngagementRecord) error {
	if err := s.engagementRepo.Update(ctx, after); err != nil {
		return fmt.Errorf("failed to update engagement: %w", err)
	}

	changes := []struct{ field, old, new string }{
		{"status", before.Status, after.Status},
		{"quote_amount", formatAmount(before.QuoteAmount), formatAmount(after.QuoteAmount)},
		{"scheduled_date", before.ScheduledDate, after.ScheduledDate},
		{"scheduled_time", before.ScheduledTime, after.ScheduledTime},
		{"requester_confirmed", fmt.Sprint(before.RequesterConfirmed), fmt.Sprint(after.RequesterConfirmed)},
		{"provider_confirmed", fmt.Sprint(before.ProviderConfirmed), fmt.Sprint(after.ProviderConfirmed)},
		{"cancel_reason", before.CancelReason, after.CancelReason},
	}
	for _, c := range changes {
		if c.old == c.new {
			continue
		}
		if err := s.logWriter.LogUpdate(ctx, "engagement", after.ID, c.field, c.old, c.new); err != nil {
			return fmt.Errorf("failed to log engagement %s: %w", c.field, err)
		}
	}
	return nil
}

// syncRequest moves the request to the status that mirrors the engagement.
func (s *LifecycleServiceImpl) syncRequest(ctx context.Context, req *secondary.RequestRecord, engStatus coreengagement.Status) error {
	target := coreengagement.RequestStatusFor(engStatus)
	if string(target) == req.Status {
		return nil
	}
	if err := s.requests.SetStatus(ctx, req.ID, string(target)); err != nil {
		return err
	}
	req.Status = string(target)
	return nil
}

// requireParticipant checks that the caller, when known, is the engagement's
// participant in the given role.
func (s *LifecycleServiceImpl) requireParticipant(ctx context.Context, eng *secondary.EngagementRecord, role coreengagement.Role) error {
	actor := ctxutil.ActorFromContext(ctx)
	if actor == "" {
		return nil
	}
	want := eng.RequesterID
	if role == coreengagement.RoleProvider {
		want = eng.ProviderID
	}
	if actor != want {
		return forbidden("%s is not the %s of engagement %s", actor, role, eng.ID)
	}
	return nil
}

func (s *LifecycleServiceImpl) loadEngagement(ctx context.Context, id string) (*secondary.EngagementRecord, error) {
	eng, err := s.engagementRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, secondary.ErrRecordNotFound) {
			return nil, notFound("engagement", id)
		}
		return nil, err
	}
	return eng, nil
}

func (s *LifecycleServiceImpl) loadRequest(ctx context.Context, id string) (*secondary.RequestRecord, error) {
	req, err := s.requestRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, secondary.ErrRecordNotFound) {
			return nil, notFound("request", id)
		}
		return nil, err
	}
	return req, nil
}

func (s *LifecycleServiceImpl) execute(ctx context.Context, effs []effects.Effect) {
	if len(effs) == 0 {
		return
	}
	if err := s.executor.Execute(ctx, effs); err != nil {
		s.logger.Error("post-commit effects failed", "error", err)
	}
}

// Helper methods

func invalidate(reason string, eng *secondary.EngagementRecord, openRequests bool) effects.InvalidateEffect {
	return effects.InvalidateEffect{
		Reason:       reason,
		RequestID:    eng.RequestID,
		EngagementID: eng.ID,
		ProviderID:   eng.ProviderID,
		RequesterID:  eng.RequesterID,
		OpenRequests: openRequests,
	}
}

// formatAmount renders a quote in pounds. A missing quote renders empty.
func formatAmount(a decimal.NullDecimal) string {
	if !a.Valid {
		return ""
	}
	return "£" + a.Decimal.StringFixed(2)
}

func notifyData(eng *secondary.EngagementRecord) map[string]string {
	return map[string]string{
		"engagement_id": eng.ID,
		"request_id":    eng.RequestID,
		"status":        eng.Status,
	}
}

func recordToEngagement(r *secondary.EngagementRecord) *primary.Engagement {
	return &primary.Engagement{
		ID:                 r.ID,
		RequestID:          r.RequestID,
		ProviderID:         r.ProviderID,
		RequesterID:        r.RequesterID,
		Status:             r.Status,
		QuoteAmount:        r.QuoteAmount,
		ScheduledDate:      r.ScheduledDate,
		ScheduledTime:      r.ScheduledTime,
		RequesterConfirmed: r.RequesterConfirmed,
		ProviderConfirmed:  r.ProviderConfirmed,
		CancelReason:       r.CancelReason,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

// Ensure LifecycleServiceImpl implements the interface
var _ primary.LifecycleService = (*LifecycleServiceImpl)(nil)
