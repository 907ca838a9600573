package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/tradeflow/internal/core/effects"
	coreengagement "github.com/example/tradeflow/internal/core/engagement"
	corerequest "github.com/example/tradeflow/internal/core/request"
	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// RequestServiceImpl implements the RequestService interface.
type RequestServiceImpl struct {
	tx          secondary.Transactor
	requestRepo secondary.RequestRepository
	logWriter   secondary.LogWriter
	executor    EffectExecutor
}

// NewRequestService creates a new RequestService with injected dependencies.
func NewRequestService(
	tx secondary.Transactor,
	requestRepo secondary.RequestRepository,
	logWriter secondary.LogWriter,
	executor EffectExecutor,
) *RequestServiceImpl {
	return &RequestServiceImpl{
		tx:          tx,
		requestRepo: requestRepo,
		logWriter:   logWriter,
		executor:    executor,
	}
}

// CreateRequest stores a new request. Status is always new.
func (s *RequestServiceImpl) CreateRequest(ctx context.Context, req primary.CreateRequestRequest) (*primary.Request, error) {
	guard := corerequest.CanCreate(corerequest.CreateContext{
		RequesterID: req.RequesterID,
		Title:       req.Title,
	})
	if !guard.Allowed {
		return nil, invalidInput("%s", guard.Reason)
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" && actor != req.RequesterID {
		return nil, forbidden("%s cannot create a request for %s", actor, req.RequesterID)
	}
	if d := strings.TrimSpace(req.PreferredDate); d != "" {
		if _, err := time.Parse(coreengagement.DateLayout, d); err != nil {
			return nil, invalidInput("preferred date %q must be YYYY-MM-DD", d)
		}
	}
	if t := strings.TrimSpace(req.AdvisoryTranscript); t != "" && !json.Valid([]byte(t)) {
		return nil, invalidInput("advisory transcript must be valid JSON")
	}

	var created *secondary.RequestRecord
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		nextID, err := s.requestRepo.GetNextID(ctx)
		if err != nil {
			return fmt.Errorf("failed to generate request ID: %w", err)
		}

		record := &secondary.RequestRecord{
			ID:                 nextID,
			RequesterID:        req.RequesterID,
			Title:              strings.TrimSpace(req.Title),
			Description:        strings.TrimSpace(req.Description),
			Region:             strings.TrimSpace(req.Region),
			PreferredDate:      strings.TrimSpace(req.PreferredDate),
			PreferredTime:      cleanList(req.PreferredTime),
			ImageRefs:          cleanList(req.ImageRefs),
			AdvisoryTranscript: strings.TrimSpace(req.AdvisoryTranscript),
			Status:             string(corerequest.InitialStatus()),
		}
		if err := s.requestRepo.Create(ctx, record); err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		if err := s.logWriter.LogCreate(ctx, "request", nextID); err != nil {
			return fmt.Errorf("failed to log request creation: %w", err)
		}

		created, err = s.requestRepo.GetByID(ctx, nextID)
		if err != nil {
			return fmt.Errorf("failed to fetch created request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	_ = s.executor.Execute(ctx, []effects.Effect{
		effects.InvalidateEffect{
			Reason:       "request_created",
			RequestID:    created.ID,
			RequesterID:  created.RequesterID,
			OpenRequests: true,
		},
	})

	return recordToRequest(created), nil
}

// GetRequest retrieves a request by ID.
func (s *RequestServiceImpl) GetRequest(ctx context.Context, requestID string) (*primary.Request, error) {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, secondary.ErrRecordNotFound) {
			return nil, notFound("request", requestID)
		}
		return nil, translate(err)
	}
	return recordToRequest(record), nil
}

// ListByRequester lists a requester's own requests.
func (s *RequestServiceImpl) ListByRequester(ctx context.Context, requesterID string) ([]*primary.Request, error) {
	if strings.TrimSpace(requesterID) == "" {
		return nil, invalidInput("requester is required")
	}
	return s.list(ctx, secondary.RequestFilters{RequesterID: requesterID})
}

// ListOpen lists requests in status new.
func (s *RequestServiceImpl) ListOpen(ctx context.Context, filters primary.OpenRequestFilters) ([]*primary.Request, error) {
	return s.list(ctx, secondary.RequestFilters{
		Status:           string(corerequest.StatusNew),
		Region:           filters.Region,
		ExcludeRequester: filters.ExcludeRequester,
		Limit:            filters.Limit,
	})
}

// SetStatus moves a request to a new status. Callers outside the lifecycle
// engine are refused with ErrInvalidTransition. Setting the current status
// again is a no-op.
func (s *RequestServiceImpl) SetStatus(ctx context.Context, requestID, status string) error {
	record, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, secondary.ErrRecordNotFound) {
			return notFound("request", requestID)
		}
		return translate(err)
	}

	if !ctxutil.InLifecycleScope(ctx) {
		return primary.NewStateError(primary.ErrInvalidTransition, "request", requestID, record.Status,
			fmt.Sprintf("request %s status is managed by its engagement", requestID))
	}

	target, err := corerequest.ParseStatus(status)
	if err != nil {
		return invalidInput("%s", err.Error())
	}
	current, err := corerequest.ParseStatus(record.Status)
	if err != nil {
		return fmt.Errorf("request %s has corrupt status: %w", requestID, err)
	}
	if current == target {
		return nil
	}

	guard := corerequest.CanAdvance(corerequest.AdvanceContext{
		RequestID: requestID,
		Current:   current,
		Target:    target,
	})
	if !guard.Allowed {
		return primary.NewStateError(primary.ErrInvalidTransition, "request", requestID, record.Status, guard.Reason)
	}

	if err := s.requestRepo.UpdateStatus(ctx, requestID, string(target)); err != nil {
		return translate(fmt.Errorf("failed to update request status: %w", err))
	}
	if err := s.logWriter.LogUpdate(ctx, "request", requestID, "status", string(current), string(target)); err != nil {
		return translate(fmt.Errorf("failed to log request status: %w", err))
	}
	return nil
}

func (s *RequestServiceImpl) list(ctx context.Context, filters secondary.RequestFilters) ([]*primary.Request, error) {
	records, err := s.requestRepo.List(ctx, filters)
	if err != nil {
		return nil, translate(fmt.Errorf("failed to list requests: %w", err))
	}

	requests := make([]*primary.Request, len(records))
	for i, r := range records {
		requests[i] = recordToRequest(r)
	}
	return requests, nil
}

// Helper methods

func recordToRequest(r *secondary.RequestRecord) *primary.Request {
	return &primary.Request{
		ID:                 r.ID,
		RequesterID:        r.RequesterID,
		Title:              r.Title,
		Description:        r.Description,
		Region:             r.Region,
		PreferredDate:      r.PreferredDate,
		PreferredTime:      r.PreferredTime,
		ImageRefs:          r.ImageRefs,
		AdvisoryTranscript: r.AdvisoryTranscript,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Ensure RequestServiceImpl implements the interface
var _ primary.RequestService = (*RequestServiceImpl)(nil)
