package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/notifier"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/version"
)

// Subscriber opens change-notification sessions.
type Subscriber interface {
	Subscribe(topics ...string) (*notifier.Subscription, error)
	Stats() notifier.Stats
}

// Services are the application ports the gateway exposes.
type Services struct {
	Requests  primary.RequestService
	Lifecycle primary.LifecycleService
	Messages  primary.MessageService
	Triage    primary.TriageService
	Logs      primary.LogService
	Notifier  Subscriber
}

type handler struct {
	token  string
	svc    Services
	logger *slog.Logger
}

// NewHandler builds the HTTP API. When token is set every route except
// /health and /version requires it as a bearer token. X-User-ID and
// X-User-Role identify the caller.
func NewHandler(token string, svc Services, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{token: strings.TrimSpace(token), svc: svc, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.wrap(false, h.health))
	mux.HandleFunc("GET /version", h.wrap(false, h.version))

	mux.HandleFunc("POST /requests", h.wrap(true, h.createRequest))
	mux.HandleFunc("GET /requests", h.wrap(true, h.listRequests))
	mux.HandleFunc("GET /requests/open", h.wrap(true, h.listOpen))
	mux.HandleFunc("GET /requests/{id}", h.wrap(true, h.getRequest))
	mux.HandleFunc("POST /requests/{id}/accept", h.wrap(true, h.accept))
	mux.HandleFunc("POST /requests/{id}/cancel", h.wrap(true, h.cancelRequest))

	mux.HandleFunc("GET /engagements", h.wrap(true, h.listEngagements))
	mux.HandleFunc("GET /engagements/{id}", h.wrap(true, h.getEngagement))
	mux.HandleFunc("POST /engagements/{id}/quote", h.wrap(true, h.submitQuote))
	mux.HandleFunc("POST /engagements/{id}/accept-quote", h.wrap(true, h.acceptQuote))
	mux.HandleFunc("POST /engagements/{id}/decline-quote", h.wrap(true, h.declineQuote))
	mux.HandleFunc("POST /engagements/{id}/confirm", h.wrap(true, h.confirm))
	mux.HandleFunc("POST /engagements/{id}/cancel", h.wrap(true, h.cancel))
	mux.HandleFunc("GET /engagements/{id}/messages", h.wrap(true, h.listMessages))
	mux.HandleFunc("POST /engagements/{id}/messages", h.wrap(true, h.sendMessage))
	mux.HandleFunc("POST /engagements/{id}/messages/read", h.wrap(true, h.markRead))
	mux.HandleFunc("GET /users/{id}/unread", h.wrap(true, h.unread))

	mux.HandleFunc("POST /triage", h.wrap(true, h.startTriage))
	mux.HandleFunc("GET /triage/{id}", h.wrap(true, h.getTriage))
	mux.HandleFunc("DELETE /triage/{id}", h.wrap(true, h.abandonTriage))
	mux.HandleFunc("POST /triage/{id}/turns", h.wrap(true, h.triageTurn))
	mux.HandleFunc("POST /triage/{id}/override", h.wrap(true, h.triageOverride))
	mux.HandleFunc("POST /triage/{id}/convert", h.wrap(true, h.convertTriage))

	mux.HandleFunc("GET /logs", h.wrap(true, h.listLogs))
	mux.HandleFunc("GET /subscribe", h.wrap(true, h.subscribe))
	return mux
}

type requestIDKey struct{}

// wrap assigns the request ID, checks the bearer token and carries the
// caller identity into the request context.
func (h *handler) wrap(auth bool, fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := getRequestID(r)
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)

		if auth && h.token != "" && !isAuthorized(r, h.token) {
			writeError(w, requestID, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		if user := strings.TrimSpace(r.Header.Get("X-User-ID")); user != "" {
			ctx = ctxutil.WithActorID(ctx, user)
		}
		if role := strings.TrimSpace(r.Header.Get("X-User-Role")); role != "" {
			ctx = ctxutil.WithRole(ctx, role)
		}
		fn(w, r.WithContext(ctx))
	}
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":     "ok",
		"request_id": requestID(r),
	}
	if h.svc.Notifier != nil {
		st := h.svc.Notifier.Stats()
		body["subscribers"] = st.Subscribers
		body["published"] = st.Published
		body["coalesced"] = st.Coalesced
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *handler) version(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version":    version.String(),
		"request_id": requestID(r),
	})
}

// Requests

func (h *handler) createRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RequesterID        string          `json:"requester_id"`
		Title              string          `json:"title"`
		Description        string          `json:"description"`
		Region             string          `json:"region"`
		PreferredDate      string          `json:"preferred_date"`
		PreferredTime      []string        `json:"preferred_time"`
		ImageRefs          []string        `json:"image_refs"`
		AdvisoryTranscript json.RawMessage `json:"advisory_transcript"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	created, err := h.svc.Requests.CreateRequest(r.Context(), primary.CreateRequestRequest{
		RequesterID:        orActor(r, body.RequesterID),
		Title:              body.Title,
		Description:        body.Description,
		Region:             body.Region,
		PreferredDate:      body.PreferredDate,
		PreferredTime:      body.PreferredTime,
		ImageRefs:          body.ImageRefs,
		AdvisoryTranscript: string(body.AdvisoryTranscript),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestJSON(created))
}

func (h *handler) listRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.svc.Requests.ListByRequester(r.Context(), orActor(r, r.URL.Query().Get("requester_id")))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": mapSlice(requests, toRequestJSON)})
}

func (h *handler) listOpen(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	requests, err := h.svc.Requests.ListOpen(r.Context(), primary.OpenRequestFilters{
		Region:           q.Get("region"),
		ExcludeRequester: q.Get("exclude_requester"),
		Limit:            limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": mapSlice(requests, toRequestJSON)})
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.svc.Requests.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestJSON(req))
}

func (h *handler) accept(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProviderID string `json:"provider_id"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	eng, err := h.svc.Lifecycle.Accept(r.Context(), r.PathValue("id"), orActor(r, body.ProviderID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEngagementJSON(eng))
}

func (h *handler) cancelRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.svc.Lifecycle.CancelRequest(r.Context(), r.PathValue("id"), body.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestJSON(req))
}

// Engagements

func (h *handler) listEngagements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	engagements, err := h.svc.Lifecycle.ListEngagements(r.Context(), primary.EngagementFilters{
		RequestID:   q.Get("request_id"),
		ProviderID:  q.Get("provider_id"),
		RequesterID: q.Get("requester_id"),
		Status:      q.Get("status"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"engagements": mapSlice(engagements, toEngagementJSON)})
}

func (h *handler) getEngagement(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")
	if role == "" {
		role = ctxutil.RoleFromContext(r.Context())
	}
	view, err := h.svc.Lifecycle.GetEngagement(r.Context(), r.PathValue("id"), role)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEngagementViewJSON(view))
}

func (h *handler) submitQuote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount        decimal.Decimal `json:"amount"`
		ScheduledTime string          `json:"scheduled_time"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	eng, err := h.svc.Lifecycle.SubmitQuote(r.Context(), primary.SubmitQuoteRequest{
		EngagementID:  r.PathValue("id"),
		Amount:        body.Amount,
		ScheduledTime: body.ScheduledTime,
	})
	h.respondEngagement(w, r, eng, err)
}

func (h *handler) acceptQuote(w http.ResponseWriter, r *http.Request) {
	eng, err := h.svc.Lifecycle.AcceptQuote(r.Context(), r.PathValue("id"))
	h.respondEngagement(w, r, eng, err)
}

func (h *handler) declineQuote(w http.ResponseWriter, r *http.Request) {
	eng, err := h.svc.Lifecycle.DeclineQuote(r.Context(), r.PathValue("id"))
	h.respondEngagement(w, r, eng, err)
}

func (h *handler) confirm(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role string `json:"role"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	role := body.Role
	if role == "" {
		role = ctxutil.RoleFromContext(r.Context())
	}
	eng, err := h.svc.Lifecycle.ConfirmDone(r.Context(), r.PathValue("id"), role)
	h.respondEngagement(w, r, eng, err)
}

func (h *handler) cancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	eng, err := h.svc.Lifecycle.Cancel(r.Context(), r.PathValue("id"), body.Reason)
	h.respondEngagement(w, r, eng, err)
}

func (h *handler) respondEngagement(w http.ResponseWriter, r *http.Request, eng *primary.Engagement, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEngagementJSON(eng))
}

// Messages

func (h *handler) listMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.svc.Messages.List(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": mapSlice(messages, toMessageJSON)})
}

func (h *handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SenderID string `json:"sender_id"`
		Body     string `json:"body"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	msg, err := h.svc.Messages.Send(r.Context(), primary.SendMessageRequest{
		EngagementID: r.PathValue("id"),
		SenderID:     orActor(r, body.SenderID),
		Body:         body.Body,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageJSON(msg))
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ReaderID string `json:"reader_id"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	n, err := h.svc.Messages.MarkRead(r.Context(), r.PathValue("id"), orActor(r, body.ReaderID))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": n})
}

func (h *handler) unread(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Messages.UnreadCounts(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unread": counts})
}

// Triage

func (h *handler) startTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID string     `json:"user_id"`
		Intake intakeJSON `json:"intake"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	reply, err := h.svc.Triage.Start(r.Context(), primary.StartTriageRequest{
		UserID: orActor(r, body.UserID),
		Intake: primary.TriageIntake{
			IssueType:   body.Intake.IssueType,
			WhenStarted: body.Intake.WhenStarted,
			Fields:      body.Intake.Fields,
			Photos:      body.Intake.Photos,
		},
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTriageReplyJSON(reply))
}

func (h *handler) getTriage(w http.ResponseWriter, r *http.Request) {
	conv, err := h.svc.Triage.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toConversationJSON(conv))
}

func (h *handler) abandonTriage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Triage.Abandon(r.Context(), r.PathValue("id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) triageTurn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	reply, err := h.svc.Triage.Turn(r.Context(), r.PathValue("id"), body.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTriageReplyJSON(reply))
}

func (h *handler) triageOverride(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Evidence string   `json:"evidence"`
		Cleared  []string `json:"cleared"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	reply, err := h.svc.Triage.Override(r.Context(), primary.TriageOverrideRequest{
		ConversationID: r.PathValue("id"),
		Evidence:       body.Evidence,
		Cleared:        body.Cleared,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTriageReplyJSON(reply))
}

func (h *handler) convertTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title         string   `json:"title"`
		Description   string   `json:"description"`
		Region        string   `json:"region"`
		PreferredDate string   `json:"preferred_date"`
		PreferredTime []string `json:"preferred_time"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	req, err := h.svc.Triage.Convert(r.Context(), primary.ConvertTriageRequest{
		ConversationID: r.PathValue("id"),
		Title:          body.Title,
		Description:    body.Description,
		Region:         body.Region,
		PreferredDate:  body.PreferredDate,
		PreferredTime:  body.PreferredTime,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestJSON(req))
}

// Activity log

func (h *handler) listLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(q.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	entries, err := h.svc.Logs.ListLogs(r.Context(), primary.LogFilters{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
		ActorID:    q.Get("actor_id"),
		Action:     q.Get("action"),
		Limit:      limit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": mapSlice(entries, toLogEntryJSON)})
}

// decode reads an optional JSON body. It writes the error response itself
// and reports whether the handler should continue.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, requestID(r), http.StatusBadRequest, "bad_request", "invalid json request")
		return false
	}
	return true
}

// fail maps an application error onto an HTTP response.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	rid := requestID(r)
	status, code := statusFor(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("gateway request failed", "request_id", rid, "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	} else {
		h.logger.Debug("gateway request rejected", "request_id", rid, "path", r.URL.Path, "code", code, "error", err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	body := map[string]any{
		"code":       code,
		"message":    message,
		"request_id": rid,
	}
	if current, ok := primary.CurrentStatus(err); ok && current != "" {
		body["current_status"] = current
	}
	writeJSON(w, status, body)
}

// statusFor maps the error taxonomy to an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, primary.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, primary.ErrAlreadyEngaged):
		return http.StatusConflict, "already_engaged"
	case errors.Is(err, primary.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, primary.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, primary.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, primary.ErrInvalidTimeSlot):
		return http.StatusUnprocessableEntity, "invalid_time_slot"
	case errors.Is(err, primary.ErrInvalidInput):
		return http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, primary.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, primary.ErrTransientStore):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal_error"
}

func orActor(r *http.Request, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	return ctxutil.ActorFromContext(r.Context())
}

func queryInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q is not a valid limit", primary.ErrInvalidInput, s)
	}
	return n, nil
}

func isAuthorized(r *http.Request, expected string) bool {
	got := strings.TrimSpace(r.Header.Get("Authorization"))
	if got == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(got, prefix) {
		return false
	}
	token := strings.TrimSpace(strings.TrimPrefix(got, prefix))
	return token == expected
}

func getRequestID(r *http.Request) string {
	rid := strings.TrimSpace(r.Header.Get("X-Request-ID"))
	if rid != "" {
		return rid
	}
	return uuid.NewString()
}

func requestID(r *http.Request) string {
	if rid, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
