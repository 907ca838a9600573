package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/ports/secondary"
)

const heartbeatInterval = 25 * time.Second

type invalidationJSON struct {
	ID     string   `json:"id"`
	Topics []string `json:"topics"`
	Reason string   `json:"reason"`
	At     string   `json:"at"`
}

// subscribe streams invalidations as server-sent events until the client
// goes away or the hub closes the subscription.
func (h *handler) subscribe(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	if h.svc.Notifier == nil {
		writeError(w, rid, http.StatusServiceUnavailable, "unavailable", "notifications are not enabled")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, rid, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	var topics []string
	for _, raw := range r.URL.Query()["topic"] {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				topics = append(topics, t)
			}
		}
	}
	actor := ctxutil.ActorFromContext(r.Context())
	for _, t := range topics {
		if !personalTopic(t) {
			continue
		}
		if actor == "" {
			writeError(w, rid, http.StatusForbidden, "forbidden", fmt.Sprintf("X-User-ID is required to subscribe to %s", t))
			return
		}
		if foreignUserTopic(t, actor) {
			writeError(w, rid, http.StatusForbidden, "forbidden", fmt.Sprintf("cannot subscribe to %s", t))
			return
		}
	}

	sub, err := h.svc.Notifier.Subscribe(topics...)
	if err != nil {
		writeError(w, rid, http.StatusUnprocessableEntity, "invalid_input", err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, ": connected %s\n\n", sub.ID)
	flusher.Flush()

	h.logger.Debug("sse stream opened", "request_id", rid, "subscription_id", sub.ID, "topics", sub.Topics)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case inv, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(toInvalidationJSON(inv))
			if err != nil {
				h.logger.Warn("encode invalidation", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: invalidate\ndata: %s\n\n", inv.ID, data)
			flusher.Flush()
		}
	}
}

// personalTopic reports whether t belongs to a single user.
func personalTopic(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	return strings.HasPrefix(t, secondary.ProviderTopic("")) || strings.HasPrefix(t, secondary.RequesterTopic(""))
}

// foreignUserTopic reports whether t is another user's personal topic.
func foreignUserTopic(t, actor string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	for _, topic := range []func(string) string{secondary.ProviderTopic, secondary.RequesterTopic} {
		prefix := topic("")
		if strings.HasPrefix(t, prefix) && !strings.EqualFold(strings.TrimPrefix(t, prefix), actor) {
			return true
		}
	}
	return false
}

func toInvalidationJSON(inv secondary.Invalidation) invalidationJSON {
	return invalidationJSON{
		ID:     inv.ID,
		Topics: inv.Topics,
		Reason: inv.Reason,
		At:     inv.At.UTC().Format(time.RFC3339),
	}
}
