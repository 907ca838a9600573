// Package notifier fans committed-change invalidations out to client sessions.
//
// Every session owns its own subscription with its own buffered channel, so
// two sessions of the same user never share a channel. Events are "something
// changed, re-fetch" hints with no entity state: consumers must re-read the
// store and must tolerate events that arrive late or out of order.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/tradeflow/internal/ports/secondary"
)

const (
	defaultSubscriberBuffer = 64
	defaultDedupeWindow     = 1024
)

// Option customizes Hub construction.
type Option func(*Hub)

// WithLogger injects a logger for coalesce/diagnostic messages.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithSubscriberBuffer overrides the buffered channel size per subscription.
func WithSubscriberBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithDedupeWindow controls how many recent event IDs are retained.
func WithDedupeWindow(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.dedupeWindow = n
		}
	}
}

// Hub is an in-process invalidation broker keyed by topic.
type Hub struct {
	mu          sync.RWMutex
	topics      map[string]map[*subscriber]struct{}
	subscribers map[string]*subscriber

	recentMu    sync.Mutex
	recentIDs   map[string]struct{}
	recentOrder []string

	buffer       int
	dedupeWindow int
	logger       *slog.Logger

	published atomic.Int64
	coalesced atomic.Int64
}

// New constructs a hub with sane defaults.
func New(opts ...Option) *Hub {
	h := &Hub{
		topics:       map[string]map[*subscriber]struct{}{},
		subscribers:  map[string]*subscriber{},
		recentIDs:    map[string]struct{}{},
		buffer:       defaultSubscriberBuffer,
		dedupeWindow: defaultDedupeWindow,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Subscription is one session's view of the hub.
type Subscription struct {
	ID     string
	Topics []string
	Events <-chan secondary.Invalidation
	cancel func()
}

// Close terminates the subscription and closes Events.
func (s *Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Subscribe registers a new session for the given topics.
func (h *Hub) Subscribe(topics ...string) (*Subscription, error) {
	var normalized []string
	for _, t := range topics {
		t = normalizeTopic(t)
		if t != "" && !slices.Contains(normalized, t) {
			normalized = append(normalized, t)
		}
	}
	if len(normalized) == 0 {
		return nil, fmt.Errorf("at least one topic is required")
	}

	sub := &subscriber{
		id:     uuid.NewString(),
		topics: normalized,
		ch:     make(chan secondary.Invalidation, h.buffer),
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	for _, t := range normalized {
		if h.topics[t] == nil {
			h.topics[t] = map[*subscriber]struct{}{}
		}
		h.topics[t][sub] = struct{}{}
	}
	h.mu.Unlock()

	h.logger.Debug("subscription opened", "subscription_id", sub.id, "topics", normalized)

	return &Subscription{
		ID:     sub.id,
		Topics: normalized,
		Events: sub.ch,
		cancel: func() { h.remove(sub) },
	}, nil
}

// Publish delivers the invalidation once to every subscription watching any
// of its topics. It never blocks: a full buffer coalesces the new event into
// the oldest pending one.
func (h *Hub) Publish(ctx context.Context, inv secondary.Invalidation) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.At.IsZero() {
		inv.At = time.Now().UTC()
	}
	if h.isDuplicate(inv.ID) {
		return
	}

	h.mu.RLock()
	targets := map[*subscriber]struct{}{}
	for _, t := range inv.Topics {
		for sub := range h.topics[normalizeTopic(t)] {
			targets[sub] = struct{}{}
		}
	}
	h.mu.RUnlock()

	h.published.Add(1)
	for sub := range targets {
		if sub.deliver(inv) {
			h.coalesced.Add(1)
			h.logger.Warn("subscriber buffer full, coalesced invalidation",
				"subscription_id", sub.id, "event_id", inv.ID, "reason", inv.Reason)
		}
	}
}

// Stats is a point-in-time view of hub activity.
type Stats struct {
	Subscribers int
	Published   int64
	Coalesced   int64
}

// Stats reports hub counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	n := len(h.subscribers)
	h.mu.RUnlock()
	return Stats{Subscribers: n, Published: h.published.Load(), Coalesced: h.coalesced.Load()}
}

// Close terminates every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.subscribers))
	for _, s := range h.subscribers {
		subs = append(subs, s)
	}
	h.topics = map[string]map[*subscriber]struct{}{}
	h.subscribers = map[string]*subscriber{}
	h.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub.id)
	for _, t := range sub.topics {
		if subs := h.topics[t]; subs != nil {
			delete(subs, sub)
			if len(subs) == 0 {
				delete(h.topics, t)
			}
		}
	}
	h.mu.Unlock()
	sub.close()
	h.logger.Debug("subscription closed", "subscription_id", sub.id)
}

func (h *Hub) isDuplicate(id string) bool {
	h.recentMu.Lock()
	defer h.recentMu.Unlock()
	if _, ok := h.recentIDs[id]; ok {
		return true
	}
	h.recentIDs[id] = struct{}{}
	h.recentOrder = append(h.recentOrder, id)
	if len(h.recentOrder) > h.dedupeWindow {
		oldest := h.recentOrder[0]
		h.recentOrder = h.recentOrder[1:]
		delete(h.recentIDs, oldest)
	}
	return false
}

func normalizeTopic(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

type subscriber struct {
	id     string
	topics []string
	ch     chan secondary.Invalidation

	mu     sync.Mutex
	closed bool
}

// deliver sends without blocking and reports whether it had to coalesce.
// The hub is the only sender, so once one pending event is taken out there
// is room for the merged one.
func (s *subscriber) deliver(inv secondary.Invalidation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- inv:
		return false
	default:
	}
	select {
	case oldest := <-s.ch:
		s.ch <- merge(oldest, inv)
	default:
		s.ch <- inv
	}
	return true
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// merge folds b into a so a consumer that sees the result re-fetches both.
func merge(a, b secondary.Invalidation) secondary.Invalidation {
	out := a
	out.Topics = slices.Clone(a.Topics)
	for _, t := range b.Topics {
		if !slices.Contains(out.Topics, t) {
			out.Topics = append(out.Topics, t)
		}
	}
	if b.At.After(out.At) {
		out.At = b.At
	}
	out.Reason = "coalesced"
	return out
}

// Ensure Hub implements the publisher port
var _ secondary.ChangePublisher = (*Hub)(nil)
