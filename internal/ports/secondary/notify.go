package secondary

import (
	"context"
	"time"
)

// Invalidation is a "something changed, re-fetch" signal. It carries no
// entity state; subscribers must re-read from the store.
type Invalidation struct {
	ID     string
	Topics []string
	Reason string
	At     time.Time
}

// ChangePublisher fans invalidations out to interested sessions.
// Publish never blocks on slow subscribers.
type ChangePublisher interface {
	Publish(ctx context.Context, inv Invalidation)
}

// Topic keys. A topic names an entity whose views must be refreshed.
const TopicOpenRequests = "open-requests"

func RequestTopic(id string) string    { return "request:" + id }
func EngagementTopic(id string) string { return "engagement:" + id }
func ProviderTopic(id string) string   { return "provider:" + id }
func RequesterTopic(id string) string  { return "requester:" + id }

// Notification is a push notification addressed to one user.
type Notification struct {
	Recipient string
	Title     string
	Body      string
	Data      map[string]string
}

// NotificationSink delivers push notifications. Delivery is fire-and-forget:
// callers log errors and never propagate them.
type NotificationSink interface {
	Deliver(ctx context.Context, n Notification) error
}
