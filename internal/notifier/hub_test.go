package notifier

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"github.com/example/tradeflow/internal/ports/secondary"
)

func quietHub(opts ...Option) *Hub {
	return New(append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
}

func receive(t *testing.T, sub *Subscription) secondary.Invalidation {
	t.Helper()
	select {
	case ev := <-sub.Events:
		return ev
	default:
		t.Fatalf("expected an event on %s", sub.ID)
		return secondary.Invalidation{}
	}
}

func expectNone(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case ev := <-sub.Events:
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestHubDeliversToMatchingTopics(t *testing.T) {
	hub := quietHub()
	ctx := context.Background()

	reqSub, _ := hub.Subscribe(secondary.RequestTopic("REQ-001"))
	proSub, _ := hub.Subscribe(secondary.ProviderTopic("pro-1"))
	otherSub, _ := hub.Subscribe(secondary.RequestTopic("REQ-002"))
	defer reqSub.Close()
	defer proSub.Close()
	defer otherSub.Close()

	hub.Publish(ctx, secondary.Invalidation{
		Topics: []string{secondary.RequestTopic("REQ-001"), secondary.ProviderTopic("pro-1")},
		Reason: "engagement_created",
	})

	ev := receive(t, reqSub)
	if ev.ID == "" || ev.At.IsZero() {
		t.Errorf("expected ID and timestamp to be assigned, got %+v", ev)
	}
	receive(t, proSub)
	expectNone(t, otherSub)
}

func TestHubSessionsAreIndependent(t *testing.T) {
	hub := quietHub()
	topic := secondary.RequesterTopic("cust-1")

	phone, _ := hub.Subscribe(topic)
	laptop, _ := hub.Subscribe(topic)
	defer laptop.Close()

	if phone.ID == laptop.ID {
		t.Fatal("expected distinct subscription IDs")
	}

	hub.Publish(context.Background(), secondary.Invalidation{Topics: []string{topic}})
	receive(t, phone)
	receive(t, laptop)

	phone.Close()
	if _, ok := <-phone.Events; ok {
		t.Error("expected closed channel after Close")
	}

	hub.Publish(context.Background(), secondary.Invalidation{Topics: []string{topic}})
	receive(t, laptop)

	if got := hub.Stats().Subscribers; got != 1 {
		t.Errorf("expected 1 subscriber, got %d", got)
	}
}

func TestHubDeliversOncePerSubscription(t *testing.T) {
	hub := quietHub()
	sub, _ := hub.Subscribe(secondary.RequestTopic("REQ-001"), secondary.EngagementTopic("ENG-001"))
	defer sub.Close()

	hub.Publish(context.Background(), secondary.Invalidation{
		Topics: []string{secondary.RequestTopic("REQ-001"), secondary.EngagementTopic("ENG-001")},
	})

	receive(t, sub)
	expectNone(t, sub)
}

func TestHubDedupesByEventID(t *testing.T) {
	hub := quietHub()
	sub, _ := hub.Subscribe(secondary.TopicOpenRequests)
	defer sub.Close()

	ev := secondary.Invalidation{ID: "evt-1", Topics: []string{secondary.TopicOpenRequests}}
	hub.Publish(context.Background(), ev)
	hub.Publish(context.Background(), ev)

	receive(t, sub)
	expectNone(t, sub)
}

func TestHubCoalescesWhenFull(t *testing.T) {
	hub := quietHub(WithSubscriberBuffer(1))
	sub, _ := hub.Subscribe(secondary.ProviderTopic("pro-1"))
	defer sub.Close()
	ctx := context.Background()

	hub.Publish(ctx, secondary.Invalidation{Topics: []string{secondary.ProviderTopic("pro-1"), secondary.RequestTopic("REQ-001")}})
	hub.Publish(ctx, secondary.Invalidation{Topics: []string{secondary.ProviderTopic("pro-1"), secondary.RequestTopic("REQ-002")}})

	ev := receive(t, sub)
	if ev.Reason != "coalesced" {
		t.Errorf("expected coalesced event, got %q", ev.Reason)
	}
	if !slices.Contains(ev.Topics, secondary.RequestTopic("REQ-001")) || !slices.Contains(ev.Topics, secondary.RequestTopic("REQ-002")) {
		t.Errorf("expected merged topics, got %v", ev.Topics)
	}
	expectNone(t, sub)

	if got := hub.Stats().Coalesced; got != 1 {
		t.Errorf("expected 1 coalesced, got %d", got)
	}
}

func TestHubSubscribeRequiresTopic(t *testing.T) {
	hub := quietHub()
	if _, err := hub.Subscribe(" ", ""); err == nil {
		t.Error("expected error without topics")
	}
}

func TestHubConcurrentPublishAndClose(t *testing.T) {
	hub := quietHub(WithSubscriberBuffer(2))
	topic := secondary.EngagementTopic("ENG-001")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub, _ := hub.Subscribe(topic)
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(context.Background(), secondary.Invalidation{Topics: []string{topic}})
			}
		}()
		go func() {
			defer wg.Done()
			sub.Close()
		}()
	}
	wg.Wait()
	hub.Close()

	if got := hub.Stats().Subscribers; got != 0 {
		t.Errorf("expected no subscribers after Close, got %d", got)
	}
}
