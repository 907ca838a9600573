// Package app contains the application layer - service implementations and effect execution.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/tradeflow/internal/core/effects"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// EffectExecutor interprets and executes effects.
// This is the "Imperative Shell" - the only place I/O happens.
// Services call it only after their transaction has committed.
type EffectExecutor interface {
	Execute(ctx context.Context, effs []effects.Effect) error
}

// Delivery defaults.
const (
	DefaultDeliveryTimeout = 10 * time.Second
	DefaultMaxDeliveries   = 32
)

// DefaultEffectExecutor implements EffectExecutor with real I/O.
// Notifications are delivered on background goroutines, at most
// WithMaxDeliveries at a time.
type DefaultEffectExecutor struct {
	publisher       secondary.ChangePublisher
	sink            secondary.NotificationSink
	logger          *slog.Logger
	deliveryTimeout time.Duration
	slots           chan struct{}
	pending         sync.WaitGroup
}

// ExecutorOption configures a DefaultEffectExecutor.
type ExecutorOption func(*DefaultEffectExecutor)

// WithDeliveryTimeout bounds each notification delivery.
func WithDeliveryTimeout(d time.Duration) ExecutorOption {
	return func(e *DefaultEffectExecutor) {
		if d > 0 {
			e.deliveryTimeout = d
		}
	}
}

// WithMaxDeliveries caps deliveries in flight. Notifications beyond the cap
// are dropped and logged.
func WithMaxDeliveries(n int) ExecutorOption {
	return func(e *DefaultEffectExecutor) {
		if n > 0 {
			e.slots = make(chan struct{}, n)
		}
	}
}

// NewEffectExecutor creates a new DefaultEffectExecutor. A nil publisher or
// sink disables that kind of effect.
func NewEffectExecutor(publisher secondary.ChangePublisher, sink secondary.NotificationSink, logger *slog.Logger, opts ...ExecutorOption) *DefaultEffectExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &DefaultEffectExecutor{
		publisher:       publisher,
		sink:            sink,
		logger:          logger,
		deliveryTimeout: DefaultDeliveryTimeout,
		slots:           make(chan struct{}, DefaultMaxDeliveries),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Wait blocks until every dispatched notification has been delivered or
// has failed.
func (e *DefaultEffectExecutor) Wait() {
	e.pending.Wait()
}

// Drain waits for in-flight notifications until ctx is done.
func (e *DefaultEffectExecutor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute processes a slice of effects, executing each in sequence.
// Notification failures are logged and never returned.
func (e *DefaultEffectExecutor) Execute(ctx context.Context, effs []effects.Effect) error {
	for _, eff := range effs {
		if err := e.executeOne(ctx, eff); err != nil {
			return fmt.Errorf("failed to execute %s effect: %w", eff.EffectType(), err)
		}
	}
	return nil
}

func (e *DefaultEffectExecutor) executeOne(ctx context.Context, eff effects.Effect) error {
	switch typed := eff.(type) {
	case effects.InvalidateEffect:
		e.executeInvalidate(ctx, typed)
		return nil
	case effects.NotifyEffect:
		e.executeNotify(ctx, typed)
		return nil
	case effects.CompositeEffect:
		return e.Execute(ctx, typed.Effects)
	case effects.NoEffect:
		return nil
	case effects.LogEffect:
		e.executeLog(ctx, typed)
		return nil
	default:
		return fmt.Errorf("unknown effect type: %T", eff)
	}
}

func (e *DefaultEffectExecutor) executeInvalidate(ctx context.Context, eff effects.InvalidateEffect) {
	if e.publisher == nil {
		return
	}
	topics := Topics(eff)
	if len(topics) == 0 {
		return
	}
	e.publisher.Publish(ctx, secondary.Invalidation{Topics: topics, Reason: eff.Reason})
}

// Topics lists the notifier topics an invalidation touches.
func Topics(eff effects.InvalidateEffect) []string {
	var topics []string
	if eff.RequestID != "" {
		topics = append(topics, secondary.RequestTopic(eff.RequestID))
	}
	if eff.EngagementID != "" {
		topics = append(topics, secondary.EngagementTopic(eff.EngagementID))
	}
	if eff.ProviderID != "" {
		topics = append(topics, secondary.ProviderTopic(eff.ProviderID))
	}
	if eff.RequesterID != "" {
		topics = append(topics, secondary.RequesterTopic(eff.RequesterID))
	}
	if eff.OpenRequests {
		topics = append(topics, secondary.TopicOpenRequests)
	}
	return topics
}

func (e *DefaultEffectExecutor) executeNotify(ctx context.Context, eff effects.NotifyEffect) {
	if e.sink == nil || eff.Recipient == "" {
		return
	}
	select {
	case e.slots <- struct{}{}:
	default:
		e.logger.Warn("notification dropped, too many deliveries in flight", "recipient", eff.Recipient, "title", eff.Title)
		return
	}
	n := secondary.Notification{
		Recipient: eff.Recipient,
		Title:     eff.Title,
		Body:      eff.Body,
		Data:      eff.Data,
	}
	// The caller's context ends when its request does; delivery outlives it.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.deliveryTimeout)
	e.pending.Add(1)
	go func() {
		defer func() {
			cancel()
			<-e.slots
			e.pending.Done()
		}()
		if err := e.sink.Deliver(ctx, n); err != nil {
			e.logger.Warn("notification delivery failed", "recipient", n.Recipient, "title", n.Title, "error", err)
		}
	}()
}

func (e *DefaultEffectExecutor) executeLog(ctx context.Context, eff effects.LogEffect) {
	level := slog.LevelInfo
	switch strings.ToLower(eff.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	attrs := make([]any, 0, len(eff.Fields)*2)
	for k, v := range eff.Fields {
		attrs = append(attrs, k, v)
	}
	e.logger.Log(ctx, level, eff.Message, attrs...)
}
