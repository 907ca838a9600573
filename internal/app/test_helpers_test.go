package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/example/tradeflow/internal/adapters/sqlite"
	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/db"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingPublisher implements secondary.ChangePublisher for testing.
type recordingPublisher struct {
	mu     sync.Mutex
	events []secondary.Invalidation
}

func (p *recordingPublisher) Publish(ctx context.Context, inv secondary.Invalidation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, inv)
}

func (p *recordingPublisher) reasons() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Reason
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

// recordingSink implements secondary.NotificationSink for testing. Readers
// wait for in-flight deliveries first.
type recordingSink struct {
	mu   sync.Mutex
	sent []secondary.Notification
	err  error
	wait func()
}

func (s *recordingSink) settle() {
	if s.wait != nil {
		s.wait()
	}
}

func (s *recordingSink) fail(err error) {
	s.settle()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *recordingSink) all() []secondary.Notification {
	s.settle()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]secondary.Notification(nil), s.sent...)
}

func (s *recordingSink) Deliver(ctx context.Context, n secondary.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func (s *recordingSink) to(recipient string) []secondary.Notification {
	s.settle()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []secondary.Notification
	for _, n := range s.sent {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.settle()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}

// testEnv wires the services against an in-memory SQLite database.
type testEnv struct {
	db         *sql.DB
	requests   *RequestServiceImpl
	lifecycle  *LifecycleServiceImpl
	messages   *MessageServiceImpl
	logs       *LogServiceImpl
	publisher  *recordingPublisher
	sink       *recordingSink
	executor   *DefaultEffectExecutor
	engagement secondary.EngagementRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	sink := &recordingSink{}
	env := newTestEnvWithSink(t, sink)
	env.sink = sink
	sink.wait = env.executor.Wait
	return env
}

// newTestEnvWithSink wires the services with a caller-supplied sink.
// env.sink is nil unless the caller sets it.
func newTestEnvWithSink(t *testing.T, sink secondary.NotificationSink) *testEnv {
	t.Helper()

	conn, err := db.Open(db.Options{Driver: db.DriverCGO, Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if _, err := conn.Exec(db.GetSchemaSQL()); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	tx := sqlite.NewTransactor(conn)
	requestRepo := sqlite.NewRequestRepository(conn)
	engagementRepo := sqlite.NewEngagementRepository(conn)
	messageRepo := sqlite.NewMessageRepository(conn)
	logRepo := sqlite.NewActivityLogRepository(conn)
	logWriter := sqlite.NewLogWriterAdapter(logRepo)

	publisher := &recordingPublisher{}
	executor := NewEffectExecutor(publisher, sink, quietLogger())
	t.Cleanup(executor.Wait)

	requests := NewRequestService(tx, requestRepo, logWriter, executor)
	return &testEnv{
		db:         conn,
		requests:   requests,
		lifecycle:  NewLifecycleService(tx, requestRepo, engagementRepo, requests, logWriter, executor, quietLogger()),
		messages:   NewMessageService(tx, messageRepo, engagementRepo, executor, quietLogger()),
		logs:       NewLogService(logRepo),
		publisher:  publisher,
		executor:   executor,
		engagement: engagementRepo,
	}
}

// newRequest creates an open request owned by cust-1.
func (e *testEnv) newRequest(t *testing.T, preferredDate string, slots ...string) *primary.Request {
	t.Helper()
	if len(slots) == 0 {
		slots = []string{"Morning (8am-12pm)"}
	}
	req, err := e.requests.CreateRequest(context.Background(), primary.CreateRequestRequest{
		RequesterID:   "cust-1",
		Title:         "Kitchen tap dripping",
		Description:   "Drips constantly from the spout",
		Region:        "London",
		PreferredDate: preferredDate,
		PreferredTime: slots,
	})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	return req
}

// requestStatus reads the stored request status.
func (e *testEnv) requestStatus(t *testing.T, id string) string {
	t.Helper()
	req, err := e.requests.GetRequest(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRequest failed: %v", err)
	}
	return req.Status
}

func as(userID string) context.Context {
	return ctxutil.WithActorID(context.Background(), userID)
}

func requireKind(t *testing.T, err, kind error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", kind)
	}
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
}
