package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// mockActivityLogRepository implements secondary.ActivityLogRepository for testing.
type mockActivityLogRepository struct {
	logs     map[string]*secondary.ActivityLogRecord
	nextID   int
	pruned   int
	listErr  error
	pruneErr error
}

func newMockActivityLogRepository() *mockActivityLogRepository {
	return &mockActivityLogRepository{
		logs:   make(map[string]*secondary.ActivityLogRecord),
		nextID: 1,
	}
}

func (m *mockActivityLogRepository) Create(ctx context.Context, log *secondary.ActivityLogRecord) error {
	m.logs[log.ID] = log
	return nil
}

func (m *mockActivityLogRepository) GetByID(ctx context.Context, id string) (*secondary.ActivityLogRecord, error) {
	if l, ok := m.logs[id]; ok {
		return l, nil
	}
	return nil, fmt.Errorf("log %s: %w", id, secondary.ErrRecordNotFound)
}

func (m *mockActivityLogRepository) List(ctx context.Context, filters secondary.ActivityLogFilters) ([]*secondary.ActivityLogRecord, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*secondary.ActivityLogRecord
	for _, l := range m.logs {
		if filters.EntityType != "" && l.EntityType != filters.EntityType {
			continue
		}
		if filters.EntityID != "" && l.EntityID != filters.EntityID {
			continue
		}
		if filters.ActorID != "" && l.ActorID != filters.ActorID {
			continue
		}
		if filters.Action != "" && l.Action != filters.Action {
			continue
		}
		result = append(result, l)
	}
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

func (m *mockActivityLogRepository) PruneOlderThan(ctx context.Context, days int) (int, error) {
	if m.pruneErr != nil {
		return 0, m.pruneErr
	}
	return m.pruned, nil
}

func (m *mockActivityLogRepository) GetNextID(ctx context.Context) (string, error) {
	id := fmt.Sprintf("LOG-%03d", m.nextID)
	m.nextID++
	return id, nil
}

func newTestLogService() (*LogServiceImpl, *mockActivityLogRepository) {
	repo := newMockActivityLogRepository()
	return NewLogService(repo), repo
}

func TestListLogs(t *testing.T) {
	service, repo := newTestLogService()
	repo.logs["LOG-001"] = &secondary.ActivityLogRecord{ID: "LOG-001", EntityType: "request", EntityID: "REQ-001", Action: "create", ActorID: "cust-1"}
	repo.logs["LOG-002"] = &secondary.ActivityLogRecord{ID: "LOG-002", EntityType: "engagement", EntityID: "ENG-001", Action: "update", FieldName: "status", OldValue: "pending_quote", NewValue: "quoted", ActorID: "pro-1"}
	repo.logs["LOG-003"] = &secondary.ActivityLogRecord{ID: "LOG-003", EntityType: "engagement", EntityID: "ENG-001", Action: "create", ActorID: "pro-1"}

	tests := []struct {
		name    string
		filters primary.LogFilters
		want    int
	}{
		{name: "no filters", want: 3},
		{name: "by entity type", filters: primary.LogFilters{EntityType: "engagement"}, want: 2},
		{name: "by actor", filters: primary.LogFilters{ActorID: "cust-1"}, want: 1},
		{name: "by action", filters: primary.LogFilters{Action: "update"}, want: 1},
		{name: "limit", filters: primary.LogFilters{Limit: 2}, want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := service.ListLogs(context.Background(), tt.filters)
			if err != nil {
				t.Fatalf("ListLogs failed: %v", err)
			}
			if len(entries) != tt.want {
				t.Errorf("expected %d entries, got %d", tt.want, len(entries))
			}
		})
	}
}

func TestListLogs_StoreUnavailable(t *testing.T) {
	service, repo := newTestLogService()
	repo.listErr = fmt.Errorf("query: %w", secondary.ErrStoreUnavailable)

	_, err := service.ListLogs(context.Background(), primary.LogFilters{})
	requireKind(t, err, primary.ErrTransientStore)
}

func TestGetLog(t *testing.T) {
	service, repo := newTestLogService()
	repo.logs["LOG-001"] = &secondary.ActivityLogRecord{ID: "LOG-001", EntityType: "request", EntityID: "REQ-001", Action: "create"}

	entry, err := service.GetLog(context.Background(), "LOG-001")
	if err != nil {
		t.Fatalf("GetLog failed: %v", err)
	}
	if entry.EntityID != "REQ-001" {
		t.Errorf("expected REQ-001, got %q", entry.EntityID)
	}

	_, err = service.GetLog(context.Background(), "LOG-999")
	requireKind(t, err, primary.ErrNotFound)
}

func TestPruneLogs(t *testing.T) {
	service, repo := newTestLogService()
	repo.pruned = 4

	n, err := service.PruneLogs(context.Background(), 30)
	if err != nil {
		t.Fatalf("PruneLogs failed: %v", err)
	}
	if n != 4 {
		t.Errorf("expected 4 pruned, got %d", n)
	}

	_, err = service.PruneLogs(context.Background(), 0)
	requireKind(t, err, primary.ErrInvalidInput)

	repo.pruneErr = errors.New("disk full")
	if _, err := service.PruneLogs(context.Background(), 30); err == nil {
		t.Error("expected prune error to propagate")
	}
}
