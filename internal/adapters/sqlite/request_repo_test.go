package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/example/tradeflow/internal/adapters/sqlite"
	"github.com/example/tradeflow/internal/ports/secondary"
)

func TestRequestRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewRequestRepository(db)
	ctx := context.Background()

	id, err := repo.GetNextID(ctx)
	if err != nil {
		t.Fatalf("GetNextID failed: %v", err)
	}
	if id != "REQ-001" {
		t.Errorf("expected REQ-001, got %s", id)
	}

	record := &secondary.RequestRecord{
		ID:                 id,
		RequesterID:        "cust-1",
		Title:              "Leak",
		Description:        "Water under the sink",
		Region:             "Camden",
		PreferredTime:      []string{"Morning", "Flexible"},
		ImageRefs:          []string{"img/1.jpg"},
		AdvisoryTranscript: `{"state":"diagnostic"}`,
		Status:             "new",
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if record.CreatedAt == "" {
		t.Error("expected CreatedAt to be set")
	}

	got, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Title != "Leak" || got.Region != "Camden" {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(got.PreferredTime) != 2 || got.PreferredTime[1] != "Flexible" {
		t.Errorf("expected preferred times to round-trip, got %v", got.PreferredTime)
	}
	if got.PreferredDate != "" {
		t.Errorf("expected empty preferred date, got %q", got.PreferredDate)
	}
	if got.AdvisoryTranscript != `{"state":"diagnostic"}` {
		t.Errorf("unexpected transcript %q", got.AdvisoryTranscript)
	}

	next, _ := repo.GetNextID(ctx)
	if next != "REQ-002" {
		t.Errorf("expected REQ-002, got %s", next)
	}
}

func TestRequestRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewRequestRepository(db)

	_, err := repo.GetByID(context.Background(), "REQ-999")
	if !errors.Is(err, secondary.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestRequestRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewRequestRepository(db)
	ctx := context.Background()

	seedRequest(t, db, "REQ-001", "cust-1", "new")
	seedRequest(t, db, "REQ-002", "cust-1", "accepted")
	seedRequest(t, db, "REQ-003", "cust-2", "new")

	open, err := repo.List(ctx, secondary.RequestFilters{Status: "new"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(open) != 2 {
		t.Errorf("expected 2 open requests, got %d", len(open))
	}

	mine, _ := repo.List(ctx, secondary.RequestFilters{RequesterID: "cust-1"})
	if len(mine) != 2 {
		t.Errorf("expected 2 requests for cust-1, got %d", len(mine))
	}

	others, _ := repo.List(ctx, secondary.RequestFilters{Status: "new", ExcludeRequester: "cust-1"})
	if len(others) != 1 || others[0].ID != "REQ-003" {
		t.Errorf("expected only REQ-003, got %v", others)
	}

	limited, _ := repo.List(ctx, secondary.RequestFilters{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestRequestRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := sqlite.NewRequestRepository(db)
	ctx := context.Background()
	seedRequest(t, db, "REQ-001", "", "new")

	if err := repo.UpdateStatus(ctx, "REQ-001", "accepted"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, "REQ-001")
	if got.Status != "accepted" {
		t.Errorf("expected accepted, got %s", got.Status)
	}
	if got.UpdatedAt == got.CreatedAt {
		t.Error("expected updated_at to move")
	}

	if err := repo.UpdateStatus(ctx, "REQ-404", "accepted"); !errors.Is(err, secondary.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	if err := repo.UpdateStatus(ctx, "REQ-001", "bogus"); err == nil {
		t.Error("expected CHECK constraint to reject unknown status")
	}
}
