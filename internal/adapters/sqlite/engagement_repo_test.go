package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/example/tradeflow/internal/adapters/sqlite"
	"github.com/example/tradeflow/internal/ports/secondary"
)

func TestEngagementRepository_CreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	seedRequest(t, db, "REQ-001", "cust-1", "new")
	repo := sqlite.NewEngagementRepository(db)
	ctx := context.Background()

	record := &secondary.EngagementRecord{
		ID:          "ENG-001",
		RequestID:   "REQ-001",
		ProviderID:  "pro-1",
		RequesterID: "cust-1",
		Status:      "pending_quote",
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByID(ctx, "ENG-001")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.QuoteAmount.Valid {
		t.Error("expected no quote amount")
	}
	if got.RequesterConfirmed || got.ProviderConfirmed {
		t.Error("expected confirmation flags to be false")
	}

	_, err = repo.GetByID(ctx, "ENG-404")
	if !errors.Is(err, secondary.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestEngagementRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	seedRequest(t, db, "REQ-001", "", "")
	seedEngagement(t, db, "ENG-001", "REQ-001", "pro-1", "pending_quote")
	repo := sqlite.NewEngagementRepository(db)
	ctx := context.Background()

	record, _ := repo.GetByID(ctx, "ENG-001")
	record.Status = "quoted"
	record.QuoteAmount = decimal.NewNullDecimal(decimal.RequireFromString("150.50"))
	record.ScheduledDate = "2026-03-14"
	record.ScheduledTime = "Morning"
	record.ProviderConfirmed = true
	if err := repo.Update(ctx, record); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, _ := repo.GetByID(ctx, "ENG-001")
	if got.Status != "quoted" {
		t.Errorf("expected quoted, got %s", got.Status)
	}
	if !got.QuoteAmount.Valid || !got.QuoteAmount.Decimal.Equal(decimal.RequireFromString("150.5")) {
		t.Errorf("expected 150.50, got %v", got.QuoteAmount)
	}
	if got.ScheduledDate != "2026-03-14" || got.ScheduledTime != "Morning" {
		t.Errorf("unexpected schedule %s %s", got.ScheduledDate, got.ScheduledTime)
	}
	if !got.ProviderConfirmed || got.RequesterConfirmed {
		t.Error("unexpected confirmation flags")
	}

	missing := &secondary.EngagementRecord{ID: "ENG-404", Status: "quoted"}
	if err := repo.Update(ctx, missing); !errors.Is(err, secondary.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestEngagementRepository_ActivePairIsUnique(t *testing.T) {
	db := setupTestDB(t)
	seedRequest(t, db, "REQ-001", "", "")
	seedEngagement(t, db, "ENG-001", "REQ-001", "pro-1", "pending_quote")
	repo := sqlite.NewEngagementRepository(db)
	ctx := context.Background()

	dup := &secondary.EngagementRecord{ID: "ENG-002", RequestID: "REQ-001", ProviderID: "pro-1", RequesterID: "cust-1", Status: "pending_quote"}
	if err := repo.Create(ctx, dup); !errors.Is(err, secondary.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation for same provider, got %v", err)
	}

	other := &secondary.EngagementRecord{ID: "ENG-003", RequestID: "REQ-001", ProviderID: "pro-2", RequesterID: "cust-1", Status: "pending_quote"}
	if err := repo.Create(ctx, other); !errors.Is(err, secondary.ErrUniqueViolation) {
		t.Fatalf("expected ErrUniqueViolation for second provider, got %v", err)
	}
}

func TestEngagementRepository_CancelledFreesTheClaim(t *testing.T) {
	db := setupTestDB(t)
	seedRequest(t, db, "REQ-001", "", "")
	seedEngagement(t, db, "ENG-001", "REQ-001", "pro-1", "cancelled")
	repo := sqlite.NewEngagementRepository(db)
	ctx := context.Background()

	again := &secondary.EngagementRecord{ID: "ENG-002", RequestID: "REQ-001", ProviderID: "pro-1", RequesterID: "cust-1", Status: "pending_quote"}
	if err := repo.Create(ctx, again); err != nil {
		t.Fatalf("expected re-accept after cancel to succeed, got %v", err)
	}

	active, err := repo.FindActive(ctx, "REQ-001", "pro-1")
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if active.ID != "ENG-002" {
		t.Errorf("expected ENG-002, got %s", active.ID)
	}

	count, _ := repo.CountActiveForRequest(ctx, "REQ-001", "")
	if count != 1 {
		t.Errorf("expected 1 active engagement, got %d", count)
	}
	count, _ = repo.CountActiveForRequest(ctx, "REQ-001", "ENG-002")
	if count != 0 {
		t.Errorf("expected 0 active engagements excluding ENG-002, got %d", count)
	}
}

func TestEngagementRepository_List(t *testing.T) {
	db := setupTestDB(t)
	seedRequest(t, db, "REQ-001", "", "")
	seedRequest(t, db, "REQ-002", "", "")
	seedEngagement(t, db, "ENG-001", "REQ-001", "pro-1", "cancelled")
	seedEngagement(t, db, "ENG-002", "REQ-001", "pro-2", "quoted")
	seedEngagement(t, db, "ENG-003", "REQ-002", "pro-1", "in_progress")
	repo := sqlite.NewEngagementRepository(db)
	ctx := context.Background()

	byProvider, err := repo.List(ctx, secondary.EngagementFilters{ProviderID: "pro-1"})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(byProvider) != 2 {
		t.Errorf("expected 2 engagements for pro-1, got %d", len(byProvider))
	}

	active, _ := repo.List(ctx, secondary.EngagementFilters{RequestID: "REQ-001", ActiveOnly: true})
	if len(active) != 1 || active[0].ID != "ENG-002" {
		t.Errorf("expected only ENG-002, got %v", active)
	}

	_, err = repo.FindActive(ctx, "REQ-001", "pro-1")
	if !errors.Is(err, secondary.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound for cancelled pair, got %v", err)
	}

	next, _ := repo.GetNextID(ctx)
	if next != "ENG-004" {
		t.Errorf("expected ENG-004, got %s", next)
	}
}
