package app

import (
	"context"
	"slices"
	"testing"

	"github.com/example/tradeflow/internal/ctxutil"
	"github.com/example/tradeflow/internal/ports/primary"
	"github.com/example/tradeflow/internal/ports/secondary"
)

func TestCreateRequest(t *testing.T) {
	env := newTestEnv(t)

	req, err := env.requests.CreateRequest(as("cust-1"), primary.CreateRequestRequest{
		RequesterID:        "cust-1",
		Title:              "  Boiler not firing  ",
		Description:        "No hot water since Monday",
		Region:             "Leeds",
		PreferredDate:      "2026-05-01",
		PreferredTime:      []string{"Morning (8am-12pm)", " ", "Flexible"},
		ImageRefs:          []string{"img/boiler.jpg"},
		AdvisoryTranscript: `[{"role":"user","content":"no hot water","timestamp":"2026-04-30T09:00:00Z"}]`,
	})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}

	if req.ID != "REQ-001" {
		t.Errorf("expected REQ-001, got %q", req.ID)
	}
	if req.Status != "new" {
		t.Errorf("expected status new, got %q", req.Status)
	}
	if req.Title != "Boiler not firing" {
		t.Errorf("expected trimmed title, got %q", req.Title)
	}
	if !slices.Equal(req.PreferredTime, []string{"Morning (8am-12pm)", "Flexible"}) {
		t.Errorf("expected blank slots dropped, got %v", req.PreferredTime)
	}
	if req.AdvisoryTranscript == "" {
		t.Error("expected transcript to be stored")
	}

	inv := env.publisher.events
	if len(inv) != 1 || !slices.Contains(inv[0].Topics, secondary.TopicOpenRequests) {
		t.Errorf("expected open-requests invalidation, got %+v", inv)
	}

	logs, err := env.logs.ListLogs(context.Background(), primary.LogFilters{EntityID: req.ID})
	if err != nil {
		t.Fatalf("ListLogs failed: %v", err)
	}
	if len(logs) != 1 || logs[0].Action != "create" || logs[0].ActorID != "cust-1" {
		t.Errorf("expected one create entry by cust-1, got %+v", logs)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	tests := []struct {
		name string
		ctx  context.Context
		req  primary.CreateRequestRequest
		want error
	}{
		{
			name: "missing requester",
			ctx:  context.Background(),
			req:  primary.CreateRequestRequest{Title: "Leak"},
			want: primary.ErrInvalidInput,
		},
		{
			name: "missing title",
			ctx:  context.Background(),
			req:  primary.CreateRequestRequest{RequesterID: "cust-1", Title: "  "},
			want: primary.ErrInvalidInput,
		},
		{
			name: "bad preferred date",
			ctx:  context.Background(),
			req:  primary.CreateRequestRequest{RequesterID: "cust-1", Title: "Leak", PreferredDate: "01/05/2026"},
			want: primary.ErrInvalidInput,
		},
		{
			name: "transcript not json",
			ctx:  context.Background(),
			req:  primary.CreateRequestRequest{RequesterID: "cust-1", Title: "Leak", AdvisoryTranscript: "hello"},
			want: primary.ErrInvalidInput,
		},
		{
			name: "creating for someone else",
			ctx:  as("cust-2"),
			req:  primary.CreateRequestRequest{RequesterID: "cust-1", Title: "Leak"},
			want: primary.ErrForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			_, err := env.requests.CreateRequest(tt.ctx, tt.req)
			requireKind(t, err, tt.want)
		})
	}
}

func TestListOpen(t *testing.T) {
	env := newTestEnv(t)
	mine := env.newRequest(t, "")
	claimed := env.newRequest(t, "")
	other, err := env.requests.CreateRequest(context.Background(), primary.CreateRequestRequest{
		RequesterID: "cust-2",
		Title:       "Toilet running",
		Region:      "Bristol",
	})
	if err != nil {
		t.Fatalf("CreateRequest failed: %v", err)
	}
	if _, err := env.lifecycle.Accept(context.Background(), claimed.ID, "pro-1"); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	open, err := env.requests.ListOpen(context.Background(), primary.OpenRequestFilters{})
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	var ids []string
	for _, r := range open {
		ids = append(ids, r.ID)
	}
	if slices.Contains(ids, claimed.ID) {
		t.Errorf("claimed request must not be open, got %v", ids)
	}
	if !slices.Contains(ids, mine.ID) || !slices.Contains(ids, other.ID) {
		t.Errorf("expected both unclaimed requests, got %v", ids)
	}

	filtered, err := env.requests.ListOpen(context.Background(), primary.OpenRequestFilters{ExcludeRequester: "cust-1"})
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].ID != other.ID {
		t.Errorf("expected only cust-2's request, got %+v", filtered)
	}

	byRegion, err := env.requests.ListOpen(context.Background(), primary.OpenRequestFilters{Region: "Bristol"})
	if err != nil {
		t.Fatalf("ListOpen failed: %v", err)
	}
	if len(byRegion) != 1 || byRegion[0].ID != other.ID {
		t.Errorf("expected only the Bristol request, got %+v", byRegion)
	}
}

func TestListByRequester(t *testing.T) {
	env := newTestEnv(t)
	env.newRequest(t, "")
	env.newRequest(t, "")

	mine, err := env.requests.ListByRequester(context.Background(), "cust-1")
	if err != nil {
		t.Fatalf("ListByRequester failed: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("expected 2 requests, got %d", len(mine))
	}

	_, err = env.requests.ListByRequester(context.Background(), "")
	requireKind(t, err, primary.ErrInvalidInput)
}

func TestGetRequest_NotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.requests.GetRequest(context.Background(), "REQ-404")
	requireKind(t, err, primary.ErrNotFound)
}

func TestSetStatus_RefusedOutsideLifecycle(t *testing.T) {
	env := newTestEnv(t)
	req := env.newRequest(t, "")

	err := env.requests.SetStatus(context.Background(), req.ID, "completed")
	requireKind(t, err, primary.ErrInvalidTransition)
	if status, ok := primary.CurrentStatus(err); !ok || status != "new" {
		t.Errorf("expected current status new, got %q", status)
	}
	if got := env.requestStatus(t, req.ID); got != "new" {
		t.Errorf("expected request untouched, got %q", got)
	}
}

func TestSetStatus_InLifecycleScope(t *testing.T) {
	env := newTestEnv(t)
	req := env.newRequest(t, "")
	ctx := ctxutil.WithLifecycleScope(context.Background())

	if err := env.requests.SetStatus(ctx, req.ID, "in_progress"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if err := env.requests.SetStatus(ctx, req.ID, "in_progress"); err != nil {
		t.Errorf("same status should be a no-op, got %v", err)
	}

	err := env.requests.SetStatus(ctx, req.ID, "accepted")
	requireKind(t, err, primary.ErrInvalidTransition)

	err = env.requests.SetStatus(ctx, req.ID, "archived")
	requireKind(t, err, primary.ErrInvalidInput)

	if err := env.requests.SetStatus(ctx, req.ID, "completed"); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	err = env.requests.SetStatus(ctx, req.ID, "cancelled")
	requireKind(t, err, primary.ErrInvalidTransition)
}
