package db

import (
	"database/sql"
	"fmt"
	"time"
)

// SeedFixtures populates the database with development fixtures covering
// every engagement status.
func SeedFixtures(database *sql.DB) error {
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")

	requests := []struct{ id, requester, title, region, date, slots, status string }{
		{"REQ-001", "cust-ada", "Leak", "Camden", "2026-03-14", `["Morning","Afternoon"]`, "new"},
		{"REQ-002", "cust-ada", "Blocked Drain", "Camden", "", `["Flexible"]`, "accepted"},
		{"REQ-003", "cust-bo", "Boiler Issue", "Hackney", "2026-03-20", `["Evening"]`, "in_progress"},
		{"REQ-004", "cust-bo", "Low Water Pressure", "Hackney", "", `["Morning"]`, "completed"},
		{"REQ-005", "cust-cy", "Other", "Islington", "", `[]`, "cancelled"},
	}
	for _, r := range requests {
		var date any
		if r.date != "" {
			date = r.date
		}
		if _, err := database.Exec(
			`INSERT INTO requests (id, requester_id, title, description, region, preferred_date, preferred_time, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.id, r.requester, r.title, r.title+" - fixture", r.region, date, r.slots, r.status, now, now,
		); err != nil {
			return fmt.Errorf("seed requests: %w", err)
		}
	}

	engagements := []struct {
		id, request, provider, requester, status string
		amount                                   any
		reqConfirmed, provConfirmed              int
	}{
		{"ENG-001", "REQ-002", "pro-dan", "cust-ada", "quoted", "95.00", 0, 0},
		{"ENG-002", "REQ-003", "pro-eve", "cust-bo", "in_progress", "240.00", 1, 0},
		{"ENG-003", "REQ-004", "pro-dan", "cust-bo", "completed", "120.00", 1, 1},
		{"ENG-004", "REQ-005", "pro-eve", "cust-cy", "cancelled", nil, 0, 0},
	}
	for _, e := range engagements {
		if _, err := database.Exec(
			`INSERT INTO engagements (id, request_id, provider_id, requester_id, status, quote_amount, requester_confirmed, provider_confirmed, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.id, e.request, e.provider, e.requester, e.status, e.amount, e.reqConfirmed, e.provConfirmed, now, now,
		); err != nil {
			return fmt.Errorf("seed engagements: %w", err)
		}
	}

	if _, err := database.Exec(
		`INSERT INTO engagement_messages (id, engagement_id, sender_id, recipient_id, body, created_at)
		VALUES ('MSG-001', 'ENG-002', 'pro-eve', 'cust-bo', 'On my way, 20 minutes out.', ?)`,
		now,
	); err != nil {
		return fmt.Errorf("seed messages: %w", err)
	}

	return nil
}
