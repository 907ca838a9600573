package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/example/tradeflow/internal/ports/primary"
)

func statusColor(status string) *color.Color {
	switch status {
	case "new", "pending_quote":
		return color.New(color.FgHiBlue)
	case "quoted", "accepted":
		return color.New(color.FgYellow)
	case "in_progress":
		return color.New(color.FgCyan)
	case "completed":
		return color.New(color.FgHiGreen)
	case "cancelled", "declined":
		return color.New(color.FgRed)
	}
	return color.New(color.Reset)
}

func colorStatus(status string) string {
	return statusColor(status).Sprint(strings.ToUpper(status))
}

func printRequest(w io.Writer, r *primary.Request) {
	fmt.Fprintf(w, "%s  %s  %s\n", color.New(color.Bold).Sprint(r.ID), colorStatus(r.Status), r.Title)
	fmt.Fprintf(w, "  Requester: %s\n", r.RequesterID)
	if r.Region != "" {
		fmt.Fprintf(w, "  Region:    %s\n", r.Region)
	}
	if r.PreferredDate != "" {
		fmt.Fprintf(w, "  Date:      %s\n", r.PreferredDate)
	}
	if len(r.PreferredTime) > 0 {
		fmt.Fprintf(w, "  Times:     %s\n", strings.Join(r.PreferredTime, ", "))
	}
	if r.Description != "" {
		fmt.Fprintf(w, "  %s\n", r.Description)
	}
	if r.AdvisoryTranscript != "" {
		fmt.Fprintln(w, color.New(color.Faint).Sprint("  (advisory transcript attached)"))
	}
}

func printRequestRow(w io.Writer, r *primary.Request) {
	fmt.Fprintf(w, "%-10s %-22s %-12s %s\n", r.ID, colorStatus(r.Status), r.Region, r.Title)
}

func printEngagement(w io.Writer, e *primary.Engagement) {
	fmt.Fprintf(w, "%s  %s  request %s\n", color.New(color.Bold).Sprint(e.ID), colorStatus(e.Status), e.RequestID)
	fmt.Fprintf(w, "  Provider:  %s\n", e.ProviderID)
	fmt.Fprintf(w, "  Requester: %s\n", e.RequesterID)
	if e.QuoteAmount.Valid {
		fmt.Fprintf(w, "  Quote:     £%s\n", e.QuoteAmount.Decimal.StringFixed(2))
	}
	if e.ScheduledDate != "" || e.ScheduledTime != "" {
		fmt.Fprintf(w, "  Scheduled: %s %s\n", e.ScheduledDate, e.ScheduledTime)
	}
	if e.Status == "in_progress" || e.Status == "completed" {
		fmt.Fprintf(w, "  Confirmed: requester %s, provider %s\n", tick(e.RequesterConfirmed), tick(e.ProviderConfirmed))
	}
	if e.CancelReason != "" {
		fmt.Fprintf(w, "  Reason:    %s\n", e.CancelReason)
	}
}

func printEngagementRow(w io.Writer, e *primary.Engagement) {
	quote := "-"
	if e.QuoteAmount.Valid {
		quote = "£" + e.QuoteAmount.Decimal.StringFixed(2)
	}
	fmt.Fprintf(w, "%-10s %-24s %-10s %-12s %s\n", e.ID, colorStatus(e.Status), e.RequestID, e.ProviderID, quote)
}

func printView(w io.Writer, v *primary.EngagementView) {
	printEngagement(w, v.Engagement)
	fmt.Fprintf(w, "  Job:       %s\n", v.Request.Title)
	fmt.Fprintf(w, "\n  You are the %s. Phase: %s\n", v.Role, color.New(color.FgHiMagenta).Sprint(v.Phase))
	switch {
	case v.WaitingOnYou:
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("  Waiting on you."))
	case v.WaitingOnOther:
		fmt.Fprintf(w, "  Waiting on the %s.\n", v.CounterpartyLabel)
	}
	if len(v.Actions) > 0 {
		fmt.Fprintf(w, "  Next:      %s\n", strings.Join(v.Actions, ", "))
	}
}

func printMessage(w io.Writer, m *primary.Message, me string) {
	who := m.SenderID
	if who == me {
		who = color.New(color.FgHiMagenta).Sprint("you")
	}
	unread := ""
	if !m.Read && m.RecipientID == me {
		unread = color.New(color.FgYellow).Sprint(" ●")
	}
	fmt.Fprintf(w, "%s  %s%s: %s\n", formatTimestamp(m.CreatedAt), who, unread, m.Body)
}

func printLogEntry(w io.Writer, entry *primary.LogEntry) {
	actor := entry.ActorID
	if actor == "" {
		actor = "-"
	}
	fmt.Fprintf(w, "%s | %-12s | %s %s | %s/%s",
		formatTimestamp(entry.CreatedAt),
		actor,
		actionIcon(entry.Action),
		entry.Action,
		entry.EntityType,
		entry.EntityID,
	)
	if entry.Action == "update" && entry.FieldName != "" {
		fmt.Fprintf(w, " | %s: %s -> %s", entry.FieldName, entry.OldValue, entry.NewValue)
	}
	fmt.Fprintln(w)
}

func actionIcon(action string) string {
	switch action {
	case "create":
		return "+"
	case "update":
		return "~"
	default:
		return "?"
	}
}

func tick(b bool) string {
	if b {
		return color.New(color.FgHiGreen).Sprint("✓")
	}
	return "✗"
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
