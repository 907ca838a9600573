package gateway

import (
	"github.com/shopspring/decimal"

	"github.com/example/tradeflow/internal/ports/primary"
)

type requestJSON struct {
	ID                 string   `json:"id"`
	RequesterID        string   `json:"requester_id"`
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	Region             string   `json:"region,omitempty"`
	PreferredDate      string   `json:"preferred_date,omitempty"`
	PreferredTime      []string `json:"preferred_time"`
	ImageRefs          []string `json:"image_refs"`
	AdvisoryTranscript string   `json:"advisory_transcript,omitempty"`
	Status             string   `json:"status"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

func toRequestJSON(r *primary.Request) requestJSON {
	return requestJSON{
		ID:                 r.ID,
		RequesterID:        r.RequesterID,
		Title:              r.Title,
		Description:        r.Description,
		Region:             r.Region,
		PreferredDate:      r.PreferredDate,
		PreferredTime:      nonNil(r.PreferredTime),
		ImageRefs:          nonNil(r.ImageRefs),
		AdvisoryTranscript: r.AdvisoryTranscript,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

type engagementJSON struct {
	ID                 string  `json:"id"`
	RequestID          string  `json:"request_id"`
	ProviderID         string  `json:"provider_id"`
	RequesterID        string  `json:"requester_id"`
	Status             string  `json:"status"`
	QuoteAmount        *string `json:"quote_amount"`
	ScheduledDate      string  `json:"scheduled_date,omitempty"`
	ScheduledTime      string  `json:"scheduled_time,omitempty"`
	RequesterConfirmed bool    `json:"requester_confirmed"`
	ProviderConfirmed  bool    `json:"provider_confirmed"`
	CancelReason       string  `json:"cancel_reason,omitempty"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

func toEngagementJSON(e *primary.Engagement) engagementJSON {
	return engagementJSON{
		ID:                 e.ID,
		RequestID:          e.RequestID,
		ProviderID:         e.ProviderID,
		RequesterID:        e.RequesterID,
		Status:             e.Status,
		QuoteAmount:        amount(e.QuoteAmount),
		ScheduledDate:      e.ScheduledDate,
		ScheduledTime:      e.ScheduledTime,
		RequesterConfirmed: e.RequesterConfirmed,
		ProviderConfirmed:  e.ProviderConfirmed,
		CancelReason:       e.CancelReason,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
}

type engagementViewJSON struct {
	Engagement        engagementJSON `json:"engagement"`
	Request           requestJSON    `json:"request"`
	Role              string         `json:"role"`
	Phase             string         `json:"phase"`
	Actions           []string       `json:"actions"`
	YouConfirmed      bool           `json:"you_confirmed"`
	OtherConfirmed    bool           `json:"other_confirmed"`
	QuoteIsCurrent    bool           `json:"quote_is_current"`
	PreviouslyQuoted  bool           `json:"previously_quoted"`
	WaitingOnYou      bool           `json:"waiting_on_you"`
	WaitingOnOther    bool           `json:"waiting_on_other"`
	CounterpartyLabel string         `json:"counterparty_label"`
}

func toEngagementViewJSON(v *primary.EngagementView) engagementViewJSON {
	return engagementViewJSON{
		Engagement:        toEngagementJSON(v.Engagement),
		Request:           toRequestJSON(v.Request),
		Role:              v.Role,
		Phase:             v.Phase,
		Actions:           nonNil(v.Actions),
		YouConfirmed:      v.YouConfirmed,
		OtherConfirmed:    v.OtherConfirmed,
		QuoteIsCurrent:    v.QuoteIsCurrent,
		PreviouslyQuoted:  v.PreviouslyQuoted,
		WaitingOnYou:      v.WaitingOnYou,
		WaitingOnOther:    v.WaitingOnOther,
		CounterpartyLabel: v.CounterpartyLabel,
	}
}

type messageJSON struct {
	ID           string `json:"id"`
	EngagementID string `json:"engagement_id"`
	SenderID     string `json:"sender_id"`
	RecipientID  string `json:"recipient_id"`
	Body         string `json:"body"`
	Read         bool   `json:"read"`
	CreatedAt    string `json:"created_at"`
}

func toMessageJSON(m *primary.Message) messageJSON {
	return messageJSON{
		ID:           m.ID,
		EngagementID: m.EngagementID,
		SenderID:     m.SenderID,
		RecipientID:  m.RecipientID,
		Body:         m.Body,
		Read:         m.Read,
		CreatedAt:    m.CreatedAt,
	}
}

type intakeJSON struct {
	IssueType   string            `json:"issue_type"`
	WhenStarted string            `json:"when_started"`
	Fields      map[string]string `json:"fields,omitempty"`
	Photos      []string          `json:"photos,omitempty"`
}

type triageMessageJSON struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type conversationJSON struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	Intake        intakeJSON          `json:"intake"`
	State         string              `json:"state"`
	Category      int                 `json:"category"`
	LockFactors   []string            `json:"lock_factors"`
	Summary       string              `json:"summary,omitempty"`
	Turns         int                 `json:"turns"`
	Transcript    []triageMessageJSON `json:"transcript"`
	OfferProvider bool                `json:"offer_provider"`
	SelfFix       bool                `json:"self_fix"`
	CreatedAt     string              `json:"created_at"`
}

func toConversationJSON(c *primary.TriageConversation) conversationJSON {
	transcript := make([]triageMessageJSON, len(c.Transcript))
	for i, m := range c.Transcript {
		transcript[i] = triageMessageJSON{Role: m.Role, Content: m.Content, Timestamp: m.At}
	}
	return conversationJSON{
		ID:     c.ID,
		UserID: c.UserID,
		Intake: intakeJSON{
			IssueType:   c.Intake.IssueType,
			WhenStarted: c.Intake.WhenStarted,
			Fields:      c.Intake.Fields,
			Photos:      c.Intake.Photos,
		},
		State:         c.State,
		Category:      c.Category,
		LockFactors:   nonNil(c.LockFactors),
		Summary:       c.Summary,
		Turns:         c.Turns,
		Transcript:    transcript,
		OfferProvider: c.OfferProvider,
		SelfFix:       c.SelfFix,
		CreatedAt:     c.CreatedAt,
	}
}

type triageReplyJSON struct {
	Conversation      conversationJSON `json:"conversation"`
	Response          string           `json:"response"`
	FollowUpQuestions []string         `json:"follow_up_questions"`
	Accepted          bool             `json:"accepted"`
	Reason            string           `json:"reason,omitempty"`
}

func toTriageReplyJSON(r *primary.TriageReply) triageReplyJSON {
	return triageReplyJSON{
		Conversation:      toConversationJSON(r.Conversation),
		Response:          r.Response,
		FollowUpQuestions: nonNil(r.FollowUpQuestions),
		Accepted:          r.Accepted,
		Reason:            r.Reason,
	}
}

type logEntryJSON struct {
	ID         string `json:"id"`
	ActorID    string `json:"actor_id,omitempty"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	Action     string `json:"action"`
	FieldName  string `json:"field_name,omitempty"`
	OldValue   string `json:"old_value,omitempty"`
	NewValue   string `json:"new_value,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func toLogEntryJSON(l *primary.LogEntry) logEntryJSON {
	return logEntryJSON{
		ID:         l.ID,
		ActorID:    l.ActorID,
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Action:     l.Action,
		FieldName:  l.FieldName,
		OldValue:   l.OldValue,
		NewValue:   l.NewValue,
		CreatedAt:  l.CreatedAt,
	}
}

func amount(a decimal.NullDecimal) *string {
	if !a.Valid {
		return nil
	}
	s := a.Decimal.StringFixed(2)
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, len(in))
	for i, v := range in {
		out[i] = fn(v)
	}
	return out
}
