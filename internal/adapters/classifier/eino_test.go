package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/example/tradeflow/internal/core/triage"
	"github.com/example/tradeflow/internal/logging"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// mockModel returns a canned reply and records the prompt it was given.
type mockModel struct {
	reply string
	err   error
	delay time.Duration
	input []*schema.Message
}

func (m *mockModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.input = input
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &schema.Message{Role: schema.Assistant, Content: m.reply}, nil
}

func testInput() secondary.ClassifyInput {
	return secondary.ClassifyInput{
		Current: triage.Conversation{State: triage.StateDiagnostic, Summary: "Leak under sink."},
		Intake: triage.Intake{
			IssueType:   triage.IssueLeak,
			WhenStarted: "Today",
			Fields:      map[string]string{"location": "kitchen"},
		},
		Window: []secondary.ChatTurn{
			{Role: "user", Content: "It drips from the trap"},
			{Role: "assistant", Content: "Is it the slip nut?"},
			{Role: "user", Content: "Yes, I think so"},
		},
	}
}

func TestEinoClassifier_ParsesReply(t *testing.T) {
	m := &mockModel{reply: "Here you go:\n```json\n" + `{
  "state": "category1",
  "category": 1,
  "confidence": 0.9,
  "emergency_indicators": [],
  "risk_indicators": [],
  "follow_up_questions": ["Do you have a wrench?"],
  "response": "Hand-tighten the slip nut.",
  "summary": "Loose slip nut on P-trap."
}` + "\n```"}
	c := NewEinoClassifier(m, time.Second, logging.Discard())

	p, err := c.Classify(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if p.State != triage.StateCategory1 || p.Category != triage.Category1 {
		t.Errorf("unexpected proposal %+v", p)
	}
	if p.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %f", p.Confidence)
	}
	if len(p.FollowUpQuestions) != 1 {
		t.Errorf("expected 1 follow-up, got %v", p.FollowUpQuestions)
	}
}

func TestEinoClassifier_BuildsPrompt(t *testing.T) {
	m := &mockModel{reply: `{"state":"diagnostic","category":0,"confidence":0.5,"response":"ok"}`}
	c := NewEinoClassifier(m, time.Second, logging.Discard())

	if _, err := c.Classify(context.Background(), testInput()); err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(m.input) != 4 {
		t.Fatalf("expected system + 3 window messages, got %d", len(m.input))
	}
	if m.input[0].Role != schema.System {
		t.Errorf("expected system message first, got %s", m.input[0].Role)
	}
	for _, want := range []string{"Issue: Water Leak", "location: kitchen", "state: diagnostic", "Leak under sink."} {
		if !strings.Contains(m.input[0].Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if m.input[2].Role != schema.Assistant {
		t.Errorf("expected assistant turn preserved, got %s", m.input[2].Role)
	}
}

func TestEinoClassifier_FallsBack(t *testing.T) {
	tests := []struct {
		name    string
		model   *mockModel
		timeout time.Duration
		message string
	}{
		{name: "model error", model: &mockModel{err: errors.New("502")}, message: msgFailed},
		{name: "not json", model: &mockModel{reply: "I think it's fine"}, message: msgFailed},
		{name: "unknown state", model: &mockModel{reply: `{"state":"relaxed","category":1,"response":"x"}`}, message: msgFailed},
		{name: "category out of range", model: &mockModel{reply: `{"state":"diagnostic","category":7,"response":"x"}`}, message: msgFailed},
		{name: "empty response", model: &mockModel{reply: `{"state":"diagnostic","category":0}`}, message: msgFailed},
		{name: "timeout", model: &mockModel{delay: time.Second, reply: "{}"}, timeout: 10 * time.Millisecond, message: msgTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			timeout := tt.timeout
			if timeout == 0 {
				timeout = time.Second
			}
			c := NewEinoClassifier(tt.model, timeout, logging.Discard())

			p, err := c.Classify(context.Background(), testInput())
			if err != nil {
				t.Fatalf("expected fallback without error, got %v", err)
			}
			if p.State != triage.StateEscalationLocked || p.Category != triage.Category3 || p.Confidence != 0 {
				t.Errorf("expected cautious fallback, got %+v", p)
			}
			if p.Response != tt.message {
				t.Errorf("expected %q, got %q", tt.message, p.Response)
			}
		})
	}
}

func TestParseProposal_ClampsConfidence(t *testing.T) {
	p, err := parseProposal(`{"state":"locked","category":2,"confidence":3.5,"response":"Call a pro"}`)
	if err != nil {
		t.Fatalf("parseProposal failed: %v", err)
	}
	if p.State != triage.StateEscalationLocked {
		t.Errorf("expected locked alias to parse, got %s", p.State)
	}
	if p.Confidence != 1 {
		t.Errorf("expected confidence clamped to 1, got %f", p.Confidence)
	}
}
