package classifier

import (
	"context"
	"slices"
	"testing"

	"github.com/example/tradeflow/internal/core/triage"
	"github.com/example/tradeflow/internal/ports/secondary"
)

func TestStaticClassifier(t *testing.T) {
	tests := []struct {
		name      string
		message   string
		wantState triage.State
		indicator string
	}{
		{name: "gas", message: "I can smell gas near the boiler", wantState: triage.StateEmergency, indicator: triage.IndicatorGasOdor},
		{name: "flooding", message: "The basement is flooding", wantState: triage.StateEmergency, indicator: triage.IndicatorUncontrolledWater},
		{name: "gasket is not gas", message: "The gasket looks worn", wantState: triage.StateDiagnostic},
		{name: "plain drip", message: "It drips slowly", wantState: triage.StateDiagnostic},
	}

	c := NewStaticClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := c.Classify(context.Background(), secondary.ClassifyInput{
				Current: triage.New(),
				Intake:  triage.Intake{IssueType: triage.IssueLeak, WhenStarted: "Today"},
				Window:  []secondary.ChatTurn{{Role: "user", Content: tt.message}},
			})
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if p.State != tt.wantState {
				t.Errorf("expected %s, got %s", tt.wantState, p.State)
			}
			if tt.indicator != "" && !slices.Contains(p.EmergencyIndicators, tt.indicator) {
				t.Errorf("expected indicator %s, got %v", tt.indicator, p.EmergencyIndicators)
			}
			if p.Response == "" {
				t.Error("expected a response")
			}
		})
	}
}
