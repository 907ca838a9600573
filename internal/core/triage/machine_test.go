package triage

import (
	"strings"
	"testing"
)

func testMachine() Machine {
	return Machine{ConfidenceFloor: 0.7, SummaryLimit: 40}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name         string
		from         Conversation
		proposal     Proposal
		wantState    State
		wantCategory Category
		wantAccepted bool
	}{
		{
			name:         "emergency indicator from diagnostic",
			from:         New(),
			proposal:     Proposal{State: StateDiagnostic, EmergencyIndicators: []string{IndicatorGasOdor}},
			wantState:    StateEmergency,
			wantCategory: Category3,
			wantAccepted: true,
		},
		{
			name:         "emergency indicator from locked",
			from:         Conversation{State: StateEscalationLocked, Category: Category2, LockFactors: []string{RiskConcealedLeak}},
			proposal:     Proposal{EmergencyIndicators: []string{IndicatorSewageBackup}},
			wantState:    StateEmergency,
			wantCategory: Category3,
			wantAccepted: true,
		},
		{
			name:         "hazard reported stopped keeps emergency",
			from:         Conversation{State: StateEmergency, Category: Category3},
			proposal:     Proposal{State: StateCategory1, Category: Category1, Confidence: 1},
			wantState:    StateEmergency,
			wantCategory: Category3,
		},
		{
			name:         "confident category 1",
			from:         New(),
			proposal:     Proposal{State: StateCategory1, Category: Category1, Confidence: 0.9},
			wantState:    StateCategory1,
			wantCategory: Category1,
			wantAccepted: true,
		},
		{
			name:      "low confidence keeps diagnostic",
			from:      New(),
			proposal:  Proposal{State: StateCategory1, Category: Category1, Confidence: 0.4},
			wantState: StateDiagnostic,
		},
		{
			name:         "low confidence holds category 1",
			from:         Conversation{State: StateCategory1, Category: Category1},
			proposal:     Proposal{State: StateCategory1, Category: Category1, Confidence: 0.4},
			wantState:    StateCategory1,
			wantCategory: Category1,
			wantAccepted: true,
		},
		{
			name:      "category 1 state with no category",
			from:      New(),
			proposal:  Proposal{State: StateCategory1, Confidence: 0.9},
			wantState: StateDiagnostic,
		},
		{
			name:         "risk indicator locks from category 1",
			from:         Conversation{State: StateCategory1, Category: Category1},
			proposal:     Proposal{State: StateCategory1, Category: Category1, Confidence: 0.95, RiskIndicators: []string{RiskPowerTools}},
			wantState:    StateEscalationLocked,
			wantCategory: Category2,
			wantAccepted: true,
		},
		{
			name:         "category 3 locks",
			from:         New(),
			proposal:     Proposal{State: StateDiagnostic, Category: Category3, Confidence: 0.2},
			wantState:    StateEscalationLocked,
			wantCategory: Category3,
			wantAccepted: true,
		},
		{
			name:         "locked category only rises",
			from:         Conversation{State: StateEscalationLocked, Category: Category3, LockFactors: []string{RiskHiddenDamage}},
			proposal:     Proposal{State: StateEscalationLocked, Category: Category2, RiskIndicators: []string{RiskHiddenDamage}},
			wantState:    StateEscalationLocked,
			wantCategory: Category3,
			wantAccepted: true,
		},
		{
			name:         "locked refuses diagnostic",
			from:         Conversation{State: StateEscalationLocked, Category: Category2, LockFactors: []string{RiskConcealedLeak}},
			proposal:     Proposal{State: StateDiagnostic},
			wantState:    StateEscalationLocked,
			wantCategory: Category2,
		},
		{
			name:         "category 1 may become more cautious",
			from:         Conversation{State: StateCategory1, Category: Category1},
			proposal:     Proposal{State: StateDiagnostic},
			wantState:    StateDiagnostic,
			wantCategory: Category1,
			wantAccepted: true,
		},
	}

	m := testMachine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := m.Apply(tt.from, tt.proposal)
			if d.Next.State != tt.wantState {
				t.Errorf("State = %s, want %s (reason: %s)", d.Next.State, tt.wantState, d.Reason)
			}
			if d.Next.Category != tt.wantCategory {
				t.Errorf("Category = %d, want %d", d.Next.Category, tt.wantCategory)
			}
			if d.Accepted != tt.wantAccepted {
				t.Errorf("Accepted = %v, want %v (reason: %s)", d.Accepted, tt.wantAccepted, d.Reason)
			}
			if d.Next.Turns != tt.from.Turns+1 {
				t.Errorf("Turns = %d, want %d", d.Next.Turns, tt.from.Turns+1)
			}
		})
	}
}

func TestStickinessUnderPressure(t *testing.T) {
	safe := []Proposal{
		{State: StateCategory1, Category: Category1, Confidence: 1},
		{State: StateDiagnostic, Confidence: 1},
		{State: StateCategory1, Category: Category1, Confidence: 0.99, Response: "the leak has stopped"},
	}
	starts := []Conversation{
		{State: StateEmergency, Category: Category3},
		{State: StateEscalationLocked, Category: Category2, LockFactors: []string{RiskConcealedLeak}},
	}

	m := testMachine()
	for _, start := range starts {
		t.Run(string(start.State), func(t *testing.T) {
			c := start
			for i := 0; i < 1000; i++ {
				c = m.Apply(c, safe[i%len(safe)]).Next
				if c.State != start.State {
					t.Fatalf("proposal %d moved %s to %s", i, start.State, c.State)
				}
			}
		})
	}
}

func TestApplyOverride(t *testing.T) {
	locked := Conversation{
		State:       StateEscalationLocked,
		Category:    Category2,
		LockFactors: []string{RiskConcealedLeak, RiskPowerTools},
	}
	m := testMachine()

	t.Run("partial evidence is refused", func(t *testing.T) {
		d := m.ApplyOverride(locked, Override{Evidence: "photo shows dry wall cavity", Cleared: []string{RiskConcealedLeak}})
		if d.Accepted || d.Next.State != StateEscalationLocked {
			t.Fatalf("expected refusal, got %+v", d)
		}
		if !strings.Contains(d.Reason, RiskPowerTools) {
			t.Errorf("Reason = %q, want it to name the remaining factor", d.Reason)
		}
	})

	t.Run("empty evidence is refused", func(t *testing.T) {
		d := m.ApplyOverride(locked, Override{Cleared: []string{RiskConcealedLeak, RiskPowerTools}})
		if d.Accepted {
			t.Fatal("expected refusal without evidence")
		}
	})

	t.Run("full evidence relaxes to diagnostic", func(t *testing.T) {
		d := m.ApplyOverride(locked, Override{
			Evidence: "inspection found no leak and the fix needs a hand wrench only",
			Cleared:  []string{RiskConcealedLeak, RiskPowerTools},
		})
		if !d.Accepted || d.Next.State != StateDiagnostic {
			t.Fatalf("expected relaxation, got %+v", d)
		}
		if len(d.Next.LockFactors) != 0 || d.Next.Category != CategoryNone {
			t.Errorf("lock not cleared: %+v", d.Next)
		}
	})

	t.Run("emergency cannot be overridden", func(t *testing.T) {
		d := m.ApplyOverride(Conversation{State: StateEmergency}, Override{Evidence: "water is off", Cleared: []string{IndicatorUncontrolledWater}})
		if d.Accepted || d.Next.State != StateEmergency {
			t.Fatalf("expected refusal, got %+v", d)
		}
	})
}

func TestFallbackLocks(t *testing.T) {
	d := testMachine().Apply(New(), Fallback("try again"))
	if d.Next.State != StateEscalationLocked || d.Next.Category != Category3 {
		t.Errorf("fallback moved to %s/%d, want escalation_locked/3", d.Next.State, d.Next.Category)
	}
}

func TestShouldOfferProvider(t *testing.T) {
	tests := []struct {
		name string
		c    Conversation
		want bool
	}{
		{"fresh diagnostic", Conversation{State: StateDiagnostic, Turns: 1}, false},
		{"enough exchanges", Conversation{State: StateDiagnostic, Turns: 3}, true},
		{"category 1 early", Conversation{State: StateCategory1, Turns: 2}, false},
		{"emergency immediately", Conversation{State: StateEmergency, Turns: 1}, true},
		{"locked immediately", Conversation{State: StateEscalationLocked, Turns: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldOfferProvider(tt.c, 3); got != tt.want {
				t.Errorf("ShouldOfferProvider = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAllowsProcedure(t *testing.T) {
	for _, s := range []State{StateEmergency, StateDiagnostic, StateEscalationLocked} {
		if AllowsProcedure(s) {
			t.Errorf("AllowsProcedure(%s) = true, want false", s)
		}
	}
	if !AllowsProcedure(StateCategory1) {
		t.Error("AllowsProcedure(category1) = false, want true")
	}
}

func TestBoundSummary(t *testing.T) {
	if got := BoundSummary("abcdef", 3); got != "def" {
		t.Errorf("BoundSummary = %q, want def", got)
	}
	if got := BoundSummary("héllo wörld", 5); got != "wörld" {
		t.Errorf("BoundSummary = %q, want wörld", got)
	}
	if got := BoundSummary("short", 0); got != "short" {
		t.Errorf("BoundSummary = %q, want short", got)
	}

	s := AppendSummary("first", "second", 100)
	if s != "first\nsecond" {
		t.Errorf("AppendSummary = %q", s)
	}

	d := testMachine().Apply(New(), Proposal{State: StateDiagnostic, Summary: strings.Repeat("x", 100)})
	if len(d.Next.Summary) != 40 {
		t.Errorf("summary length = %d, want 40", len(d.Next.Summary))
	}
}

func TestRunningSummaryKeepsEarlierTurns(t *testing.T) {
	m := Machine{ConfidenceFloor: 0.7, SummaryLimit: 200}

	d := m.Apply(New(), Proposal{State: StateDiagnostic, Summary: "leak under kitchen sink since Monday"})
	d = m.Apply(d.Next, Proposal{State: StateDiagnostic, Summary: "compression nut is loose"})
	want := "leak under kitchen sink since Monday\ncompression nut is loose"
	if d.Next.Summary != want {
		t.Fatalf("Summary = %q, want %q", d.Next.Summary, want)
	}

	d = m.Apply(d.Next, Proposal{State: StateDiagnostic})
	if d.Next.Summary != want {
		t.Errorf("empty update changed summary to %q", d.Next.Summary)
	}

	locked := d.Next
	locked.State = StateEscalationLocked
	locked.LockFactors = []string{RiskConcealedLeak}
	o := m.ApplyOverride(locked, Override{Evidence: "plumber checked wall", Cleared: []string{RiskConcealedLeak}})
	if !o.Accepted {
		t.Fatalf("override refused: %s", o.Reason)
	}
	if o.Next.Summary != want+"\nOverride: plumber checked wall" {
		t.Errorf("Summary after override = %q", o.Next.Summary)
	}
}

func TestRunningSummaryTrimsFromHead(t *testing.T) {
	m := Machine{ConfidenceFloor: 0.7, SummaryLimit: 30}

	d := m.Apply(New(), Proposal{State: StateDiagnostic, Summary: "leak under kitchen sink"})
	d = m.Apply(d.Next, Proposal{State: StateDiagnostic, Summary: "nut is loose"})
	if n := len([]rune(d.Next.Summary)); n != 30 {
		t.Fatalf("summary length = %d, want 30", n)
	}
	if !strings.HasSuffix(d.Next.Summary, "\nnut is loose") {
		t.Errorf("Summary = %q, want latest line kept", d.Next.Summary)
	}
	if strings.HasPrefix(d.Next.Summary, "leak") {
		t.Errorf("Summary = %q, want head trimmed", d.Next.Summary)
	}
}

func TestMoreCautious(t *testing.T) {
	if !MoreCautious(StateEmergency, StateEscalationLocked) || !MoreCautious(StateDiagnostic, StateCategory1) {
		t.Error("expected emergency > locked and diagnostic > category1")
	}
	if MoreCautious(StateCategory1, StateDiagnostic) || MoreCautious(StateDiagnostic, StateDiagnostic) {
		t.Error("expected category1 and equal states not to be more cautious")
	}
}

func TestParseState(t *testing.T) {
	if s, err := ParseState("Locked"); err != nil || s != StateEscalationLocked {
		t.Errorf("ParseState(Locked) = %s, %v", s, err)
	}
	if _, err := ParseState("calm"); err == nil {
		t.Error("expected error for unknown state")
	}
}
