// Package triage contains the pure safety state machine for an advisory
// conversation. The classifier only proposes; Machine decides.
// This is part of the Functional Core - no I/O, only pure functions.
package triage

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// State is the safety state of a conversation.
type State string

const (
	StateEmergency        State = "emergency"
	StateDiagnostic       State = "diagnostic"
	StateCategory1        State = "category1"
	StateEscalationLocked State = "escalation_locked"
)

// ParseState converts classifier or stored input into a State.
func ParseState(s string) (State, error) {
	st := State(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StateEmergency, StateDiagnostic, StateCategory1, StateEscalationLocked:
		return st, nil
	case "locked", "escalation":
		return StateEscalationLocked, nil
	case "category_1", "diy":
		return StateCategory1, nil
	}
	return "", fmt.Errorf("unknown triage state %q", s)
}

// caution orders states from least to most cautious.
var caution = map[State]int{
	StateCategory1:        0,
	StateDiagnostic:       1,
	StateEscalationLocked: 2,
	StateEmergency:        3,
}

// Category is the severity class: 1 self-fix, 2 mitigation only, 3 professional required.
// Zero means not yet classified.
type Category int

const (
	CategoryNone Category = 0
	Category1    Category = 1
	Category2    Category = 2
	Category3    Category = 3
)

// Emergency indicators. Any one of them forces StateEmergency.
const (
	IndicatorUncontrolledWater  = "uncontrolled_water_flow"
	IndicatorGasOdor            = "gas_odor"
	IndicatorSewageBackup       = "sewage_backup"
	IndicatorWaterNearElectrics = "water_near_electrics"
	IndicatorStructuralSagging  = "structural_sagging"
)

// Risk indicators. Any one of them forces StateEscalationLocked.
const (
	RiskPowerTools            = "power_tools"
	RiskConcealedLeak         = "concealed_leak"
	RiskSpecializedParts      = "specialized_parts"
	RiskHiddenDamage          = "hidden_damage"
	RiskStructuralInvolvement = "structural_involvement"
	RiskBeyondBasicTooling    = "beyond_basic_tooling"
	RiskUnclassified          = "unclassified_risk"
)

// Conversation is the triage state of one conversation.
type Conversation struct {
	State       State
	Category    Category
	LockFactors []string // risk factors that put the conversation into the lock
	Summary     string
	Turns       int
}

// New returns the entry state of a conversation.
func New() Conversation {
	return Conversation{State: StateDiagnostic}
}

// Proposal is the classifier's untrusted advice for one turn.
type Proposal struct {
	State               State
	Category            Category
	Confidence          float64
	EmergencyIndicators []string
	RiskIndicators      []string
	FollowUpQuestions   []string
	Response            string
	Summary             string
}

// Override carries new objective evidence against an escalation lock.
// Cleared names every lock factor the evidence rules out.
type Override struct {
	Evidence string
	Cleared  []string
}

// Decision is the machine's verdict on a proposal or override.
type Decision struct {
	Next     Conversation
	Accepted bool
	Reason   string
}

// Changed reports whether the state moved.
func (d Decision) Changed(prev Conversation) bool {
	return d.Next.State != prev.State || d.Next.Category != prev.Category
}

// Machine applies the legality filter to classifier proposals.
type Machine struct {
	ConfidenceFloor float64
	SummaryLimit    int
}

// Apply decides the next conversation state from a proposal.
// Rules:
// - Emergency is absorbing for the rest of the conversation
// - Any emergency indicator moves to Emergency from any state
// - Any risk indicator, category 2/3 or a locked proposal moves to EscalationLocked
// - EscalationLocked never relaxes without an Override
// - Category1 needs zero risk indicators, category 1 and enough confidence
// - Low confidence never relaxes the current state
// - The running summary gains one line per turn, trimmed from the head
func (m Machine) Apply(c Conversation, p Proposal) Decision {
	next := c
	next.Turns++
	next.Summary = m.nextSummary(c.Summary, p.Summary)
	next.LockFactors = slices.Clone(c.LockFactors)

	if c.State == StateEmergency {
		next.Category = maxCategory(c.Category, p.Category)
		if p.State != "" && p.State != StateEmergency {
			return Decision{Next: next, Reason: "emergency stays in effect for this conversation"}
		}
		return Decision{Next: next, Accepted: true}
	}

	if len(p.EmergencyIndicators) > 0 || p.State == StateEmergency {
		next.State = StateEmergency
		next.Category = maxCategory(c.Category, Category3)
		return Decision{Next: next, Accepted: true}
	}

	if len(p.RiskIndicators) > 0 || p.State == StateEscalationLocked || p.Category >= Category2 {
		next.State = StateEscalationLocked
		next.Category = maxCategory(c.Category, maxCategory(p.Category, Category2))
		for _, f := range p.RiskIndicators {
			if !slices.Contains(next.LockFactors, f) {
				next.LockFactors = append(next.LockFactors, f)
			}
		}
		if len(next.LockFactors) == 0 {
			next.LockFactors = append(next.LockFactors, RiskUnclassified)
		}
		return Decision{Next: next, Accepted: true}
	}

	if c.State == StateEscalationLocked {
		return Decision{Next: next, Reason: fmt.Sprintf("escalation lock holds (category %d); new objective evidence is required to relax it", c.Category)}
	}

	switch p.State {
	case StateCategory1:
		if p.Category != Category1 {
			return Decision{Next: next, Reason: "self-fix requires a category 1 classification"}
		}
		if MoreCautious(c.State, StateCategory1) && p.Confidence < m.ConfidenceFloor {
			return Decision{Next: next, Reason: fmt.Sprintf("confidence %.2f is below %.2f", p.Confidence, m.ConfidenceFloor)}
		}
		next.State = StateCategory1
		next.Category = Category1
		return Decision{Next: next, Accepted: true}
	case StateDiagnostic, "":
		next.State = StateDiagnostic
		return Decision{Next: next, Accepted: true}
	}
	return Decision{Next: next, Reason: fmt.Sprintf("unsupported proposal %q", p.State)}
}

// ApplyOverride relaxes an escalation lock when the evidence clears every
// lock factor. Emergency cannot be overridden.
func (m Machine) ApplyOverride(c Conversation, o Override) Decision {
	if c.State != StateEscalationLocked {
		return Decision{Next: c, Reason: fmt.Sprintf("nothing to override while %s", c.State)}
	}
	if strings.TrimSpace(o.Evidence) == "" {
		return Decision{Next: c, Reason: "override requires a description of the new evidence"}
	}
	var remaining []string
	for _, f := range c.LockFactors {
		if !slices.Contains(o.Cleared, f) {
			remaining = append(remaining, f)
		}
	}
	if len(remaining) > 0 {
		return Decision{Next: c, Reason: fmt.Sprintf("evidence does not rule out: %s", strings.Join(remaining, ", "))}
	}
	next := c
	next.State = StateDiagnostic
	next.Category = CategoryNone
	next.LockFactors = nil
	next.Summary = m.nextSummary(c.Summary, "Override: "+strings.TrimSpace(o.Evidence))
	return Decision{Next: next, Accepted: true}
}

// Fallback is the proposal used when the classifier cannot answer.
func Fallback(response string) Proposal {
	return Proposal{
		State:          StateEscalationLocked,
		Category:       Category3,
		Confidence:     0,
		RiskIndicators: []string{RiskUnclassified},
		Response:       response,
	}
}

// MoreCautious reports whether a is strictly more cautious than b.
func MoreCautious(a, b State) bool {
	return caution[a] > caution[b]
}

// ShouldOfferProvider reports whether the conversation should surface the
// request-a-provider prompt.
func ShouldOfferProvider(c Conversation, minExchanges int) bool {
	if c.State == StateEmergency || c.State == StateEscalationLocked {
		return true
	}
	return c.Turns >= minExchanges
}

// AllowsProcedure reports whether repair steps may be shown to the user.
func AllowsProcedure(s State) bool {
	return s == StateCategory1
}

func (m Machine) nextSummary(prev, update string) string {
	update = strings.TrimSpace(update)
	if update == "" {
		return prev
	}
	return AppendSummary(prev, update, m.SummaryLimit)
}

// BoundSummary keeps the last limit runes of s. Zero or negative limits
// leave s unchanged.
func BoundSummary(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-limit:])
}

// AppendSummary adds a line to the running summary and bounds the result.
func AppendSummary(prev, line string, limit int) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return BoundSummary(prev, limit)
	}
	if prev == "" {
		return BoundSummary(line, limit)
	}
	return BoundSummary(prev+"\n"+line, limit)
}

func maxCategory(a, b Category) Category {
	if a > b {
		return a
	}
	return b
}
