// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// InvalidateEffect tells every session watching the named entities to re-fetch.
// Empty fields are not published.
type InvalidateEffect struct {
	Reason       string // e.g., "quote_submitted", "engagement_cancelled"
	RequestID    string
	EngagementID string
	ProviderID   string
	RequesterID  string
	OpenRequests bool // the set of open requests changed
}

func (e InvalidateEffect) EffectType() string { return "invalidate" }

// NotifyEffect represents a fire-and-forget push notification to one user.
type NotifyEffect struct {
	Recipient string
	Title     string
	Body      string
	Data      map[string]string
}

func (e NotifyEffect) EffectType() string { return "notify" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }

// NoEffect represents an operation that produces no side effects.
type NoEffect struct{}

func (e NoEffect) EffectType() string { return "none" }
