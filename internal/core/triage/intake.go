package triage

import (
	"fmt"
	"sort"
	"strings"
)

// IssueType is the structured category a user picks before chatting.
type IssueType string

const (
	IssueLeak        IssueType = "leak"
	IssueClog        IssueType = "clog"
	IssueToilet      IssueType = "toilet"
	IssueFaucet      IssueType = "faucet"
	IssueLowPressure IssueType = "low_pressure"
	IssueNoHotWater  IssueType = "no_hot_water"
	IssueSmell       IssueType = "smell"
	IssueOther       IssueType = "other"
)

var issueNames = map[IssueType]string{
	IssueLeak:        "Water Leak",
	IssueClog:        "Blocked Drain",
	IssueToilet:      "Toilet Issue",
	IssueFaucet:      "Faucet Problem",
	IssueLowPressure: "Low Water Pressure",
	IssueNoHotWater:  "No Hot Water",
	IssueSmell:       "Bad Smell",
	IssueOther:       "Other Issue",
}

var problemTypes = map[IssueType]string{
	IssueLeak:        "Leak",
	IssueClog:        "Blocked Drain",
	IssueFaucet:      "Fixture Installation",
	IssueLowPressure: "Low Water Pressure",
	IssueNoHotWater:  "Boiler Issue",
}

// ParseIssueType converts user input into an IssueType. Unknown values map to other.
func ParseIssueType(s string) IssueType {
	t := IssueType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := issueNames[t]; ok {
		return t
	}
	return IssueOther
}

// DisplayName returns the human label for the issue type.
func (t IssueType) DisplayName() string {
	if n, ok := issueNames[t]; ok {
		return n
	}
	return issueNames[IssueOther]
}

// ProblemType returns the request title used when a conversation is converted.
func (t IssueType) ProblemType() string {
	if p, ok := problemTypes[t]; ok {
		return p
	}
	return "Other"
}

// Intake is the structured form filled in before the conversation starts.
type Intake struct {
	IssueType   IssueType
	WhenStarted string
	Fields      map[string]string
	Photos      []string
}

// Validate checks the intake has what the classifier needs.
func (in Intake) Validate() error {
	if strings.TrimSpace(string(in.IssueType)) == "" {
		return fmt.Errorf("issue type is required")
	}
	if strings.TrimSpace(in.WhenStarted) == "" {
		return fmt.Errorf("onset is required")
	}
	return nil
}

// Summary renders the intake as labelled lines for the classifier prompt.
func (in Intake) Summary() string {
	lines := []string{
		"Issue: " + in.IssueType.DisplayName(),
		"Started: " + in.WhenStarted,
	}
	for _, k := range in.fieldKeys() {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), in.Fields[k]))
	}
	if len(in.Photos) > 0 {
		lines = append(lines, fmt.Sprintf("Photos: %d attached", len(in.Photos)))
	}
	return strings.Join(lines, "\n")
}

// Description renders the intake as the prose description of a request.
func (in Intake) Description() string {
	parts := []string{fmt.Sprintf("%s - started %s.", in.IssueType.DisplayName(), strings.ToLower(in.WhenStarted))}
	for _, k := range in.fieldKeys() {
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ReplaceAll(k, "_", " "), in.Fields[k]))
	}
	return strings.Join(parts, " ")
}

func (in Intake) fieldKeys() []string {
	keys := make([]string, 0, len(in.Fields))
	for k, v := range in.Fields {
		if strings.TrimSpace(v) != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
