package classifier

import (
	"context"
	"slices"
	"strings"

	"github.com/example/tradeflow/internal/core/triage"
	"github.com/example/tradeflow/internal/ports/secondary"
)

// StaticClassifier is the offline classifier. It spots a handful of obvious
// emergency phrases and otherwise keeps asking diagnostic questions.
type StaticClassifier struct{}

// NewStaticClassifier creates a StaticClassifier.
func NewStaticClassifier() *StaticClassifier {
	return &StaticClassifier{}
}

var emergencyPhrases = map[string]string{
	"smell gas":          triage.IndicatorGasOdor,
	"smell of gas":       triage.IndicatorGasOdor,
	"gas smell":          triage.IndicatorGasOdor,
	"rotten egg":         triage.IndicatorGasOdor,
	"sewage":             triage.IndicatorSewageBackup,
	"won't stop":         triage.IndicatorUncontrolledWater,
	"flooding":           triage.IndicatorUncontrolledWater,
	"electrical outlet":  triage.IndicatorWaterNearElectrics,
	"sparking":           triage.IndicatorWaterNearElectrics,
	"fuse box":           triage.IndicatorWaterNearElectrics,
	"ceiling is sagging": triage.IndicatorStructuralSagging,
	"sagging ceiling":    triage.IndicatorStructuralSagging,
}

// Classify implements secondary.Classifier.
func (s *StaticClassifier) Classify(ctx context.Context, input secondary.ClassifyInput) (triage.Proposal, error) {
	text := strings.ToLower(input.Intake.Description())
	for _, turn := range input.Window {
		if turn.Role == "user" {
			text += "\n" + strings.ToLower(turn.Content)
		}
	}

	var indicators []string
	for phrase, indicator := range emergencyPhrases {
		if strings.Contains(text, phrase) && !slices.Contains(indicators, indicator) {
			indicators = append(indicators, indicator)
		}
	}
	if len(indicators) > 0 {
		return triage.Proposal{
			State:               triage.StateEmergency,
			Category:            triage.Category3,
			Confidence:          1,
			EmergencyIndicators: indicators,
			Response:            "This sounds like an emergency. Get to safety, shut off the main water supply if you can do so safely, and contact a professional now.",
			Summary:             "Possible emergency reported.",
		}, nil
	}

	return triage.Proposal{
		State:      triage.StateDiagnostic,
		Confidence: 0.5,
		FollowUpQuestions: []string{
			"Where exactly is the problem located?",
			"Is any water actively leaking right now?",
		},
		Response: "Thanks. A few questions so we can narrow it down: where exactly is the problem, and is any water actively leaking right now?",
		Summary:  "Gathering details about the " + strings.ToLower(input.Intake.IssueType.DisplayName()) + " issue.",
	}, nil
}

var _ secondary.Classifier = (*StaticClassifier)(nil)
