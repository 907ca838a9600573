// Package classifier implements the triage classifier port.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/example/tradeflow/internal/config"
	"github.com/example/tradeflow/internal/core/triage"
	"github.com/example/tradeflow/internal/ports/secondary"
)

const (
	msgFailed   = "Sorry, something went wrong. Please try again."
	msgTimedOut = "The request timed out. Please try again."
)

// Generator is the part of an eino chat model the classifier calls.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// EinoClassifier asks a chat model for a triage proposal. Any failure
// yields the cautious fallback proposal instead of an error.
type EinoClassifier struct {
	model   Generator
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIModel builds an OpenAI-compatible chat model from config.
func NewOpenAIModel(ctx context.Context, cfg config.ClassifierConfig) (*openai.ChatModel, error) {
	mc := &openai.ChatModelConfig{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		Temperature: toFloat32Ptr(cfg.Temperature),
		MaxTokens:   toIntPtr(cfg.MaxTokens),
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
	if cfg.BaseURL != "" {
		mc.BaseURL = cfg.BaseURL
	}
	return openai.NewChatModel(ctx, mc)
}

// NewEinoClassifier wraps m.
func NewEinoClassifier(m Generator, timeout time.Duration, logger *slog.Logger) *EinoClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EinoClassifier{model: m, timeout: timeout, logger: logger}
}

// Classify implements secondary.Classifier.
func (c *EinoClassifier) Classify(ctx context.Context, input secondary.ClassifyInput) (triage.Proposal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.model.Generate(ctx, buildMessages(input))
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			c.logger.Warn("classifier timed out", "timeout", c.timeout)
			return triage.Fallback(msgTimedOut), nil
		}
		c.logger.Warn("classifier call failed", "error", err)
		return triage.Fallback(msgFailed), nil
	}

	p, err := parseProposal(resp.Content)
	if err != nil {
		c.logger.Warn("classifier reply rejected", "error", err)
		return triage.Fallback(msgFailed), nil
	}
	return p, nil
}

func buildMessages(input secondary.ClassifyInput) []*schema.Message {
	var sb strings.Builder
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n## Intake\n")
	sb.WriteString(input.Intake.Summary())
	fmt.Fprintf(&sb, "\n\n## Current state\nstate: %s\ncategory: %d\n", input.Current.State, input.Current.Category)
	if len(input.Current.LockFactors) > 0 {
		fmt.Fprintf(&sb, "lock factors: %s\n", strings.Join(input.Current.LockFactors, ", "))
	}
	if input.Current.Summary != "" {
		sb.WriteString("\n## Conversation so far\n")
		sb.WriteString(input.Current.Summary)
		sb.WriteString("\n")
	}

	messages := []*schema.Message{schema.SystemMessage(sb.String())}
	for _, turn := range input.Window {
		switch turn.Role {
		case "assistant":
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}
	if len(input.Window) == 0 {
		messages = append(messages, schema.UserMessage(input.Intake.Description()))
	}
	return messages
}

const systemPrompt = `You are a plumbing triage assistant. Assess safety before anything else.

Reply with a single JSON object and nothing else:
{
  "state": "emergency" | "diagnostic" | "category1" | "escalation_locked",
  "category": 0 | 1 | 2 | 3,
  "confidence": number between 0 and 1,
  "emergency_indicators": [string],
  "risk_indicators": [string],
  "follow_up_questions": [string],
  "response": "message shown to the homeowner",
  "summary": "one line describing what this turn established"
}

Emergency indicators: uncontrolled_water_flow, gas_odor, sewage_backup, water_near_electrics, structural_sagging.
Risk indicators: power_tools, concealed_leak, specialized_parts, hidden_damage, structural_involvement, beyond_basic_tooling.
Category 1 means a homeowner can safely fix it with basic tools. Category 2 means mitigation only. Category 3 needs a professional.
Only give step-by-step repair instructions in category1. Never suggest a less cautious state than the current one.`

type reply struct {
	State               string   `json:"state"`
	Category            int      `json:"category"`
	Confidence          float64  `json:"confidence"`
	EmergencyIndicators []string `json:"emergency_indicators"`
	RiskIndicators      []string `json:"risk_indicators"`
	FollowUpQuestions   []string `json:"follow_up_questions"`
	Response            string   `json:"response"`
	Summary             string   `json:"summary"`
}

// parseProposal extracts the JSON object from a model reply. Models tend to
// wrap it in prose or code fences.
func parseProposal(content string) (triage.Proposal, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return triage.Proposal{}, fmt.Errorf("no JSON object in reply")
	}

	var r reply
	if err := json.Unmarshal([]byte(content[start:end+1]), &r); err != nil {
		return triage.Proposal{}, fmt.Errorf("invalid JSON reply: %w", err)
	}

	state, err := triage.ParseState(r.State)
	if err != nil {
		return triage.Proposal{}, err
	}
	if r.Category < 0 || r.Category > 3 {
		return triage.Proposal{}, fmt.Errorf("category %d out of range", r.Category)
	}
	if strings.TrimSpace(r.Response) == "" {
		return triage.Proposal{}, fmt.Errorf("empty response")
	}

	return triage.Proposal{
		State:               state,
		Category:            triage.Category(r.Category),
		Confidence:          clamp(r.Confidence),
		EmergencyIndicators: r.EmergencyIndicators,
		RiskIndicators:      r.RiskIndicators,
		FollowUpQuestions:   r.FollowUpQuestions,
		Response:            strings.TrimSpace(r.Response),
		Summary:             strings.TrimSpace(r.Summary),
	}, nil
}

func clamp(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func toFloat32Ptr(f float64) *float32 {
	v := float32(f)
	return &v
}

func toIntPtr(i int) *int {
	return &i
}

// Ensure EinoClassifier implements the interface
var _ secondary.Classifier = (*EinoClassifier)(nil)
