package pipeline

import (
	"context"
	"strings"

	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

// Compile-time interface check.
var _ anthropic.Client = (*StubInferenceClient)(nil)

// StubInferenceClient implements anthropic.Client with canned stage
// responses, keyed off the system prompt. It lets the full pipeline run
// offline: `analyze --offline` and the orchestrator tests both use it.
type StubInferenceClient struct{}

// CreateMessage implements anthropic.Client.
func (s *StubInferenceClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	var system string
	for _, block := range req.System {
		system += block.Text
	}

	var responseText string
	switch stageForSystem(system) {
	case "header":
		responseText = stubHeaderResponse
	case "behavioral":
		responseText = stubBehavioralResponse
	case "intent":
		responseText = stubIntentResponse
	case "triage":
		responseText = stubTriageResponse
	case "risk":
		responseText = stubRiskResponse
	default:
		responseText = stubReportResponse
	}

	return &anthropic.MessageResponse{
		ID:         "stub-msg-001",
		Model:      req.Model,
		Content:    []anthropic.ContentBlock{{Type: "text", Text: responseText}},
		StopReason: "end_turn",
		Usage: anthropic.TokenUsage{
			InputTokens:  150,
			OutputTokens: 50,
		},
	}, nil
}

// stageForSystem identifies the stage from its system prompt. Each prompt
// opens with a distinct role description.
func stageForSystem(system string) string {
	switch {
	case strings.Contains(system, "examining raw email headers"):
		return "header"
	case strings.Contains(system, "persuasion tactics"):
		return "behavioral"
	case strings.Contains(system, "determining the purpose"):
		return "intent"
	case strings.Contains(system, "triage analyst"):
		return "triage"
	case strings.Contains(system, "risk assessor"):
		return "risk"
	default:
		return "report"
	}
}

// --- Canned stage responses ---

const stubHeaderResponse = `{
  "spf_pass": "pass",
  "dkim_pass": "pass",
  "dmarc_pass": "pass",
  "sender_domain_match": "yes",
  "reply_to_mismatch": "no",
  "suspicious_routing": "no",
  "security_awareness_detected": false,
  "list_unsubscribe_present": false,
  "summary": "All authentication checks pass and the routing path is unremarkable."
}`

const stubBehavioralResponse = `{
  "urgency_level": "none",
  "emotional_pressure": "none",
  "social_engineering_pattern": "none",
  "call_to_action": "no",
  "summary": "No time pressure or manipulation tactics are present in the message."
}`

const stubIntentResponse = `{
  "intent": "informational",
  "financial_request": "no",
  "credential_request": "no",
  "authority_impersonation": "no",
  "summary": "The message relays routine information and asks for nothing."
}`

const stubTriageResponse = `{
  "category": "Benign",
  "reason": "spf_pass=pass with intent=informational and no behavioral red flags",
  "confidence": 0.95
}`

const stubRiskResponse = `{
  "risk_level": "low",
  "confidence": 0.95,
  "justification": "Benign category with authentication_passed=true and no urgency, financial, or credential signals."
}`

const stubReportResponse = `{
  "executive_summary": {
    "verdict": "The reported email is a routine informational message.",
    "status": "analysis complete"
  },
  "determination": "Header, behavioral, and intent analysis found no indicators of compromise. Authentication passed and the content carries no request for money or credentials.",
  "risk_indicators": {
    "observed": [],
    "not_observed": ["authentication failure", "urgency language", "financial request", "credential request"]
  },
  "evidence_flow": [
    {"label": "Header analysis", "detail": "SPF, DKIM, and DMARC all pass."},
    {"label": "Behavioral analysis", "detail": "No urgency or emotional pressure."},
    {"label": "Intent analysis", "detail": "Informational content with no requests."},
    {"label": "Benign", "detail": "Classified benign on clean authentication and informational intent."}
  ],
  "recommended_actions": {
    "immediate": [],
    "within_24_hours": ["Close the report and notify the reporter of the outcome."],
    "hardening": ["Continue encouraging users to report suspicious email."]
  },
  "confidence_statement": "Evidence strength is strong; all signals agree."
}`
