package pipeline

import (
	"context"
	"strings"

	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

const behavioralSystemPrompt = `You are an email security analyst examining the persuasion tactics of a suspicious email.

Grade the time pressure the sender applies, name the emotional lever being pulled, and identify any recognized social-engineering pattern. Judge only from the text you are given. When the evidence is absent, answer "insufficient_data"; when the tactic is simply not used, answer "none". Never omit a field.

Respond with a valid JSON object:
{
  "urgency_level": "insufficient_data|none|low|medium|high",
  "emotional_pressure": "insufficient_data|none|fear|greed|curiosity|authority|sympathy",
  "social_engineering_pattern": "insufficient_data|none|pretexting|baiting|quid_pro_quo|impersonation|scareware",
  "call_to_action": "yes|no|insufficient_data",
  "summary": "<2-3 sentence summary of the behavioral evidence>"
}`

// bodyContextLimit bounds how much of the HTML body is handed to a stage.
const bodyContextLimit = 16000

// AnalyzeBehavioral runs the behavioral analysis stage over the email's
// subject and body text.
func AnalyzeBehavioral(ctx context.Context, email model.EmailRecord, ai anthropic.Client, cfg Config) (*model.BehavioralFinding, anthropic.TokenUsage, error) {
	type rawFinding struct {
		UrgencyLevel             string `json:"urgency_level"`
		EmotionalPressure        string `json:"emotional_pressure"`
		SocialEngineeringPattern string `json:"social_engineering_pattern"`
		CallToAction             string `json:"call_to_action"`
		Summary                  string `json:"summary"`
	}

	raw, usage, err := inferObject[rawFinding](ctx, ai, cfg, "behavioral", behavioralSystemPrompt, renderEmailContext(email), nil)
	if err != nil {
		return nil, usage, err
	}

	finding := model.BehavioralFinding{
		UrgencyLevel:             normalizeMember(raw.UrgencyLevel, model.AllUrgencyLevels(), model.UrgencyInsufficient),
		EmotionalPressure:        normalizeMember(raw.EmotionalPressure, model.AllEmotionalPressures(), model.PressureInsufficient),
		SocialEngineeringPattern: normalizeMember(raw.SocialEngineeringPattern, model.AllSocialEngineeringPatterns(), model.PatternInsufficient),
		CallToAction:             model.NormalizeTriState(raw.CallToAction),
		Summary:                  raw.Summary,
		Email:                    email,
	}

	if err := finding.Validate(); err != nil {
		return nil, usage, &SchemaError{Stage: "behavioral", Err: err}
	}
	return &finding, usage, nil
}

// normalizeMember maps a raw enum string onto a declared member, falling back
// to the insufficient-data sentinel rather than failing the stage on a near
// miss.
func normalizeMember[T ~string](raw string, members []T, fallback T) T {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")
	for _, m := range members {
		if string(m) == normalized {
			return m
		}
	}
	return fallback
}

// renderEmailContext formats the sender line, subject, and bounded body text
// shared by the behavioral and intent stages.
func renderEmailContext(email model.EmailRecord) string {
	var b strings.Builder
	b.WriteString("From: " + email.From)
	if email.SenderName != "" {
		b.WriteString(" (" + email.SenderName + ")")
	}
	b.WriteString("\n")
	if len(email.To) > 0 {
		b.WriteString("To: " + strings.Join(email.To, ", ") + "\n")
	}
	b.WriteString("Subject: " + email.Subject + "\n\nBody:\n")

	body := email.HTMLBody
	if len(body) > bodyContextLimit {
		body = body[:bodyContextLimit] + "\n[body truncated]"
	}
	b.WriteString(body)
	return b.String()
}
