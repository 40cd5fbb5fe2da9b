package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

const riskSystemPrompt = `You are a SOC risk assessor. Given a flat feature set for one triaged email, assign a risk level with a confidence and a justification.

Hard rule: the ABSENCE of technical engine indicators never by itself justifies a low rating. Behavioral and intent signals are independently sufficient to raise risk. Attackers routinely pass automated checks.

Scoring framework, keyed on the triage category:
- Phishing, CEO Fraud, Sextortion: high (confidence 0.80-0.95)
- Malware: high (confidence 0.80-0.95)
- Other Suspicious with authority impersonation, emotional pressure, or a social-engineering pattern: medium or high (confidence 0.60-0.85)
- Spam, Marketing: low (confidence 0.85-0.95)
- Internal, Benign with no red flags: low (confidence 0.90-0.99)
- Security Awareness: low (confidence 0.90-0.99); simulations are not live threats

The justification must cite the specific features that drove the rating.

Respond with a valid JSON object:
{
  "risk_level": "low|medium|high",
  "confidence": <number between 0 and 1>,
  "justification": "<2-4 sentences citing concrete features>"
}`

// humanReviewNote is appended to high-risk low-confidence justifications that
// did not already flag themselves.
const humanReviewNote = "Flagged for human review: high risk assessed at low confidence."

// AssessRisk runs the risk assessment stage over the feature set. Two
// guarantees are enforced in code rather than left to the rubric: a high
// rating at confidence below 0.5 always carries a human-review flag, and a
// low rating on an engine-blind email with authority impersonation plus a
// financial request is escalated to medium.
func AssessRisk(ctx context.Context, features model.FeatureSet, ai anthropic.Client, cfg Config) (*model.RiskAssessment, anthropic.TokenUsage, error) {
	type rawAssessment struct {
		RiskLevel     string  `json:"risk_level"`
		Confidence    float64 `json:"confidence"`
		Justification string  `json:"justification"`
	}

	validate := func(a *rawAssessment) error {
		level := strings.ToLower(strings.TrimSpace(a.RiskLevel))
		for _, l := range model.AllRiskLevels() {
			if string(l) == level {
				return nil
			}
		}
		return eris.Errorf("risk: risk_level %q is not a declared member", a.RiskLevel)
	}

	raw, usage, err := inferObject[rawAssessment](ctx, ai, cfg, "risk", riskSystemPrompt, renderFeatures(features), validate)
	if err != nil {
		return nil, usage, err
	}

	assessment := model.RiskAssessment{
		RiskLevel:     model.RiskLevel(strings.ToLower(strings.TrimSpace(raw.RiskLevel))),
		Confidence:    clamp01(raw.Confidence),
		Justification: strings.TrimSpace(raw.Justification),

		Email:    features.Email,
		Verdict:  features.Verdict,
		Features: features,
	}

	// Engine-blind guard: no engine indicators plus authority impersonation
	// plus a financial request is the canonical engine-blind attack shape. A
	// low rating here would mean the absence of indicators drove the score.
	if !features.EngineIndicatorsPresent &&
		features.AuthorityImpersonation.Bool() &&
		features.FinancialRequest.Bool() &&
		assessment.RiskLevel == model.RiskLow {
		assessment.RiskLevel = model.RiskMedium
		assessment.Justification += " Escalated to medium: authority impersonation combined with a financial request is sufficient to raise risk even though no engine indicators are present."
	}

	if assessment.RiskLevel == model.RiskHigh && assessment.Confidence < 0.5 {
		assessment.HumanReviewRequired = true
		if !strings.Contains(strings.ToLower(assessment.Justification), "human review") {
			assessment.Justification = strings.TrimSpace(assessment.Justification + " " + humanReviewNote)
		}
	}

	return &assessment, usage, nil
}

// renderFeatures formats the feature set as the risk user prompt.
func renderFeatures(f model.FeatureSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "category=%s (triage confidence %.2f)\n", f.Category, f.TriageConfidence)
	fmt.Fprintf(&b, "intent=%s\n", f.Intent)
	fmt.Fprintf(&b, "financial_request=%s credential_request=%s authority_impersonation=%s\n",
		f.FinancialRequest, f.CredentialRequest, f.AuthorityImpersonation)
	fmt.Fprintf(&b, "urgency=%s emotional_pressure=%s social_engineering_pattern=%s\n",
		f.Urgency, f.EmotionalPressure, f.SocialEngineeringPattern)
	fmt.Fprintf(&b, "authentication_passed=%t security_awareness_detected=%t engine_indicators_present=%t\n",
		f.AuthenticationPassed, f.SecurityAwarenessDetected, f.EngineIndicatorsPresent)
	fmt.Fprintf(&b, "\nAnalysis summary: %s\n", f.AnalysisSummary)
	fmt.Fprintf(&b, "Triage reason: %s\n", f.Verdict.Reason)
	return b.String()
}
