package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

const reportSystemPrompt = `You are a SOC analyst writing the final incident report for a triaged email.

Only assert facts present in the inputs. Never invent URLs, file hashes, hostnames, or names that do not appear in the material you are given.

Respond with a valid JSON object:
{
  "executive_summary": {
    "verdict": "<one-sentence verdict>",
    "status": "<short status, e.g. 'analysis complete'>"
  },
  "determination": "<narrative determination, 2-4 sentences>",
  "risk_indicators": {
    "observed": ["<indicator observed in the evidence>"],
    "not_observed": ["<indicator checked for but absent>"]
  },
  "evidence_flow": [
    {"label": "<short step label>", "detail": "<what this step found>"}
  ],
  "recommended_actions": {
    "immediate": ["<containment action>"],
    "within_24_hours": ["<follow-up action>"],
    "hardening": ["<preventive action>"]
  },
  "confidence_statement": "<1-2 sentences on the strength and limits of the evidence>"
}

The evidence_flow walks the analysis in order (headers, behavior, intent, triage) and its FINAL step must be the classification itself. For high-risk incidents populate all three action buckets with 2-5 concrete items each; for low-risk incidents leave the immediate bucket empty unless containment is explicitly warranted.`

const actionBucketCap = 5

// BuildReport runs the reporting stage. The inference call writes the
// narrative; post-processing pins every field that upstream stages already
// computed, so the report can never contradict the verdict it documents.
func BuildReport(ctx context.Context, assessment *model.RiskAssessment, ai anthropic.Client, cfg Config) (*model.IncidentReport, anthropic.TokenUsage, error) {
	type rawSummary struct {
		Verdict string `json:"verdict"`
		Status  string `json:"status"`
	}
	type rawStep struct {
		Label  string `json:"label"`
		Detail string `json:"detail"`
	}
	type rawReport struct {
		ExecutiveSummary    rawSummary               `json:"executive_summary"`
		Determination       string                   `json:"determination"`
		RiskIndicators      model.RiskIndicators     `json:"risk_indicators"`
		EvidenceFlow        []rawStep                `json:"evidence_flow"`
		RecommendedActions  model.RecommendedActions `json:"recommended_actions"`
		ConfidenceStatement string                   `json:"confidence_statement"`
	}

	raw, usage, err := inferObject[rawReport](ctx, ai, cfg, "report", reportSystemPrompt, renderAssessment(assessment), nil)
	if err != nil {
		return nil, usage, err
	}

	category := assessment.Verdict.Category
	strength := model.BandEvidence(assessment.Confidence)

	report := model.IncidentReport{
		ExecutiveSummary: model.ExecutiveSummary{
			EmailCategory: category,
			Verdict:       defaultString(raw.ExecutiveSummary.Verdict, assessment.Verdict.Reason),
			RiskLevel:     assessment.RiskLevel,
			Confidence:    assessment.Confidence,
			Status:        defaultString(raw.ExecutiveSummary.Status, "analysis complete"),
		},
		Determination:       defaultString(raw.Determination, assessment.Justification),
		RiskIndicators:      raw.RiskIndicators,
		RecommendedActions:  trimActions(raw.RecommendedActions, assessment),
		EvidenceStrength:    strength,
		ConfidenceStatement: defaultString(raw.ConfidenceStatement, defaultConfidenceStatement(strength, assessment.Confidence)),
	}

	// The final evidence step is always the classification. Steps are
	// renumbered from 1 so consumers can rely on the ordering.
	steps := make([]model.EvidenceStep, 0, len(raw.EvidenceFlow)+1)
	for _, s := range raw.EvidenceFlow {
		if s.Label == "" && s.Detail == "" {
			continue
		}
		steps = append(steps, model.EvidenceStep{Label: s.Label, Detail: s.Detail})
	}
	if n := len(steps); n > 0 && strings.EqualFold(steps[n-1].Label, string(category)) {
		steps[n-1].Label = string(category)
	} else {
		steps = append(steps, model.EvidenceStep{
			Label:  string(category),
			Detail: assessment.Verdict.Reason,
		})
	}
	for i := range steps {
		steps[i].Order = i + 1
	}
	report.EvidenceFlow = steps

	return &report, usage, nil
}

// trimActions enforces the tiered action policy: every bucket is capped, and
// low-risk reports carry no immediate actions unless the justification
// explicitly calls for containment.
func trimActions(actions model.RecommendedActions, assessment *model.RiskAssessment) model.RecommendedActions {
	actions.Immediate = capItems(actions.Immediate)
	actions.Within24Hours = capItems(actions.Within24Hours)
	actions.Hardening = capItems(actions.Hardening)

	if assessment.RiskLevel == model.RiskLow &&
		!strings.Contains(strings.ToLower(assessment.Justification), "contain") {
		actions.Immediate = nil
	}
	return actions
}

func capItems(items []string) []string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		kept = append(kept, it)
		if len(kept) == actionBucketCap {
			break
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// renderAssessment formats the full upstream context as the reporting user
// prompt.
func renderAssessment(a *model.RiskAssessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Email from %s, subject %q.\n\n", a.Email.From, a.Email.Subject)
	fmt.Fprintf(&b, "Triage: category=%s confidence=%.2f\nReason: %s\n\n", a.Verdict.Category, a.Verdict.Confidence, a.Verdict.Reason)
	fmt.Fprintf(&b, "Risk: level=%s confidence=%.2f\nJustification: %s\n\n", a.RiskLevel, a.Confidence, a.Justification)
	fmt.Fprintf(&b, "Features:\n%s", renderFeatures(a.Features))
	return b.String()
}

func defaultConfidenceStatement(strength model.EvidenceStrength, confidence float64) string {
	return fmt.Sprintf("Evidence strength is %s at %.0f%% confidence.", strength, confidence*100)
}

func defaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
