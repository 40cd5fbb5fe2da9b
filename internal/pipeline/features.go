package pipeline

import (
	"strings"

	"github.com/keepnetlabs/mailtriage/internal/model"
)

// ExtractFeatures merges the triage verdict and the three analysis findings
// into a flat feature set. No inference call: the merge is deterministic and
// side-effect-free, and risk scoring depends on it being exact.
func ExtractFeatures(
	email model.EmailRecord,
	verdict *model.TriageVerdict,
	header *model.HeaderFinding,
	behavioral *model.BehavioralFinding,
	intent *model.IntentFinding,
) model.FeatureSet {
	return model.FeatureSet{
		Category:                  verdict.Category,
		TriageConfidence:          verdict.Confidence,
		Intent:                    intent.Intent,
		FinancialRequest:          intent.FinancialRequest,
		CredentialRequest:         intent.CredentialRequest,
		AuthorityImpersonation:    intent.AuthorityImpersonation,
		Urgency:                   behavioral.UrgencyLevel,
		EmotionalPressure:         behavioral.EmotionalPressure,
		SocialEngineeringPattern:  behavioral.SocialEngineeringPattern,
		AuthenticationPassed:      authenticationPassed(header),
		SecurityAwarenessDetected: header.SecurityAwarenessDetected,
		EngineIndicatorsPresent:   email.HasEngineIndicators(),
		AnalysisSummary:           joinSummaries(header.Summary, behavioral.Summary, intent.Summary),

		Email:   email,
		Verdict: *verdict,
	}
}

// authenticationPassed reports whether the authentication picture is clean:
// at least one check passed and none failed.
func authenticationPassed(header *model.HeaderFinding) bool {
	results := []model.AuthResult{header.SPFPass, header.DKIMPass, header.DMARCPass}
	anyPass := false
	for _, r := range results {
		if r == model.AuthFail {
			return false
		}
		if r == model.AuthPass {
			anyPass = true
		}
	}
	return anyPass
}

func joinSummaries(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
