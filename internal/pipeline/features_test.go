package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keepnetlabs/mailtriage/internal/model"
)

func TestExtractFeatures_MergesExactly(t *testing.T) {
	email := model.EmailRecord{
		ID: "email-1",
		URLs: []model.ScannedURL{
			{URL: "https://evil.test", Verdicts: []model.ScanVerdict{
				{Engine: "alpha", Result: model.ScanResultMalicious},
			}},
		},
	}
	verdict := &model.TriageVerdict{Category: model.CategoryPhishing, Reason: "dkim fail", Confidence: 0.82}
	header := &model.HeaderFinding{
		SPFPass:  model.AuthPass,
		DKIMPass: model.AuthFail,
		Summary:  "DKIM failed.",
	}
	behavioral := &model.BehavioralFinding{
		UrgencyLevel:             model.UrgencyHigh,
		EmotionalPressure:        model.PressureFear,
		SocialEngineeringPattern: model.PatternImpersonation,
		Summary:                  "Heavy pressure.",
	}
	intent := &model.IntentFinding{
		Intent:                 model.IntentCredentialTheft,
		FinancialRequest:       model.TriNo,
		CredentialRequest:      model.TriYes,
		AuthorityImpersonation: model.TriYes,
		Summary:                "Asks for a login.",
	}

	features := ExtractFeatures(email, verdict, header, behavioral, intent)

	assert.Equal(t, model.CategoryPhishing, features.Category)
	assert.InDelta(t, 0.82, features.TriageConfidence, 1e-9)
	assert.Equal(t, model.IntentCredentialTheft, features.Intent)
	assert.Equal(t, model.TriNo, features.FinancialRequest)
	assert.Equal(t, model.TriYes, features.CredentialRequest)
	assert.Equal(t, model.TriYes, features.AuthorityImpersonation)
	assert.Equal(t, model.UrgencyHigh, features.Urgency)
	assert.Equal(t, model.PressureFear, features.EmotionalPressure)
	assert.Equal(t, model.PatternImpersonation, features.SocialEngineeringPattern)
	assert.False(t, features.AuthenticationPassed)
	assert.True(t, features.EngineIndicatorsPresent)
	assert.Equal(t, "DKIM failed. Heavy pressure. Asks for a login.", features.AnalysisSummary)
	assert.Equal(t, "email-1", features.Email.ID)
	assert.Equal(t, *verdict, features.Verdict)
}

func TestAuthenticationPassed(t *testing.T) {
	tests := []struct {
		name             string
		spf, dkim, dmarc model.AuthResult
		want             bool
	}{
		{"all pass", model.AuthPass, model.AuthPass, model.AuthPass, true},
		{"one pass rest insufficient", model.AuthPass, model.AuthInsufficient, model.AuthInsufficient, true},
		{"any fail wins", model.AuthPass, model.AuthPass, model.AuthFail, false},
		{"all insufficient", model.AuthInsufficient, model.AuthInsufficient, model.AuthInsufficient, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := &model.HeaderFinding{SPFPass: tt.spf, DKIMPass: tt.dkim, DMARCPass: tt.dmarc}
			assert.Equal(t, tt.want, authenticationPassed(header))
		})
	}
}

func TestJoinSummaries_SkipsEmpty(t *testing.T) {
	assert.Equal(t, "a b", joinSummaries("a", "  ", "b", ""))
	assert.Empty(t, joinSummaries("", "  "))
}
