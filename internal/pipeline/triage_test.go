package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepnetlabs/mailtriage/internal/model"
)

func benignFindings() (*model.HeaderFinding, *model.BehavioralFinding, *model.IntentFinding) {
	header := &model.HeaderFinding{
		SPFPass:           model.AuthPass,
		DKIMPass:          model.AuthPass,
		DMARCPass:         model.AuthPass,
		SenderDomainMatch: model.TriYes,
		ReplyToMismatch:   model.TriNo,
		SuspiciousRouting: model.TriNo,
		Summary:           "Clean headers.",
	}
	behavioral := &model.BehavioralFinding{
		UrgencyLevel:             model.UrgencyNone,
		EmotionalPressure:        model.PressureNone,
		SocialEngineeringPattern: model.PatternNone,
		CallToAction:             model.TriNo,
		Summary:                  "No pressure tactics.",
	}
	intent := &model.IntentFinding{
		Intent:                 model.IntentInformational,
		FinancialRequest:       model.TriNo,
		CredentialRequest:      model.TriNo,
		AuthorityImpersonation: model.TriNo,
		Summary:                "Routine information.",
	}
	return header, behavioral, intent
}

func TestTriage_ParsesVerdict(t *testing.T) {
	header, behavioral, intent := benignFindings()
	client := &scriptedClient{responses: []string{
		`{"category": "phishing", "reason": "dkim_pass=fail with credential request", "confidence": 0.9}`,
	}}

	verdict, _, err := Triage(context.Background(), model.EmailRecord{From: "a@b.test"}, header, behavioral, intent, client, testStageConfig())
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPhishing, verdict.Category)
	assert.Equal(t, "dkim_pass=fail with credential request", verdict.Reason)
	assert.InDelta(t, 0.9, verdict.Confidence, 1e-9)
}

func TestTriage_InvalidCategoryIsRetriedAsSchemaError(t *testing.T) {
	header, behavioral, intent := benignFindings()
	client := &scriptedClient{responses: []string{
		`{"category": "Malvertising", "reason": "bad", "confidence": 0.5}`,
		`{"category": "Other Suspicious", "reason": "suspicious_routing=yes", "confidence": 0.6}`,
	}}

	verdict, _, err := Triage(context.Background(), model.EmailRecord{}, header, behavioral, intent, client, testStageConfig())
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, model.CategoryOtherSuspicious, verdict.Category)
}

func TestTriage_InvalidCategoryExhaustsRetries(t *testing.T) {
	header, behavioral, intent := benignFindings()
	client := &scriptedClient{responses: []string{
		`{"category": "Malvertising", "reason": "bad", "confidence": 0.5}`,
	}}

	_, _, err := Triage(context.Background(), model.EmailRecord{}, header, behavioral, intent, client, testStageConfig())
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.Equal(t, testStageConfig().Retry.MaxAttempts, client.calls)
}

func TestTriage_SimulationOverrideWinsOverInference(t *testing.T) {
	header, behavioral, intent := benignFindings()
	header.SecurityAwarenessDetected = true

	// Inference insists on Phishing; the code path must still land on
	// Security Awareness.
	client := &scriptedClient{responses: []string{
		`{"category": "Phishing", "reason": "urgent credential request", "confidence": 0.4}`,
	}}

	verdict, _, err := Triage(context.Background(), model.EmailRecord{}, header, behavioral, intent, client, testStageConfig())
	require.NoError(t, err)
	assert.Equal(t, model.CategorySecurityAwareness, verdict.Category)
	assert.Contains(t, verdict.Reason, "awareness")
	assert.GreaterOrEqual(t, verdict.Confidence, 0.9)
}

func TestTriage_ClampsConfidence(t *testing.T) {
	header, behavioral, intent := benignFindings()
	client := &scriptedClient{responses: []string{
		`{"category": "Benign", "reason": "spf_pass=pass", "confidence": 1.7}`,
	}}

	verdict, _, err := Triage(context.Background(), model.EmailRecord{}, header, behavioral, intent, client, testStageConfig())
	require.NoError(t, err)
	assert.Equal(t, 1.0, verdict.Confidence)
}

func TestTriage_EmptyReasonGetsFallback(t *testing.T) {
	header, behavioral, intent := benignFindings()
	intent.Intent = model.IntentFinancialFraud
	client := &scriptedClient{responses: []string{
		`{"category": "CEO Fraud", "reason": "", "confidence": 0.85}`,
	}}

	verdict, _, err := Triage(context.Background(), model.EmailRecord{}, header, behavioral, intent, client, testStageConfig())
	require.NoError(t, err)
	assert.Contains(t, verdict.Reason, "intent=financial_fraud")
}

func TestFallbackReason_NamesConcreteSignal(t *testing.T) {
	header, behavioral, intent := benignFindings()

	behavioral.UrgencyLevel = model.UrgencyHigh
	assert.Contains(t, fallbackReason(model.CategoryOtherSuspicious, header, behavioral, intent), "urgency_level=high")

	behavioral.UrgencyLevel = model.UrgencyNone
	header.DMARCPass = model.AuthFail
	assert.Contains(t, fallbackReason(model.CategorySpam, header, behavioral, intent), "dmarc_pass=fail")

	header.DMARCPass = model.AuthPass
	header.ListUnsubscribePresent = true
	assert.Contains(t, fallbackReason(model.CategoryMarketing, header, behavioral, intent), "list_unsubscribe_present=true")

	header.ListUnsubscribePresent = false
	got := fallbackReason(model.CategoryBenign, header, behavioral, intent)
	assert.Contains(t, got, "spf_pass=pass")
	assert.Contains(t, got, "intent=informational")
}

func TestRenderFindings_IncludesAllStageSignals(t *testing.T) {
	header, behavioral, intent := benignFindings()
	header.EngineSummary = "URLs:\n- https://a.test: alpha=clean\n"

	rendered := renderFindings(model.EmailRecord{From: "a@b.test", Subject: "Hello"}, header, behavioral, intent)
	assert.Contains(t, rendered, "spf_pass=pass")
	assert.Contains(t, rendered, "urgency_level=none")
	assert.Contains(t, rendered, "intent=informational")
	assert.Contains(t, rendered, "https://a.test")
}
