package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepnetlabs/mailtriage/internal/model"
)

func TestAnalyzeIntent_ParsesFinding(t *testing.T) {
	client := &scriptedClient{responses: []string{`{
		"intent": "financial_fraud",
		"financial_request": "yes",
		"credential_request": "no",
		"authority_impersonation": "yes",
		"summary": "The sender poses as the CFO and asks for a wire transfer."
	}`}}

	finding, _, err := AnalyzeIntent(context.Background(), model.EmailRecord{Subject: "Urgent wire"}, client, testStageConfig())
	require.NoError(t, err)
	assert.Equal(t, model.IntentFinancialFraud, finding.Intent)
	assert.Equal(t, model.TriYes, finding.FinancialRequest)
	assert.Equal(t, model.TriNo, finding.CredentialRequest)
	assert.Equal(t, model.TriYes, finding.AuthorityImpersonation)
	assert.True(t, finding.Intent.Malicious())
}

func TestAnalyzeIntent_UnknownIntentFallsBackToSentinel(t *testing.T) {
	client := &scriptedClient{responses: []string{`{
		"intent": "mischief",
		"financial_request": "no",
		"credential_request": "no",
		"authority_impersonation": "no",
		"summary": "s"
	}`}}

	finding, _, err := AnalyzeIntent(context.Background(), model.EmailRecord{}, client, testStageConfig())
	require.NoError(t, err)
	assert.Equal(t, model.IntentInsufficient, finding.Intent)
}
