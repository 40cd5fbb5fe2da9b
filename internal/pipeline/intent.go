package pipeline

import (
	"context"

	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

const intentSystemPrompt = `You are an email security analyst determining the purpose of an email.

Decide what the sender is actually trying to achieve, and whether the message asks for money, asks for credentials, or impersonates an authority figure. Judge only from the text you are given. When the evidence is absent, answer "insufficient_data". Never omit a field.

Respond with a valid JSON object:
{
  "intent": "insufficient_data|benign|informational|promotional|credential_theft|financial_fraud|malware_delivery|reconnaissance|extortion",
  "financial_request": "yes|no|insufficient_data",
  "credential_request": "yes|no|insufficient_data",
  "authority_impersonation": "yes|no|insufficient_data",
  "summary": "<2-3 sentence summary of the assessed intent>"
}`

// AnalyzeIntent runs the intent analysis stage over the email's subject and
// body text.
func AnalyzeIntent(ctx context.Context, email model.EmailRecord, ai anthropic.Client, cfg Config) (*model.IntentFinding, anthropic.TokenUsage, error) {
	type rawFinding struct {
		Intent                 string `json:"intent"`
		FinancialRequest       string `json:"financial_request"`
		CredentialRequest      string `json:"credential_request"`
		AuthorityImpersonation string `json:"authority_impersonation"`
		Summary                string `json:"summary"`
	}

	raw, usage, err := inferObject[rawFinding](ctx, ai, cfg, "intent", intentSystemPrompt, renderEmailContext(email), nil)
	if err != nil {
		return nil, usage, err
	}

	finding := model.IntentFinding{
		Intent:                 normalizeMember(raw.Intent, model.AllIntents(), model.IntentInsufficient),
		FinancialRequest:       model.NormalizeTriState(raw.FinancialRequest),
		CredentialRequest:      model.NormalizeTriState(raw.CredentialRequest),
		AuthorityImpersonation: model.NormalizeTriState(raw.AuthorityImpersonation),
		Summary:                raw.Summary,
		Email:                  email,
	}

	if err := finding.Validate(); err != nil {
		return nil, usage, &SchemaError{Stage: "intent", Err: err}
	}
	return &finding, usage, nil
}
