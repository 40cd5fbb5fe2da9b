package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/keepnetlabs/mailtriage/internal/model"
	"github.com/keepnetlabs/mailtriage/pkg/anthropic"
)

const headerSystemPrompt = `You are an email security analyst examining raw email headers and pre-computed threat-intelligence scan results.

Assess authentication outcomes (SPF, DKIM, DMARC), sender/domain alignment, Reply-To mismatches, and routing anomalies. Base every finding strictly on the evidence given. When the evidence is absent, answer "insufficient_data". Never guess and never omit a field.

Respond with a valid JSON object:
{
  "spf_pass": "pass|fail|insufficient_data",
  "dkim_pass": "pass|fail|insufficient_data",
  "dmarc_pass": "pass|fail|insufficient_data",
  "sender_domain_match": "yes|no|insufficient_data",
  "reply_to_mismatch": "yes|no|insufficient_data",
  "suspicious_routing": "yes|no|insufficient_data",
  "security_awareness_detected": true|false,
  "list_unsubscribe_present": true|false,
  "summary": "<2-3 sentence summary of the header evidence>"
}`

// simulationMarkers are substrings that identify phishing-simulation or
// awareness-training traffic in header names or values. Matching any of them
// deterministically forces security_awareness_detected.
var simulationMarkers = []string{
	"x-phishing-simulation",
	"x-phish-test",
	"x-simulation",
	"phishing-simulation",
	"security-awareness",
	"awareness-training",
	"gophish",
	"knowbe4",
	"phishme",
	"keepnet",
}

// scanSummaryCap bounds how many scanned items per category are handed to
// the inference call.
const scanSummaryCap = 10

// AnalyzeHeader runs the header analysis stage: one inference call over the
// raw headers plus a bounded scan-verdict summary, followed by deterministic
// overrides for facts knowable directly from the record.
func AnalyzeHeader(ctx context.Context, email model.EmailRecord, ai anthropic.Client, cfg Config) (*model.HeaderFinding, anthropic.TokenUsage, error) {
	engineSummary := SummarizeScanVerdicts(email)

	var b strings.Builder
	b.WriteString("From: " + email.From + "\n")
	if email.SenderName != "" {
		b.WriteString("Sender name: " + email.SenderName + "\n")
	}
	if email.SenderIP != "" {
		b.WriteString("Sender IP: " + email.SenderIP)
		if email.GeoLocation != "" {
			b.WriteString(" (" + email.GeoLocation + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("Subject: " + email.Subject + "\n\nHeaders:\n")
	for _, h := range email.Headers {
		b.WriteString(h.Name + ": " + h.Value + "\n")
	}
	if engineSummary != "" {
		b.WriteString("\nThreat-intel scan summary:\n" + engineSummary)
	}

	type rawFinding struct {
		SPFPass                   string `json:"spf_pass"`
		DKIMPass                  string `json:"dkim_pass"`
		DMARCPass                 string `json:"dmarc_pass"`
		SenderDomainMatch         string `json:"sender_domain_match"`
		ReplyToMismatch           string `json:"reply_to_mismatch"`
		SuspiciousRouting         string `json:"suspicious_routing"`
		SecurityAwarenessDetected bool   `json:"security_awareness_detected"`
		ListUnsubscribePresent    bool   `json:"list_unsubscribe_present"`
		Summary                   string `json:"summary"`
	}

	raw, usage, err := inferObject[rawFinding](ctx, ai, cfg, "header", headerSystemPrompt, b.String(), nil)
	if err != nil {
		return nil, usage, err
	}

	finding := model.HeaderFinding{
		SPFPass:                   model.NormalizeAuthResult(raw.SPFPass),
		DKIMPass:                  model.NormalizeAuthResult(raw.DKIMPass),
		DMARCPass:                 model.NormalizeAuthResult(raw.DMARCPass),
		SenderDomainMatch:         model.NormalizeTriState(raw.SenderDomainMatch),
		ReplyToMismatch:           model.NormalizeTriState(raw.ReplyToMismatch),
		SuspiciousRouting:         model.NormalizeTriState(raw.SuspiciousRouting),
		SecurityAwarenessDetected: raw.SecurityAwarenessDetected,
		ListUnsubscribePresent:    raw.ListUnsubscribePresent,
		EngineSummary:             engineSummary,
		Summary:                   raw.Summary,
		Email:                     email,
	}

	// Deterministic overrides: these facts are directly knowable from the
	// raw record and must not be left to probabilistic judgment.
	if DetectSimulation(email) {
		finding.SecurityAwarenessDetected = true
	}
	if _, ok := email.HeaderValue("List-Unsubscribe"); ok {
		finding.ListUnsubscribePresent = true
	}
	if _, ok := email.HeaderValue("List-Unsubscribe-Post"); ok {
		finding.ListUnsubscribePresent = true
	}

	if err := finding.Validate(); err != nil {
		return nil, usage, &SchemaError{Stage: "header", Err: err}
	}
	return &finding, usage, nil
}

// DetectSimulation reports whether the record carries a simulation or
// awareness-training marker: a known substring in any header name or value,
// or a top-level "Simulation" result from the source system.
func DetectSimulation(email model.EmailRecord) bool {
	if strings.EqualFold(strings.TrimSpace(email.Result), "Simulation") {
		return true
	}
	for _, h := range email.Headers {
		name := strings.ToLower(h.Name)
		value := strings.ToLower(h.Value)
		for _, marker := range simulationMarkers {
			if strings.Contains(name, marker) || strings.Contains(value, marker) {
				return true
			}
		}
	}
	return false
}

// SummarizeScanVerdicts renders the third-party scan verdicts into a bounded
// text block: at most scanSummaryCap items per category, skipping items whose
// only verdicts are engine errors.
func SummarizeScanVerdicts(email model.EmailRecord) string {
	var b strings.Builder

	writeCategory := func(label string, n int, item func(i int) (string, []model.ScanVerdict)) {
		written := 0
		for i := 0; i < n && written < scanSummaryCap; i++ {
			name, verdicts := item(i)
			if len(verdicts) == 0 || errorOnly(verdicts) {
				continue
			}
			if written == 0 {
				b.WriteString(label + ":\n")
			}
			fmt.Fprintf(&b, "- %s: %s\n", name, formatVerdicts(verdicts))
			written++
		}
	}

	writeCategory("URLs", len(email.URLs), func(i int) (string, []model.ScanVerdict) {
		return email.URLs[i].URL, email.URLs[i].Verdicts
	})
	writeCategory("IPs", len(email.IPs), func(i int) (string, []model.ScanVerdict) {
		return email.IPs[i].IP, email.IPs[i].Verdicts
	})
	writeCategory("Attachments", len(email.Attachments), func(i int) (string, []model.ScanVerdict) {
		return email.Attachments[i].FileName, email.Attachments[i].Verdicts
	})

	return b.String()
}

func errorOnly(verdicts []model.ScanVerdict) bool {
	for _, v := range verdicts {
		if v.Result != model.ScanResultError {
			return false
		}
	}
	return true
}

func formatVerdicts(verdicts []model.ScanVerdict) string {
	parts := make([]string, 0, len(verdicts))
	for _, v := range verdicts {
		if v.Result == model.ScanResultError {
			continue
		}
		parts = append(parts, v.Engine+"="+string(v.Result))
	}
	return strings.Join(parts, ", ")
}
