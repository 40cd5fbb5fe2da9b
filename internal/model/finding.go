package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Sentinel members shared by the stage enums. Insufficient data means "no
// evidence either way" and is distinct from a negative finding.
const (
	sentinelInsufficient = "insufficient_data"
	sentinelNone         = "none"
)

// AuthResult is the outcome of an email authentication check.
type AuthResult string

const (
	AuthPass         AuthResult = "pass"
	AuthFail         AuthResult = "fail"
	AuthInsufficient AuthResult = sentinelInsufficient
)

// AllAuthResults lists the declared AuthResult members.
func AllAuthResults() []AuthResult {
	return []AuthResult{AuthPass, AuthFail, AuthInsufficient}
}

// TriState is a boolean finding that can also carry the insufficient-data
// sentinel. Stage outputs must never leave a field unset, so "unknown" is a
// first-class member rather than an absent value.
type TriState string

const (
	TriYes          TriState = "yes"
	TriNo           TriState = "no"
	TriInsufficient TriState = sentinelInsufficient
)

// AllTriStates lists the declared TriState members.
func AllTriStates() []TriState {
	return []TriState{TriYes, TriNo, TriInsufficient}
}

// Bool reports whether the finding is affirmatively true.
func (t TriState) Bool() bool { return t == TriYes }

// UrgencyLevel grades time-pressure language in the email.
type UrgencyLevel string

const (
	UrgencyInsufficient UrgencyLevel = sentinelInsufficient
	UrgencyNone         UrgencyLevel = sentinelNone
	UrgencyLow          UrgencyLevel = "low"
	UrgencyMedium       UrgencyLevel = "medium"
	UrgencyHigh         UrgencyLevel = "high"
)

// AllUrgencyLevels lists the declared UrgencyLevel members.
func AllUrgencyLevels() []UrgencyLevel {
	return []UrgencyLevel{UrgencyInsufficient, UrgencyNone, UrgencyLow, UrgencyMedium, UrgencyHigh}
}

// EmotionalPressure names the emotional lever a sender pulls.
type EmotionalPressure string

const (
	PressureInsufficient EmotionalPressure = sentinelInsufficient
	PressureNone         EmotionalPressure = sentinelNone
	PressureFear         EmotionalPressure = "fear"
	PressureGreed        EmotionalPressure = "greed"
	PressureCuriosity    EmotionalPressure = "curiosity"
	PressureAuthority    EmotionalPressure = "authority"
	PressureSympathy     EmotionalPressure = "sympathy"
)

// AllEmotionalPressures lists the declared EmotionalPressure members.
func AllEmotionalPressures() []EmotionalPressure {
	return []EmotionalPressure{
		PressureInsufficient, PressureNone, PressureFear, PressureGreed,
		PressureCuriosity, PressureAuthority, PressureSympathy,
	}
}

// SocialEngineeringPattern names a recognized manipulation pattern.
type SocialEngineeringPattern string

const (
	PatternInsufficient  SocialEngineeringPattern = sentinelInsufficient
	PatternNone          SocialEngineeringPattern = sentinelNone
	PatternPretexting    SocialEngineeringPattern = "pretexting"
	PatternBaiting       SocialEngineeringPattern = "baiting"
	PatternQuidProQuo    SocialEngineeringPattern = "quid_pro_quo"
	PatternImpersonation SocialEngineeringPattern = "impersonation"
	PatternScareware     SocialEngineeringPattern = "scareware"
)

// AllSocialEngineeringPatterns lists the declared pattern members.
func AllSocialEngineeringPatterns() []SocialEngineeringPattern {
	return []SocialEngineeringPattern{
		PatternInsufficient, PatternNone, PatternPretexting, PatternBaiting,
		PatternQuidProQuo, PatternImpersonation, PatternScareware,
	}
}

// Intent is the assessed purpose of the email.
type Intent string

const (
	IntentInsufficient    Intent = sentinelInsufficient
	IntentBenign          Intent = "benign"
	IntentInformational   Intent = "informational"
	IntentPromotional     Intent = "promotional"
	IntentCredentialTheft Intent = "credential_theft"
	IntentFinancialFraud  Intent = "financial_fraud"
	IntentMalwareDelivery Intent = "malware_delivery"
	IntentReconnaissance  Intent = "reconnaissance"
	IntentExtortion       Intent = "extortion"
)

// AllIntents lists the declared Intent members.
func AllIntents() []Intent {
	return []Intent{
		IntentInsufficient, IntentBenign, IntentInformational, IntentPromotional,
		IntentCredentialTheft, IntentFinancialFraud, IntentMalwareDelivery,
		IntentReconnaissance, IntentExtortion,
	}
}

// Malicious reports whether the intent is an attack intent.
func (i Intent) Malicious() bool {
	switch i {
	case IntentCredentialTheft, IntentFinancialFraud, IntentMalwareDelivery,
		IntentReconnaissance, IntentExtortion:
		return true
	default:
		return false
	}
}

// HeaderFinding is the header analysis stage output. Every enum field
// resolves to a declared member; absence of evidence is expressed with the
// insufficient_data sentinel, never a zero value.
type HeaderFinding struct {
	SPFPass                   AuthResult `json:"spf_pass"`
	DKIMPass                  AuthResult `json:"dkim_pass"`
	DMARCPass                 AuthResult `json:"dmarc_pass"`
	SenderDomainMatch         TriState   `json:"sender_domain_match"`
	ReplyToMismatch           TriState   `json:"reply_to_mismatch"`
	SuspiciousRouting         TriState   `json:"suspicious_routing"`
	SecurityAwarenessDetected bool       `json:"security_awareness_detected"`
	ListUnsubscribePresent    bool       `json:"list_unsubscribe_present"`
	EngineSummary             string     `json:"engine_summary"`
	Summary                   string     `json:"summary"`

	// Email carries the original record forward so downstream stages keep
	// sender context without re-fetching.
	Email EmailRecord `json:"-"`
}

// Validate checks that every enum field is a declared member.
func (f HeaderFinding) Validate() error {
	if !validAuth(f.SPFPass) {
		return eris.Errorf("header finding: spf_pass %q is not a declared member", f.SPFPass)
	}
	if !validAuth(f.DKIMPass) {
		return eris.Errorf("header finding: dkim_pass %q is not a declared member", f.DKIMPass)
	}
	if !validAuth(f.DMARCPass) {
		return eris.Errorf("header finding: dmarc_pass %q is not a declared member", f.DMARCPass)
	}
	for name, v := range map[string]TriState{
		"sender_domain_match": f.SenderDomainMatch,
		"reply_to_mismatch":   f.ReplyToMismatch,
		"suspicious_routing":  f.SuspiciousRouting,
	} {
		if !validTri(v) {
			return eris.Errorf("header finding: %s %q is not a declared member", name, v)
		}
	}
	return nil
}

// BehavioralFinding is the behavioral analysis stage output.
type BehavioralFinding struct {
	UrgencyLevel             UrgencyLevel             `json:"urgency_level"`
	EmotionalPressure        EmotionalPressure        `json:"emotional_pressure"`
	SocialEngineeringPattern SocialEngineeringPattern `json:"social_engineering_pattern"`
	CallToAction             TriState                 `json:"call_to_action"`
	Summary                  string                   `json:"summary"`

	Email EmailRecord `json:"-"`
}

// Validate checks that every enum field is a declared member.
func (f BehavioralFinding) Validate() error {
	if !memberOf(string(f.UrgencyLevel), AllUrgencyLevels()) {
		return eris.Errorf("behavioral finding: urgency_level %q is not a declared member", f.UrgencyLevel)
	}
	if !memberOf(string(f.EmotionalPressure), AllEmotionalPressures()) {
		return eris.Errorf("behavioral finding: emotional_pressure %q is not a declared member", f.EmotionalPressure)
	}
	if !memberOf(string(f.SocialEngineeringPattern), AllSocialEngineeringPatterns()) {
		return eris.Errorf("behavioral finding: social_engineering_pattern %q is not a declared member", f.SocialEngineeringPattern)
	}
	if !validTri(f.CallToAction) {
		return eris.Errorf("behavioral finding: call_to_action %q is not a declared member", f.CallToAction)
	}
	return nil
}

// IntentFinding is the intent analysis stage output.
type IntentFinding struct {
	Intent                 Intent   `json:"intent"`
	FinancialRequest       TriState `json:"financial_request"`
	CredentialRequest      TriState `json:"credential_request"`
	AuthorityImpersonation TriState `json:"authority_impersonation"`
	Summary                string   `json:"summary"`

	Email EmailRecord `json:"-"`
}

// Validate checks that every enum field is a declared member.
func (f IntentFinding) Validate() error {
	if !memberOf(string(f.Intent), AllIntents()) {
		return eris.Errorf("intent finding: intent %q is not a declared member", f.Intent)
	}
	for name, v := range map[string]TriState{
		"financial_request":       f.FinancialRequest,
		"credential_request":      f.CredentialRequest,
		"authority_impersonation": f.AuthorityImpersonation,
	} {
		if !validTri(v) {
			return eris.Errorf("intent finding: %s %q is not a declared member", name, v)
		}
	}
	return nil
}

func validAuth(v AuthResult) bool {
	return memberOf(string(v), AllAuthResults())
}

func validTri(v TriState) bool {
	return memberOf(string(v), AllTriStates())
}

func memberOf[T ~string](v string, members []T) bool {
	for _, m := range members {
		if string(m) == v {
			return true
		}
	}
	return false
}

// NormalizeTriState maps loose model output ("true", "unknown", "n/a") onto
// the declared TriState members.
func NormalizeTriState(raw string) TriState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "true", "present", "detected":
		return TriYes
	case "no", "false", "absent", "not_detected", string(sentinelNone):
		return TriNo
	default:
		return TriInsufficient
	}
}

// NormalizeAuthResult maps loose model output onto the declared AuthResult
// members.
func NormalizeAuthResult(raw string) AuthResult {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pass", "passed", "true", "yes":
		return AuthPass
	case "fail", "failed", "false", "no", "softfail":
		return AuthFail
	default:
		return AuthInsufficient
	}
}
