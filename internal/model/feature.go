package model

// FeatureSet is the deterministic flattening of the triage verdict and the
// three analysis findings. No inference call produces it; it is pure data
// transformation, and risk scoring depends on the merge being exact.
type FeatureSet struct {
	Category                  Category                 `json:"category"`
	TriageConfidence          float64                  `json:"triage_confidence"`
	Intent                    Intent                   `json:"intent"`
	FinancialRequest          TriState                 `json:"financial_request"`
	CredentialRequest         TriState                 `json:"credential_request"`
	AuthorityImpersonation    TriState                 `json:"authority_impersonation"`
	Urgency                   UrgencyLevel             `json:"urgency"`
	EmotionalPressure         EmotionalPressure        `json:"emotional_pressure"`
	SocialEngineeringPattern  SocialEngineeringPattern `json:"social_engineering_pattern"`
	AuthenticationPassed      bool                     `json:"authentication_passed"`
	SecurityAwarenessDetected bool                     `json:"security_awareness_detected"`
	EngineIndicatorsPresent   bool                     `json:"engine_indicators_present"`
	AnalysisSummary           string                   `json:"analysis_summary"`

	Email   EmailRecord   `json:"-"`
	Verdict TriageVerdict `json:"-"`
}

// RiskLevel is the assessed risk tier.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// AllRiskLevels lists the declared risk levels.
func AllRiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh}
}

// RiskAssessment is the risk stage output. Confidence is on [0,1].
// HumanReviewRequired is set deterministically when a high risk level is
// paired with low confidence.
type RiskAssessment struct {
	RiskLevel           RiskLevel `json:"risk_level"`
	Confidence          float64   `json:"confidence"`
	Justification       string    `json:"justification"`
	HumanReviewRequired bool      `json:"human_review_required,omitempty"`

	Email    EmailRecord   `json:"-"`
	Verdict  TriageVerdict `json:"-"`
	Features FeatureSet    `json:"-"`
}

// EvidenceStrength bands a confidence value for the report's
// confidence-limitations statement.
type EvidenceStrength string

const (
	EvidenceStrong   EvidenceStrength = "strong"
	EvidenceModerate EvidenceStrength = "moderate"
	EvidenceLimited  EvidenceStrength = "limited"
)

// BandEvidence maps a [0,1] confidence onto the evidence-strength bands:
// strong at 0.8 and above, moderate at 0.55 and above, limited below.
func BandEvidence(confidence float64) EvidenceStrength {
	switch {
	case confidence >= 0.8:
		return EvidenceStrong
	case confidence >= 0.55:
		return EvidenceModerate
	default:
		return EvidenceLimited
	}
}
