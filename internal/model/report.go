package model

// ExecutiveSummary heads the incident report. Its fields are populated
// verbatim from upstream computed values, never re-derived.
type ExecutiveSummary struct {
	EmailCategory Category  `json:"email_category"`
	Verdict       string    `json:"verdict"`
	RiskLevel     RiskLevel `json:"risk_level"`
	Confidence    float64   `json:"confidence"`
	Status        string    `json:"status"`
}

// EvidenceStep is one numbered step in the report's evidence flow. The final
// step's label equals the triage category exactly.
type EvidenceStep struct {
	Order  int    `json:"order"`
	Label  string `json:"label"`
	Detail string `json:"detail"`
}

// RiskIndicators lists indicators the analysis observed and those it checked
// for but did not observe.
type RiskIndicators struct {
	Observed    []string `json:"observed"`
	NotObserved []string `json:"not_observed"`
}

// RecommendedActions is the three-tier action list. High-risk reports
// populate all buckets; low-risk reports leave Immediate empty unless
// containment is explicitly justified.
type RecommendedActions struct {
	Immediate     []string `json:"immediate"`
	Within24Hours []string `json:"within_24_hours"`
	Hardening     []string `json:"hardening"`
}

// IncidentReport is the terminal artifact of a pipeline run.
type IncidentReport struct {
	ExecutiveSummary    ExecutiveSummary   `json:"executive_summary"`
	Determination       string             `json:"determination"`
	RiskIndicators      RiskIndicators     `json:"risk_indicators"`
	EvidenceFlow        []EvidenceStep     `json:"evidence_flow"`
	RecommendedActions  RecommendedActions `json:"recommended_actions"`
	EvidenceStrength    EvidenceStrength   `json:"evidence_strength"`
	ConfidenceStatement string             `json:"confidence_statement"`
}
