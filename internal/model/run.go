package model

import "time"

// RunStatus represents the current state of an analysis run.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusFetching  RunStatus = "fetching"
	RunStatusAnalyzing RunStatus = "analyzing"
	RunStatusTriaging  RunStatus = "triaging"
	RunStatusAssessing RunStatus = "assessing"
	RunStatusReporting RunStatus = "reporting"
	RunStatusComplete  RunStatus = "complete"
	RunStatusFailed    RunStatus = "failed"
)

// Run represents a single analysis run for a notified email.
type Run struct {
	ID        string          `json:"id"`
	EmailID   string          `json:"email_id"`
	Status    RunStatus       `json:"status"`
	Report    *IncidentReport `json:"report,omitempty"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// StageStatus represents the current state of a pipeline stage.
type StageStatus string

const (
	StageStatusRunning  StageStatus = "running"
	StageStatusComplete StageStatus = "complete"
	StageStatusFailed   StageStatus = "failed"
	StageStatusDegraded StageStatus = "degraded"
)

// TokenUsage tallies inference tokens consumed by a stage or a whole run.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates usage from another stage.
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// StageResult holds the outcome of one pipeline stage.
type StageResult struct {
	Name       string         `json:"name"`
	Status     StageStatus    `json:"status"`
	Duration   int64          `json:"duration_ms"`
	TokenUsage TokenUsage     `json:"token_usage"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AnalysisResult is the final output of the pipeline orchestrator. On
// failure the report is nil but the run ID and stage history are still
// populated for diagnostics.
type AnalysisResult struct {
	RunID       string          `json:"run_id"`
	EmailID     string          `json:"email_id"`
	Verdict     *TriageVerdict  `json:"verdict,omitempty"`
	Assessment  *RiskAssessment `json:"assessment,omitempty"`
	Report      *IncidentReport `json:"report,omitempty"`
	Stages      []StageResult   `json:"stages"`
	TotalTokens int             `json:"total_tokens"`
}
