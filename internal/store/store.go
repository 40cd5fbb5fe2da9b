package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/keepnetlabs/mailtriage/internal/model"
)

// ErrNotFound is returned when a run or report does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	EmailID string          `json:"email_id,omitempty"`
	Limit   int             `json:"limit,omitempty"`
	Offset  int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for analysis runs and their
// incident reports.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, emailID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Stages
	SaveStageResult(ctx context.Context, runID string, result model.StageResult) error

	// Reports, keyed by run ID and email ID.
	SaveReport(ctx context.Context, runID, emailID string, report *model.IncidentReport) error
	GetReport(ctx context.Context, runID string) (*model.IncidentReport, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// NopStore is a Store that persists nothing. CLI runs that only print the
// report use it instead of opening a database.
type NopStore struct{}

// CreateRun returns an in-memory run record.
func (NopStore) CreateRun(_ context.Context, emailID string) (*model.Run, error) {
	now := time.Now().UTC()
	return &model.Run{
		ID:        uuid.New().String(),
		EmailID:   emailID,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (NopStore) UpdateRunStatus(context.Context, string, model.RunStatus, string) error {
	return nil
}

func (NopStore) GetRun(context.Context, string) (*model.Run, error) {
	return nil, ErrNotFound
}

func (NopStore) ListRuns(context.Context, RunFilter) ([]model.Run, error) {
	return nil, nil
}

func (NopStore) SaveStageResult(context.Context, string, model.StageResult) error {
	return nil
}

func (NopStore) SaveReport(context.Context, string, string, *model.IncidentReport) error {
	return nil
}

func (NopStore) GetReport(context.Context, string) (*model.IncidentReport, error) {
	return nil, ErrNotFound
}

func (NopStore) Migrate(context.Context) error { return nil }

func (NopStore) Close() error { return nil }
