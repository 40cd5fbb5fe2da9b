package store

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepnetlabs/mailtriage/internal/model"
)

func newTestPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgres_CreateRun(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO runs`)).
		WithArgs(pgxmock.AnyArg(), "email-1", string(model.RunStatusQueued), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := st.CreateRun(context.Background(), "email-1")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "email-1", run.EmailID)
	assert.Equal(t, model.RunStatusQueued, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatus(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE runs SET status`)).
		WithArgs(string(model.RunStatusComplete), nil, pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, st.UpdateRunStatus(context.Background(), "run-1", model.RunStatusComplete, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_UpdateRunStatusNotFound(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE runs SET status`)).
		WithArgs(string(model.RunStatusComplete), nil, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := st.UpdateRunStatus(context.Background(), "missing", model.RunStatusComplete, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRun(t *testing.T) {
	st, mock := newTestPostgres(t)
	now := time.Now().UTC()
	reportJSON, err := json.Marshal(sampleReport())
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT r.id, r.email_id, r.status, r.error, p.report, r.created_at, r.updated_at`)).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "email_id", "status", "error", "report", "created_at", "updated_at"}).
			AddRow("run-1", "email-1", model.RunStatus("complete"), (*string)(nil), &reportJSON, now, now))

	run, err := st.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Report)
	assert.Equal(t, model.CategoryPhishing, run.Report.ExecutiveSummary.EmailCategory)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetRunNotFound(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT r.id, r.email_id, r.status`)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveStageResult(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO run_stages`)).
		WithArgs(pgxmock.AnyArg(), "run-1", "header", string(model.StageStatusComplete), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SaveStageResult(context.Background(), "run-1", model.StageResult{
		Name:   "header",
		Status: model.StageStatusComplete,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_SaveReport(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO reports`)).
		WithArgs("run-1", "email-1", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, st.SaveReport(context.Background(), "run-1", "email-1", sampleReport()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetReport(t *testing.T) {
	st, mock := newTestPostgres(t)
	reportJSON, err := json.Marshal(sampleReport())
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT report FROM reports WHERE run_id = $1`)).
		WithArgs("run-1").
		WillReturnRows(pgxmock.NewRows([]string{"report"}).AddRow(reportJSON))

	report, err := st.GetReport(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, sampleReport(), report)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetReportNotFound(t *testing.T) {
	st, mock := newTestPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT report FROM reports WHERE run_id = $1`)).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := st.GetReport(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
