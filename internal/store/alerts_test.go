package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

func setupAlertRepo(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *AlertRepository) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewAlertRepository(db)
}

func TestFindActive_Found(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	occurred := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "plant_id", "type", "severity", "state", "vendor_alarm_code",
		"device_sn", "message", "occurred_at", "cleared_at", "last_notified_at",
		"last_seen_at", "notifiable",
	}).AddRow("a1", "p1", "FAULT", "MEDIUM", "NEW", "GRID_FAULT_001",
		"INV-1", "grid fault", occurred, nil, nil, occurred, false)

	mock.ExpectQuery(`FROM alerts\s+WHERE plant_id`).
		WithArgs("p1", domain.AlertFault, "GRID_FAULT_001", "INV-1").
		WillReturnRows(rows)

	alert, err := repo.FindActive(context.Background(), "p1", domain.AlertFault, "GRID_FAULT_001", "INV-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", alert.ID)
	assert.Equal(t, domain.AlertNew, alert.State)
	assert.Equal(t, domain.SeverityMedium, alert.Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActive_NotFound(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	mock.ExpectQuery(`FROM alerts\s+WHERE plant_id`).
		WithArgs("p1", domain.AlertOffline, "", "").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActive(context.Background(), "p1", domain.AlertOffline, "", "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestResolve(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	cleared := time.Date(2026, 2, 18, 15, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE alerts SET state = 'RESOLVED'`).
		WithArgs(cleared, "a1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Resolve(context.Background(), "a1", cleared)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolve_AlreadyResolved(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	cleared := time.Date(2026, 2, 18, 15, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE alerts SET state = 'RESOLVED'`).
		WithArgs(cleared, "a1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Resolve(context.Background(), "a1", cleared)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCountActiveCritical(t *testing.T) {
	db, mock, repo := setupAlertRepo(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM alerts`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountActiveCritical(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
