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

func plantRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "brand", "timezone", "integration_status", "status",
		"alerts_silenced_until", "owner_customer_id", "vendor_plant_id",
		"installed_capacity_w", "deleted_at", "created_at", "updated_at",
	})
}

func TestListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPlantRepository(db)

	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	rows := plantRows().
		AddRow("p1", "Fazenda Boa Vista", "SOLIS", "America/Sao_Paulo", "ACTIVE",
			"GREEN", nil, "cust-1", "vnd-1", 75000.0, nil, now, now).
		AddRow("p2", "Sítio das Palmeiras", "HUAWEI", "America/Fortaleza", "ACTIVE",
			"GREY", nil, nil, "vnd-2", nil, nil, now, now)

	mock.ExpectQuery(`FROM plants\s+WHERE integration_status`).
		WithArgs(domain.IntegrationActive).
		WillReturnRows(rows)

	plants, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, plants, 2)
	assert.Equal(t, domain.BrandSolis, plants[0].Brand)
	require.NotNil(t, plants[0].InstalledCapacityW)
	assert.Equal(t, 75000.0, *plants[0].InstalledCapacityW)
	assert.Equal(t, "cust-1", plants[0].OwnerCustomerID)
	assert.Empty(t, plants[1].OwnerCustomerID)
	assert.Nil(t, plants[1].InstalledCapacityW)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPlantRepository(db)

	mock.ExpectQuery(`FROM plants\s+WHERE id`).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestGetCredential(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPlantRepository(db)

	now := time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"plant_id", "brand", "encrypted_blob", "key_version", "updated_at"}).
		AddRow("p1", "SOLIS", []byte{1, 2, 3}, 1, now)

	mock.ExpectQuery(`FROM credentials`).
		WithArgs("p1", domain.BrandSolis).
		WillReturnRows(rows)

	cred, err := repo.GetCredential(context.Background(), "p1", domain.BrandSolis)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, cred.EncryptedBlob)
	assert.Equal(t, 1, cred.KeyVersion)
}

func TestSetIntegrationStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPlantRepository(db)

	mock.ExpectExec(`UPDATE plants SET integration_status`).
		WithArgs(domain.IntegrationPausedAuthError, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SetIntegrationStatus(context.Background(), "ghost", domain.IntegrationPausedAuthError)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
