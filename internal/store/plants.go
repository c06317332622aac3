package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/domain"
	apperrors "github.com/LeandroFrancaUS/Solarinvest-Monitor/internal/pkg/errors"
)

// PlantRepository is the PostgreSQL implementation of Plants.
type PlantRepository struct {
	db *sql.DB
}

// NewPlantRepository creates a plant repository.
func NewPlantRepository(db *sql.DB) *PlantRepository {
	return &PlantRepository{db: db}
}

var _ Plants = (*PlantRepository)(nil)

const plantColumns = `id, name, brand, timezone, integration_status, status,
	alerts_silenced_until, owner_customer_id, vendor_plant_id,
	installed_capacity_w, deleted_at, created_at, updated_at`

func scanPlant(row interface{ Scan(...interface{}) error }) (*domain.Plant, error) {
	var p domain.Plant
	var ownerCustomerID sql.NullString
	if err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Timezone, &p.IntegrationStatus, &p.Status,
		&p.AlertsSilencedUntil, &ownerCustomerID, &p.VendorPlantID,
		&p.InstalledCapacityW, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	p.OwnerCustomerID = ownerCustomerID.String
	return &p, nil
}

// ListActive returns non-deleted plants whose integration is ACTIVE.
func (r *PlantRepository) ListActive(ctx context.Context) ([]*domain.Plant, error) {
	query := fmt.Sprintf(`SELECT %s FROM plants
		WHERE integration_status = $1 AND deleted_at IS NULL
		ORDER BY id`, plantColumns)

	rows, err := r.db.QueryContext(ctx, query, domain.IntegrationActive)
	if err != nil {
		return nil, fmt.Errorf("list active plants: %w", err)
	}
	defer rows.Close()

	var plants []*domain.Plant
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plant: %w", err)
		}
		plants = append(plants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plants: %w", err)
	}
	return plants, nil
}

// Get loads one plant by id; soft-deleted rows report ErrNotFound.
func (r *PlantRepository) Get(ctx context.Context, id string) (*domain.Plant, error) {
	query := fmt.Sprintf(`SELECT %s FROM plants
		WHERE id = $1 AND deleted_at IS NULL`, plantColumns)

	p, err := scanPlant(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plant %s: %w", id, err)
	}
	return p, nil
}

// GetCredential loads the encrypted credential for a plant+brand pair.
func (r *PlantRepository) GetCredential(ctx context.Context, plantID string, brand domain.Brand) (*domain.Credential, error) {
	var c domain.Credential
	err := r.db.QueryRowContext(ctx,
		`SELECT plant_id, brand, encrypted_blob, key_version, updated_at
		 FROM credentials WHERE plant_id = $1 AND brand = $2`,
		plantID, brand,
	).Scan(&c.PlantID, &c.Brand, &c.EncryptedBlob, &c.KeyVersion, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential for plant %s: %w", plantID, err)
	}
	return &c, nil
}

// UpdateStatus writes the derived health status.
func (r *PlantRepository) UpdateStatus(ctx context.Context, id string, status domain.PlantStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE plants SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update plant %s status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SetIntegrationStatus flips the integration state.
func (r *PlantRepository) SetIntegrationStatus(ctx context.Context, id string, status domain.IntegrationStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE plants SET integration_status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return fmt.Errorf("update plant %s integration status: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
