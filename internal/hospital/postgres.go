package hospital

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// PostgresRepository provides database operations for hospitals
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new hospital repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const hospitalColumns = `id, organization_id, name, lat, lng,
	free_ers, icu_beds, physicians, specialists, readiness_score,
	created_at, updated_at`

// Create inserts a new hospital
func (r *PostgresRepository) Create(ctx context.Context, h *Hospital) error {
	query := `
		INSERT INTO dispatch.hospitals (
			id, organization_id, name, lat, lng,
			free_ers, icu_beds, physicians, specialists, readiness_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		h.ID, h.OrganizationID, h.Name, h.Lat, h.Lng,
		h.Capacity.FreeERs, h.Capacity.ICUBeds, h.Capacity.Physicians, h.Capacity.Specialists,
		h.ReadinessScore,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.InvalidInput("hospital already registered for this organization")
		}
		return errors.Wrap(err, "failed to create hospital")
	}

	return nil
}

// Get retrieves a hospital by ID
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM dispatch.hospitals WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id), id.String())
}

// GetByOrganization retrieves the hospital owned by an organization
func (r *PostgresRepository) GetByOrganization(ctx context.Context, orgID types.ID) (*Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM dispatch.hospitals WHERE organization_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, orgID), orgID.String())
}

// List retrieves all hospitals
func (r *PostgresRepository) List(ctx context.Context) ([]*Hospital, error) {
	query := `SELECT ` + hospitalColumns + ` FROM dispatch.hospitals ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list hospitals")
	}
	defer rows.Close()

	var hospitals []*Hospital
	for rows.Next() {
		h := &Hospital{}
		if err := scanHospital(rows, h); err != nil {
			return nil, errors.Wrap(err, "failed to scan hospital")
		}
		hospitals = append(hospitals, h)
	}

	return hospitals, rows.Err()
}

// UpdateCapacity replaces the counters and the stored readiness score
func (r *PostgresRepository) UpdateCapacity(ctx context.Context, id types.ID, c Capacity, score float64) (*Hospital, error) {
	query := `
		UPDATE dispatch.hospitals
		SET free_ers = $2, icu_beds = $3, physicians = $4, specialists = $5,
			readiness_score = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + hospitalColumns

	return r.scanOne(r.pool.QueryRow(ctx, query,
		id, c.FreeERs, c.ICUBeds, c.Physicians, c.Specialists, score,
	), id.String())
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanOne(row rowScanner, id string) (*Hospital, error) {
	h := &Hospital{}
	err := scanHospital(row, h)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("hospital", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get hospital")
	}
	return h, nil
}

func scanHospital(row rowScanner, h *Hospital) error {
	return row.Scan(
		&h.ID, &h.OrganizationID, &h.Name, &h.Lat, &h.Lng,
		&h.Capacity.FreeERs, &h.Capacity.ICUBeds, &h.Capacity.Physicians, &h.Capacity.Specialists,
		&h.ReadinessScore,
		&h.CreatedAt, &h.UpdatedAt,
	)
}
