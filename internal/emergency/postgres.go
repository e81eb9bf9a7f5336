package emergency

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// PostgresRepository provides database operations for emergencies
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new emergency repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const emergencyColumns = `id, patient_lat, patient_lng, details,
	ambulance_id, hospital_id, eta_minutes, status, created_at, updated_at`

// CreateWithAssignment commits the ambulance and records the emergency
// in one transaction. The conditional update on the ambulance row is the
// guard: losing the race means zero rows and a clean rollback.
func (r *PostgresRepository) CreateWithAssignment(ctx context.Context, e *Emergency) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin dispatch transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE dispatch.ambulances
		SET status = 'on_call', updated_at = NOW()
		WHERE id = $1 AND status = 'idle'`,
		e.AmbulanceID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to commit ambulance")
	}
	if tag.RowsAffected() == 0 {
		return errors.AmbulanceUnavailable(e.AmbulanceID.String())
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO dispatch.emergencies (
			id, patient_lat, patient_lng, details,
			ambulance_id, hospital_id, eta_minutes, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		e.ID, e.PatientLat, e.PatientLng, e.Details,
		e.AmbulanceID, e.HospitalID, e.ETAMinutes, e.Status,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, "failed to create emergency")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit dispatch transaction")
	}

	return nil
}

// Get retrieves an emergency by ID
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Emergency, error) {
	query := `SELECT ` + emergencyColumns + ` FROM dispatch.emergencies WHERE id = $1`

	e := &Emergency{}
	err := scanEmergency(r.pool.QueryRow(ctx, query, id), e)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("emergency", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get emergency")
	}
	return e, nil
}

// ListByHospital retrieves a hospital's emergencies oldest first
func (r *PostgresRepository) ListByHospital(ctx context.Context, hospitalID types.ID) ([]*Emergency, error) {
	query := `SELECT ` + emergencyColumns + ` FROM dispatch.emergencies
		WHERE hospital_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, hospitalID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list emergencies")
	}
	defer rows.Close()

	var emergencies []*Emergency
	for rows.Next() {
		e := &Emergency{}
		if err := scanEmergency(rows, e); err != nil {
			return nil, errors.Wrap(err, "failed to scan emergency")
		}
		emergencies = append(emergencies, e)
	}

	return emergencies, rows.Err()
}

// UpdateStatus performs the conditional status move
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id types.ID, from, to Status) (*Emergency, error) {
	query := `
		UPDATE dispatch.emergencies
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + emergencyColumns

	e := &Emergency{}
	err := scanEmergency(r.pool.QueryRow(ctx, query, id, from, to), e)
	if err == pgx.ErrNoRows {
		// Either the emergency is gone or a concurrent transition won.
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, errors.IllegalTransition(string(current.Status), string(to))
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update emergency status")
	}
	return e, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmergency(row rowScanner, e *Emergency) error {
	return row.Scan(
		&e.ID, &e.PatientLat, &e.PatientLng, &e.Details,
		&e.AmbulanceID, &e.HospitalID, &e.ETAMinutes, &e.Status,
		&e.CreatedAt, &e.UpdatedAt,
	)
}
