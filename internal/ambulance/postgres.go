package ambulance

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// PostgresRepository provides database operations for ambulances
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new ambulance repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const ambulanceColumns = `id, operator_id, callsign, status, lat, lng, created_at, updated_at`

// Create inserts a new ambulance
func (r *PostgresRepository) Create(ctx context.Context, a *Ambulance) error {
	query := `
		INSERT INTO dispatch.ambulances (id, operator_id, callsign, status, lat, lng)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, a.ID, a.OperatorID, a.Callsign, a.Status, a.Lat, a.Lng)
	if err != nil {
		return errors.Wrap(err, "failed to create ambulance")
	}
	return nil
}

// Get retrieves an ambulance by ID
func (r *PostgresRepository) Get(ctx context.Context, id types.ID) (*Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM dispatch.ambulances WHERE id = $1`

	a := &Ambulance{}
	err := scanAmbulance(r.pool.QueryRow(ctx, query, id), a)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("ambulance", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get ambulance")
	}
	return a, nil
}

// ListByOperator retrieves all ambulances belonging to an operator
func (r *PostgresRepository) ListByOperator(ctx context.Context, operatorID types.ID) ([]*Ambulance, error) {
	query := `SELECT ` + ambulanceColumns + ` FROM dispatch.ambulances
		WHERE operator_id = $1 ORDER BY callsign`

	rows, err := r.pool.Query(ctx, query, operatorID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list ambulances")
	}
	defer rows.Close()

	var ambulances []*Ambulance
	for rows.Next() {
		a := &Ambulance{}
		if err := scanAmbulance(rows, a); err != nil {
			return nil, errors.Wrap(err, "failed to scan ambulance")
		}
		ambulances = append(ambulances, a)
	}

	return ambulances, rows.Err()
}

// UpdatePosition stores the last reported position
func (r *PostgresRepository) UpdatePosition(ctx context.Context, id types.ID, p types.Point) (*Ambulance, error) {
	query := `
		UPDATE dispatch.ambulances
		SET lat = $2, lng = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + ambulanceColumns

	a := &Ambulance{}
	err := scanAmbulance(r.pool.QueryRow(ctx, query, id, p.Lat, p.Lng), a)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("ambulance", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to update ambulance position")
	}
	return a, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAmbulance(row rowScanner, a *Ambulance) error {
	return row.Scan(
		&a.ID, &a.OperatorID, &a.Callsign, &a.Status, &a.Lat, &a.Lng,
		&a.CreatedAt, &a.UpdatedAt,
	)
}
