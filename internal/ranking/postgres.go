package ranking

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lifeline-ems/dispatch/internal/ambulance"
	"github.com/lifeline-ems/dispatch/internal/hospital"
	"github.com/lifeline-ems/dispatch/internal/shared/errors"
	"github.com/lifeline-ems/dispatch/internal/shared/types"
)

// PostgresRanker ranks candidates with haversine distance computed in SQL
type PostgresRanker struct {
	pool *pgxpool.Pool
}

// NewPostgresRanker creates a new SQL-backed ranker
func NewPostgresRanker(pool *pgxpool.Pool) *PostgresRanker {
	return &PostgresRanker{pool: pool}
}

// haversineKm computes great-circle distance against the row's lat/lng.
// $1 = origin lat, $2 = origin lng.
const haversineKm = `
	6371 * 2 * asin(sqrt(
		power(sin(radians(($1 - lat) / 2)), 2) +
		cos(radians($1)) * cos(radians(lat)) *
		power(sin(radians(($2 - lng) / 2)), 2)
	))`

// RankAmbulances returns the k idle units closest to the origin.
// Units without a reported position are skipped.
func (r *PostgresRanker) RankAmbulances(ctx context.Context, origin types.Point, k int) ([]AmbulanceCandidate, error) {
	if err := validate(origin, k); err != nil {
		return nil, err
	}

	query := `
		SELECT id, operator_id, callsign, status, lat, lng, created_at, updated_at,
			` + haversineKm + ` AS distance_km
		FROM dispatch.ambulances
		WHERE status = 'idle' AND lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY distance_km, id
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, origin.Lat, origin.Lng, k)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rank ambulances")
	}
	defer rows.Close()

	var candidates []AmbulanceCandidate
	for rows.Next() {
		a := &ambulance.Ambulance{}
		var distance float64
		err := rows.Scan(
			&a.ID, &a.OperatorID, &a.Callsign, &a.Status, &a.Lat, &a.Lng,
			&a.CreatedAt, &a.UpdatedAt, &distance,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan ambulance candidate")
		}
		candidates = append(candidates, AmbulanceCandidate{Ambulance: a, DistanceKm: distance})
	}

	return candidates, rows.Err()
}

// RankHospitals returns the k best facilities by blended readiness and
// proximity. Hospitals without a registered location are skipped.
func (r *PostgresRanker) RankHospitals(ctx context.Context, origin types.Point, k int) ([]HospitalCandidate, error) {
	if err := validate(origin, k); err != nil {
		return nil, err
	}

	query := `
		SELECT id, organization_id, name, lat, lng,
			free_ers, icu_beds, physicians, specialists, readiness_score,
			created_at, updated_at,
			` + haversineKm + ` AS distance_km,
			readiness_score / (1 + ` + haversineKm + `) AS score
		FROM dispatch.hospitals
		WHERE lat IS NOT NULL AND lng IS NOT NULL
		ORDER BY score DESC, id
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, origin.Lat, origin.Lng, k)
	if err != nil {
		return nil, errors.Wrap(err, "failed to rank hospitals")
	}
	defer rows.Close()

	var candidates []HospitalCandidate
	for rows.Next() {
		h := &hospital.Hospital{}
		var distance, score float64
		err := rows.Scan(
			&h.ID, &h.OrganizationID, &h.Name, &h.Lat, &h.Lng,
			&h.Capacity.FreeERs, &h.Capacity.ICUBeds, &h.Capacity.Physicians, &h.Capacity.Specialists,
			&h.ReadinessScore, &h.CreatedAt, &h.UpdatedAt,
			&distance, &score,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan hospital candidate")
		}
		candidates = append(candidates, HospitalCandidate{Hospital: h, DistanceKm: distance, Score: score})
	}

	return candidates, rows.Err()
}
