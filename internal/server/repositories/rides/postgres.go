// Package rides provides a PostgreSQL-backed repository for ride requests.
package rides

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/dbx"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/google/uuid"
)

const rideColumns = `id, rider_id, driver_id, pickup, destination, ride_type, status,
		 distance_km, estimated_duration, fare, cancellation_reason, rider_rating, driver_rating,
		 completed_at, created_at, updated_at`

// PostgresRepository implements ride persistence over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRide(row rowScanner) (*models.Ride, error) {
	var (
		ride                      models.Ride
		driverID                  sql.NullString
		pickup, destination, fare []byte
		riderRating, driverRating []byte
		completedAt               sql.NullTime
		rideType, status          string
	)
	err := row.Scan(&ride.ID, &ride.RiderID, &driverID, &pickup, &destination, &rideType, &status,
		&ride.Distance, &ride.EstimatedDuration, &fare, &ride.CancellationReason, &riderRating, &driverRating,
		&completedAt, &ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return nil, err
	}
	ride.DriverID = driverID.String
	ride.RideType = models.RideType(rideType)
	ride.Status = models.RideStatus(status)
	if completedAt.Valid {
		ride.CompletedAt = &completedAt.Time
	}
	if ride.RiderRating, err = decodeRating(riderRating); err != nil {
		return nil, err
	}
	if ride.DriverRating, err = decodeRating(driverRating); err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw []byte
		dst any
	}{{pickup, &ride.Pickup}, {destination, &ride.Destination}, {fare, &ride.Fare}} {
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decoding ride document: %w", err)
		}
	}
	return &ride, nil
}

// decodeRating maps a NULL column to nil.
func decodeRating(raw []byte) (*models.RideRating, error) {
	if raw == nil {
		return nil, nil
	}
	var rating models.RideRating
	if err := json.Unmarshal(raw, &rating); err != nil {
		return nil, fmt.Errorf("decoding ride rating: %w", err)
	}
	return &rating, nil
}

// Create inserts the ride. A missing ID is generated here.
func (r *PostgresRepository) Create(ctx context.Context, ride *models.Ride) (*models.Ride, error) {
	if ride.ID == "" {
		ride.ID = uuid.NewString()
	}

	pickup, err := json.Marshal(ride.Pickup)
	if err != nil {
		return nil, fmt.Errorf("encoding pickup: %w", err)
	}
	destination, err := json.Marshal(ride.Destination)
	if err != nil {
		return nil, fmt.Errorf("encoding destination: %w", err)
	}
	fare, err := json.Marshal(ride.Fare)
	if err != nil {
		return nil, fmt.Errorf("encoding fare: %w", err)
	}

	var driverID sql.NullString
	if ride.DriverID != "" {
		driverID = sql.NullString{String: ride.DriverID, Valid: true}
	}
	var completedAt sql.NullTime
	if ride.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *ride.CompletedAt, Valid: true}
	}

	query :=
		`INSERT INTO rides (id, rider_id, driver_id, pickup, destination, ride_type, status, distance_km, estimated_duration, fare, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING created_at, updated_at
		 `

	err = r.db.QueryRowContext(ctx, query,
		ride.ID, ride.RiderID, driverID, pickup, destination, string(ride.RideType), string(ride.Status),
		ride.Distance, ride.EstimatedDuration, fare, completedAt).Scan(&ride.CreatedAt, &ride.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ride, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + rideColumns + ` FROM rides
		 WHERE id = $1
		 `

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ride, nil
}

// ListByRider returns the rider's rides, newest first.
func (r *PostgresRepository) ListByRider(ctx context.Context, riderID string) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		 WHERE rider_id = $1
		 ORDER BY created_at DESC
		 `
	return r.list(ctx, query, riderID)
}

// ListByDriver returns rides assigned to the driver, newest first.
func (r *PostgresRepository) ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		 WHERE driver_id = $1
		 ORDER BY created_at DESC
		 `
	return r.list(ctx, query, driverID)
}

// List pages through all rides; an empty status matches every ride.
func (r *PostgresRepository) List(ctx context.Context, status models.RideStatus, limit, offset int) ([]*models.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3
		 `
	return r.list(ctx, query, string(status), limit, offset)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Ride, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []*models.Ride{}
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Cancel moves a ride that has not started yet to cancelled. Rides in any
// other state yield common.ErrInvalidRideState.
func (r *PostgresRepository) Cancel(ctx context.Context, id, reason string) (*models.Ride, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query := `UPDATE rides
		 SET status = 'cancelled', cancellation_reason = $2, updated_at = now()
		 WHERE id = $1 AND status IN ('requested', 'accepted', 'driver_on_way', 'arrived')
		 RETURNING ` + rideColumns

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, id, reason))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrInvalidRideState
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ride, nil
}

// update runs a guarded UPDATE ... RETURNING; no matching row means the
// guard failed and yields common.ErrInvalidRideState.
func (r *PostgresRepository) update(ctx context.Context, query, id string, args ...any) (*models.Ride, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	ride, err := scanRide(r.db.QueryRowContext(ctx, query, append([]any{id}, args...)...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrInvalidRideState
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return ride, nil
}

// Accept assigns the driver to a ride that is still requested.
func (r *PostgresRepository) Accept(ctx context.Context, id, driverID string) (*models.Ride, error) {
	query := `UPDATE rides
		 SET driver_id = $2, status = 'accepted', updated_at = now()
		 WHERE id = $1 AND status = 'requested'
		 RETURNING ` + rideColumns

	return r.update(ctx, query, id, driverID)
}

// Advance moves the ride from one status to the next, provided it is still
// in from. Reaching completed stamps completed_at.
func (r *PostgresRepository) Advance(ctx context.Context, id string, from, to models.RideStatus) (*models.Ride, error) {
	query := `UPDATE rides
		 SET status = $3,
		     completed_at = CASE WHEN $4 THEN now() ELSE completed_at END,
		     updated_at = now()
		 WHERE id = $1 AND status = $2
		 RETURNING ` + rideColumns

	return r.update(ctx, query, id, string(from), string(to), to == models.RideCompleted)
}

// Rate stores the rating left by one side of a completed ride. A side can
// rate only once.
func (r *PostgresRepository) Rate(ctx context.Context, id string, side models.Role, rating models.RideRating) (*models.Ride, error) {
	var column string
	switch side {
	case models.RoleRider:
		column = "rider_rating"
	case models.RoleDriver:
		column = "driver_rating"
	default:
		return nil, fmt.Errorf("unknown rating side %q", side)
	}

	raw, err := json.Marshal(rating)
	if err != nil {
		return nil, fmt.Errorf("encoding rating: %w", err)
	}

	query := `UPDATE rides
		 SET ` + column + ` = $2, updated_at = now()
		 WHERE id = $1 AND status = 'completed' AND ` + column + ` IS NULL
		 RETURNING ` + rideColumns

	return r.update(ctx, query, id, raw)
}

// DriverTotals sums the driver's rides completed since the given instant.
func (r *PostgresRepository) DriverTotals(ctx context.Context, driverID string, since time.Time) (models.Totals, error) {
	query :=
		`SELECT COUNT(*), COALESCE(SUM((fare->>'total')::float8), 0) FROM rides
		 WHERE driver_id = $1 AND status = 'completed' AND completed_at >= $2
		 `

	var t models.Totals
	if err := r.db.QueryRowContext(ctx, query, driverID, since).Scan(&t.Rides, &t.Amount); err != nil {
		return models.Totals{}, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// DriverEarnings groups the driver's completed rides by unit ("day" or
// "month"), oldest bucket first.
func (r *PostgresRepository) DriverEarnings(ctx context.Context, driverID string, since time.Time, unit string) ([]models.EarningsBucket, error) {
	query :=
		`SELECT date_trunc($3, completed_at) AS bucket, COUNT(*), COALESCE(SUM((fare->>'total')::float8), 0)
		 FROM rides
		 WHERE driver_id = $1 AND status = 'completed' AND completed_at >= $2
		 GROUP BY bucket
		 ORDER BY bucket
		 `

	rows, err := r.db.QueryContext(ctx, query, driverID, since, unit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.EarningsBucket{}
	for rows.Next() {
		var b models.EarningsBucket
		if err := rows.Scan(&b.Start, &b.Rides, &b.Earnings); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Activity groups rides created since the given instant by unit, counting
// completions and their revenue.
func (r *PostgresRepository) Activity(ctx context.Context, since time.Time, unit string) ([]models.RideActivity, error) {
	query :=
		`SELECT date_trunc($2, created_at) AS bucket,
		        COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'completed'),
		        COALESCE(SUM((fare->>'total')::float8) FILTER (WHERE status = 'completed'), 0)
		 FROM rides
		 WHERE created_at >= $1
		 GROUP BY bucket
		 ORDER BY bucket
		 `

	rows, err := r.db.QueryContext(ctx, query, since, unit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.RideActivity{}
	for rows.Next() {
		var a models.RideActivity
		if err := rows.Scan(&a.Start, &a.Total, &a.Completed, &a.Revenue); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
