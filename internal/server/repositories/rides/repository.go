package rides

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, ride *models.Ride) (*models.Ride, error)
	GetByID(ctx context.Context, id string) (*models.Ride, error)
	ListByRider(ctx context.Context, riderID string) ([]*models.Ride, error)
	ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error)
	List(ctx context.Context, status models.RideStatus, limit, offset int) ([]*models.Ride, error)
	Count(ctx context.Context) (int64, error)
	Cancel(ctx context.Context, id, reason string) (*models.Ride, error)

	// Accept, Advance and Rate return common.ErrInvalidRideState when the
	// ride is no longer in a state that allows the change.
	Accept(ctx context.Context, id, driverID string) (*models.Ride, error)
	Advance(ctx context.Context, id string, from, to models.RideStatus) (*models.Ride, error)
	Rate(ctx context.Context, id string, side models.Role, rating models.RideRating) (*models.Ride, error)

	DriverTotals(ctx context.Context, driverID string, since time.Time) (models.Totals, error)
	DriverEarnings(ctx context.Context, driverID string, since time.Time, unit string) ([]models.EarningsBucket, error)
	Activity(ctx context.Context, since time.Time, unit string) ([]models.RideActivity, error)
}
