package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/dbx"
	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/fare"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/repomanager"
)

const (
	maxCancelReasonLength  = 500
	maxRatingCommentLength = 500

	// availableRidesLimit caps the open requests shown to a driver.
	availableRidesLimit = 20
)

// RideInput is a rider's request for a trip.
type RideInput struct {
	Pickup      models.Location
	Destination models.Location
	RideType    string
}

// RatingInput is one side's verdict on a completed ride.
type RatingInput struct {
	Score   int
	Comment string
}

// RideService runs the ride lifecycle: riders request, cancel and rate;
// drivers pick up open requests, report progress and rate their riders.
// There is no automatic dispatch: a ride stays requested until a driver
// accepts it or the rider cancels.
type RideService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	fares       fare.Calculator
	logger      logging.Logger
}

func NewRideService(db *sql.DB, m repomanager.RepositoryManager, fares fare.Calculator, l logging.Logger) *RideService {
	return &RideService{
		db:          db,
		repomanager: m,
		fares:       fares,
		logger:      l.With("module", "rides"),
	}
}

// RequestRide stores a new ride for the rider with a quoted fare.
func (s *RideService) RequestRide(ctx context.Context, caller *models.Identity, in RideInput) (*models.Ride, error) {
	if caller == nil || caller.Role != models.RoleRider {
		return nil, common.ErrForbidden
	}

	in.Pickup.Address = strings.TrimSpace(in.Pickup.Address)
	in.Destination.Address = strings.TrimSpace(in.Destination.Address)
	if in.Pickup.Address == "" {
		return nil, validationError("pickup address is required")
	}
	if in.Destination.Address == "" {
		return nil, validationError("destination address is required")
	}
	rideType, ok := models.ParseRideType(in.RideType)
	if !ok {
		return nil, validationError("ride type must be one of economy, comfort, premium, suv")
	}

	quote := s.fares.Quote(fare.Request{Pickup: in.Pickup, Destination: in.Destination, RideType: rideType})

	ride := &models.Ride{
		RiderID:           caller.ID,
		Pickup:            in.Pickup,
		Destination:       in.Destination,
		RideType:          rideType,
		Status:            models.RideRequested,
		Distance:          quote.Distance,
		EstimatedDuration: quote.Duration,
		Fare:              quote.Fare(),
	}

	created, err := s.repomanager.Rides(s.db).Create(ctx, ride)
	if err != nil {
		s.logger.Error(ctx, "creating ride", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "ride requested", "ride_id", created.ID, "rider_id", caller.ID)
	return created, nil
}

// History lists the caller's rides newest first. Drivers see the rides
// assigned to them, everyone else the rides they requested.
func (s *RideService) History(ctx context.Context, caller *models.Identity) ([]*models.Ride, error) {
	if caller == nil {
		return nil, common.ErrUnauthenticated
	}

	repo := s.repomanager.Rides(s.db)

	var (
		rides []*models.Ride
		err   error
	)
	if caller.Role == models.RoleDriver {
		rides, err = repo.ListByDriver(ctx, caller.ID)
	} else {
		rides, err = repo.ListByRider(ctx, caller.ID)
	}
	if err != nil {
		s.logger.Error(ctx, "listing rides", "error", err)
		return nil, common.ErrorInternal
	}
	return rides, nil
}

// Cancel lets the rider who requested a ride cancel it until the trip
// starts.
func (s *RideService) Cancel(ctx context.Context, caller *models.Identity, rideID, reason string) (*models.Ride, error) {
	if caller == nil || caller.Role != models.RoleRider {
		return nil, common.ErrForbidden
	}
	reason = strings.TrimSpace(reason)
	if len([]rune(reason)) > maxCancelReasonLength {
		return nil, validationError(fmt.Sprintf("reason cannot exceed %d characters", maxCancelReasonLength))
	}

	var cancelled *models.Ride
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Rides(tx)

		ride, err := repo.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.RiderID != caller.ID {
			return common.ErrForbidden
		}
		if !ride.Status.Cancellable() {
			return common.ErrInvalidRideState
		}

		cancelled, err = repo.Cancel(ctx, rideID, reason)
		return err
	})
	if err != nil {
		return nil, s.mapRideError(ctx, "cancelling ride", rideID, err)
	}

	s.logger.Info(ctx, "ride cancelled", "ride_id", rideID)
	return cancelled, nil
}

// mapRideError passes the lifecycle sentinels through and collapses
// anything else to common.ErrorInternal after logging it.
func (s *RideService) mapRideError(ctx context.Context, op, rideID string, err error) error {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrForbidden),
		errors.Is(err, common.ErrInvalidRideState),
		errors.Is(err, common.ErrAlreadyRated):
		return err
	}
	s.logger.Error(ctx, op, "error", fmt.Errorf("ride %s: %w", rideID, err))
	return common.ErrorInternal
}

// Available lists the newest open requests a driver can accept.
func (s *RideService) Available(ctx context.Context, caller *models.Identity) ([]*models.Ride, error) {
	if caller == nil || caller.Role != models.RoleDriver {
		return nil, common.ErrForbidden
	}

	rides, err := s.repomanager.Rides(s.db).List(ctx, models.RideRequested, availableRidesLimit, 0)
	if err != nil {
		s.logger.Error(ctx, "listing available rides", "error", err)
		return nil, common.ErrorInternal
	}
	return rides, nil
}

// Accept assigns the calling driver to a ride that is still requested.
// When two drivers race for the same ride only one wins; the other gets
// common.ErrInvalidRideState.
func (s *RideService) Accept(ctx context.Context, caller *models.Identity, rideID string) (*models.Ride, error) {
	if caller == nil || caller.Role != models.RoleDriver {
		return nil, common.ErrForbidden
	}

	var accepted *models.Ride
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Rides(tx)

		ride, err := repo.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.Status != models.RideRequested {
			return common.ErrInvalidRideState
		}

		accepted, err = repo.Accept(ctx, rideID, caller.ID)
		return err
	})
	if err != nil {
		return nil, s.mapRideError(ctx, "accepting ride", rideID, err)
	}

	s.logger.Info(ctx, "ride accepted", "ride_id", rideID, "driver_id", caller.ID)
	return accepted, nil
}

// UpdateStatus lets the assigned driver move the ride forward through
// driver_on_way, arrived, in_progress and completed.
func (s *RideService) UpdateStatus(ctx context.Context, caller *models.Identity, rideID, status string) (*models.Ride, error) {
	if caller == nil || caller.Role != models.RoleDriver {
		return nil, common.ErrForbidden
	}
	next := models.RideStatus(status)
	if !models.DriverSettable(next) {
		return nil, validationError("status must be one of driver_on_way, arrived, in_progress, completed")
	}

	var updated *models.Ride
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Rides(tx)

		ride, err := repo.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.DriverID != caller.ID {
			return common.ErrForbidden
		}
		if !ride.Status.CanAdvanceTo(next) {
			return common.ErrInvalidRideState
		}

		updated, err = repo.Advance(ctx, rideID, ride.Status, next)
		return err
	})
	if err != nil {
		return nil, s.mapRideError(ctx, "updating ride status", rideID, err)
	}

	s.logger.Info(ctx, "ride status changed", "ride_id", rideID, "status", next)
	return updated, nil
}

// Rate records the caller's score for a completed ride and folds it into
// the other party's running average. Each side may rate once.
func (s *RideService) Rate(ctx context.Context, caller *models.Identity, rideID string, in RatingInput) (*models.Ride, error) {
	if caller == nil {
		return nil, common.ErrUnauthenticated
	}
	if in.Score < 1 || in.Score > 5 {
		return nil, validationError("rating must be between 1 and 5")
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if len([]rune(in.Comment)) > maxRatingCommentLength {
		return nil, validationError(fmt.Sprintf("comment cannot exceed %d characters", maxRatingCommentLength))
	}

	var rated *models.Ride
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rides := s.repomanager.Rides(tx)

		ride, err := rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}

		var side models.Role
		var ratee string
		switch caller.ID {
		case ride.RiderID:
			side, ratee = models.RoleRider, ride.DriverID
		case ride.DriverID:
			side, ratee = models.RoleDriver, ride.RiderID
		default:
			return common.ErrForbidden
		}
		if ride.Status != models.RideCompleted {
			return common.ErrInvalidRideState
		}
		if ride.RatingBy(side) != nil {
			return common.ErrAlreadyRated
		}

		rated, err = rides.Rate(ctx, rideID, side, models.RideRating{Score: in.Score, Comment: in.Comment})
		if err != nil {
			return err
		}
		if _, err := s.repomanager.Users(tx).AddRating(ctx, ratee, in.Score); err != nil {
			// a missing counterpart is a data fault, not a missing ride
			return fmt.Errorf("updating rating of %s: %v", ratee, err)
		}
		return nil
	})
	if err != nil {
		return nil, s.mapRideError(ctx, "rating ride", rideID, err)
	}

	s.logger.Info(ctx, "ride rated", "ride_id", rideID, "by", caller.ID, "score", in.Score)
	return rated, nil
}
