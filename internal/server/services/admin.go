package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/repomanager"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page normalizes 1-based page numbers and page sizes into limit/offset.
type Page struct {
	Number int
	Size   int
}

func (p Page) limitOffset() (int, int) {
	size := p.Size
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	number := p.Number
	if number < 1 {
		number = 1
	}
	return size, (number - 1) * size
}

// AdminService backs the admin endpoints. Callers are expected to have
// passed the admin role gate already.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewAdminService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *AdminService {
	return &AdminService{db: db, repomanager: m, logger: l.With("module", "admin"), now: time.Now}
}

// Dashboard counts riders, drivers and rides.
func (s *AdminService) Dashboard(ctx context.Context) (*models.Stats, error) {
	users := s.repomanager.Users(s.db)

	riders, err := users.CountByRole(ctx, models.RoleRider)
	if err != nil {
		s.logger.Error(ctx, "counting riders", "error", err)
		return nil, common.ErrorInternal
	}
	drivers, err := users.CountByRole(ctx, models.RoleDriver)
	if err != nil {
		s.logger.Error(ctx, "counting drivers", "error", err)
		return nil, common.ErrorInternal
	}
	rides, err := s.repomanager.Rides(s.db).Count(ctx)
	if err != nil {
		s.logger.Error(ctx, "counting rides", "error", err)
		return nil, common.ErrorInternal
	}

	return &models.Stats{TotalUsers: riders, TotalDrivers: drivers, TotalRides: rides}, nil
}

// ListUsers pages through accounts, optionally filtered by role.
func (s *AdminService) ListUsers(ctx context.Context, role string, page Page) ([]*models.User, error) {
	var filter models.Role
	if role != "" {
		r, ok := models.ParseRole(role)
		if !ok {
			return nil, validationError("unknown role")
		}
		filter = r
	}

	limit, offset := page.limitOffset()
	users, err := s.repomanager.Users(s.db).List(ctx, filter, limit, offset)
	if err != nil {
		s.logger.Error(ctx, "listing users", "error", err)
		return nil, common.ErrorInternal
	}
	return users, nil
}

// SetUserActive flips the account's active flag. Tokens already issued to
// a deactivated account stop resolving on their next use.
func (s *AdminService) SetUserActive(ctx context.Context, userID string, active bool) (*models.Identity, error) {
	identity, err := s.repomanager.Users(s.db).SetActive(ctx, userID, active)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "updating user status", "error", err)
		return nil, common.ErrorInternal
	}
	s.logger.Info(ctx, "user status changed", "user_id", userID, "active", active)
	return identity, nil
}

// ToggleUserActive inverts the account's current active flag.
func (s *AdminService) ToggleUserActive(ctx context.Context, userID string) (*models.Identity, error) {
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "loading user", "error", err)
		return nil, common.ErrorInternal
	}
	return s.SetUserActive(ctx, userID, !user.IsActive)
}

// ListRides pages through all rides, optionally filtered by status.
func (s *AdminService) ListRides(ctx context.Context, status string, page Page) ([]*models.Ride, error) {
	if status != "" {
		if _, ok := models.ParseRideStatus(status); !ok {
			return nil, validationError("unknown ride status")
		}
	}

	limit, offset := page.limitOffset()
	rides, err := s.repomanager.Rides(s.db).List(ctx, models.RideStatus(status), limit, offset)
	if err != nil {
		s.logger.Error(ctx, "listing rides", "error", err)
		return nil, common.ErrorInternal
	}
	return rides, nil
}

// Analytics groups ride activity and sign-ups over a month (the default),
// week or year.
func (s *AdminService) Analytics(ctx context.Context, period string) (*models.Analytics, error) {
	p, ok := models.ParsePeriod(period, models.PeriodMonth)
	if !ok {
		return nil, validationError("period must be one of week, month, year")
	}
	since, unit := p.Window(s.now())

	activity, err := s.repomanager.Rides(s.db).Activity(ctx, since, unit)
	if err != nil {
		s.logger.Error(ctx, "grouping ride activity", "error", err)
		return nil, common.ErrorInternal
	}
	registrations, err := s.repomanager.Users(s.db).Registrations(ctx, since, unit)
	if err != nil {
		s.logger.Error(ctx, "grouping registrations", "error", err)
		return nil, common.ErrorInternal
	}

	return &models.Analytics{Period: p, Since: since, Rides: activity, Registrations: registrations}, nil
}
