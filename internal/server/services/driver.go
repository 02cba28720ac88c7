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

// DriverService reports a driver's completed work. Earnings are the fare
// totals of completed rides; there is no commission split.
type DriverService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
	now         func() time.Time
}

func NewDriverService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *DriverService {
	return &DriverService{db: db, repomanager: m, logger: l.With("module", "drivers"), now: time.Now}
}

// startOfDay truncates to midnight UTC.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// startOfWeek returns the most recent Sunday midnight UTC.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// Dashboard summarizes today, this week and all time, plus the driver's
// rating.
func (s *DriverService) Dashboard(ctx context.Context, caller *models.Identity) (*models.DriverDashboard, error) {
	if caller == nil || caller.Role != models.RoleDriver {
		return nil, common.ErrForbidden
	}

	rides := s.repomanager.Rides(s.db)
	now := s.now()

	var dash models.DriverDashboard
	for _, w := range []struct {
		since time.Time
		dst   *models.Totals
	}{
		{startOfDay(now), &dash.Today},
		{startOfWeek(now), &dash.Week},
		{time.Time{}, &dash.AllTime},
	} {
		totals, err := rides.DriverTotals(ctx, caller.ID, w.since)
		if err != nil {
			s.logger.Error(ctx, "summing driver rides", "error", err)
			return nil, common.ErrorInternal
		}
		*w.dst = totals
	}

	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "loading driver", "error", err)
		return nil, common.ErrorInternal
	}
	dash.Rating = user.Rating

	return &dash, nil
}

// Earnings groups the driver's completed rides over a week (the default),
// month or year.
func (s *DriverService) Earnings(ctx context.Context, caller *models.Identity, period string) ([]models.EarningsBucket, error) {
	if caller == nil || caller.Role != models.RoleDriver {
		return nil, common.ErrForbidden
	}
	p, ok := models.ParsePeriod(period, models.PeriodWeek)
	if !ok {
		return nil, validationError("period must be one of week, month, year")
	}

	since, unit := p.Window(s.now())
	buckets, err := s.repomanager.Rides(s.db).DriverEarnings(ctx, caller.ID, since, unit)
	if err != nil {
		s.logger.Error(ctx, "grouping driver earnings", "error", err)
		return nil, common.ErrorInternal
	}
	return buckets, nil
}
