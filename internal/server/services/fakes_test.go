package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/dbx"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	ridesrepo "github.com/dmitrijs2005/ridehail/internal/server/repositories/rides"
	usersrepo "github.com/dmitrijs2005/ridehail/internal/server/repositories/users"
)

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

// fakeUsersRepo is an in-memory users.Repository keyed by email.
type fakeUsersRepo struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	nextID  int
	creates int

	getErr    error
	countErr  error
	ratingErr error

	regs     []models.Registrations
	lastUnit string
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byEmail: map[string]*models.User{}}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrDuplicateAccount
	}
	f.nextID++
	f.creates++
	u.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", f.nextID)
	u.CreatedAt = time.Now()
	f.byEmail[u.Email] = u
	return u, nil
}

func (f *fakeUsersRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) byID(id string) (*models.User, bool) {
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, true
		}
	}
	return nil, false
}

func (f *fakeUsersRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.byID(id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) FindIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	u, err := f.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Identity(), nil
}

func (f *fakeUsersRepo) List(ctx context.Context, role models.Role, limit, offset int) ([]*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []*models.User
	for _, u := range f.byEmail {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return []*models.User{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsersRepo) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, u := range f.byEmail {
		if role == "" || u.Role == role {
			n++
		}
	}
	return n, nil
}

func (f *fakeUsersRepo) SetActive(ctx context.Context, id string, active bool) (*models.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID(id)
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.IsActive = active
	return u.Identity(), nil
}

func (f *fakeUsersRepo) AddRating(ctx context.Context, id string, score int) (models.Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratingErr != nil {
		return models.Rating{}, f.ratingErr
	}
	u, ok := f.byID(id)
	if !ok {
		return models.Rating{}, common.ErrorNotFound
	}
	r := &u.Rating
	r.Average = (r.Average*float64(r.Count) + float64(score)) / float64(r.Count+1)
	r.Count++
	return *r, nil
}

func (f *fakeUsersRepo) Registrations(ctx context.Context, since time.Time, unit string) ([]models.Registrations, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.lastUnit = unit
	return f.regs, nil
}

// fakeRidesRepo keeps rides in insertion order.
type fakeRidesRepo struct {
	mu    sync.Mutex
	rides []*models.Ride

	createErr error
	listErr   error
	lastLimit int
	lastOff   int

	// aggregates are served as configured; the last window is recorded.
	totals    map[time.Time]models.Totals
	earnings  []models.EarningsBucket
	activity  []models.RideActivity
	lastSince time.Time
	lastUnit  string
}

func (f *fakeRidesRepo) Create(ctx context.Context, r *models.Ride) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	if r.ID == "" {
		r.ID = fmt.Sprintf("10000000-0000-0000-0000-%012d", len(f.rides)+1)
	}
	r.CreatedAt = time.Now()
	f.rides = append(f.rides, r)
	return r, nil
}

func (f *fakeRidesRepo) GetByID(ctx context.Context, id string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rides {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRidesRepo) filter(keep func(*models.Ride) bool) ([]*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []*models.Ride{}
	for i := len(f.rides) - 1; i >= 0; i-- {
		if keep(f.rides[i]) {
			out = append(out, f.rides[i])
		}
	}
	return out, nil
}

func (f *fakeRidesRepo) ListByRider(ctx context.Context, riderID string) ([]*models.Ride, error) {
	return f.filter(func(r *models.Ride) bool { return r.RiderID == riderID })
}

func (f *fakeRidesRepo) ListByDriver(ctx context.Context, driverID string) ([]*models.Ride, error) {
	return f.filter(func(r *models.Ride) bool { return r.DriverID == driverID })
}

func (f *fakeRidesRepo) List(ctx context.Context, status models.RideStatus, limit, offset int) ([]*models.Ride, error) {
	f.lastLimit, f.lastOff = limit, offset
	return f.filter(func(r *models.Ride) bool { return status == "" || r.Status == status })
}

func (f *fakeRidesRepo) Count(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return 0, f.listErr
	}
	return int64(len(f.rides)), nil
}

func (f *fakeRidesRepo) Cancel(ctx context.Context, id, reason string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rides {
		if r.ID == id {
			if !r.Status.Cancellable() {
				return nil, common.ErrInvalidRideState
			}
			r.Status = models.RideCancelled
			r.CancellationReason = reason
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRidesRepo) find(id string) (*models.Ride, error) {
	for _, r := range f.rides {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeRidesRepo) Accept(ctx context.Context, id, driverID string) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.find(id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RideRequested {
		return nil, common.ErrInvalidRideState
	}
	r.DriverID = driverID
	r.Status = models.RideAccepted
	return r, nil
}

func (f *fakeRidesRepo) Advance(ctx context.Context, id string, from, to models.RideStatus) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.find(id)
	if err != nil {
		return nil, err
	}
	if r.Status != from {
		return nil, common.ErrInvalidRideState
	}
	r.Status = to
	if to == models.RideCompleted {
		now := time.Now()
		r.CompletedAt = &now
	}
	return r, nil
}

func (f *fakeRidesRepo) Rate(ctx context.Context, id string, side models.Role, rating models.RideRating) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := f.find(id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RideCompleted || r.RatingBy(side) != nil {
		return nil, common.ErrInvalidRideState
	}
	if side == models.RoleRider {
		r.RiderRating = &rating
	} else {
		r.DriverRating = &rating
	}
	return r, nil
}

func (f *fakeRidesRepo) DriverTotals(ctx context.Context, driverID string, since time.Time) (models.Totals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return models.Totals{}, f.listErr
	}
	return f.totals[since], nil
}

func (f *fakeRidesRepo) DriverEarnings(ctx context.Context, driverID string, since time.Time, unit string) ([]models.EarningsBucket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.lastSince, f.lastUnit = since, unit
	return f.earnings, nil
}

func (f *fakeRidesRepo) Activity(ctx context.Context, since time.Time, unit string) ([]models.RideActivity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.lastSince, f.lastUnit = since, unit
	return f.activity, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	r *fakeRidesRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), r: &fakeRidesRepo{}}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(db dbx.DBTX) usersrepo.Repository       { return m.u }
func (m *fakeRepoManager) Rides(db dbx.DBTX) ridesrepo.Repository       { return m.r }
