package httpapi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/services"
)

// memStore backs the fake services and the identity finder with one map,
// so admin changes are visible to the session resolver.
type memStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	passwords map[string]string
	rides     []*models.Ride
	issuer    *auth.Issuer
	creates   int
}

func newMemStore(issuer *auth.Issuer) *memStore {
	return &memStore{users: map[string]*models.User{}, passwords: map[string]string{}, issuer: issuer}
}

func (m *memStore) add(email string, role models.Role, password string) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &models.User{
		ID:        fmt.Sprintf("00000000-0000-0000-0000-%012d", len(m.users)+1),
		FirstName: "Test", LastName: "User", Email: email,
		Role: role, IsActive: true, CreatedAt: time.Now(),
	}
	m.users[u.ID] = u
	m.passwords[u.ID] = password
	return u
}

func (m *memStore) token(u *models.User) string {
	tok, _, err := m.issuer.Issue(u.ID)
	if err != nil {
		panic(err)
	}
	return tok
}

func (m *memStore) byEmail(email string) *models.User {
	for _, u := range m.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// IdentityFinder

func (m *memStore) FindIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u.Identity(), nil
}

// UserService

func (m *memStore) Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error) {
	if in.Password == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: please provide a valid email", common.ErrValidation)
	}
	email := strings.ToLower(in.Email)
	m.mu.Lock()
	dup := m.byEmail(email) != nil
	m.mu.Unlock()
	if dup {
		return nil, common.ErrDuplicateAccount
	}
	role, _ := models.ParseRole(in.Role)
	u := m.add(email, role, in.Password)
	m.mu.Lock()
	m.creates++
	m.mu.Unlock()
	return &services.AuthResult{Token: m.token(u), ExpiresAt: time.Now().Add(time.Hour), User: u}, nil
}

func (m *memStore) Login(ctx context.Context, email, password string) (*services.AuthResult, error) {
	m.mu.Lock()
	u := m.byEmail(strings.ToLower(email))
	var ok bool
	if u != nil {
		ok = m.passwords[u.ID] == password
	}
	m.mu.Unlock()
	if !ok {
		return nil, common.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, common.ErrAccountDisabled
	}
	return &services.AuthResult{Token: m.token(u), ExpiresAt: time.Now().Add(time.Hour), User: u}, nil
}

func (m *memStore) Me(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

// RideService

func (m *memStore) RequestRide(ctx context.Context, caller *models.Identity, in services.RideInput) (*models.Ride, error) {
	if caller.Role != models.RoleRider {
		return nil, common.ErrForbidden
	}
	if in.RideType == "panic" {
		panic("boom")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ride := &models.Ride{
		ID:      fmt.Sprintf("10000000-0000-0000-0000-%012d", len(m.rides)+1),
		RiderID: caller.ID, Pickup: in.Pickup, Destination: in.Destination,
		RideType: models.RideEconomy, Status: models.RideRequested,
		Distance: 5, EstimatedDuration: 15,
		Fare:      models.Fare{BaseFare: 2.5, DistanceFare: 6, Total: 8.5},
		CreatedAt: time.Now(),
	}
	m.rides = append(m.rides, ride)
	return ride, nil
}

func (m *memStore) History(ctx context.Context, caller *models.Identity) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Ride{}
	for i := len(m.rides) - 1; i >= 0; i-- {
		if m.rides[i].RiderID == caller.ID || m.rides[i].DriverID == caller.ID {
			out = append(out, m.rides[i])
		}
	}
	return out, nil
}

func (m *memStore) Cancel(ctx context.Context, caller *models.Identity, rideID, reason string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rides {
		if r.ID != rideID {
			continue
		}
		if r.RiderID != caller.ID {
			return nil, common.ErrForbidden
		}
		if !r.Status.Cancellable() {
			return nil, common.ErrInvalidRideState
		}
		r.Status = models.RideCancelled
		r.CancellationReason = reason
		return r, nil
	}
	return nil, common.ErrorNotFound
}

// AdminService

func (m *memStore) Dashboard(ctx context.Context) (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s models.Stats
	for _, u := range m.users {
		switch u.Role {
		case models.RoleRider:
			s.TotalUsers++
		case models.RoleDriver:
			s.TotalDrivers++
		}
	}
	s.TotalRides = int64(len(m.rides))
	return &s, nil
}

func (m *memStore) ListUsers(ctx context.Context, role string, page services.Page) ([]*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.User{}
	for _, u := range m.users {
		if role == "" || string(u.Role) == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) SetUserActive(ctx context.Context, id string, active bool) (*models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.IsActive = active
	return u.Identity(), nil
}

func (m *memStore) ToggleUserActive(ctx context.Context, id string) (*models.Identity, error) {
	m.mu.Lock()
	u, ok := m.users[id]
	m.mu.Unlock()
	if !ok {
		return nil, common.ErrorNotFound
	}
	return m.SetUserActive(ctx, id, !u.IsActive)
}

func (m *memStore) ListRides(ctx context.Context, status string, page services.Page) ([]*models.Ride, error) {
	if status == "bogus" {
		return nil, fmt.Errorf("%w: unknown ride status", common.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Ride{}
	for _, r := range m.rides {
		if status == "" || string(r.Status) == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) ride(id string) (*models.Ride, error) {
	for _, r := range m.rides {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memStore) Available(ctx context.Context, caller *models.Identity) ([]*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Ride{}
	for _, r := range m.rides {
		if r.Status == models.RideRequested {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) Accept(ctx context.Context, caller *models.Identity, rideID string) (*models.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.ride(rideID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RideRequested {
		return nil, common.ErrInvalidRideState
	}
	r.DriverID, r.Status = caller.ID, models.RideAccepted
	return r, nil
}

func (m *memStore) UpdateStatus(ctx context.Context, caller *models.Identity, rideID, status string) (*models.Ride, error) {
	next := models.RideStatus(status)
	if !models.DriverSettable(next) {
		return nil, fmt.Errorf("%w: unknown status", common.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.ride(rideID)
	if err != nil {
		return nil, err
	}
	if r.DriverID != caller.ID {
		return nil, common.ErrForbidden
	}
	if !r.Status.CanAdvanceTo(next) {
		return nil, common.ErrInvalidRideState
	}
	r.Status = next
	return r, nil
}

func (m *memStore) Rate(ctx context.Context, caller *models.Identity, rideID string, in services.RatingInput) (*models.Ride, error) {
	if in.Score < 1 || in.Score > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", common.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, err := m.ride(rideID)
	if err != nil {
		return nil, err
	}
	if caller.ID != r.RiderID {
		return nil, common.ErrForbidden
	}
	if r.Status != models.RideCompleted {
		return nil, common.ErrInvalidRideState
	}
	if r.RiderRating != nil {
		return nil, common.ErrAlreadyRated
	}
	r.RiderRating = &models.RideRating{Score: in.Score, Comment: in.Comment}
	return r, nil
}

func (m *memStore) Analytics(ctx context.Context, period string) (*models.Analytics, error) {
	p, ok := models.ParsePeriod(period, models.PeriodMonth)
	if !ok {
		return nil, fmt.Errorf("%w: unknown period", common.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.Analytics{
		Period:        p,
		Rides:         []models.RideActivity{{Total: int64(len(m.rides))}},
		Registrations: []models.Registrations{},
	}, nil
}

// driverDesk serves the driver endpoints off the same store.
type driverDesk struct{ *memStore }

func (d driverDesk) Dashboard(ctx context.Context, caller *models.Identity) (*models.DriverDashboard, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var dash models.DriverDashboard
	for _, r := range d.rides {
		if r.DriverID == caller.ID && r.Status == models.RideCompleted {
			dash.AllTime.Rides++
			dash.AllTime.Amount += r.Fare.Total
		}
	}
	return &dash, nil
}

func (d driverDesk) Earnings(ctx context.Context, caller *models.Identity, period string) ([]models.EarningsBucket, error) {
	if _, ok := models.ParsePeriod(period, models.PeriodWeek); !ok {
		return nil, fmt.Errorf("%w: unknown period", common.ErrValidation)
	}
	return []models.EarningsBucket{}, nil
}
