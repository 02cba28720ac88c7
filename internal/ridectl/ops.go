// Package ridectl implements the operator commands of the ridehail backend:
// schema migration, admin bootstrap and demo data.
package ridectl

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/dbx"
	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/auth"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/dmitrijs2005/ridehail/internal/server/repositories/repomanager"
)

const minPasswordLength = 6

type Ops struct {
	db     *sql.DB
	rm     repomanager.RepositoryManager
	hasher *auth.Hasher
	logger logging.Logger
}

func NewOps(db *sql.DB, rm repomanager.RepositoryManager, hasher *auth.Hasher, l logging.Logger) *Ops {
	return &Ops{db: db, rm: rm, hasher: hasher, logger: l.With("module", "ridectl")}
}

func (o *Ops) Migrate(ctx context.Context) error {
	if err := o.rm.RunMigrations(ctx, o.db); err != nil {
		return err
	}
	o.logger.Info(ctx, "migrations applied")
	return nil
}

type AdminInput struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Password  string
}

// CreateAdmin inserts a verified, active admin account. Admins cannot
// register through the API, so this is the only way to create one.
func (o *Ops) CreateAdmin(ctx context.Context, in AdminInput) (*models.User, error) {
	email := models.NormalizeEmail(in.Email)
	if !models.ValidEmail(email) {
		return nil, fmt.Errorf("%w: invalid email %q", common.ErrValidation, in.Email)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLength)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", common.ErrValidation)
	}

	digest, err := o.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user, err := o.rm.Users(o.db).Create(ctx, &models.User{
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: digest,
		Role:         models.RoleAdmin,
		IsVerified:   true,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}

	o.logger.Info(ctx, "admin created", "user_id", user.ID)
	return user, nil
}

// DemoPassword is shared by every seeded account.
const DemoPassword = "password"

type SeedReport struct {
	Created int
	Skipped int
	Rides   int
}

var demoUsers = []models.User{
	{FirstName: "Demo", LastName: "User", Email: "user@demo.com", Phone: "+1234567890", Role: models.RoleRider},
	{FirstName: "Demo", LastName: "Driver", Email: "driver@demo.com", Phone: "+1234567891", Role: models.RoleDriver,
		VehicleInfo: &models.VehicleInfo{Make: "Toyota", Model: "Camry", Year: 2020, Color: "Black", LicensePlate: "ABC123"}},
	{FirstName: "Admin", LastName: "User", Email: "admin@demo.com", Phone: "+1234567892", Role: models.RoleAdmin},
	{FirstName: "John", LastName: "Smith", Email: "john.smith@demo.com", Phone: "+1234567893", Role: models.RoleDriver,
		VehicleInfo: &models.VehicleInfo{Make: "Honda", Model: "Accord", Year: 2021, Color: "White", LicensePlate: "XYZ789"}},
	{FirstName: "Sarah", LastName: "Johnson", Email: "sarah.johnson@demo.com", Phone: "+1234567894", Role: models.RoleRider},
}

func demoRides(riderID, driverID string, completedAt time.Time) []*models.Ride {
	return []*models.Ride{
		{
			RiderID:           riderID,
			DriverID:          driverID,
			Pickup:            models.Location{Address: "Times Square, New York, NY", Coordinates: []float64{-73.9857, 40.7589}},
			Destination:       models.Location{Address: "Central Park, New York, NY", Coordinates: []float64{-73.9654, 40.7829}},
			RideType:          models.RideEconomy,
			Status:            models.RideCompleted,
			Distance:          2.3,
			EstimatedDuration: 8,
			Fare:              models.Fare{BaseFare: 2.50, DistanceFare: 2.76, Total: 5.26},
			CompletedAt:       &completedAt,
		},
		{
			RiderID:           riderID,
			Pickup:            models.Location{Address: "Brooklyn Bridge, New York, NY", Coordinates: []float64{-73.9969, 40.7061}},
			Destination:       models.Location{Address: "Manhattan Bridge, New York, NY", Coordinates: []float64{-73.9904, 40.7092}},
			RideType:          models.RideEconomy,
			Status:            models.RideRequested,
			Distance:          1.2,
			EstimatedDuration: 5,
			Fare:              models.Fare{BaseFare: 2.50, DistanceFare: 1.44, Total: 3.94},
		},
	}
}

// Seed inserts the demo accounts in one transaction. Accounts whose email
// already exists are left untouched, and the demo rides are only added when
// the demo rider and driver were created by this run, so seeding twice is
// harmless.
func (o *Ops) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	err := dbx.WithTx(ctx, o.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		report = SeedReport{}
		users := o.rm.Users(tx)
		created := make(map[models.Role]string)

		for _, demo := range demoUsers {
			_, err := users.GetUserByEmail(ctx, demo.Email)
			if err == nil {
				report.Skipped++
				continue
			}
			if !errors.Is(err, common.ErrorNotFound) {
				return err
			}

			digest, err := o.hasher.Hash(DemoPassword)
			if err != nil {
				return err
			}

			u := demo
			u.PasswordHash = digest
			u.IsVerified = true
			u.IsActive = true
			if _, err := users.Create(ctx, &u); err != nil {
				return err
			}
			report.Created++
			if _, ok := created[u.Role]; !ok {
				created[u.Role] = u.ID
			}
		}

		riderID, okRider := created[models.RoleRider]
		driverID, okDriver := created[models.RoleDriver]
		if !okRider || !okDriver {
			return nil
		}

		rides := o.rm.Rides(tx)
		for _, ride := range demoRides(riderID, driverID, time.Now()) {
			if _, err := rides.Create(ctx, ride); err != nil {
				return err
			}
			report.Rides++
		}
		return nil
	})
	if err != nil {
		return SeedReport{}, fmt.Errorf("seeding: %w", err)
	}

	o.logger.Info(ctx, "demo data seeded", "created", report.Created, "skipped", report.Skipped, "rides", report.Rides)
	return report, nil
}
