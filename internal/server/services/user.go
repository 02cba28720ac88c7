// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and the current profile.
package services

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

// RegisterInput is the self-service sign-up payload.
type RegisterInput struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Password    string
	Role        string
	VehicleInfo *models.VehicleInfo
}

// AuthResult is returned by a successful Register or Login.
type AuthResult struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// AuthObserver is notified about account events; metrics implement it.
type AuthObserver interface {
	Registered(role models.Role)
	LoggedIn(success bool)
}

type nopObserver struct{}

func (nopObserver) Registered(models.Role) {}
func (nopObserver) LoggedIn(bool)          {}

// UserService provides account operations:
// - Register: validate, hash and store a new account, then issue a token
// - Login: check credentials and issue a token
// - Me: load the caller's profile
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	hasher      *auth.Hasher
	issuer      *auth.Issuer
	logger      logging.Logger
	observer    AuthObserver

	// digest verified against when the email is unknown, so both paths
	// pay for one bcrypt comparison
	dummyDigest string
}

// NewUserService constructs a UserService. It hashes a throwaway password
// once up front, which only fails if the system entropy source does.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, hasher *auth.Hasher, issuer *auth.Issuer, l logging.Logger) (*UserService, error) {
	dummy, err := hasher.Hash("ridehail-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("preparing dummy digest: %w", err)
	}
	return &UserService{
		db:          db,
		repomanager: m,
		hasher:      hasher,
		issuer:      issuer,
		logger:      l.With("module", "users"),
		observer:    nopObserver{},
		dummyDigest: dummy,
	}, nil
}

// SetObserver replaces the account event observer.
func (s *UserService) SetObserver(o AuthObserver) {
	if o != nil {
		s.observer = o
	}
}

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", common.ErrValidation, msg)
}

func (in *RegisterInput) validate() (models.Role, error) {
	in.Email = models.NormalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.FirstName == "" {
		return "", validationError("first name is required")
	}
	if in.LastName == "" {
		return "", validationError("last name is required")
	}
	if !models.ValidEmail(in.Email) {
		return "", validationError("please provide a valid email")
	}
	if len([]rune(in.Password)) < minPasswordLength {
		return "", validationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	role, ok := models.ParseRole(in.Role)
	if !ok || role == models.RoleAdmin {
		return "", validationError("role must be rider or driver")
	}
	return role, nil
}

// Register creates a rider or driver account and logs it in. A second
// registration with the same email (case-insensitive) fails with
// common.ErrDuplicateAccount and stores nothing.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	role, err := in.validate()
	if err != nil {
		return nil, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		s.logger.Error(ctx, "hashing password", "error", err)
		return nil, common.ErrorInternal
	}

	user := &models.User{
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		Phone:        in.Phone,
		PasswordHash: digest,
		Role:         role,
		IsActive:     true,
	}
	if role == models.RoleDriver {
		user.VehicleInfo = in.VehicleInfo
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		_, err := repo.GetUserByEmail(ctx, user.Email)
		if err == nil {
			return common.ErrDuplicateAccount
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error checking email: %w", err)
		}

		// the unique index still catches a concurrent insert
		if _, err := repo.Create(ctx, user); err != nil {
			return fmt.Errorf("error creating user: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrDuplicateAccount) {
			return nil, common.ErrDuplicateAccount
		}
		s.logger.Error(ctx, "registering user", "error", err)
		return nil, common.ErrorInternal
	}

	s.observer.Registered(user.Role)
	s.logger.Info(ctx, "user registered", "user_id", user.ID, "role", string(user.Role))

	return s.issue(ctx, user)
}

// Login checks the email and password. Unknown email and wrong password
// are indistinguishable to the caller.
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = models.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			s.observer.LoggedIn(false)
			return nil, common.ErrInvalidCredentials
		}
		s.logger.Error(ctx, "loading user", "error", err)
		return nil, common.ErrorInternal
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.observer.LoggedIn(false)
		return nil, common.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.observer.LoggedIn(false)
		return nil, common.ErrAccountDisabled
	}

	s.observer.LoggedIn(true)
	return s.issue(ctx, user)
}

// Me returns the profile of an authenticated caller.
func (s *UserService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		s.logger.Error(ctx, "loading profile", "error", err)
		return nil, common.ErrorInternal
	}
	return user, nil
}

func (s *UserService) issue(ctx context.Context, user *models.User) (*AuthResult, error) {
	token, expires, err := s.issuer.Issue(user.ID)
	if err != nil {
		s.logger.Error(ctx, "issuing token", "error", err)
		return nil, common.ErrorInternal
	}
	return &AuthResult{Token: token, ExpiresAt: expires, User: user}, nil
}
