// Package users declares the account store contract and its PostgreSQL
// implementation.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/server/models"
)

// Repository is the account store. Lookups return common.ErrorNotFound when
// nothing matches; Create returns common.ErrDuplicateAccount on an email
// collision.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// FindIdentityByID returns only the fields needed to authorize a request.
	FindIdentityByID(ctx context.Context, id string) (*models.Identity, error)

	// List returns users newest first; an empty role means every role.
	List(ctx context.Context, role models.Role, limit, offset int) ([]*models.User, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	SetActive(ctx context.Context, id string, active bool) (*models.Identity, error)

	// AddRating folds a 1-5 score into the user's running average.
	AddRating(ctx context.Context, id string, score int) (models.Rating, error)
	Registrations(ctx context.Context, since time.Time, unit string) ([]models.Registrations, error)
}
