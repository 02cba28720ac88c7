package users

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

const userColumns = `id, first_name, last_name, email, phone, password_hash, role,
		 is_verified, is_active, rating_avg, rating_count, vehicle_info, created_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u       models.User
		role    string
		vehicle []byte
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Phone, &u.PasswordHash, &role,
		&u.IsVerified, &u.IsActive, &u.Rating.Average, &u.Rating.Count, &vehicle, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	if len(vehicle) > 0 {
		u.VehicleInfo = &models.VehicleInfo{}
		if err := json.Unmarshal(vehicle, u.VehicleInfo); err != nil {
			return nil, fmt.Errorf("decoding vehicle info: %w", err)
		}
	}
	return &u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	var vehicle []byte
	if user.VehicleInfo != nil {
		b, err := json.Marshal(user.VehicleInfo)
		if err != nil {
			return nil, fmt.Errorf("encoding vehicle info: %w", err)
		}
		vehicle = b
	}

	query :=
		`INSERT INTO users (first_name, last_name, email, phone, password_hash, role, is_verified, is_active, vehicle_info)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query,
		user.FirstName, user.LastName, user.Email, user.Phone, user.PasswordHash, string(user.Role),
		user.IsVerified, user.IsActive, vehicle).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, common.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE email = $1
		 `

	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users
		 WHERE id = $1
		 `

	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) FindIdentityByID(ctx context.Context, id string) (*models.Identity, error) {
	// subjects that are not UUIDs cannot exist; skip the round trip
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query :=
		`SELECT id, is_active, role FROM users
		 WHERE id = $1
		 `

	var (
		identity models.Identity
		role     string
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&identity.ID, &identity.Active, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	identity.Role = models.Role(role)

	return &identity, nil
}

func (r *PostgresRepository) List(ctx context.Context, role models.Role, limit, offset int) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		 WHERE ($1 = '' OR role = $1)
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3
		 `

	rows, err := r.db.QueryContext(ctx, query, string(role), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) CountByRole(ctx context.Context, role models.Role) (int64, error) {
	query :=
		`SELECT COUNT(*) FROM users
		 WHERE ($1 = '' OR role = $1)
		 `

	var n int64
	if err := r.db.QueryRowContext(ctx, query, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, id string, active bool) (*models.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, common.ErrorNotFound
	}

	query :=
		`UPDATE users SET is_active = $2
		 WHERE id = $1
		 RETURNING id, is_active, role
		 `

	var (
		identity models.Identity
		role     string
	)
	err := r.db.QueryRowContext(ctx, query, id, active).Scan(&identity.ID, &identity.Active, &role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	identity.Role = models.Role(role)

	return &identity, nil
}

// AddRating folds score into the user's running average.
func (r *PostgresRepository) AddRating(ctx context.Context, id string, score int) (models.Rating, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Rating{}, common.ErrorNotFound
	}

	query :=
		`UPDATE users
		 SET rating_avg = (rating_avg * rating_count + $2) / (rating_count + 1),
		     rating_count = rating_count + 1
		 WHERE id = $1
		 RETURNING rating_avg, rating_count
		 `

	var rating models.Rating
	err := r.db.QueryRowContext(ctx, query, id, score).Scan(&rating.Average, &rating.Count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Rating{}, common.ErrorNotFound
		}
		return models.Rating{}, fmt.Errorf("db error: %w", err)
	}

	return rating, nil
}

// Registrations counts sign-ups since the given instant per unit bucket and
// role.
func (r *PostgresRepository) Registrations(ctx context.Context, since time.Time, unit string) ([]models.Registrations, error) {
	query :=
		`SELECT date_trunc($2, created_at) AS bucket, role, COUNT(*)
		 FROM users
		 WHERE created_at >= $1
		 GROUP BY bucket, role
		 ORDER BY bucket, role
		 `

	rows, err := r.db.QueryContext(ctx, query, since, unit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.Registrations{}
	for rows.Next() {
		var (
			reg  models.Registrations
			role string
		)
		if err := rows.Scan(&reg.Start, &role, &reg.Count); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		reg.Role = models.Role(role)
		result = append(result, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
