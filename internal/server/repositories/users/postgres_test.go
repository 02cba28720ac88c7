package users

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "7b0e3f9e-2c1a-4a8e-9d4b-1f2e3d4c5b6a"

var userCols = []string{"id", "first_name", "last_name", "email", "phone", "password_hash", "role",
	"is_verified", "is_active", "rating_avg", "rating_count", "vehicle_info", "created_at"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users\s*\(first_name,.*vehicle_info\)\s*VALUES\s*\(\$1,.*\$9\)\s*RETURNING\s+id,\s*created_at\s*$`).
		WithArgs("Ann", "Lee", "a@x.com", "+100", "digest", "driver", false, true, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(testUserID, created))

	u := &models.User{
		FirstName: "Ann", LastName: "Lee", Email: "a@x.com", Phone: "+100",
		PasswordHash: "digest", Role: models.RoleDriver, IsActive: true,
		VehicleInfo: &models.VehicleInfo{Make: "Toyota", Model: "Prius", LicensePlate: "AB-123"},
	}
	got, err := repo.Create(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, created, got.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := repo.Create(context.Background(), &models.User{Email: "a@x.com", Role: models.RoleRider})
	assert.ErrorIs(t, err, common.ErrDuplicateAccount)
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+users`).
		WillReturnError(errors.New("db down"))

	_, err := repo.Create(context.Background(), &models.User{Email: "a@x.com", Role: models.RoleRider})
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestGetUserByEmail_Found(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userCols).AddRow(
		testUserID, "Ann", "Lee", "a@x.com", "+100", "digest", "driver",
		true, true, 4.5, 10, []byte(`{"make":"Toyota","model":"Prius","license_plate":"AB-123"}`), time.Now())
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	got, err := repo.GetUserByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.ID)
	assert.Equal(t, models.RoleDriver, got.Role)
	assert.Equal(t, "digest", got.PasswordHash)
	assert.Equal(t, models.Rating{Average: 4.5, Count: 10}, got.Rating)
	require.NotNil(t, got.VehicleInfo)
	assert.Equal(t, "AB-123", got.VehicleInfo.LicensePlate)
}

func TestGetUserByEmail_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+email`).
		WithArgs("ghost@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetUserByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGetUserByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userCols).AddRow(
		testUserID, "Bob", "Ray", "b@x.com", "", "digest", "rider",
		false, true, 0.0, 0, nil, time.Now())
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`).
		WithArgs(testUserID).
		WillReturnRows(rows)

	got, err := repo.GetUserByID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.FirstName)
	assert.Nil(t, got.VehicleInfo)

	_, err = repo.GetUserByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindIdentityByID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+id,\s*is_active,\s*role\s+FROM\s+users\s+WHERE\s+id\s*=\s*\$1\s*$`

	mock.ExpectQuery(q).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "role"}).AddRow(testUserID, false, "admin"))

	got, err := repo.FindIdentityByID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, &models.Identity{ID: testUserID, Active: false, Role: models.RoleAdmin}, got)

	mock.ExpectQuery(q).WithArgs(testUserID).WillReturnError(sql.ErrNoRows)
	_, err = repo.FindIdentityByID(context.Background(), testUserID)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	mock.ExpectQuery(q).WithArgs(testUserID).WillReturnError(context.DeadlineExceeded)
	_, err = repo.FindIdentityByID(context.Background(), testUserID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = repo.FindIdentityByID(context.Background(), "u1")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestList(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	rows := sqlmock.NewRows(userCols).
		AddRow(testUserID, "Ann", "Lee", "a@x.com", "", "d", "driver", true, true, 0.0, 0, nil, time.Now()).
		AddRow("11111111-2222-3333-4444-555555555555", "Cid", "Moe", "c@x.com", "", "d", "driver", false, false, 0.0, 0, nil, time.Now())
	mock.ExpectQuery(`(?s)^SELECT\s+id,.*FROM\s+users\s+WHERE\s+\(\$1\s*=\s*''\s+OR\s+role\s*=\s*\$1\)\s+ORDER\s+BY\s+created_at\s+DESC\s+LIMIT\s+\$2\s+OFFSET\s+\$3\s*$`).
		WithArgs("driver", 20, 40).
		WillReturnRows(rows)

	got, err := repo.List(context.Background(), models.RoleDriver, 20, 40)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[1].IsActive)
}

func TestCountByRole(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+COUNT\(\*\)\s+FROM\s+users\s+WHERE`
	mock.ExpectQuery(q).WithArgs("rider").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	n, err := repo.CountByRole(context.Background(), models.RoleRider)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	mock.ExpectQuery(q).WithArgs("").WillReturnError(errors.New("db err"))
	_, err = repo.CountByRole(context.Background(), "")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestSetActive(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+is_active\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+id,\s*is_active,\s*role\s*$`

	mock.ExpectQuery(q).
		WithArgs(testUserID, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "role"}).AddRow(testUserID, false, "rider"))

	got, err := repo.SetActive(context.Background(), testUserID, false)
	require.NoError(t, err)
	assert.False(t, got.Active)

	mock.ExpectQuery(q).WithArgs(testUserID, true).WillReturnError(sql.ErrNoRows)
	_, err = repo.SetActive(context.Background(), testUserID, true)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAddRating(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+users\s+SET\s+rating_avg\s*=\s*\(rating_avg\s*\*\s*rating_count\s*\+\s*\$2\)\s*/\s*\(rating_count\s*\+\s*1\),\s*rating_count\s*=\s*rating_count\s*\+\s*1\s+WHERE\s+id\s*=\s*\$1\s+RETURNING\s+rating_avg,\s*rating_count`

	mock.ExpectQuery(q).WithArgs(testUserID, 4).
		WillReturnRows(sqlmock.NewRows([]string{"rating_avg", "rating_count"}).AddRow(4.5, 2))

	got, err := repo.AddRating(context.Background(), testUserID, 4)
	require.NoError(t, err)
	assert.Equal(t, models.Rating{Average: 4.5, Count: 2}, got)

	mock.ExpectQuery(q).WithArgs(testUserID, 5).WillReturnError(sql.ErrNoRows)
	_, err = repo.AddRating(context.Background(), testUserID, 5)
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = repo.AddRating(context.Background(), "bad-id", 5)
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrations(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	day := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`(?s)^SELECT\s+date_trunc\(\$2,\s*created_at\)\s+AS\s+bucket,\s*role,\s*COUNT\(\*\)\s+FROM\s+users\s+WHERE\s+created_at\s*>=\s*\$1\s+GROUP\s+BY\s+bucket,\s*role`).
		WithArgs(since, "day").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "role", "count"}).
			AddRow(day, "driver", int64(1)).
			AddRow(day, "rider", int64(4)))

	got, err := repo.Registrations(context.Background(), since, "day")
	require.NoError(t, err)
	assert.Equal(t, []models.Registrations{
		{Start: day, Role: models.RoleDriver, Count: 1},
		{Start: day, Role: models.RoleRider, Count: 4},
	}, got)

	mock.ExpectQuery(`(?s)^SELECT\s+date_trunc`).WillReturnError(errors.New("db err"))
	_, err = repo.Registrations(context.Background(), since, "day")
	if err == nil || !regexp.MustCompile(`db error: .*db err`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
