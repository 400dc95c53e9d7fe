package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/collabtext/collabtext/internal/models"
)

func newPgRepoWithMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewPostgresUserRepository(db), mock, db
}

func TestPostgresEnsureRole(t *testing.T) {
	repo, mock, db := newPgRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+roles\s*\(name\)\s*VALUES\s*\(\$1\).*RETURNING\s+id$`).
		WithArgs("USER").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	role, err := repo.EnsureRole(context.Background(), "USER")
	require.NoError(t, err)
	require.Equal(t, int64(3), role.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate(t *testing.T) {
	repo, mock, db := newPgRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+app_users\s*\(username,\s*password,\s*role_id\).*RETURNING\s+id,\s*created_at$`
	now := time.Now()
	mock.ExpectQuery(q).
		WithArgs("alice", "hash", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))

	u, err := repo.Create(context.Background(), &models.User{Username: "alice", Password: "hash", Role: models.Role{ID: 1, Name: "USER"}})
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ID)

	mock.ExpectQuery(q).
		WithArgs("alice", "hash", int64(1)).
		WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	_, err = repo.Create(context.Background(), &models.User{Username: "alice", Password: "hash", Role: models.Role{ID: 1}})
	require.ErrorIs(t, err, ErrUsernameTaken)

	mock.ExpectQuery(q).
		WithArgs("bob", "hash", int64(1)).
		WillReturnError(errors.New("db down"))
	_, err = repo.Create(context.Background(), &models.User{Username: "bob", Password: "hash", Role: models.Role{ID: 1}})
	require.ErrorContains(t, err, "db error: db down")
}

func TestPostgresGetByUsername(t *testing.T) {
	repo, mock, db := newPgRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+u\.id,.*FROM\s+app_users\s+u\s+JOIN\s+roles\s+r.*WHERE\s+u\.username\s*=\s*\$1$`
	cols := []string{"id", "username", "password", "created_at", "role_id", "role_name"}
	mock.ExpectQuery(q).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(1), "alice", "hash", time.Now(), int64(1), "USER"))

	u, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
	require.Equal(t, "USER", u.Role.Name)

	mock.ExpectQuery(q).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresGetByID_NotFound(t *testing.T) {
	repo, mock, db := newPgRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`(?s)WHERE\s+u\.id\s*=\s*\$1$`).WithArgs(int64(9)).WillReturnError(sql.ErrNoRows)
	_, err := repo.GetByID(context.Background(), 9)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
