package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/collabtext/collabtext/internal/database"
	"github.com/collabtext/collabtext/internal/models"
)

// pgUniqueViolation is the SQLSTATE for unique constraint failures.
const pgUniqueViolation = "23505"

// PostgresUserRepository implements UserRepository on the app_users and roles tables.
type PostgresUserRepository struct {
	db database.DBTX
}

func NewPostgresUserRepository(db database.DBTX) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) EnsureRole(ctx context.Context, name string) (*models.Role, error) {
	query :=
		`INSERT INTO roles (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`

	role := &models.Role{Name: name}
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&role.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	query :=
		`INSERT INTO app_users (username, password, role_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, u.Username, u.Password, u.Role.ID).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}

const selectUser = `SELECT u.id, u.username, u.password, u.created_at, r.id, r.name
		 FROM app_users u JOIN roles r ON r.id = u.role_id`

func (r *PostgresUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.id = $1`, id)
}

func (r *PostgresUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, selectUser+` WHERE u.username = $1`, username)
}

func (r *PostgresUserRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&u.ID, &u.Username, &u.Password, &u.CreatedAt, &u.Role.ID, &u.Role.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return u, nil
}
