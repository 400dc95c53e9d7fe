package users

import (
	"context"
	"errors"

	"github.com/collabtext/collabtext/internal/models"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// UserRepository defines persistence operations for users and roles
type UserRepository interface {
	// EnsureRole returns the named role, creating it when missing.
	EnsureRole(ctx context.Context, name string) (*models.Role, error)
	// Create stores u and sets its ID. Duplicate usernames yield ErrUsernameTaken.
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}
