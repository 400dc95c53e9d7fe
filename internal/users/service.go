package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/collabtext/collabtext/internal/models"
)

// externalPassword marks accounts provisioned from an external identity
// provider. It is not a valid bcrypt hash, so password login always fails.
const externalPassword = "!external"

// Service encapsulates user-related business logic
type Service struct {
	repo UserRepository
	cost int
}

func NewService(r UserRepository) *Service {
	return &Service{repo: r, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// Register creates an account with the default role and a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	role, err := s.repo.EnsureRole(ctx, models.DefaultRole)
	if err != nil {
		return nil, fmt.Errorf("ensure role: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.Create(ctx, &models.User{Username: username, Password: string(hash), Role: *role})
}

// Authenticate returns the user when the password matches its stored hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// EnsureExternal returns the local account for an identity verified by the
// OIDC provider, creating it on first sight.
func (s *Service) EnsureExternal(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	role, err := s.repo.EnsureRole(ctx, models.DefaultRole)
	if err != nil {
		return nil, fmt.Errorf("ensure role: %w", err)
	}
	u, err = s.repo.Create(ctx, &models.User{Username: username, Password: externalPassword, Role: *role})
	if errors.Is(err, ErrUsernameTaken) {
		return s.repo.GetByUsername(ctx, username)
	}
	return u, err
}

func (s *Service) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetByUsername(ctx, username)
}
