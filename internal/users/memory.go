package users

import (
	"context"
	"sync"
	"time"

	"github.com/collabtext/collabtext/internal/models"
)

// MemoryUserRepository keeps users in process memory. Used by tests and
// STORE_BACKEND=memory.
type MemoryUserRepository struct {
	mu       sync.RWMutex
	nextUser int64
	nextRole int64
	users    map[int64]*models.User
	byName   map[string]int64
	roles    map[string]*models.Role
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users:  make(map[int64]*models.User),
		byName: make(map[string]int64),
		roles:  make(map[string]*models.Role),
	}
}

func (r *MemoryUserRepository) EnsureRole(ctx context.Context, name string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if role, ok := r.roles[name]; ok {
		cp := *role
		return &cp, nil
	}
	r.nextRole++
	role := &models.Role{ID: r.nextRole, Name: name}
	r.roles[name] = role
	cp := *role
	return &cp, nil
}

func (r *MemoryUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[u.Username]; ok {
		return nil, ErrUsernameTaken
	}
	r.nextUser++
	u.ID = r.nextUser
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	r.users[u.ID] = &cp
	r.byName[u.Username] = u.ID
	return u, nil
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	id, ok := r.byName[username]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
