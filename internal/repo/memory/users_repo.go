package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/google/uuid"
)

// UsersRepo is an in-process account store for local runs and tests.
type UsersRepo struct {
	mu      sync.RWMutex
	items   map[string]user.User // id -> user
	byEmail map[string]string    // email -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[string]user.User),
		byEmail: make(map[string]string),
	}
}

func (r *UsersRepo) Create(_ context.Context, in user.NewUser) (user.User, error) {
	now := time.Now().UTC()
	email := user.NormalizeEmail(in.Email)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[email]; taken {
		return user.User{}, user.ErrEmailAlreadyUsed
	}

	u := user.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        email,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.items[u.ID] = u
	r.byEmail[email] = u.ID

	return clone(u), nil
}

func (r *UsersRepo) GetByID(_ context.Context, id string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return clone(u), nil
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[user.NormalizeEmail(email)]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}
	return clone(r.items[id]), nil
}

// SetConfirmation replaces any pending confirmation for the user.
func (r *UsersRepo) SetConfirmation(_ context.Context, id, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrUserNotFound
	}

	exp := expiresAt.UTC()
	u.EmailConfirmTokenHash = &tokenHash
	u.EmailConfirmExpiresAt = &exp
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

// ConsumeConfirmation authenticates the user holding tokenHash if it has not
// expired at now. Check and clear happen under one lock.
func (r *UsersRepo) ConsumeConfirmation(_ context.Context, tokenHash string, now time.Time) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, u := range r.items {
		if u.EmailConfirmTokenHash == nil || *u.EmailConfirmTokenHash != tokenHash {
			continue
		}
		if u.EmailConfirmExpiresAt == nil || !u.EmailConfirmExpiresAt.After(now) {
			return user.User{}, user.ErrConfirmationStale
		}

		u.Authenticated = true
		u.EmailConfirmTokenHash = nil
		u.EmailConfirmExpiresAt = nil
		u.UpdatedAt = time.Now().UTC()
		r.items[id] = u

		return clone(u), nil
	}

	return user.User{}, user.ErrConfirmationStale
}

func (r *UsersRepo) UpdateProfile(_ context.Context, id string, patch user.Patch) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}

	if patch.Name != nil {
		u.Name = *patch.Name
	}
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return clone(u), nil
}

func (r *UsersRepo) UpdatePassword(_ context.Context, id, passwordHash string, changedAt time.Time) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}

	at := changedAt.UTC()
	u.PasswordHash = passwordHash
	u.PasswordChangedAt = &at
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return clone(u), nil
}

func (r *UsersRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrUserNotFound
	}

	delete(r.items, id)
	delete(r.byEmail, u.Email)

	return nil
}

// clone detaches pointer fields so callers cannot mutate stored state.
func clone(u user.User) user.User {
	if u.EmailConfirmTokenHash != nil {
		v := *u.EmailConfirmTokenHash
		u.EmailConfirmTokenHash = &v
	}
	if u.EmailConfirmExpiresAt != nil {
		v := *u.EmailConfirmExpiresAt
		u.EmailConfirmExpiresAt = &v
	}
	if u.PasswordChangedAt != nil {
		v := *u.PasswordChangedAt
		u.PasswordChangedAt = &v
	}
	return u
}
