package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/geocoder89/vaulthub/internal/domain/vault"
	"github.com/google/uuid"
)

type VaultRepo struct {
	mu    sync.RWMutex
	items map[string]vault.Entry
}

func NewVaultRepo() *VaultRepo {
	return &VaultRepo{
		items: make(map[string]vault.Entry),
	}
}

func (r *VaultRepo) Create(_ context.Context, in vault.NewEntry) (vault.Entry, error) {
	now := time.Now().UTC()
	e := vault.Entry{
		ID:                uuid.NewString(),
		OwnerID:           in.OwnerID,
		HubName:           in.HubName,
		Email:             in.Email,
		EncryptedPassword: append([]byte(nil), in.EncryptedPassword...),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	r.mu.Lock()
	r.items[e.ID] = e
	r.mu.Unlock()

	return e, nil
}

// ListByOwner returns the owner's entries, newest first.
func (r *VaultRepo) ListByOwner(_ context.Context, ownerID string) ([]vault.Entry, error) {
	r.mu.RLock()
	out := make([]vault.Entry, 0)
	for _, e := range r.items {
		if e.OwnerID == ownerID {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out, nil
}

func (r *VaultRepo) Update(_ context.Context, ownerID, id string, patch vault.Patch) (vault.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok || e.OwnerID != ownerID {
		return vault.Entry{}, vault.ErrEntryNotFound
	}

	if patch.HubName != nil {
		e.HubName = *patch.HubName
	}
	if patch.Email != nil {
		e.Email = *patch.Email
	}
	if patch.EncryptedPassword != nil {
		e.EncryptedPassword = append([]byte(nil), patch.EncryptedPassword...)
	}
	e.UpdatedAt = time.Now().UTC()
	r.items[id] = e

	return e, nil
}

func (r *VaultRepo) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.items[id]
	if !ok || e.OwnerID != ownerID {
		return vault.ErrEntryNotFound
	}

	delete(r.items, id)
	return nil
}
