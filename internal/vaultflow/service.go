package vaultflow

import (
	"context"
	"errors"
	"strings"

	"github.com/geocoder89/vaulthub/internal/apperr"
	"github.com/geocoder89/vaulthub/internal/domain/vault"
	"github.com/geocoder89/vaulthub/internal/security"
	"github.com/geocoder89/vaulthub/internal/validation"
)

const (
	msgNotFound        = "Password not found"
	msgNothingToUpdate = "Provide at least one field to update"
)

type Store interface {
	Create(ctx context.Context, in vault.NewEntry) (vault.Entry, error)
	ListByOwner(ctx context.Context, ownerID string) ([]vault.Entry, error)
	Update(ctx context.Context, ownerID, id string, patch vault.Patch) (vault.Entry, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Service is owner-scoped CRUD over vault entries. An entry that exists but
// belongs to someone else is reported as not found.
type Service struct {
	store  Store
	cipher security.VaultCipher
}

func NewService(store Store, cipher security.VaultCipher) *Service {
	return &Service{store: store, cipher: cipher}
}

func (s *Service) Create(ctx context.Context, ownerID string, in vault.CreateEntryInput) (vault.EntryView, error) {
	in.HubName = strings.TrimSpace(in.HubName)
	in.Email = strings.TrimSpace(in.Email)

	if err := validation.Struct(in); err != nil {
		return vault.EntryView{}, validationError(err)
	}

	sealed, err := s.cipher.Seal(ownerID, in.Password)
	if err != nil {
		return vault.EntryView{}, apperr.Internal(err)
	}

	e, err := s.store.Create(ctx, vault.NewEntry{
		OwnerID:           ownerID,
		HubName:           in.HubName,
		Email:             in.Email,
		EncryptedPassword: sealed,
	})
	if err != nil {
		return vault.EntryView{}, apperr.Internal(err)
	}

	return vault.EntryView{
		ID:        e.ID,
		HubName:   e.HubName,
		Email:     e.Email,
		Password:  in.Password,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func (s *Service) ListMine(ctx context.Context, ownerID string) ([]vault.EntryView, error) {
	entries, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	out := make([]vault.EntryView, 0, len(entries))
	for _, e := range entries {
		v, err := s.view(e)
		if err != nil {
			return nil, apperr.Internal(err)
		}
		out = append(out, v)
	}

	return out, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id string, in vault.UpdateEntryInput) (vault.EntryView, error) {
	if in.HubName != nil {
		v := strings.TrimSpace(*in.HubName)
		in.HubName = &v
	}
	if in.Email != nil {
		v := strings.TrimSpace(*in.Email)
		in.Email = &v
	}

	if err := validation.Struct(in); err != nil {
		return vault.EntryView{}, validationError(err)
	}
	if in.Empty() {
		return vault.EntryView{}, apperr.New(apperr.KindValidation, msgNothingToUpdate)
	}

	patch := vault.Patch{HubName: in.HubName, Email: in.Email}

	if in.Password != nil {
		sealed, err := s.cipher.Seal(ownerID, *in.Password)
		if err != nil {
			return vault.EntryView{}, apperr.Internal(err)
		}
		patch.EncryptedPassword = sealed
	}

	e, err := s.store.Update(ctx, ownerID, id, patch)
	if err != nil {
		if errors.Is(err, vault.ErrEntryNotFound) {
			return vault.EntryView{}, apperr.New(apperr.KindNotFound, msgNotFound)
		}
		return vault.EntryView{}, apperr.Internal(err)
	}

	v, err := s.view(e)
	if err != nil {
		return vault.EntryView{}, apperr.Internal(err)
	}
	return v, nil
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.store.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, vault.ErrEntryNotFound) {
			return apperr.New(apperr.KindNotFound, msgNotFound)
		}
		return apperr.Internal(err)
	}
	return nil
}

func (s *Service) view(e vault.Entry) (vault.EntryView, error) {
	plain, err := s.cipher.Open(e.OwnerID, e.EncryptedPassword)
	if err != nil {
		return vault.EntryView{}, err
	}

	return vault.EntryView{
		ID:        e.ID,
		HubName:   e.HubName,
		Email:     e.Email,
		Password:  plain,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

func validationError(err error) error {
	msg, fields, ok := validation.Describe(err)
	if !ok {
		return apperr.Internal(err)
	}
	return apperr.WithDetails(apperr.KindValidation, msg, fields)
}
