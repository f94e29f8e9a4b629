package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/vaulthub/internal/domain/vault"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const vaultColumns = `id, owner_id, hub_name, email, encrypted_password, created_at, updated_at`

type VaultRepo struct {
	db  DBTX
	obs DBObserver
}

func NewVaultRepo(db DBTX, obs DBObserver) *VaultRepo {
	return &VaultRepo{db: db, obs: observerOrNoop(obs)}
}

func scanEntry(row pgx.Row) (vault.Entry, error) {
	var e vault.Entry

	err := row.Scan(&e.ID, &e.OwnerID, &e.HubName, &e.Email, &e.EncryptedPassword, &e.CreatedAt, &e.UpdatedAt)

	return e, err
}

func (r *VaultRepo) Create(ctx context.Context, in vault.NewEntry) (vault.Entry, error) {
	var e vault.Entry

	now := time.Now().UTC()

	err := r.obs.ObserveDB("vault.create", func() error {
		var err error
		e, err = scanEntry(r.db.QueryRow(ctx,
			`INSERT INTO vault_entries (id, owner_id, hub_name, email, encrypted_password, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $6)
			 RETURNING `+vaultColumns,
			uuid.NewString(), in.OwnerID, in.HubName, in.Email, in.EncryptedPassword, now,
		))
		return err
	})

	if err != nil {
		return vault.Entry{}, oops.With("operation", "create vault entry").With("owner_id", in.OwnerID).Wrap(err)
	}

	return e, nil
}

func (r *VaultRepo) ListByOwner(ctx context.Context, ownerID string) ([]vault.Entry, error) {
	out := make([]vault.Entry, 0)

	err := r.obs.ObserveDB("vault.list_by_owner", func() error {
		rows, err := r.db.Query(ctx,
			`SELECT `+vaultColumns+`
			 FROM vault_entries
			 WHERE owner_id = $1
			 ORDER BY created_at DESC, id DESC`,
			ownerID,
		)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanEntry(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, oops.With("operation", "list vault entries").With("owner_id", ownerID).Wrap(err)
	}

	return out, nil
}

// Update only touches an entry owned by ownerID; anything else is ErrEntryNotFound.
func (r *VaultRepo) Update(ctx context.Context, ownerID, id string, patch vault.Patch) (vault.Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return vault.Entry{}, vault.ErrEntryNotFound
	}

	var e vault.Entry

	err := r.obs.ObserveDB("vault.update", func() error {
		var err error
		e, err = scanEntry(r.db.QueryRow(ctx,
			`UPDATE vault_entries
			 SET hub_name = COALESCE($3, hub_name),
			     email = COALESCE($4, email),
			     encrypted_password = COALESCE($5, encrypted_password),
			     updated_at = now()
			 WHERE id = $1 AND owner_id = $2
			 RETURNING `+vaultColumns,
			id, ownerID, patch.HubName, patch.Email, patch.EncryptedPassword,
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return vault.Entry{}, vault.ErrEntryNotFound
		}
		return vault.Entry{}, oops.With("operation", "update vault entry").With("entry_id", id).Wrap(err)
	}

	return e, nil
}

func (r *VaultRepo) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return vault.ErrEntryNotFound
	}

	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("vault.delete", func() error {
		var err error
		tag, err = r.db.Exec(ctx, `DELETE FROM vault_entries WHERE id = $1 AND owner_id = $2`, id, ownerID)
		return err
	})

	if err != nil {
		return oops.With("operation", "delete vault entry").With("entry_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return vault.ErrEntryNotFound
	}

	return nil
}
