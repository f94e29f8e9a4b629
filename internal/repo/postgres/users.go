package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/vaulthub/internal/domain/user"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

const userColumns = `id, name, email, password_hash, authenticated,
	email_confirm_token_hash, email_confirm_expires_at, password_changed_at,
	created_at, updated_at`

type UsersRepo struct {
	db  DBTX
	obs DBObserver
}

func NewUsersRepo(db DBTX, obs DBObserver) *UsersRepo {
	return &UsersRepo{db: db, obs: observerOrNoop(obs)}
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Authenticated,
		&u.EmailConfirmTokenHash,
		&u.EmailConfirmExpiresAt,
		&u.PasswordChangedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (r *UsersRepo) Create(ctx context.Context, in user.NewUser) (user.User, error) {
	var u user.User

	now := time.Now().UTC()

	err := r.obs.ObserveDB("users.create", func() error {
		var err error
		u, err = scanUser(r.db.QueryRow(ctx,
			`INSERT INTO users (id, name, email, password_hash, authenticated, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, false, $5, $5)
			 RETURNING `+userColumns,
			uuid.NewString(), in.Name, user.NormalizeEmail(in.Email), in.PasswordHash, now,
		))
		return err
	})

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		return user.User{}, oops.With("operation", "create user").Wrap(err)
	}

	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrUserNotFound
	}

	return r.getOne(ctx, "users.get_by_id", `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// GetByEmail includes the password hash.
func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.getOne(ctx, "users.get_by_email", `SELECT `+userColumns+` FROM users WHERE email = $1`, user.NormalizeEmail(email))
}

func (r *UsersRepo) getOne(ctx context.Context, op, query string, args ...any) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRow(ctx, query, args...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, oops.With("operation", op).Wrap(err)
	}

	return u, nil
}

// SetConfirmation overwrites any pending confirmation token for the user.
func (r *UsersRepo) SetConfirmation(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("users.set_confirmation", func() error {
		var err error
		tag, err = r.db.Exec(ctx,
			`UPDATE users
			 SET email_confirm_token_hash = $2, email_confirm_expires_at = $3, updated_at = now()
			 WHERE id = $1`,
			id, tokenHash, expiresAt.UTC(),
		)
		return err
	})

	if err != nil {
		return oops.With("operation", "set confirmation").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}

	return nil
}

// ConsumeConfirmation is a single conditional update, so of two concurrent
// confirms with the same token at most one gets a row back.
func (r *UsersRepo) ConsumeConfirmation(ctx context.Context, tokenHash string, now time.Time) (user.User, error) {
	var u user.User

	err := r.obs.ObserveDB("users.consume_confirmation", func() error {
		var err error
		u, err = scanUser(r.db.QueryRow(ctx,
			`UPDATE users
			 SET authenticated = true,
			     email_confirm_token_hash = NULL,
			     email_confirm_expires_at = NULL,
			     updated_at = now()
			 WHERE email_confirm_token_hash = $1 AND email_confirm_expires_at > $2
			 RETURNING `+userColumns,
			tokenHash, now.UTC(),
		))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrConfirmationStale
		}
		return user.User{}, oops.With("operation", "consume confirmation").Wrap(err)
	}

	return u, nil
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, patch user.Patch) (user.User, error) {
	return r.updateOne(ctx, "users.update_profile",
		`UPDATE users SET name = COALESCE($2, name), updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, patch.Name,
	)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) (user.User, error) {
	return r.updateOne(ctx, "users.update_password",
		`UPDATE users SET password_hash = $2, password_changed_at = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, passwordHash, changedAt.UTC(),
	)
}

func (r *UsersRepo) updateOne(ctx context.Context, op, query string, id string, args ...any) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrUserNotFound
	}

	var u user.User

	err := r.obs.ObserveDB(op, func() error {
		var err error
		u, err = scanUser(r.db.QueryRow(ctx, query, append([]any{id}, args...)...))
		return err
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrUserNotFound
		}
		return user.User{}, oops.With("operation", op).With("user_id", id).Wrap(err)
	}

	return u, nil
}

func (r *UsersRepo) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return user.ErrUserNotFound
	}

	var tag pgconn.CommandTag

	err := r.obs.ObserveDB("users.delete", func() error {
		var err error
		tag, err = r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return err
	})

	if err != nil {
		return oops.With("operation", "delete user").With("user_id", id).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrUserNotFound
	}

	return nil
}
