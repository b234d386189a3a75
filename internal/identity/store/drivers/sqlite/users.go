package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/store"
)

type usersRepo struct {
	db store.DBTX
}

const selectUser = `SELECT ` + store.UserColumns + ` FROM users`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	u, err := store.ScanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

// GetUserByIDForUpdate needs no row lock: transactions are started with
// BEGIN IMMEDIATE, which already holds the database write lock.
func (r *usersRepo) GetUserByIDForUpdate(ctx context.Context, id string) (domain.User, error) {
	return r.GetUserByID(ctx, id)
}

func (r *usersRepo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := store.ScanUser(r.db.QueryRowContext(ctx, selectUser+` WHERE email = ?`, email))
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	return u, nil
}

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, username, password_hash, first_name, last_name, avatar_url,
			is_active, is_admin, email_verified, last_login, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Username, u.PasswordHash,
		store.OptionalString(u.FirstName), store.OptionalString(u.LastName), store.OptionalString(u.AvatarURL),
		u.IsActive, u.IsAdmin, u.EmailVerified,
		store.OptionalTime(u.LastLogin), u.CreatedAt.UTC(), u.UpdatedAt.UTC(),
	)
	return mapUnique(err)
}

func (r *usersRepo) UpdateProfile(ctx context.Context, id string, f store.ProfileFields) error {
	return store.AffectedOne(r.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, avatar_url = ?, updated_at = ?
		WHERE id = ?`,
		store.OptionalString(f.FirstName), store.OptionalString(f.LastName), store.OptionalString(f.AvatarURL),
		f.UpdatedAt.UTC(), id,
	))
}

func (r *usersRepo) UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string, at time.Time) error {
	err := store.AffectedOne(r.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, updated_at = ?
		WHERE id = ? AND password_hash = ?`,
		newHash, at.UTC(), id, oldHash,
	))
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// Zero rows: either the user is gone or the hash moved on.
	if _, err := r.GetUserByID(ctx, id); err != nil {
		return err
	}
	return store.ErrStaleWrite
}

func (r *usersRepo) RecordLogin(ctx context.Context, id string, at time.Time, rehash string) error {
	if rehash == "" {
		return store.AffectedOne(r.db.ExecContext(ctx,
			`UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), id))
	}
	return store.AffectedOne(r.db.ExecContext(ctx,
		`UPDATE users SET last_login = ?, password_hash = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), rehash, at.UTC(), id))
}

func (r *usersRepo) DeleteUser(ctx context.Context, id string) error {
	return store.AffectedOne(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}

func (r *usersRepo) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` ORDER BY created_at, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, limit)
	for rows.Next() {
		u, err := store.ScanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *usersRepo) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}
