package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
)

// DBTX is the subset of database/sql used by the drivers. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserColumns is the select list ScanUser expects, in order.
const UserColumns = `id, email, username, password_hash, first_name, last_name, avatar_url,
	is_active, is_admin, email_verified, last_login, created_at, updated_at`

// RowScanner is implemented by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanUser reads one row selected with UserColumns.
func ScanUser(row RowScanner) (domain.User, error) {
	var (
		u                   domain.User
		first, last, avatar sql.NullString
		lastLogin           sql.NullTime
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash,
		&first, &last, &avatar,
		&u.IsActive, &u.IsAdmin, &u.EmailVerified,
		&lastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}

	u.FirstName = NullStringPtr(first)
	u.LastName = NullStringPtr(last)
	u.AvatarURL = NullStringPtr(avatar)
	u.LastLogin = NullTimePtr(lastLogin)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func NullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func OptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func NullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time.UTC()
		return &val
	}
	return nil
}

func OptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// AffectedOne maps a zero row update or delete to ErrNotFound.
func AffectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
