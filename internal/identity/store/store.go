package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStaleWrite reports a guarded update whose precondition no longer
	// holds, e.g. the password hash changed since it was read.
	ErrStaleWrite = errors.New("store: stale write")
)

// UniqueViolation names the unique column a write collided on.
type UniqueViolation struct {
	Field string // "email" or "username"
}

func (e *UniqueViolation) Error() string { return "store: duplicate " + e.Field }

func (e *UniqueViolation) Unwrap() error { return ErrAlreadyExists }

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this. Repositories hang off it as methods so a Tx scoped store
// can hand out the same repositories bound to the transaction.
type Store interface {
	Users() Users

	// ApplyMigrations brings the schema up to date using the embedded
	// migration files of the driver.
	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying connection pool.
	Close() error

	// Ping runs a trivial round-trip query against the database.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// ProfileFields are the mutable profile columns written by UpdateProfile.
type ProfileFields struct {
	FirstName *string
	LastName  *string
	AvatarURL *string
	UpdatedAt time.Time
}

type Users interface {
	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByIDForUpdate is GetUserByID that also locks the row for the
	// rest of the transaction where the driver supports row locks.
	GetUserByIDForUpdate(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail looks up an already normalized email.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts a new user. Collisions on email or username come
	// back as *UniqueViolation.
	CreateUser(ctx context.Context, u domain.User) error

	// UpdateProfile overwrites the profile columns and updated_at.
	UpdateProfile(ctx context.Context, id string, f ProfileFields) error

	// UpdatePasswordHash swaps oldHash for newHash. ErrStaleWrite when the
	// stored hash is no longer oldHash, ErrNotFound when the row is gone.
	UpdatePasswordHash(ctx context.Context, id, oldHash, newHash string, at time.Time) error

	// RecordLogin stamps last_login. A non-empty rehash replaces the
	// password hash in the same statement.
	RecordLogin(ctx context.Context, id string, at time.Time, rehash string) error

	// DeleteUser hard deletes a user. ErrNotFound when nothing was deleted.
	DeleteUser(ctx context.Context, id string) error

	// ListUsers returns a page in creation order (created_at, id).
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)

	// CountUsers returns the number of users.
	CountUsers(ctx context.Context) (int, error)
}
