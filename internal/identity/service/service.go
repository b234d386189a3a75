package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/session"
	"github.com/aussiebroadwan/edoras/internal/identity/store"
)

// DefaultStoreTimeout bounds a single store call when none is configured.
const DefaultStoreTimeout = 5 * time.Second

const takenMessage = "is already taken"

// PasswordHasher is the credential manager used by the services.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) bool
	NeedsRehash(encoded string) bool
}

// TokenIssuer mints and resolves session tokens.
type TokenIssuer interface {
	Issue(identityID string) (session.Token, error)
	ResolveHeader(authorization string) (string, error)
}

func storeTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultStoreTimeout
	}
	return d
}

func clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}

// withStore runs fn with ctx bounded by the store timeout and maps the
// resulting store error into the domain vocabulary.
func withStore(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout(timeout))
	defer cancel()

	return mapStoreErr(fn(ctx))
}

func mapStoreErr(err error) error {
	var uv *store.UniqueViolation
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	case errors.Is(err, store.ErrNotFound):
		return domain.ErrNotFound
	case errors.As(err, &uv):
		return domain.NewValidationError(map[string]string{uv.Field: takenMessage})
	case errors.Is(err, store.ErrAlreadyExists):
		return domain.NewValidationError(map[string]string{"account": "already exists"})
	case isDomain(err):
		return err
	default:
		return fmt.Errorf("store: %w", err)
	}
}

func isDomain(err error) bool {
	return domain.KindOf(err) != domain.KindInternal
}
