package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/store"
	"github.com/aussiebroadwan/edoras/internal/identity/validation"
	"github.com/aussiebroadwan/edoras/pkg/slogx"
)

// AccountService implements the self-service account operations. Every
// method takes the caller's already resolved identity id.
type AccountService struct {
	Store        store.Store
	Validator    *validation.Validator
	Hasher       PasswordHasher
	StoreTimeout time.Duration
	Now          func() time.Time
}

// GetProfile returns the owner view of identityID.
func (s *AccountService) GetProfile(ctx context.Context, identityID string) (domain.Profile, error) {
	u, err := s.user(ctx, identityID)
	if err != nil {
		return domain.Profile{}, err
	}
	return domain.OwnerProfile(u), nil
}

// UpdateProfile applies the fields present in in and returns the refreshed
// profile. Nothing is written when validation fails.
func (s *AccountService) UpdateProfile(ctx context.Context, identityID string, in validation.Input) (domain.Profile, error) {
	changes, err := s.Validator.ProfileUpdate(in)
	if err != nil {
		return domain.Profile{}, err
	}

	if changes.Empty() {
		return s.GetProfile(ctx, identityID)
	}

	var updated domain.User
	err = withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			u, err := tx.Users().GetUserByIDForUpdate(ctx, identityID)
			if err != nil {
				return err
			}

			changes.Apply(&u)
			u.UpdatedAt = clock(s.Now)

			if err := tx.Users().UpdateProfile(ctx, u.ID, store.ProfileFields{
				FirstName: u.FirstName,
				LastName:  u.LastName,
				AvatarURL: u.AvatarURL,
				UpdatedAt: u.UpdatedAt,
			}); err != nil {
				return err
			}

			updated = u
			return nil
		})
	})
	if err != nil {
		return domain.Profile{}, err
	}

	slogx.FromContext(ctx).Info("profile updated", slog.String("identity_id", identityID))
	return domain.OwnerProfile(updated), nil
}

// ChangePassword replaces the password after checking the current one. The
// write is guarded by the hash that was verified, so a concurrent change
// makes this call fail with ErrBadCredential instead of overwriting it.
func (s *AccountService) ChangePassword(ctx context.Context, identityID string, in validation.Input) error {
	req, err := s.Validator.PasswordChange(in)
	if err != nil {
		return err
	}

	u, err := s.user(ctx, identityID)
	if err != nil {
		return err
	}

	log := slogx.FromContext(ctx).With(slog.String("identity_id", identityID))
	if !s.Hasher.Verify(req.CurrentPassword, u.PasswordHash) {
		log.Info("password change rejected: current password mismatch")
		return domain.ErrBadCredential
	}

	newHash, err := s.Hasher.Hash(req.NewPassword)
	if err != nil {
		return err
	}

	err = withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().UpdatePasswordHash(ctx, u.ID, u.PasswordHash, newHash, clock(s.Now))
		})
	})
	if errors.Is(err, store.ErrStaleWrite) {
		log.Warn("password change lost a race with another update")
		return domain.ErrBadCredential
	}
	if err != nil {
		return err
	}

	log.Info("password changed")
	return nil
}

// DeleteAccount removes the identity permanently. A second call reports
// ErrNotFound.
func (s *AccountService) DeleteAccount(ctx context.Context, identityID string) error {
	err := withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().DeleteUser(ctx, identityID)
	})
	if err != nil {
		return err
	}

	slogx.FromContext(ctx).Info("account deleted", slog.String("identity_id", identityID))
	return nil
}

// ListAccounts returns one page of accounts in creation order. Only admins
// may list; a requester that no longer exists is treated as a non-admin.
func (s *AccountService) ListAccounts(ctx context.Context, requesterID string, page, pageSize int) (domain.Page[domain.Profile], error) {
	requester, err := s.user(ctx, requesterID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.Page[domain.Profile]{}, domain.ErrForbidden
	case err != nil:
		return domain.Page[domain.Profile]{}, err
	case !requester.IsAdmin:
		return domain.Page[domain.Profile]{}, domain.ErrForbidden
	}

	page, pageSize = domain.ClampPage(page, pageSize)

	var (
		users []domain.User
		total int
	)
	err = withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.WithTx(ctx, func(tx store.Tx) error {
			var err error
			if total, err = tx.Users().CountUsers(ctx); err != nil {
				return err
			}

			// Pages past the end, including ones whose offset overflows,
			// are empty without a read.
			offset, ok := domain.Offset(page, pageSize)
			if !ok || offset >= total {
				return nil
			}
			users, err = tx.Users().ListUsers(ctx, pageSize, offset)
			return err
		})
	})
	if err != nil {
		return domain.Page[domain.Profile]{}, err
	}

	items := make([]domain.Profile, 0, len(users))
	for _, u := range users {
		items = append(items, domain.ListProfile(u))
	}

	return domain.Page[domain.Profile]{
		Items:      items,
		Pagination: domain.NewPagination(page, pageSize, total),
	}, nil
}

func (s *AccountService) user(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	err := withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		var err error
		u, err = s.Store.Users().GetUserByID(ctx, id)
		return err
	})
	return u, err
}
