package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/store"
	"github.com/aussiebroadwan/edoras/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/edoras/pkg/idx"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.ApplyMigrations())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newUser(email, username string, at time.Time) domain.User {
	return domain.User{
		ID:           idx.NewAt(at).String(),
		Email:        email,
		Username:     username,
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		IsActive:     true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func ptr(s string) *string { return &s }

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now().UTC().Truncate(time.Microsecond)

	u := newUser("alice@example.com", "alice", now)
	u.FirstName = ptr("Alice")
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.Email, got.Email)
	require.Equal(t, "Alice", *got.FirstName)
	require.Nil(t, got.LastName)
	require.True(t, got.IsActive)
	require.False(t, got.IsAdmin)
	require.False(t, got.EmailVerified)
	require.Nil(t, got.LastLogin)
	require.True(t, now.Equal(got.CreatedAt), "created_at round trips")

	byEmail, err := s.Users().GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, u.ID, byEmail.ID)

	_, err = s.Users().GetUserByID(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Users().GetUserByEmail(ctx, "nobody@example.com")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUniqueViolations(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Users().CreateUser(ctx, newUser("alice@example.com", "alice", now)))

	var uv *store.UniqueViolation

	err := s.Users().CreateUser(ctx, newUser("alice@example.com", "other", now))
	require.ErrorAs(t, err, &uv)
	require.Equal(t, "email", uv.Field)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	err = s.Users().CreateUser(ctx, newUser("other@example.com", "alice", now))
	require.ErrorAs(t, err, &uv)
	require.Equal(t, "username", uv.Field)
}

func TestConcurrentDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	const n = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Users().CreateUser(ctx, newUser("dup@example.com", fmt.Sprintf("user%d", i), time.Now().UTC()))
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		var uv *store.UniqueViolation
		require.ErrorAs(t, err, &uv)
		require.Equal(t, "email", uv.Field)
	}
	require.Equal(t, 1, ok)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	created := time.Now().UTC().Add(-time.Hour)
	u := newUser("alice@example.com", "alice", created)
	require.NoError(t, s.Users().CreateUser(ctx, u))

	later := time.Now().UTC()
	require.NoError(t, s.Users().UpdateProfile(ctx, u.ID, store.ProfileFields{
		FirstName: ptr("Alice"), AvatarURL: ptr("https://example.com/a.png"), UpdatedAt: later,
	}))

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "Alice", *got.FirstName)
	require.Equal(t, "https://example.com/a.png", *got.AvatarURL)
	require.True(t, got.UpdatedAt.After(got.CreatedAt))

	err = s.Users().UpdateProfile(ctx, "missing", store.ProfileFields{UpdatedAt: later})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdatePasswordHashIsGuarded(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := newUser("alice@example.com", "alice", time.Now().UTC())
	require.NoError(t, s.Users().CreateUser(ctx, u))

	err := s.Users().UpdatePasswordHash(ctx, u.ID, "not-the-current-hash", "new", time.Now().UTC())
	require.ErrorIs(t, err, store.ErrStaleWrite)

	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, u.PasswordHash, got.PasswordHash)

	require.NoError(t, s.Users().UpdatePasswordHash(ctx, u.ID, u.PasswordHash, "new", time.Now().UTC()))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "new", got.PasswordHash)

	err = s.Users().UpdatePasswordHash(ctx, "missing", "a", "b", time.Now().UTC())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordLogin(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := newUser("alice@example.com", "alice", time.Now().UTC())
	require.NoError(t, s.Users().CreateUser(ctx, u))

	at := time.Now().UTC()
	require.NoError(t, s.Users().RecordLogin(ctx, u.ID, at, ""))
	got, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	require.WithinDuration(t, at, *got.LastLogin, time.Millisecond)
	require.Equal(t, u.PasswordHash, got.PasswordHash)

	require.NoError(t, s.Users().RecordLogin(ctx, u.ID, at, "rehashed"))
	got, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "rehashed", got.PasswordHash)
}

func TestDeleteUserTwice(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := newUser("alice@example.com", "alice", time.Now().UTC())
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().DeleteUser(ctx, u.ID))
	require.ErrorIs(t, s.Users().DeleteUser(ctx, u.ID), store.ErrNotFound)

	// Freed email and username can be reused.
	require.NoError(t, s.Users().CreateUser(ctx, newUser("alice@example.com", "alice", time.Now().UTC())))
}

func TestListUsersInCreationOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Unix(1700000000, 0).UTC()

	var ids []string
	for i := range 5 {
		u := newUser(fmt.Sprintf("u%d@example.com", i), fmt.Sprintf("user%d", i), base.Add(time.Duration(i)*time.Second))
		ids = append(ids, u.ID)
		require.NoError(t, s.Users().CreateUser(ctx, u))
	}

	n, err := s.Users().CountUsers(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, n)

	page, err := s.Users().ListUsers(ctx, 2, 0)
	require.NoError(t, err)
	require.Equal(t, ids[:2], []string{page[0].ID, page[1].ID})

	page, err = s.Users().ListUsers(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, ids[4], page[0].ID)

	page, err = s.Users().ListUsers(ctx, 2, 10)
	require.NoError(t, err)
	require.Empty(t, page)
}

func TestWithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	u := newUser("alice@example.com", "alice", time.Now().UTC())

	boom := fmt.Errorf("boom")
	err := s.WithTx(ctx, func(tx store.Tx) error {
		require.NoError(t, tx.Users().CreateUser(ctx, u))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Users().GetUserByID(ctx, u.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, u)
	}))
	_, err = s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
}

func TestNestedTxIsRejected(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	err := s.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.Tx(ctx)
		return err
	})
	require.Error(t, err)
}
