package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/internal/identity/session"
	"github.com/aussiebroadwan/edoras/internal/identity/store"
	"github.com/aussiebroadwan/edoras/internal/identity/validation"
	"github.com/aussiebroadwan/edoras/pkg/idx"
	"github.com/aussiebroadwan/edoras/pkg/slogx"
)

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token   session.Token  `json:"token"`
	Profile domain.Profile `json:"user"`
}

// AuthService registers identities and exchanges credentials for session
// tokens.
type AuthService struct {
	Store        store.Store
	Validator    *validation.Validator
	Hasher       PasswordHasher
	Tokens       TokenIssuer
	StoreTimeout time.Duration
	Now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// Register creates a new identity. Email and username collisions come back
// as a ValidationError on the conflicting field.
func (s *AuthService) Register(ctx context.Context, in validation.Input) (domain.Profile, error) {
	req, err := s.Validator.Registration(in)
	if err != nil {
		return domain.Profile{}, err
	}

	hash, err := s.Hasher.Hash(req.Password)
	if err != nil {
		return domain.Profile{}, err
	}

	now := clock(s.Now)
	u := domain.User{
		ID:           idx.NewAt(now).String(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().CreateUser(ctx, u)
	})
	if err != nil {
		return domain.Profile{}, err
	}

	slogx.FromContext(ctx).Info("identity registered", slog.String("identity_id", u.ID))
	return domain.OwnerProfile(u), nil
}

// Login verifies credentials and issues a session token. Unknown emails,
// wrong passwords and inactive accounts all fail with ErrBadCredential.
// Hashes made with outdated parameters are replaced on the way through.
func (s *AuthService) Login(ctx context.Context, in validation.Input) (LoginResult, error) {
	req, err := s.Validator.Login(in)
	if err != nil {
		return LoginResult{}, err
	}

	log := slogx.FromContext(ctx)

	var u domain.User
	err = withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		var err error
		u, err = s.Store.Users().GetUserByEmail(ctx, req.Email)
		return err
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		// Burn the same hashing work as a real verify.
		s.Hasher.Verify(req.Password, s.placeholderHash())
		log.Info("login failed", slog.String("reason", "unknown_email"))
		return LoginResult{}, domain.ErrBadCredential
	case err != nil:
		return LoginResult{}, err
	}

	if !s.Hasher.Verify(req.Password, u.PasswordHash) {
		log.Info("login failed", slog.String("reason", "bad_password"), slog.String("identity_id", u.ID))
		return LoginResult{}, domain.ErrBadCredential
	}
	if !u.IsActive {
		log.Info("login failed", slog.String("reason", "inactive"), slog.String("identity_id", u.ID))
		return LoginResult{}, domain.ErrBadCredential
	}

	var rehash string
	if s.Hasher.NeedsRehash(u.PasswordHash) {
		if rehash, err = s.Hasher.Hash(req.Password); err != nil {
			log.Warn("password rehash failed", slog.String("identity_id", u.ID), slog.Any("err", err))
			rehash = ""
		}
	}

	now := clock(s.Now)
	err = withStore(ctx, s.StoreTimeout, func(ctx context.Context) error {
		return s.Store.Users().RecordLogin(ctx, u.ID, now, rehash)
	})
	if err != nil {
		return LoginResult{}, err
	}
	u.LastLogin = &now
	if rehash != "" {
		u.PasswordHash = rehash
		u.UpdatedAt = now
		log.Info("password hash upgraded", slog.String("identity_id", u.ID))
	}

	tok, err := s.Tokens.Issue(u.ID)
	if err != nil {
		return LoginResult{}, err
	}

	log.Info("login succeeded", slog.String("identity_id", u.ID))
	return LoginResult{Token: tok, Profile: domain.OwnerProfile(u)}, nil
}

// Authenticate resolves an Authorization header value to an identity id.
// A validly signed token whose subject is not an identity id is invalid.
func (s *AuthService) Authenticate(_ context.Context, authorization string) (string, error) {
	subject, err := s.Tokens.ResolveHeader(authorization)
	if err != nil {
		return "", err
	}
	if _, err := idx.Parse(subject); err != nil {
		return "", domain.ErrTokenInvalid
	}
	return subject, nil
}

func (s *AuthService) placeholderHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.Hasher.Hash(idx.New().String())
	})
	return s.dummyHash
}
