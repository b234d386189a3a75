package session

import (
	"errors"
	"time"

	"github.com/aussiebroadwan/edoras/internal/identity/domain"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
	"github.com/aussiebroadwan/edoras/pkg/jwtx"
)

// TokenType is the only token type handed out.
const TokenType = "Bearer"

// Token is a freshly issued session token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"` // seconds
	ExpiresAt   time.Time `json:"expires_at"`
}

// Issuer mints and resolves self-contained session tokens. Tokens carry the
// identity id as "sub" and nothing else about the account.
type Issuer struct {
	signer   jwtx.Signer
	verifier jwtx.Verifier
	name     string
	ttl      time.Duration
	now      func() time.Time
}

// Option customises an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source used for iat/nbf/exp. The verifier keeps
// its own clock.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer builds an HS256 issuer. A zero ttl falls back to
// jwtx.DefaultAccessTokenTTL.
func NewIssuer(secret []byte, name string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	signer, err := jwtx.NewSignerHS256(secret)
	if err != nil {
		return nil, err
	}

	verifier, err := jwtx.NewVerifierHS256(secret, name)
	if err != nil {
		return nil, err
	}

	return NewIssuerWith(signer, verifier, name, ttl, opts...), nil
}

// NewIssuerWith builds an issuer from an explicit signer and verifier.
func NewIssuerWith(signer jwtx.Signer, verifier jwtx.Verifier, name string, ttl time.Duration, opts ...Option) *Issuer {
	if ttl <= 0 {
		ttl = jwtx.DefaultAccessTokenTTL
	}

	i := &Issuer{signer: signer, verifier: verifier, name: name, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// TTL is the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for identityID.
func (i *Issuer) Issue(identityID string) (Token, error) {
	if identityID == "" {
		return Token{}, errors.New("session: empty identity id")
	}

	now := i.now().UTC()
	claims := jwtx.NewAccessClaims(identityID, i.ttl, i.name, now)

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return Token{}, err
	}

	return Token{
		AccessToken: signed,
		TokenType:   TokenType,
		ExpiresIn:   int64(i.ttl.Seconds()),
		ExpiresAt:   claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Resolve verifies token and returns the identity id it names. Expired tokens
// yield domain.ErrTokenExpired, every other failure domain.ErrTokenInvalid.
func (i *Issuer) Resolve(token string) (string, error) {
	if token == "" {
		return "", domain.ErrTokenInvalid
	}

	claims, err := i.verifier.Verify(token)
	switch {
	case err == nil:
		return claims.Subject, nil
	case errors.Is(err, jwtx.ErrExpired):
		return "", domain.ErrTokenExpired
	default:
		return "", domain.ErrTokenInvalid
	}
}

// ResolveHeader resolves the value of an Authorization header.
func (i *Issuer) ResolveHeader(authorization string) (string, error) {
	token, ok := ParseBearer(authorization)
	if !ok {
		return "", domain.ErrTokenInvalid
	}
	return i.Resolve(token)
}

// ParseBearer extracts the token from "Bearer <token>".
func ParseBearer(header string) (string, bool) {
	return httpx.ParseBearer(header)
}
