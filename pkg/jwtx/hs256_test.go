package jwtx_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/edoras/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var (
	testKey  = []byte("0123456789abcdef0123456789abcdef")
	otherKey = []byte("fedcba9876543210fedcba9876543210")
)

func newPair(t *testing.T, opts ...jwtx.VerifierOption) (*jwtx.HS256Signer, *jwtx.HS256Verifier) {
	t.Helper()
	s, err := jwtx.NewSignerHS256(testKey)
	require.NoError(t, err)
	v, err := jwtx.NewVerifierHS256(testKey, "edoras", opts...)
	require.NoError(t, err)
	return s, v
}

func TestHS256_RoundTrip(t *testing.T) {
	s, v := newPair(t)
	require.Equal(t, "HS256", s.Alg())

	claims := jwtx.NewAccessClaims("user-1", time.Minute, "edoras", time.Now().UTC())
	tok, err := s.Sign(claims)
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 3)

	got, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, claims.ID, got.ID)
}

func TestHS256_RejectsShortKeys(t *testing.T) {
	_, err := jwtx.NewSignerHS256([]byte("short"))
	require.ErrorIs(t, err, jwtx.ErrWeakKey)

	_, err = jwtx.NewVerifierHS256(nil, "")
	require.ErrorIs(t, err, jwtx.ErrWeakKey)
}

func TestHS256_VerifyFailures(t *testing.T) {
	s, v := newPair(t)
	now := time.Now().UTC()

	t.Run("malformed", func(t *testing.T) {
		for _, tok := range []string{"", "abc", "a.b.c", "not.a.jwt.at.all"} {
			_, err := v.Verify(tok)
			require.ErrorIs(t, err, jwtx.ErrMalformed, "token %q", tok)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := jwtx.NewSignerHS256(otherKey)
		require.NoError(t, err)
		tok, err := other.Sign(jwtx.NewAccessClaims("user-1", time.Minute, "edoras", now))
		require.NoError(t, err)

		_, err = v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("tampered payload", func(t *testing.T) {
		tok, err := s.Sign(jwtx.NewAccessClaims("user-1", time.Minute, "edoras", now))
		require.NoError(t, err)
		forged, err := s.Sign(jwtx.NewAccessClaims("admin", time.Minute, "edoras", now))
		require.NoError(t, err)

		parts := strings.Split(tok, ".")
		parts[1] = strings.Split(forged, ".")[1]
		_, err = v.Verify(strings.Join(parts, "."))
		require.ErrorIs(t, err, jwtx.ErrInvalidSig)
	})

	t.Run("unsigned token", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwtx.NewAccessClaims("user-1", time.Minute, "edoras", now))
		tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrAlgMismatch)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := s.Sign(jwtx.NewAccessClaims("user-1", time.Minute, "elsewhere", now))
		require.NoError(t, err)

		_, err = v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok, err := s.Sign(jwtx.NewAccessClaims("", time.Minute, "edoras", now))
		require.NoError(t, err)

		_, err = v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrInvalidClaim)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := s.Sign(jwtx.NewAccessClaims("user-1", time.Minute, "edoras", now.Add(-time.Hour)))
		require.NoError(t, err)

		_, err = v.Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})
}

func TestHS256_Clock(t *testing.T) {
	issued := time.Unix(1700000000, 0).UTC()
	later := issued.Add(90 * time.Second)

	s, v := newPair(t, jwtx.WithClock(func() time.Time { return later }))
	tok, err := s.Sign(jwtx.NewAccessClaims("user-1", time.Minute, "edoras", issued))
	require.NoError(t, err)

	_, err = v.Verify(tok)
	require.ErrorIs(t, err, jwtx.ErrExpired)

	lenient, err := jwtx.NewVerifierHS256(testKey, "edoras",
		jwtx.WithClock(func() time.Time { return later }),
		jwtx.WithLeeway(time.Minute),
	)
	require.NoError(t, err)
	_, err = lenient.Verify(tok)
	require.NoError(t, err)
}
