package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/edoras/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	tag := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				trace = append(trace, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		trace = append(trace, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"outer", "inner", "handler"}, trace)
}

func TestParseBearer(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc.def.ghi": "abc.def.ghi",
		"bearer abc":         "abc",
		"  Bearer   abc  ":   "abc",
		"":                   "",
		"Bearer":             "",
		"Bearer ":            "",
		"Basic dXNlcjpwYXNz": "",
		"Bearer two tokens":  "",
		"Token abc.def.ghi":  "",
		"Bearerabc.def.ghi":  "",
	} {
		got, ok := httpx.ParseBearer(header)
		require.Equal(t, want, got, "header %q", header)
		require.Equal(t, want != "", ok, "header %q", header)
	}
}

type stubAuthn struct {
	subject string
	err     error
}

func (s stubAuthn) Authenticate(_ context.Context, header string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", errors.New("missing bearer token")
	}
	return s.subject, nil
}

func TestAuthnMiddleware(t *testing.T) {
	deny := func(w http.ResponseWriter, _ *http.Request, err error) {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", err.Error(), nil)
	}
	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub, ok := httpx.SubjectFromContext(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(sub))
	})

	t.Run("injects subject", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubAuthn{subject: "user-1"}, deny)(echo)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer tok")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("rejects with challenge", func(t *testing.T) {
		h := httpx.AuthnMiddleware(stubAuthn{err: errors.New(`token "expired"`)}, deny)(echo)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, `Bearer error="invalid_token", error_description="token 'expired'"`, rec.Header().Get("WWW-Authenticate"))
		require.Contains(t, rec.Body.String(), "invalid_token")
	})
}

func TestSubjectFromContextEmpty(t *testing.T) {
	_, ok := httpx.SubjectFromContext(context.Background())
	require.False(t, ok)

	_, ok = httpx.SubjectFromContext(httpx.WithSubject(context.Background(), ""))
	require.False(t, ok)
}
