package slogx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/edoras/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, slogx.ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, slogx.ParseLevel("warning"))
	require.Equal(t, slog.LevelError, slogx.ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel(""))
	require.Equal(t, slog.LevelInfo, slogx.ParseLevel("nonsense"))
}

func TestNewLoggerAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := slogx.NewLogger(slogx.Config{Service: "edoras", Version: "1.2.3", Env: "test", Output: &buf})
	l.Info("hello", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "edoras", rec["service"])
	require.Equal(t, "1.2.3", rec["version"])
	require.Equal(t, "test", rec["env"])
	require.Equal(t, "v", rec["k"])
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	require.Same(t, slog.Default(), slogx.FromContext(context.Background()))

	l := slogx.Discard()
	require.Same(t, l, slogx.FromContext(slogx.WithContext(context.Background(), l)))
}

func TestWithAddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	ctx := slogx.WithContext(context.Background(), slogx.NewLogger(slogx.Config{Output: &buf}))

	slogx.FromContext(slogx.With(ctx, "subject", "01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV")).Info("scoped")
	require.Contains(t, buf.String(), `"subject":"01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV"`)
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	base := slogx.NewLogger(slogx.Config{Service: "edoras", Output: &buf})

	h := slogx.HTTPMiddleware(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slogx.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("keeps a sane caller id", func(t *testing.T) {
		buf.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
		req.Header.Set(slogx.RequestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Equal(t, "abc-123", rec.Header().Get(slogx.RequestIDHeader))

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		for _, line := range lines {
			require.Contains(t, line, `"req_id":"abc-123"`)
		}
		require.Contains(t, lines[1], `"status":418`)
	})

	t.Run("replaces a bogus caller id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(slogx.RequestIDHeader, strings.Repeat("x", 100))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		got := rec.Header().Get(slogx.RequestIDHeader)
		require.Len(t, got, 26)
	})
}
