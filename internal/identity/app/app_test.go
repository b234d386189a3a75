package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/edoras/internal/identity/health"
	"github.com/aussiebroadwan/edoras/pkg/httpx"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.DatabaseDriver)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, time.Hour, cfg.AccessTokenTTL)
	require.Equal(t, 5*time.Second, cfg.StoreTimeout)
	require.Equal(t, httpx.StrictLimit, cfg.StrictLimit)
	require.Equal(t, httpx.ModerateLimit, cfg.ModerateLimit)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("RATELIMIT_STRICT_REQUESTS", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)

	require.Equal(t, 3, cfg.StrictLimit.Requests)
	require.Equal(t, httpx.StrictLimit.Window, cfg.StrictLimit.Window, "unset fields keep their default")
	require.Equal(t, httpx.StrictLimit.Burst, cfg.StrictLimit.Burst)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}, "DATABASE_DRIVER"},
		{"bad port", map[string]string{"DATABASE_DRIVER": "sqlite", "PORT": "70000"}, "PORT"},
		{"zero ttl", map[string]string{"DATABASE_DRIVER": "sqlite", "ACCESS_TOKEN_TTL": "0s"}, "ACCESS_TOKEN_TTL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig()
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestIsProduction(t *testing.T) {
	require.True(t, Config{Env: "prod"}.IsProduction())
	require.True(t, Config{Env: "production"}.IsProduction())
	require.False(t, Config{Env: "dev"}.IsProduction())
}

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Env:                 "test",
		LogLevel:            "error",
		Port:                8080,
		ShutdownGracePeriod: time.Second,
		StoreTimeout:        time.Second,
		HealthProbeTimeout:  time.Second,
		DatabaseDriver:      "sqlite",
		DatabaseFile:        ":memory:",
		PepperFile:          filepath.Join(t.TempDir(), "pepper"),
		AccessTokenTTL:      time.Hour,
		JWTIssuer:           "edoras-identity",
		SecretKey:           "flask-style-secret",
		JWTSecretKey:        "0123456789abcdef0123456789abcdef",
	}
}

func newTestApp(t *testing.T, cfg Config) *Application {
	t.Helper()
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.db.Close() })
	return a
}

func TestNew_DetailedHealth(t *testing.T) {
	a := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/detailed", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, health.Healthy, report.Status)
	require.Equal(t, ServiceName, report.Service)
	require.Equal(t, "test", report.Environment)
	require.Len(t, report.Components, 3)
	for _, name := range []string{"database", "keyvault", "configuration"} {
		require.Equal(t, health.Healthy, report.Components[name].Status, name)
	}
}

func TestNew_WiresSessionSettings(t *testing.T) {
	cfg := testConfig(t)
	cfg.AccessTokenTTL = 15 * time.Minute
	a := newTestApp(t, cfg)

	require.Equal(t, 15*time.Minute, a.issuer.TTL())
	require.NotNil(t, a.authService.Now)
	require.NotNil(t, a.accountService.Now)

	tok, err := a.issuer.Issue("01HQ7T3Z1MZ0JQ3M6MZQ1FQ3ZV")
	require.NoError(t, err)
	require.Equal(t, int64(900), tok.ExpiresIn)
	require.WithinDuration(t, time.Now().Add(15*time.Minute), tok.ExpiresAt, 5*time.Second)
}

func TestNew_MissingSecretKeyIsUnhealthy(t *testing.T) {
	cfg := testConfig(t)
	cfg.SecretKey = ""
	a := newTestApp(t, cfg)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/detailed", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report health.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, health.Unhealthy, report.Components["configuration"].Status)
	require.Contains(t, report.Components["configuration"].Message, "SECRET_KEY not configured")
}

func TestNew_EphemeralSigningKeyOutsideProduction(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWTSecretKey = ""
	a := newTestApp(t, cfg)

	body := `{"email":"frodo@shire.me","username":"frodo","password":"Secur3Passw0rd"}`
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"frodo@shire.me","password":"Secur3Passw0rd"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestNew_ProductionRequiresSigningKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Env = "prod"
	cfg.JWTSecretKey = ""

	_, err := New(context.Background(), cfg)
	require.ErrorContains(t, err, "JWT_SECRET_KEY")
}

func TestShutdown_ClosesDatabase(t *testing.T) {
	a, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, a.Shutdown())

	require.Error(t, a.db.Ping(context.Background()))
}
