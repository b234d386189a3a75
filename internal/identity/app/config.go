package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/aussiebroadwan/edoras/pkg/httpx"
)

type Config struct {
	Env                 string        `env:"ENV" envDefault:"dev"`                    // dev, staging, prod
	LogLevel            string        `env:"LOG_LEVEL" envDefault:"info"`             // debug, info, warn, error
	LogFormat           string        `env:"LOG_FORMAT" envDefault:"json"`            // json, text
	Port                int           `env:"PORT" envDefault:"8080"`                  // HTTP server port
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`  // Graceful shutdown timeout
	StoreTimeout        time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`           // Bound on a single store call
	HealthProbeTimeout  time.Duration `env:"HEALTH_PROBE_TIMEOUT" envDefault:"3s"`    // Bound on a single health probe
	DatabaseDriver      string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`     // sqlite, postgres
	DatabaseFile        string        `env:"DATABASE_FILE" envDefault:"identity.db"`  // sqlite only
	DatabaseURL         string        `env:"DATABASE_URL"`                            // postgres only
	PepperFile          string        `env:"PEPPER_FILE" envDefault:"pepper"`         // Created on first start
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"1h"`        // Session token lifetime
	JWTIssuer           string        `env:"JWT_ISSUER" envDefault:"edoras-identity"` // "iss" claim
	SecretKey           string        `env:"SECRET_KEY"`                              // Checked by the configuration probe only
	JWTSecretKey        string        `env:"JWT_SECRET_KEY"`                          // Required, may come from Vault
	VaultAddr           string        `env:"VAULT_ADDR"`                              // Optional secret store
	VaultToken          string        `env:"VAULT_TOKEN"`                             // Vault auth token
	VaultMount          string        `env:"VAULT_MOUNT" envDefault:"secret"`         // KV v2 mount
	VaultSecretPath     string        `env:"VAULT_SECRET_PATH" envDefault:"edoras"`   // KV v2 entry holding the secrets

	StrictLimit   httpx.RateLimit `envPrefix:"RATELIMIT_STRICT_"`
	ModerateLimit httpx.RateLimit `envPrefix:"RATELIMIT_MODERATE_"`
}

// LoadConfig reads the environment, after loading a .env file from the
// working directory when one exists.
func LoadConfig() (Config, error) {
	_ = godotenv.Load() // load .env if present

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.StrictLimit = withDefaults(cfg.StrictLimit, httpx.StrictLimit)
	cfg.ModerateLimit = withDefaults(cfg.ModerateLimit, httpx.ModerateLimit)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite":
		if c.DatabaseFile == "" {
			return errors.New("config: DATABASE_FILE is required for the sqlite driver")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown DATABASE_DRIVER %q", c.DatabaseDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid PORT %d", c.Port)
	}
	if c.AccessTokenTTL <= 0 {
		return errors.New("config: ACCESS_TOKEN_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether missing secrets must be fatal.
func (c Config) IsProduction() bool {
	return c.Env == "prod" || c.Env == "production"
}

// withDefaults fills the unset fields of l from def so a single override
// such as RATELIMIT_STRICT_REQUESTS keeps the default window and burst.
func withDefaults(l, def httpx.RateLimit) httpx.RateLimit {
	if l.Requests == 0 {
		l.Requests = def.Requests
	}
	if l.Window == 0 {
		l.Window = def.Window
	}
	if l.Burst == 0 {
		l.Burst = def.Burst
	}
	return l
}
