package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/aussiebroadwan/edoras/internal/identity/health"
)

// VaultConfig locates the KV v2 secret holding the service secrets.
type VaultConfig struct {
	Address string
	Token   string
	Mount   string // KV v2 mount, e.g. "secret"
	Path    string // secret path under the mount, e.g. "edoras"
	Timeout time.Duration
}

// Vault reads secrets from one HashiCorp Vault KV v2 entry. Each secret name
// is a key of that entry.
type Vault struct {
	client *vault.Client
	mount  string
	path   string
}

// NewVault builds a Vault client. No request is made until first use.
func NewVault(cfg VaultConfig) (*Vault, error) {
	if cfg.Address == "" {
		return nil, errors.New("secrets: vault address is required")
	}
	if cfg.Mount == "" || cfg.Path == "" {
		return nil, errors.New("secrets: vault mount and path are required")
	}

	vc := vault.DefaultConfig()
	vc.Address = cfg.Address
	if cfg.Timeout > 0 {
		vc.Timeout = cfg.Timeout
	}

	client, err := vault.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("secrets: vault client: %w", err)
	}
	if cfg.Token != "" {
		client.SetToken(cfg.Token)
	}

	return &Vault{client: client, mount: cfg.Mount, path: cfg.Path}, nil
}

// Secret returns the string value stored under name.
func (v *Vault) Secret(ctx context.Context, name string) (string, error) {
	kv, err := v.client.KVv2(v.mount).Get(ctx, v.path)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("secrets: read %s/%s: %w", v.mount, v.path, err)
	}

	raw, ok := kv.Data[name]
	if !ok || raw == nil {
		return "", ErrNotFound
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("secrets: %s is not a string", name)
	}
	if s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

// HealthCheck asks Vault for its seal status.
func (v *Vault) HealthCheck(ctx context.Context) health.Result {
	h, err := v.client.Sys().HealthWithContext(ctx)
	switch {
	case err != nil:
		return health.Fail("Vault check failed: %v", err)
	case !h.Initialized:
		return health.Fail("Vault is not initialized")
	case h.Sealed:
		return health.Fail("Vault is sealed")
	default:
		return health.OK(fmt.Sprintf("Vault reachable (version %s)", h.Version))
	}
}
