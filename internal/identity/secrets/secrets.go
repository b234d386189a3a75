package secrets

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/edoras/internal/identity/health"
)

// ErrNotFound reports a secret that the store does not hold.
var ErrNotFound = errors.New("secrets: not found")

// Client reads named secrets and reports the health of the backing store.
type Client interface {
	health.Checker
	Secret(ctx context.Context, name string) (string, error)
}

// Static serves secrets from memory. It is used when no external secret
// store is configured.
type Static map[string]string

func (s Static) Secret(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok || v == "" {
		return "", ErrNotFound
	}
	return v, nil
}

func (s Static) HealthCheck(context.Context) health.Result {
	return health.OK("Secret store not configured (local secrets)")
}

// Fill replaces every empty value in dst, keyed by secret name, with the
// value held by c. Secrets missing from c are left empty.
func Fill(ctx context.Context, c Client, dst map[string]*string) error {
	for name, target := range dst {
		if *target != "" {
			continue
		}
		v, err := c.Secret(ctx, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*target = v
	}
	return nil
}
