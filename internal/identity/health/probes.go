package health

import (
	"context"
	"strings"
)

// Pinger is satisfied by store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Database probes the store with a SELECT 1 round-trip.
func Database(p Pinger) Checker {
	return CheckerFunc(func(ctx context.Context) Result {
		if err := p.Ping(ctx); err != nil {
			return Fail("Database connection failed: %v", err)
		}
		return OK("Database connection successful")
	})
}

// Requirement is a named configuration value that must not be empty.
type Requirement struct {
	Name  string
	Value string
}

// Configuration reports every empty requirement. Values are never echoed.
func Configuration(reqs ...Requirement) Checker {
	return CheckerFunc(func(context.Context) Result {
		var issues []string
		for _, r := range reqs {
			if strings.TrimSpace(r.Value) == "" {
				issues = append(issues, r.Name+" not configured")
			}
		}
		if len(issues) > 0 {
			return Fail("Configuration issues: %s", strings.Join(issues, ", "))
		}
		return OK("All required configuration present")
	})
}
