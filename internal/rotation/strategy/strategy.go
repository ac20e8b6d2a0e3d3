// Package strategy implements the per-secret-type rotation mechanics:
// how a new value is generated, pushed into the dependent system, probed,
// and undone.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/credstack/rotor/internal/config"
	"github.com/credstack/rotor/internal/logging"
	"github.com/credstack/rotor/internal/rotation/verify"
	"github.com/credstack/rotor/internal/secrets"
	"github.com/credstack/rotor/internal/secure"
)

// Strategy is the rotation mechanics for one secret type.
//
// Apply receives both values because dependent-system mutations must
// authenticate with the old credential; it must not touch the secret
// backend, which the coordinator owns. old is nil when no prior value
// exists.
type Strategy interface {
	Name() string
	Generate(ctx context.Context) (*secure.Buffer, error)
	Apply(ctx context.Context, old, new *secure.Buffer) error
	Verify(ctx context.Context, value *secure.Buffer) error
	Rollback(ctx context.Context, old, failed *secure.Buffer) error
}

// Registration pairs a strategy with its verification retry budget.
type Registration struct {
	Strategy Strategy
	Policy   verify.Policy
}

// Registry maps secret types to their rotation mechanics. New types
// register here; nothing dispatches on type names.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
	logger  *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Registration),
		logger:  logger,
	}
}

// Register adds a strategy for a secret type.
func (r *Registry) Register(secretType string, s Strategy, policy verify.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[secretType]; exists {
		return fmt.Errorf("strategy for %q already registered", secretType)
	}
	r.entries[secretType] = Registration{Strategy: s, Policy: policy}
	r.logger.Debug("Registered rotation strategy %s for %s", s.Name(), secretType)
	return nil
}

// Get returns the registration for a secret type.
func (r *Registry) Get(secretType string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.entries[secretType]
	if !ok {
		return Registration{}, fmt.Errorf("no rotation strategy for secret type %q", secretType)
	}
	return reg, nil
}

// Types returns the registered secret types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.entries))
	for name := range r.entries {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// NewRegistryFromConfig builds a registry covering every configured secret
// type. The store is needed by strategies whose probe is retrievability.
func NewRegistryFromConfig(def *config.Definition, store secrets.Store, logger *logging.Logger) (*Registry, error) {
	registry := NewRegistry(logger)

	for name, cfg := range def.Secrets {
		var s Strategy
		switch name {
		case "jwt", "session":
			s = NewKeyStrategy(name, cfg, logger)
		case "database":
			s = NewDatabaseStrategy(cfg, logger)
		case "redis":
			s = NewRedisStrategy(cfg, logger)
		case "apikey":
			s = NewAPIKeyStrategy(store, cfg, logger)
		default:
			return nil, fmt.Errorf("no rotation strategy for secret type %q", name)
		}

		policy := verify.Policy{MaxAttempts: cfg.MaxAttempts, Backoff: cfg.Backoff.Std()}
		if err := registry.Register(name, s, policy); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
