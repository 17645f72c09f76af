package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/vantage-suite/vantage-suite/internal/rbac"
)

// Source supplies the persisted permission rows backing the registry view.
type Source interface {
	List(ctx context.Context) ([]rbac.Permission, error)
}

// Registry is the in-process read view of the permission catalog. It is
// effectively read-only at runtime and shared across all evaluations; Reload
// refreshes it after seeding or a privileged catalog mutation.
type Registry struct {
	source Source

	mu      sync.RWMutex
	ordered []rbac.Permission
	byKey   map[string]rbac.Permission
}

// New builds an empty registry over the given source. Call Reload before use.
func New(source Source) *Registry {
	return &Registry{
		source: source,
		byKey:  make(map[string]rbac.Permission),
	}
}

// Reload replaces the cached view with the current persisted catalog.
func (r *Registry) Reload(ctx context.Context) error {
	perms, err := r.source.List(ctx)
	if err != nil {
		return fmt.Errorf("registry: reload: %w", err)
	}
	byKey := make(map[string]rbac.Permission, len(perms))
	for _, p := range perms {
		byKey[p.Key] = p
	}
	r.mu.Lock()
	r.ordered = perms
	r.byKey = byKey
	r.mu.Unlock()
	return nil
}

// ListAll returns every permission in declaration order.
func (r *Registry) ListAll() []rbac.Permission {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rbac.Permission, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Exists reports whether the key is in the catalog.
func (r *Registry) Exists(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKey[key]
	return ok
}

// Get fetches one permission by key.
func (r *Registry) Get(key string) (rbac.Permission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byKey[key]
	if !ok {
		return rbac.Permission{}, rbac.ErrNotFound
	}
	return p, nil
}

// KnownKeys snapshots every key for wildcard expansion. The evaluator calls
// this at decision time so wildcard holders pick up new keys immediately.
func (r *Registry) KnownKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, len(r.ordered))
	for i, p := range r.ordered {
		keys[i] = p.Key
	}
	return keys
}

// ValidateKeys rejects any key absent from the catalog. The wildcard
// sentinel is accepted only when allowWildcard is set.
func (r *Registry) ValidateKeys(keys []string, allowWildcard bool) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, k := range keys {
		if k == rbac.WildcardKey {
			if allowWildcard {
				continue
			}
			return fmt.Errorf("%w: %s", rbac.ErrUnknownPermission, k)
		}
		if _, ok := r.byKey[k]; !ok {
			return fmt.Errorf("%w: %s", rbac.ErrUnknownPermission, k)
		}
	}
	return nil
}
