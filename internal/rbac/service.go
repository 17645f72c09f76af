package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// AssignmentSource supplies a user's assignment history for one tenant,
// including expired and soft-revoked rows. Filtering is the evaluator's job.
type AssignmentSource interface {
	ListForUser(ctx context.Context, userID, orgID int64) ([]Assignment, error)
}

// RoleSource resolves roles referenced by assignments.
type RoleSource interface {
	ByIDs(ctx context.Context, ids []int64) (map[int64]Role, error)
}

// KeySource exposes the registry's current key snapshot for wildcard expansion.
type KeySource interface {
	KnownKeys() []string
}

// Service answers authorization questions. It is the single decision surface
// consumed by every collaborator; nothing else in the system re-implements
// wildcard or revocation logic.
type Service struct {
	assignments AssignmentSource
	roles       RoleSource
	registry    KeySource
	cache       *DecisionCache
	logger      *slog.Logger
	group       singleflight.Group
	now         func() time.Time
	observe     func(outcome string)
}

// NewService constructs the decision service. The cache may be nil.
func NewService(assignments AssignmentSource, roles RoleSource, registry KeySource, cache *DecisionCache, logger *slog.Logger) *Service {
	return &Service{
		assignments: assignments,
		roles:       roles,
		registry:    registry,
		cache:       cache,
		logger:      logger,
		now:         time.Now,
		observe:     func(string) {},
	}
}

// SetDecisionObserver installs a counter hook invoked once per decision with
// the outcome: "cache_hit", "computed" or "error".
func (s *Service) SetDecisionObserver(fn func(outcome string)) {
	if fn != nil {
		s.observe = fn
	}
}

// ListEffectivePermissions computes or fetches the user's effective set for
// the given tenant, sorted for stable rendering. Store errors propagate
// unchanged; the caller decides the fail policy (middleware fails closed).
func (s *Service) ListEffectivePermissions(ctx context.Context, userID, orgID int64) ([]string, error) {
	if keys, hit, err := s.cache.Get(ctx, userID, orgID); err != nil {
		// A broken cache can only cost recomputation, never a stale answer.
		s.logger.Warn("rbac decision cache read", slog.Any("error", err))
	} else if hit {
		s.observe("cache_hit")
		return keys, nil
	}

	flightKey := fmt.Sprintf("%d:%d", orgID, userID)
	result, err, _ := s.group.Do(flightKey, func() (any, error) {
		return s.compute(ctx, userID, orgID)
	})
	if err != nil {
		s.observe("error")
		return nil, err
	}
	s.observe("computed")
	return result.([]string), nil
}

// HasPermission is the point-in-time decision function.
func (s *Service) HasPermission(ctx context.Context, userID, orgID int64, key string) (bool, error) {
	keys, err := s.ListEffectivePermissions(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	for _, k := range keys {
		if k == key {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) compute(ctx context.Context, userID, orgID int64) ([]string, error) {
	assignments, err := s.assignments.ListForUser(ctx, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list assignments: %w", err)
	}

	roleIDs := make([]int64, 0, len(assignments))
	seen := make(map[int64]struct{}, len(assignments))
	for _, a := range assignments {
		if _, ok := seen[a.RoleID]; ok {
			continue
		}
		seen[a.RoleID] = struct{}{}
		roleIDs = append(roleIDs, a.RoleID)
	}
	var roles map[int64]Role
	if len(roleIDs) > 0 {
		roles, err = s.roles.ByIDs(ctx, roleIDs)
		if err != nil {
			return nil, fmt.Errorf("rbac: resolve roles: %w", err)
		}
	}

	keys := EffectiveSet(s.now(), s.registry.KnownKeys(), assignments, roles).Sorted()
	if err := s.cache.Put(ctx, userID, orgID, keys); err != nil {
		s.logger.Warn("rbac decision cache write", slog.Any("error", err))
	}
	return keys, nil
}

// InvalidateUser drops the cached decision for one (user, organization).
// Assignment writers call this before reporting success.
func (s *Service) InvalidateUser(ctx context.Context, userID, orgID int64) error {
	return s.cache.Invalidate(ctx, userID, orgID)
}

// InvalidateHolders drops cached decisions for every holder of an edited role.
func (s *Service) InvalidateHolders(ctx context.Context, holders []Holder) error {
	return s.cache.InvalidateHolders(ctx, holders)
}

// InvalidateAll drops every cached decision. Registry writers call this so
// wildcard holders see freshly registered keys without waiting out the TTL.
func (s *Service) InvalidateAll(ctx context.Context) error {
	return s.cache.InvalidateAll(ctx)
}
