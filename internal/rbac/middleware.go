package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// Middleware wires authorization checks for HTTP handlers. Business-entity
// handlers mount these guards instead of re-implementing membership checks.
// Any unresolved store error fails closed: deny plus a logged error.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequireAny ensures the current principal holds at least one of the
// required permissions within their organization.
func (m Middleware) RequireAny(keys ...string) func(http.Handler) http.Handler {
	normalized := normalizeKeys(keys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Service.ListEffectivePermissions(r.Context(), p.UserID, p.OrganizationID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require any", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if hasAny(granted, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current principal holds every required permission.
func (m Middleware) RequireAll(keys ...string) func(http.Handler) http.Handler {
	normalized := normalizeKeys(keys)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			p, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Service.ListEffectivePermissions(r.Context(), p.UserID, p.OrganizationID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require all", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if hasAll(granted, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalizeKeys(keys []string) []string {
	unique := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(strings.ToLower(k))
		if k == "" {
			continue
		}
		unique[k] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for k := range unique {
		normalized = append(normalized, k)
	}
	return normalized
}

// Both sides of the comparison are lowercased: required keys in
// normalizeKeys, granted keys here, since key segments are case-insensitive.
func hasAny(granted []string, required []string) bool {
	set := grantedSet(granted)
	for _, k := range required {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

func hasAll(granted []string, required []string) bool {
	set := grantedSet(granted)
	for _, k := range required {
		if _, ok := set[k]; !ok {
			return false
		}
	}
	return true
}

func grantedSet(granted []string) map[string]struct{} {
	set := make(map[string]struct{}, len(granted))
	for _, k := range granted {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}
