package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-suite/vantage-suite/internal/assignments"
	"github.com/vantage-suite/vantage-suite/internal/audit"
	"github.com/vantage-suite/vantage-suite/internal/observability"
	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/registry"
	"github.com/vantage-suite/vantage-suite/internal/roles"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config             *Config
	Metrics            *observability.Metrics
	RolesHandler       *roles.Handler
	AssignmentsHandler *assignments.Handler
	PermissionsHandler *rbac.PermissionsHandler
	CatalogHandler     *registry.Handler
	AuditHandler       *audit.Handler
}

// NewRouter constructs the chi.Router with engine defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(params.Metrics.Middleware)
	for _, mw := range MiddlewareStack(MiddlewareConfig{Config: params.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/roles", params.RolesHandler.MountRoutes)
		r.Route("/assignments", params.AssignmentsHandler.MountRoutes)
		r.Route("/permissions", params.PermissionsHandler.MountRoutes)
		r.Route("/catalog", params.CatalogHandler.MountRoutes)
		r.Route("/audit", params.AuditHandler.MountRoutes)
	})

	return r
}
