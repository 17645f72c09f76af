package registry

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-suite/vantage-suite/internal/platform/httpx"
	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// ReconcileEnqueuer submits an on-demand catalog reconciliation job.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, requestedBy int64) error
}

// Handler exposes the privileged catalog mutations and the reconcile
// trigger. Read access to the catalog lives on the rbac permissions handler.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enqueue  ReconcileEnqueuer
	validate *validator.Validate
	guard    rbac.Middleware
}

// NewHandler builds Handler instance. enqueue may be nil when no worker runs.
func NewHandler(logger *slog.Logger, service *Service, enqueue ReconcileEnqueuer, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, enqueue: enqueue, validate: validator.New(), guard: guard}
}

// MountRoutes registers catalog administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("global.settings.manage"))
		r.Post("/", h.createPermission)
		r.Delete("/{key}", h.deletePermission)
		r.Post("/reconcile", h.reconcile)
	})
}

type createPermissionRequest struct {
	Key         string `json:"key" validate:"required,min=5,max=150"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createPermission(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req createPermissionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	p, err := h.service.CreatePermission(r.Context(), actor, req.Key, req.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"key": p.Key, "module": p.Module, "description": p.Description})
}

func (h *Handler) deletePermission(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	key := chi.URLParam(r, "key")
	if err := h.service.DeletePermission(r.Context(), actor, key); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	if h.enqueue == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "No Worker", "reconciliation queue not configured")
		return
	}
	if err := h.enqueue.EnqueueReconcile(r.Context(), actor.UserID); err != nil {
		h.logger.Error("enqueue reconcile", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Queue Error", "")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}
