package rbac

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vantage-suite/vantage-suite/internal/platform/httpx"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// RegistryView is the read surface of the permission catalog.
type RegistryView interface {
	ListAll() []Permission
}

// PermissionsHandler serves the permission catalog and the effective
// permission matrix.
type PermissionsHandler struct {
	logger   *slog.Logger
	service  *Service
	registry RegistryView
	guard    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, registry RegistryView, guard Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, registry: registry, guard: guard}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("global.permissions.view", "global.roles.view", "global.roles.manage"))
		r.Get("/", h.listPermissions)
		r.Get("/matrix/{userID}", h.matrix)
	})
	// A principal may always inspect their own effective set.
	r.Get("/me", h.myPermissions)
}

type permissionResponse struct {
	Key         string `json:"key"`
	Module      string `json:"module"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description"`
	IsSystem    bool   `json:"isSystem"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms := h.registry.ListAll()
	out := make([]permissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, permissionResponse{
			Key:         p.Key,
			Module:      string(p.Module),
			Resource:    p.Resource,
			Action:      p.Action,
			Description: p.Description,
			IsSystem:    p.IsSystem,
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

// matrix renders one user's effective permission set for the admin UI's
// read-only permission matrix.
func (h *PermissionsHandler) matrix(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	keys, err := h.service.ListEffectivePermissions(r.Context(), userID, actor.OrganizationID)
	if err != nil {
		h.logger.Error("permission matrix", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"userId":         userID,
		"organizationId": actor.OrganizationID,
		"effective":      keys,
	})
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
		return
	}
	keys, err := h.service.ListEffectivePermissions(r.Context(), actor.UserID, actor.OrganizationID)
	if err != nil {
		h.logger.Error("own permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"effective": keys})
}
