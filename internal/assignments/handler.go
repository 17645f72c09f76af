package assignments

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/vantage-suite/vantage-suite/internal/platform/httpx"
	"github.com/vantage-suite/vantage-suite/internal/rbac"
	"github.com/vantage-suite/vantage-suite/internal/shared"
)

// Handler manages assignment administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
	guard    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New(), guard: guard}
}

// MountRoutes registers assignment routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny("global.roles.view", "global.roles.manage"))
		r.Get("/user/{userID}", h.listForUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAll("global.roles.manage"))
		r.Post("/", h.assign)
		r.Post("/{assignmentID}/revoke", h.revoke)
		r.Put("/{assignmentID}/overrides", h.setOverrides)
		r.Delete("/{assignmentID}", h.hardDelete)
	})
}

type assignmentResponse struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"userId"`
	RoleID         int64      `json:"roleId"`
	OrganizationID int64      `json:"organizationId"`
	GrantedBy      *int64     `json:"grantedBy"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	Branch         *string    `json:"branch"`
	Extra          []string   `json:"additionalPermissions"`
	Revoked        []string   `json:"revokedPermissions"`
	IsActive       bool       `json:"isActive"`
}

func toAssignmentResponse(a rbac.Assignment) assignmentResponse {
	return assignmentResponse{
		ID:             a.ID,
		UserID:         a.UserID,
		RoleID:         a.RoleID,
		OrganizationID: a.OrganizationID,
		GrantedBy:      a.GrantedBy,
		ExpiresAt:      a.ExpiresAt,
		Branch:         a.Branch,
		Extra:          a.Extra.RawKeys(),
		Revoked:        a.Revoked,
		IsActive:       a.IsActive,
	}
}

type assignRequest struct {
	UserID         int64      `json:"userId" validate:"required"`
	RoleID         int64      `json:"roleId" validate:"required"`
	OrganizationID int64      `json:"organizationId" validate:"required"`
	ExpiresAt      *time.Time `json:"expiresAt"`
	Branch         *string    `json:"branch"`
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	var req assignRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	created, err := h.service.Assign(r.Context(), actor, AssignInput{
		UserID:         req.UserID,
		RoleID:         req.RoleID,
		OrganizationID: req.OrganizationID,
		ExpiresAt:      req.ExpiresAt,
		Branch:         req.Branch,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssignmentResponse(created))
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "assignmentID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.Revoke(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overridesRequest struct {
	AdditionalPermissions []string `json:"additionalPermissions"`
	RevokedPermissions    []string `json:"revokedPermissions"`
}

func (h *Handler) setOverrides(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "assignmentID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req overridesRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid JSON", err.Error())
		return
	}
	updated, err := h.service.SetOverrides(r.Context(), actor, id, req.AdditionalPermissions, req.RevokedPermissions)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssignmentResponse(updated))
}

func (h *Handler) listForUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	userID, err := parseID(r, "userID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	orgID := actor.OrganizationID
	if raw := r.URL.Query().Get("organizationId"); raw != "" {
		orgID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
			return
		}
	}
	list, err := h.service.ListForUser(r.Context(), actor, userID, orgID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]assignmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, toAssignmentResponse(a))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"assignments": out})
}

func (h *Handler) hardDelete(w http.ResponseWriter, r *http.Request) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	id, err := parseID(r, "assignmentID")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.HardDelete(r.Context(), actor, id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
