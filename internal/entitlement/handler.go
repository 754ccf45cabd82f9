// AngelaMos | 2026
// handler.go

package entitlement

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/middleware"
	"github.com/carterperez-dev/arphoto/backend/internal/resource"
)

type AccessResponse struct {
	Success    bool  `json:"success"`
	ResourceID int64 `json:"resource_id"`
	Entitled   bool  `json:"entitled"`
}

type GrantResponse struct {
	ResourceID int64     `json:"resource_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type ListResponse struct {
	Success      bool            `json:"success"`
	Entitlements []GrantResponse `json:"entitlements"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the caller's grant list. The access check lives
// under /resources/{resourceID} and is mounted by the resource handler.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/entitlements", h.List)
}

func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		core.Unauthorized(w, "")
		return
	}

	resourceID, err := resource.ParseID(chi.URLParam(r, "resourceID"))
	if err != nil {
		core.BadRequest(w, "invalid resource id")
		return
	}

	ok, err := h.service.IsEntitled(r.Context(), userID, resourceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "resource")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, AccessResponse{
		Success:    true,
		ResourceID: resourceID,
		Entitled:   ok,
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		core.Unauthorized(w, "")
		return
	}

	grants, err := h.service.ActiveFor(r.Context(), userID)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	out := make([]GrantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, GrantResponse{
			ResourceID: g.ResourceID,
			ExpiresAt:  g.ExpiresAt,
		})
	}

	core.OK(w, ListResponse{Success: true, Entitlements: out})
}
