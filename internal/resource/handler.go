// AngelaMos | 2026
// handler.go

package resource

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type ListResponse struct {
	Success   bool       `json:"success"`
	Resources []Resource `json:"resources"`
}

// ContentResponse carries the AR overlay location of a resource. It is
// only served behind the entitlement gate.
type ContentResponse struct {
	Success    bool   `json:"success"`
	ResourceID int64  `json:"resource_id"`
	ContentURL string `json:"content_url"`
}

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// RegisterRoutes mounts the catalog. extra runs inside the
// /resources/{resourceID} route so other packages can hang sub-routes off
// a single resource.
func (h *Handler) RegisterRoutes(r chi.Router, extra ...func(chi.Router)) {
	r.Route("/resources", func(r chi.Router) {
		r.Get("/", h.List)
		r.Route("/{resourceID}", func(r chi.Router) {
			r.Get("/", h.Get)
			for _, fn := range extra {
				fn(r)
			}
		})
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	resources, err := h.repo.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	if resources == nil {
		resources = []Resource{}
	}

	core.OK(w, ListResponse{Success: true, Resources: resources})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "resourceID"))
	if err != nil {
		core.BadRequest(w, "invalid resource id")
		return
	}

	res, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "resource")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, res)
}

func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(chi.URLParam(r, "resourceID"))
	if err != nil {
		core.BadRequest(w, "invalid resource id")
		return
	}

	res, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "resource")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	if res.Content == nil || *res.Content == "" {
		core.NotFound(w, "content")
		return
	}

	core.OK(w, ContentResponse{
		Success:    true,
		ResourceID: res.ID,
		ContentURL: *res.Content,
	})
}

func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.ErrInvalidInput
	}
	return id, nil
}
