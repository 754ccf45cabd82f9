// AngelaMos | 2026
// handler.go

package reset

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

const requestAcceptedMessage = "if an account exists, a code has been sent"

type RequestCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
	Code  string `json:"code"  validate:"required,numeric,max=12"`
}

type ResetPasswordRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Code     string `json:"code"     validate:"required,numeric,max=12"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type RequestCodeResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	DebugCode string `json:"debug_code,omitempty"`
}

func invalidCodeError() *core.AppError {
	return core.NewAppError(
		ErrInvalidCode,
		"invalid code",
		http.StatusBadRequest,
		"INVALID_CODE",
	)
}

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/password-reset", func(r chi.Router) {
		r.Post("/request", h.Request)
		r.Post("/verify", h.Verify)
		r.Post("/reset", h.Reset)
	})
}

func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req RequestCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.Request(r.Context(), req.Email, core.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, RequestCodeResponse{
		Success:   true,
		Message:   requestAcceptedMessage,
		DebugCode: result.DebugCode,
	})
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.Verify(r.Context(), req.Email, req.Code, core.ClientIP(r)); err != nil {
		writeError(w, err)
		return
	}

	core.Success(w, "code accepted")
}

func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.service.Reset(
		r.Context(),
		req.Email,
		req.Code,
		req.Password,
		core.ClientIP(r),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.Success(w, "password updated")
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrTooManyTries):
		core.TooManyAttempts(w, err)
	case errors.Is(err, ErrInvalidCode):
		core.JSONError(w, invalidCodeError())
	default:
		core.InternalServerError(w, err)
	}
}
