// AngelaMos | 2026
// handler.go

package checkout

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/middleware"
	"github.com/carterperez-dev/arphoto/backend/internal/payment"
)

const (
	maxWebhookBody  = 64 << 10
	signatureHeader = "Stripe-Signature"
)

type CheckoutRequest struct {
	ResourceID int64 `json:"resourceId" validate:"required,gt=0"`
}

type CheckoutResponse struct {
	Success     bool   `json:"success"`
	AlreadyPaid bool   `json:"alreadyPaid,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type Handler struct {
	service   *Service
	provider  payment.Provider
	validator *validator.Validate
	logger    *slog.Logger
}

func NewHandler(
	service *Service,
	provider payment.Provider,
	logger *slog.Logger,
) *Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service:   service,
		provider:  provider,
		validator: core.NewValidator(),
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Post("/checkout", h.Checkout)
}

// RegisterWebhookRoutes mounts the provider callback. It carries no
// session and is authenticated by the payload signature alone.
func (h *Handler) RegisterWebhookRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Webhook)
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == 0 {
		core.Unauthorized(w, "")
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	res, err := h.service.CreateOrReuse(r.Context(), userID, req.ResourceID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "resource")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, CheckoutResponse{
		Success:     true,
		AlreadyPaid: res.AlreadyPaid,
		RedirectURL: res.RedirectURL,
	})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		h.logger.WarnContext(ctx, "webhook body rejected", "error", err)
		core.BadRequest(w, "invalid payload")
		return
	}

	conf, err := h.provider.ParseConfirmation(payload, r.Header.Get(signatureHeader))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.WarnContext(ctx, "webhook signature rejected",
			"remote_ip", core.ClientIP(r),
			"error", err,
		)
		core.BadRequest(w, "invalid signature")
		return
	case errors.Is(err, payment.ErrIgnoredEvent):
		h.logger.DebugContext(ctx, "webhook event ignored", "reason", err.Error())
		core.OK(w, WebhookResponse{Received: true})
		return
	case err != nil:
		h.logger.ErrorContext(ctx, "webhook event unusable", "error", err)
		core.OK(w, WebhookResponse{Received: true})
		return
	}

	ent, err := h.service.Confirm(ctx, conf)
	if err != nil {
		if !retryable(err) {
			h.logger.ErrorContext(ctx, "confirmation cannot be granted",
				"event_id", conf.EventID,
				"user_id", conf.UserID,
				"resource_id", conf.ResourceID,
				"error", err,
			)
			core.OK(w, WebhookResponse{Received: true})
			return
		}
		h.logger.ErrorContext(ctx, "confirmation grant failed",
			"event_id", conf.EventID,
			"error", err,
		)
		core.InternalServerError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "payment confirmed",
		"event_id", conf.EventID,
		"session_ref", conf.SessionID,
		"user_id", ent.UserID,
		"resource_id", ent.ResourceID,
		"expires_at", ent.ExpiresAt,
	)

	core.OK(w, WebhookResponse{Received: true})
}
