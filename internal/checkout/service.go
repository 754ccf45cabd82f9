// AngelaMos | 2026
// service.go

package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/carterperez-dev/arphoto/backend/internal/auth"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/entitlement"
	"github.com/carterperez-dev/arphoto/backend/internal/payment"
	"github.com/carterperez-dev/arphoto/backend/internal/resource"
)

type ResourceLookup interface {
	GetByID(ctx context.Context, id int64) (*resource.Resource, error)
}

type Ledger interface {
	HasActiveGrant(ctx context.Context, userID, resourceID int64) (bool, error)
	Grant(ctx context.Context, req entitlement.GrantRequest) (*entitlement.Entitlement, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*auth.UserInfo, error)
}

// Result holds exactly one of AlreadyPaid or RedirectURL.
type Result struct {
	AlreadyPaid bool
	RedirectURL string
}

type Service struct {
	resources ResourceLookup
	ledger    Ledger
	provider  payment.Provider
	users     UserLookup
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithUserLookup prefills the checkout page with the account email.
func WithUserLookup(users UserLookup) Option {
	return func(s *Service) { s.users = users }
}

func NewService(
	resources ResourceLookup,
	ledger Ledger,
	provider payment.Provider,
	opts ...Option,
) *Service {
	s := &Service{
		resources: resources,
		ledger:    ledger,
		provider:  provider,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateOrReuse opens a provider checkout unless the user already holds
// access. Two concurrent calls for the same pair may both open a session;
// the grant upsert keeps the ledger consistent if both are paid.
func (s *Service) CreateOrReuse(
	ctx context.Context,
	userID, resourceID int64,
) (res *Result, err error) {
	ctx, span := core.StartSpan(ctx, "checkout.create_or_reuse",
		core.UserAttr(userID),
		core.ResourceAttr(resourceID),
	)
	defer func() { core.FinishSpan(span, err) }()

	r, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}

	if r.Free {
		return &Result{AlreadyPaid: true}, nil
	}

	priceRef := r.Price()
	if priceRef == "" {
		s.logger.ErrorContext(ctx, "resource has no price reference",
			"resource_id", resourceID,
		)
		return nil, fmt.Errorf("resource %d: %w", resourceID, core.ErrMisconfigured)
	}

	active, err := s.ledger.HasActiveGrant(ctx, userID, resourceID)
	if err != nil {
		return nil, fmt.Errorf("check entitlement: %w", err)
	}
	if active {
		return &Result{AlreadyPaid: true}, nil
	}

	cs, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutParams{
		UserID:     userID,
		ResourceID: resourceID,
		PriceRef:   priceRef,
		Email:      s.email(ctx, userID),
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"user_id", userID,
		"resource_id", resourceID,
		"session_ref", cs.ID,
	)

	return &Result{RedirectURL: cs.URL}, nil
}

func (s *Service) email(ctx context.Context, userID int64) string {
	if s.users == nil {
		return ""
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.WarnContext(ctx, "checkout email lookup failed",
			"user_id", userID,
			"error", err,
		)
		return ""
	}

	return u.Email
}

// Confirm turns a verified confirmation into a grant. The duration comes
// from the price the session was opened with, falling back to the
// resource's current price when the event does not name one.
func (s *Service) Confirm(
	ctx context.Context,
	conf *payment.Confirmation,
) (ent *entitlement.Entitlement, err error) {
	ctx, span := core.StartSpan(ctx, "checkout.confirm",
		core.EventAttr(conf.EventID),
		core.UserAttr(conf.UserID),
		core.ResourceAttr(conf.ResourceID),
	)
	defer func() { core.FinishSpan(span, err) }()

	priceRef := conf.PriceRef
	if priceRef == "" {
		r, err := s.resources.GetByID(ctx, conf.ResourceID)
		if err != nil {
			return nil, err
		}
		priceRef = r.Price()
	}

	var days int
	if priceRef != "" {
		days, err = s.provider.PriceDurationDays(ctx, priceRef)
		if err != nil {
			return nil, fmt.Errorf("price duration: %w", err)
		}
	}

	return s.ledger.Grant(ctx, entitlement.GrantRequest{
		UserID:       conf.UserID,
		ResourceID:   conf.ResourceID,
		DurationDays: days,
		Refs: entitlement.Refs{
			SessionID:       conf.SessionID,
			PaymentIntentID: conf.PaymentIntentID,
		},
		IssuedAt: conf.Created,
	})
}

// retryable reports whether the provider should redeliver the event.
func retryable(err error) bool {
	return !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrInvalidInput)
}
