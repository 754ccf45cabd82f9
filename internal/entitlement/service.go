// AngelaMos | 2026
// service.go

package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/resource"
)

type ResourceLookup interface {
	GetByID(ctx context.Context, id int64) (*resource.Resource, error)
}

type Service struct {
	repo        Repository
	resources   ResourceLookup
	defaultDays int
	clock       core.Clock
	logger      *slog.Logger
}

type Option func(*Service)

func WithClock(c core.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithDefaultDuration sets the fallback grant length in days.
func WithDefaultDuration(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.defaultDays = days
		}
	}
}

func NewService(
	repo Repository,
	resources ResourceLookup,
	opts ...Option,
) *Service {
	s := &Service{
		repo:        repo,
		resources:   resources,
		defaultDays: DefaultDurationDays,
		clock:       core.SystemClock,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Grant records a confirmed payment. The expiry is IssuedAt plus the
// duration, written with an upsert on (user, resource), so repeating the
// same request leaves one row with the same expiry.
func (s *Service) Grant(
	ctx context.Context,
	req GrantRequest,
) (ent *Entitlement, err error) {
	ctx, span := core.StartSpan(ctx, "entitlement.grant",
		core.UserAttr(req.UserID),
		core.ResourceAttr(req.ResourceID),
	)
	defer func() { core.FinishSpan(span, err) }()

	if req.UserID <= 0 || req.ResourceID <= 0 {
		return nil, fmt.Errorf("grant: %w", core.ErrInvalidInput)
	}

	days := req.DurationDays
	if days <= 0 {
		days = s.defaultDays
	}

	issuedAt := req.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = s.clock.Now()
	}
	issuedAt = issuedAt.UTC()

	ent = &Entitlement{
		UserID:           req.UserID,
		ResourceID:       req.ResourceID,
		ExpiresAt:        issuedAt.Add(time.Duration(days) * 24 * time.Hour),
		SessionRef:       req.Refs.SessionID,
		PaymentIntentRef: req.Refs.PaymentIntentID,
		GrantedAt:        issuedAt,
	}

	written, err := s.repo.Upsert(ctx, ent)
	if err != nil {
		return nil, err
	}

	if !written {
		s.logger.InfoContext(ctx, "entitlement already extends further",
			"user_id", req.UserID,
			"resource_id", req.ResourceID,
			"session_ref", req.Refs.SessionID,
		)
		return s.repo.Get(ctx, req.UserID, req.ResourceID)
	}

	s.logger.InfoContext(ctx, "entitlement granted",
		"user_id", req.UserID,
		"resource_id", req.ResourceID,
		"days", days,
		"expires_at", ent.ExpiresAt,
	)

	return ent, nil
}

// IsEntitled is true for a free resource, or when the user holds a grant
// that has not reached its expiry. An unknown resource is ErrNotFound.
func (s *Service) IsEntitled(
	ctx context.Context,
	userID, resourceID int64,
) (bool, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return false, err
	}

	if res.Free {
		return true, nil
	}

	return s.HasActiveGrant(ctx, userID, resourceID)
}

// HasActiveGrant ignores the free flag.
func (s *Service) HasActiveGrant(
	ctx context.Context,
	userID, resourceID int64,
) (bool, error) {
	ent, err := s.repo.Get(ctx, userID, resourceID)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return ent.Active(s.clock.Now()), nil
}

func (s *Service) ActiveFor(
	ctx context.Context,
	userID int64,
) ([]Entitlement, error) {
	return s.repo.ListActive(ctx, userID, s.clock.Now())
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, s.clock.Now())
}
