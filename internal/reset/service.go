// AngelaMos | 2026
// service.go

package reset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/carterperez-dev/arphoto/backend/internal/auth"
	"github.com/carterperez-dev/arphoto/backend/internal/config"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/throttle"
)

// ErrInvalidCode covers a missing, expired and mismatched code alike.
var ErrInvalidCode = errors.New("invalid code")

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

type SessionRevoker interface {
	RevokeAllSessions(ctx context.Context, userID int64) error
}

type RequestResult struct {
	DebugCode string
}

type Service struct {
	repo     Repository
	users    UserProvider
	sessions SessionRevoker
	limiter  auth.AttemptLimiter
	mailer   Mailer
	cfg      config.ResetConfig
	clock    core.Clock
	logger   *slog.Logger
}

type Option func(*Service)

func WithClock(c core.Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func NewService(
	repo Repository,
	users UserProvider,
	sessions SessionRevoker,
	limiter auth.AttemptLimiter,
	mailer Mailer,
	cfg config.ResetConfig,
	opts ...Option,
) *Service {
	s := &Service{
		repo:     repo,
		users:    users,
		sessions: sessions,
		limiter:  limiter,
		mailer:   mailer,
		cfg:      cfg,
		clock:    core.SystemClock,
		logger:   slog.Default(),
	}

	if s.cfg.CodeLength <= 0 {
		s.cfg.CodeLength = 6
	}
	if s.cfg.CodeTTL <= 0 {
		s.cfg.CodeTTL = 15 * time.Minute
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Request issues a fresh code when the email belongs to an account. The
// caller sees the same result either way, and the attempt is counted
// either way.
func (s *Service) Request(
	ctx context.Context,
	email, ip string,
) (result *RequestResult, err error) {
	ctx, span := core.StartSpan(ctx, "reset.request")
	defer func() { core.FinishSpan(span, err) }()

	if err := s.checkThrottle(ctx, ip); err != nil {
		return nil, err
	}
	s.recordFailure(ctx, ip)

	email = core.NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return &RequestResult{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if n, err := s.PurgeExpired(ctx); err != nil {
		s.logger.WarnContext(ctx, "purge expired reset codes", "error", err)
	} else if n > 0 {
		s.logger.DebugContext(ctx, "purged expired reset codes", "count", n)
	}

	secret, err := core.GenerateNumericCode(s.cfg.CodeLength)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	now := s.clock.Now()
	code := &Code{
		Email:     user.Email,
		Code:      secret,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		CreatedAt: now,
	}

	if err := s.repo.Replace(ctx, code); err != nil {
		return nil, fmt.Errorf("store reset code: %w", err)
	}

	if err := s.mailer.SendResetCode(ctx, code.Email, secret, code.ExpiresAt); err != nil {
		s.logger.ErrorContext(ctx, "send reset code",
			"user_id", user.ID,
			"error", err,
		)
	}

	result = &RequestResult{}
	if s.cfg.ExposeCode {
		result.DebugCode = secret
	}

	return result, nil
}

// Verify checks a code without consuming it.
func (s *Service) Verify(
	ctx context.Context,
	email, code, ip string,
) (err error) {
	ctx, span := core.StartSpan(ctx, "reset.verify")
	defer func() { core.FinishSpan(span, err) }()

	if err := s.checkThrottle(ctx, ip); err != nil {
		return err
	}

	if _, err := s.validate(ctx, core.NormalizeEmail(email), code, ip); err != nil {
		return err
	}

	s.recordSuccess(ctx, ip)
	return nil
}

// Reset re-validates the code, then replaces the password, consumes the
// code and ends every session of the account.
func (s *Service) Reset(
	ctx context.Context,
	email, code, newPassword, ip string,
) (err error) {
	ctx, span := core.StartSpan(ctx, "reset.reset")
	defer func() { core.FinishSpan(span, err) }()

	if err := s.checkThrottle(ctx, ip); err != nil {
		return err
	}

	email = core.NormalizeEmail(email)

	if _, err := s.validate(ctx, email, code, ip); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		s.recordFailure(ctx, ip)
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	hash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if err := s.repo.DeleteForEmail(ctx, email); err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}

	s.recordSuccess(ctx, ip)

	if err := s.sessions.RevokeAllSessions(ctx, user.ID); err != nil {
		s.logger.ErrorContext(ctx, "revoke sessions after reset",
			"user_id", user.ID,
			"error", err,
		)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", user.ID)
	return nil
}

func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.clock.Now())
}

// validate counts every invalid outcome as a failed attempt and returns
// ErrInvalidCode for all of them. Storage errors are returned as is.
func (s *Service) validate(
	ctx context.Context,
	email, code, ip string,
) (*Code, error) {
	stored, result, err := s.lookup(ctx, email, code)
	if err != nil {
		return nil, err
	}

	if result != codeValid {
		s.logger.DebugContext(ctx, "reset code rejected", "reason", result.String())
		s.recordFailure(ctx, ip)
		return nil, ErrInvalidCode
	}

	return stored, nil
}

func (s *Service) lookup(
	ctx context.Context,
	email, code string,
) (*Code, outcome, error) {
	stored, err := s.repo.Latest(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return nil, codeMissing, nil
	}
	if err != nil {
		return nil, codeMissing, fmt.Errorf("load reset code: %w", err)
	}

	if stored.Expired(s.clock.Now()) {
		return nil, codeExpired, nil
	}

	if !core.ConstantTimeEqual(stored.Code, code) {
		return nil, codeMismatch, nil
	}

	return stored, codeValid, nil
}

func (s *Service) checkThrottle(ctx context.Context, ip string) error {
	decision, err := s.limiter.Check(ctx, ip, throttle.PurposeReset)
	if err != nil {
		return fmt.Errorf("reset throttle: %w", err)
	}
	return decision.Err()
}

func (s *Service) recordFailure(ctx context.Context, ip string) {
	if err := s.limiter.RecordFailure(ctx, ip, throttle.PurposeReset); err != nil {
		s.logger.ErrorContext(ctx, "record reset failure", "error", err)
	}
}

func (s *Service) recordSuccess(ctx context.Context, ip string) {
	if err := s.limiter.RecordSuccess(ctx, ip, throttle.PurposeReset); err != nil {
		s.logger.ErrorContext(ctx, "clear reset attempts", "error", err)
	}
}
