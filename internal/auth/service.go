// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/carterperez-dev/arphoto/backend/internal/core"
	"github.com/carterperez-dev/arphoto/backend/internal/middleware"
	"github.com/carterperez-dev/arphoto/backend/internal/throttle"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already exists")
	ErrPseudoExists       = errors.New("pseudo already exists")
)

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id int64) (*UserInfo, error)
	Create(
		ctx context.Context,
		pseudo, email, passwordHash string,
	) (*UserInfo, error)
	UpdatePassword(ctx context.Context, userID int64, passwordHash string) error
}

// AttemptLimiter is the subset of throttle.Limiter the login and
// registration flows depend on.
type AttemptLimiter interface {
	Check(
		ctx context.Context,
		key string,
		purpose throttle.Purpose,
	) (throttle.Decision, error)
	RecordFailure(ctx context.Context, key string, purpose throttle.Purpose) error
	RecordSuccess(ctx context.Context, key string, purpose throttle.Purpose) error
}

type Service struct {
	repo    Repository
	tokens  *TokenManager
	users   UserProvider
	limiter AttemptLimiter
	clock   core.Clock
	logger  *slog.Logger
}

type ServiceOption func(*Service)

func WithClock(c core.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

func NewService(
	repo Repository,
	tokens *TokenManager,
	users UserProvider,
	limiter AttemptLimiter,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:    repo,
		tokens:  tokens,
		users:   users,
		limiter: limiter,
		clock:   core.SystemClock,
		logger:  slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Login runs the throttle check, then the credential check. An unknown
// email and a wrong password both return ErrInvalidCredentials and both
// count as a failed attempt.
func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	client ClientInfo,
) (result *LoginResult, err error) {
	ctx, span := core.StartSpan(ctx, "auth.login")
	defer func() { core.FinishSpan(span, err) }()

	decision, err := s.limiter.Check(ctx, client.IP, throttle.PurposeLogin)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, core.NormalizeEmail(req.Email))
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		//nolint:errcheck // timing attack prevention - always verify to prevent enumeration
		_, _, _ = core.VerifyPasswordTimingSafe(req.Password, nil)
		return nil, s.loginFailed(ctx, client.IP)
	}

	valid, newHash, err := core.VerifyPasswordTimingSafe(
		req.Password,
		&user.PasswordHash,
	)
	if err != nil {
		s.logger.WarnContext(ctx, "unreadable password hash",
			"user_id", user.ID,
			"error", err,
		)
	}
	if err != nil || !valid {
		return nil, s.loginFailed(ctx, client.IP)
	}

	if err := s.limiter.RecordSuccess(ctx, client.IP, throttle.PurposeLogin); err != nil {
		s.logger.ErrorContext(ctx, "clear login attempts", "error", err)
	}

	if newHash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.WarnContext(ctx, "rehash password",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	session, token, err := s.openSession(ctx, user, client)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(core.UserAttr(user.ID))

	return &LoginResult{
		User:      toUserResponse(user),
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

func (s *Service) loginFailed(ctx context.Context, ip string) error {
	if err := s.limiter.RecordFailure(ctx, ip, throttle.PurposeLogin); err != nil {
		s.logger.ErrorContext(ctx, "record login failure", "error", err)
	}
	return ErrInvalidCredentials
}

func (s *Service) openSession(
	ctx context.Context,
	user *UserInfo,
	client ClientInfo,
) (*Session, string, error) {
	now := s.clock.Now()

	session := &Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Role:      core.ParseRole(string(user.Role)),
		UserAgent: client.UserAgent,
		IPAddress: client.IP,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.TTL()),
	}

	token, err := s.tokens.CreateSessionToken(session)
	if err != nil {
		return nil, "", fmt.Errorf("create session token: %w", err)
	}

	if err := s.repo.Create(ctx, session); err != nil {
		return nil, "", fmt.Errorf("store session: %w", err)
	}

	return session, token, nil
}

// Register creates an account without opening a session. A duplicate
// email or pseudo counts against the register throttle.
func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	client ClientInfo,
) (resp *UserResponse, err error) {
	ctx, span := core.StartSpan(ctx, "auth.register")
	defer func() { core.FinishSpan(span, err) }()

	decision, err := s.limiter.Check(ctx, client.IP, throttle.PurposeRegister)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if err := decision.Err(); err != nil {
		return nil, err
	}

	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(
		ctx,
		req.Pseudo,
		core.NormalizeEmail(req.Email),
		passwordHash,
	)
	if err != nil {
		if errors.Is(err, ErrEmailExists) || errors.Is(err, ErrPseudoExists) {
			if recErr := s.limiter.RecordFailure(ctx, client.IP, throttle.PurposeRegister); recErr != nil {
				s.logger.ErrorContext(ctx, "record register failure", "error", recErr)
			}
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.limiter.RecordSuccess(ctx, client.IP, throttle.PurposeRegister); err != nil {
		s.logger.ErrorContext(ctx, "clear register attempts", "error", err)
	}

	out := toUserResponse(user)
	return &out, nil
}

// VerifySession resolves a session token to its live server-side session.
// A well-signed token whose session was destroyed is rejected.
func (s *Service) VerifySession(
	ctx context.Context,
	token string,
) (*middleware.SessionClaims, error) {
	claims, err := s.tokens.VerifySessionToken(token)
	if err != nil {
		return nil, err
	}

	session, err := s.repo.Get(ctx, claims.SessionID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenRevoked)
	}
	if err != nil {
		return nil, fmt.Errorf(
			"verify session: %w: %w",
			core.ErrUnavailable,
			err,
		)
	}

	if session.UserID != claims.UserID || session.IsExpired(s.clock.Now()) {
		return nil, fmt.Errorf("verify session: %w", core.ErrTokenInvalid)
	}

	return &middleware.SessionClaims{
		SessionID: session.ID,
		UserID:    session.UserID,
		Role:      core.ParseRole(string(session.Role)),
	}, nil
}

func (s *Service) Logout(
	ctx context.Context,
	userID int64,
	sessionID string,
) error {
	err := s.repo.Delete(ctx, &Session{ID: sessionID, UserID: userID})
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// RevokeAllSessions destroys every session of the user.
func (s *Service) RevokeAllSessions(ctx context.Context, userID int64) error {
	if err := s.repo.DeleteAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	return nil
}

func (s *Service) ListSessions(
	ctx context.Context,
	userID int64,
	currentID string,
) ([]SessionInfo, error) {
	sessions, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	out := make([]SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, SessionInfo{
			ID:        sess.ID,
			UserAgent: sess.UserAgent,
			IPAddress: sess.IPAddress,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			Current:   sess.ID == currentID,
		})
	}

	return out, nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID int64,
	currentPassword, newPassword string,
) (err error) {
	ctx, span := core.StartSpan(ctx, "auth.change_password",
		core.UserAttr(userID),
	)
	defer func() { core.FinishSpan(span, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, err := core.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.RevokeAllSessions(ctx, userID)
}

var _ middleware.SessionVerifier = (*Service)(nil)
