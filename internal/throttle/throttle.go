// AngelaMos | 2026
// throttle.go

package throttle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/carterperez-dev/arphoto/backend/internal/config"
	"github.com/carterperez-dev/arphoto/backend/internal/core"
)

type Purpose string

const (
	PurposeLogin    Purpose = "login"
	PurposeRegister Purpose = "register"
	PurposeReset    Purpose = "reset"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegister, PurposeReset:
		return true
	}
	return false
}

var (
	ErrNoRecord       = errors.New("no attempt record")
	ErrInvalidPurpose = errors.New("invalid throttle purpose")
)

type Record struct {
	Key         string    `db:"key"`
	Purpose     Purpose   `db:"purpose"`
	Count       int       `db:"count"`
	LastAttempt time.Time `db:"last_attempt"`
}

// Store persists attempt records. Get returns ErrNoRecord when absent.
// Increment restarts the count at 1 when the existing record is older
// than window.
type Store interface {
	Get(ctx context.Context, key string, purpose Purpose) (*Record, error)
	Increment(
		ctx context.Context,
		key string,
		purpose Purpose,
		now time.Time,
		window time.Duration,
	) (int, error)
	Delete(ctx context.Context, key string, purpose Purpose) error
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Err is nil for an allowed decision and a *BlockedError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &BlockedError{RetryAfter: d.RetryAfter}
}

type BlockedError struct {
	RetryAfter time.Duration
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

func (e *BlockedError) Unwrap() error {
	return core.ErrTooManyTries
}

// RetryAfterSeconds rounds up and never returns less than one.
func (e *BlockedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

type Limiter struct {
	store       Store
	maxAttempts int
	blockWindow time.Duration
	clock       core.Clock
	logger      *slog.Logger
}

type Option func(*Limiter)

func WithClock(c core.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func NewLimiter(store Store, cfg config.ThrottleConfig, opts ...Option) *Limiter {
	l := &Limiter{
		store:       store,
		maxAttempts: cfg.MaxAttempts,
		blockWindow: cfg.BlockWindow,
		clock:       core.SystemClock,
		logger:      slog.Default(),
	}

	if l.maxAttempts <= 0 {
		l.maxAttempts = 5
	}
	if l.blockWindow <= 0 {
		l.blockWindow = 15 * time.Minute
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Limiter) MaxAttempts() int {
	return l.maxAttempts
}

func (l *Limiter) BlockWindow() time.Duration {
	return l.blockWindow
}

// Check must be called before the protected operation. Any storage error
// denies the attempt and is returned alongside the denial.
func (l *Limiter) Check(
	ctx context.Context,
	key string,
	purpose Purpose,
) (Decision, error) {
	if !purpose.Valid() {
		return Decision{}, fmt.Errorf("throttle check: %w", ErrInvalidPurpose)
	}

	key = normalizeKey(key)

	rec, err := l.store.Get(ctx, key, purpose)
	if errors.Is(err, ErrNoRecord) {
		return l.fresh(), nil
	}
	if err != nil {
		return Decision{}, fmt.Errorf(
			"throttle check: %w: %w",
			core.ErrUnavailable,
			err,
		)
	}

	elapsed := l.clock.Now().Sub(rec.LastAttempt)

	if rec.Count < l.maxAttempts {
		if elapsed >= l.blockWindow {
			return l.fresh(), nil
		}
		return Decision{
			Allowed:   true,
			Remaining: l.maxAttempts - rec.Count,
		}, nil
	}

	if elapsed < l.blockWindow {
		l.logger.WarnContext(ctx, "attempt blocked",
			"key", key,
			"purpose", purpose,
			"count", rec.Count,
		)
		return Decision{
			Allowed:    false,
			RetryAfter: l.blockWindow - elapsed,
		}, nil
	}

	if err := l.store.Delete(ctx, key, purpose); err != nil {
		return Decision{}, fmt.Errorf(
			"throttle check: clear expired block: %w: %w",
			core.ErrUnavailable,
			err,
		)
	}

	return l.fresh(), nil
}

func (l *Limiter) RecordFailure(
	ctx context.Context,
	key string,
	purpose Purpose,
) error {
	if !purpose.Valid() {
		return fmt.Errorf("record failure: %w", ErrInvalidPurpose)
	}

	count, err := l.store.Increment(
		ctx,
		normalizeKey(key),
		purpose,
		l.clock.Now(),
		l.blockWindow,
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}

	if count == l.maxAttempts {
		l.logger.WarnContext(ctx, "attempt limit reached",
			"key", key,
			"purpose", purpose,
			"block_window", l.blockWindow,
		)
	}

	return nil
}

func (l *Limiter) RecordSuccess(
	ctx context.Context,
	key string,
	purpose Purpose,
) error {
	if !purpose.Valid() {
		return fmt.Errorf("record success: %w", ErrInvalidPurpose)
	}

	if err := l.store.Delete(ctx, normalizeKey(key), purpose); err != nil {
		return fmt.Errorf("record success: %w", err)
	}

	return nil
}

// Purge drops every record whose block window has elapsed.
func (l *Limiter) Purge(ctx context.Context) (int64, error) {
	n, err := l.store.DeleteStale(ctx, l.clock.Now().Add(-l.blockWindow))
	if err != nil {
		return 0, fmt.Errorf("purge attempts: %w", err)
	}
	return n, nil
}

func (l *Limiter) fresh() Decision {
	return Decision{Allowed: true, Remaining: l.maxAttempts}
}

const maxKeyLength = 64

func normalizeKey(key string) string {
	if key == "" {
		return "unknown"
	}
	if len(key) > maxKeyLength {
		return key[:maxKeyLength]
	}
	return key
}

// NewStore picks the attempt store named by backend.
func NewStore(
	backend string,
	db core.DBTX,
	rdb redis.UniversalClient,
) (Store, error) {
	switch backend {
	case config.ThrottleBackendRedis, "":
		return NewRedisStore(rdb), nil
	case config.ThrottleBackendPostgres:
		return NewPostgresStore(db), nil
	default:
		return nil, fmt.Errorf("unknown attempt store %q", backend)
	}
}
